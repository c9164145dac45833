package models

import "gorm.io/datatypes"

// Organization is a client tenant. Monitor credentials live in dedicated
// columns so that each external integration maps to an explicit field rather
// than being discovered at runtime.
type Organization struct {
	BaseModel

	Name         string `gorm:"not null;uniqueIndex" json:"name"`
	ContactEmail string `json:"contact_email"`
	Active       bool   `gorm:"default:true;index" json:"active"`

	// Uptime monitor integration.
	UptimeMonitorID string `json:"uptime_monitor_id"`
	UptimeAPIKey    string `json:"-"`

	// Certificate inspection target, host or host:port.
	SSLHost string `json:"ssl_host"`

	// Backup freshness integration (object storage listing).
	BackupBucket string `json:"backup_bucket"`
	BackupPrefix string `json:"backup_prefix"`

	// Free-form per-tenant settings (branding, portal preferences).
	Settings datatypes.JSON `json:"settings"`

	Timers []Timer `gorm:"foreignKey:OrganizationID" json:"timers,omitempty"`
}
