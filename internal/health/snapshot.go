package health

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bbab/servicecenter/internal/cache"
)

// SnapshotKeyPrefix namespaces cached health snapshots in the shared store.
const SnapshotKeyPrefix = "health:snapshot:"

// SnapshotKey returns the cache key holding the combined health snapshot for
// one organization.
func SnapshotKey(organizationID string) string {
	return SnapshotKeyPrefix + organizationID
}

// UptimeResult is the parsed outcome of an uptime monitor query.
type UptimeResult struct {
	MonitorID    string  `json:"monitor_id"`
	FriendlyName string  `json:"friendly_name"`
	Status       string  `json:"status"`
	Ratio30d     float64 `json:"ratio_30d"`
}

// SSLResult describes the leaf certificate presented by a host.
type SSLResult struct {
	Host          string    `json:"host"`
	Issuer        string    `json:"issuer"`
	Subject       string    `json:"subject"`
	NotAfter      time.Time `json:"not_after"`
	DaysRemaining int       `json:"days_remaining"`
}

// BackupResult summarises the newest object found under a backup prefix.
type BackupResult struct {
	Bucket     string    `json:"bucket"`
	NewestKey  string    `json:"newest_key"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
	AgeHours   float64   `json:"age_hours"`
}

// Snapshot is the combined per-organization health record. Each sub-result is
// either populated or carries an error marker; a failing fetcher never blocks
// the other sub-fields. The whole snapshot is written as one cache entry.
type Snapshot struct {
	OrganizationID string    `json:"organization_id"`
	GeneratedAt    time.Time `json:"generated_at"`

	Uptime      *UptimeResult `json:"uptime,omitempty"`
	UptimeError string        `json:"uptime_error,omitempty"`

	SSL      *SSLResult `json:"ssl,omitempty"`
	SSLError string     `json:"ssl_error,omitempty"`

	Backup      *BackupResult `json:"backup,omitempty"`
	BackupError string        `json:"backup_error,omitempty"`
}

// StoreSnapshot marshals and writes a snapshot as a single cache entry. The
// ttl acts as a safety window: it must exceed the sweep interval so one missed
// cron run does not blank the dashboard, while a dead scheduler eventually
// surfaces as an absent snapshot rather than stale data.
func StoreSnapshot(ctx context.Context, store cache.Store, snap Snapshot, ttl time.Duration) error {
	if store == nil {
		return fmt.Errorf("health: cache store is required")
	}
	if snap.OrganizationID == "" {
		return fmt.Errorf("health: snapshot organization id is required")
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("health: marshal snapshot: %w", err)
	}
	return store.Set(ctx, SnapshotKey(snap.OrganizationID), payload, ttl)
}

// LoadSnapshot reads the cached snapshot for an organization. The boolean is
// false when no snapshot exists or the previous one expired.
func LoadSnapshot(ctx context.Context, store cache.Store, organizationID string) (*Snapshot, bool, error) {
	if store == nil {
		return nil, false, fmt.Errorf("health: cache store is required")
	}

	payload, ok, err := store.Get(ctx, SnapshotKey(organizationID))
	if err != nil {
		return nil, false, fmt.Errorf("health: read snapshot: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, false, fmt.Errorf("health: unmarshal snapshot: %w", err)
	}
	return &snap, true, nil
}
