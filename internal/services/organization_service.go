package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/bbab/servicecenter/internal/models"
)

var (
	// ErrOrganizationNotFound indicates the requested organization does not exist.
	ErrOrganizationNotFound = errors.New("organization service: organization not found")
)

// MonitorSettingsInput groups per-organization external integration settings.
// Every integration maps to a declared field; a partially configured
// integration is rejected here instead of failing quietly at fetch time.
type MonitorSettingsInput struct {
	UptimeMonitorID string
	UptimeAPIKey    string
	SSLHost         string
	BackupBucket    string
	BackupPrefix    string
}

// Validate checks integration settings for internal consistency.
func (m MonitorSettingsInput) Validate() error {
	if m.UptimeMonitorID != "" && m.UptimeAPIKey == "" {
		return errors.New("organization service: uptime monitor id set without api key")
	}
	if m.UptimeAPIKey != "" && m.UptimeMonitorID == "" {
		return errors.New("organization service: uptime api key set without monitor id")
	}
	if m.BackupPrefix != "" && m.BackupBucket == "" {
		return errors.New("organization service: backup prefix set without bucket")
	}
	return nil
}

// CreateOrganizationInput captures the attributes required to register an organization.
type CreateOrganizationInput struct {
	Name         string
	ContactEmail string
	Monitors     MonitorSettingsInput
	Settings     map[string]any
}

// UpdateOrganizationInput represents mutable organization fields.
type UpdateOrganizationInput struct {
	Name         *string
	ContactEmail *string
	Active       *bool
	Monitors     *MonitorSettingsInput
	Settings     map[string]any
}

// OrganizationService manages lifecycle operations for organizations.
type OrganizationService struct {
	db *gorm.DB
}

// NewOrganizationService constructs an OrganizationService instance.
func NewOrganizationService(db *gorm.DB) (*OrganizationService, error) {
	if db == nil {
		return nil, errors.New("organization service: db is required")
	}
	return &OrganizationService{db: db}, nil
}

// Create registers a new organization.
func (s *OrganizationService) Create(ctx context.Context, input CreateOrganizationInput) (*models.Organization, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.New("organization service: name is required")
	}

	email := strings.TrimSpace(input.ContactEmail)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, fmt.Errorf("organization service: invalid contact email: %w", err)
		}
	}

	if err := input.Monitors.Validate(); err != nil {
		return nil, err
	}

	org := &models.Organization{
		Name:            name,
		ContactEmail:    email,
		Active:          true,
		UptimeMonitorID: strings.TrimSpace(input.Monitors.UptimeMonitorID),
		UptimeAPIKey:    strings.TrimSpace(input.Monitors.UptimeAPIKey),
		SSLHost:         strings.TrimSpace(input.Monitors.SSLHost),
		BackupBucket:    strings.TrimSpace(input.Monitors.BackupBucket),
		BackupPrefix:    strings.TrimSpace(input.Monitors.BackupPrefix),
	}

	if input.Settings != nil {
		data, err := json.Marshal(input.Settings)
		if err != nil {
			return nil, fmt.Errorf("organization service: marshal settings: %w", err)
		}
		org.Settings = datatypes.JSON(data)
	}

	if err := s.db.WithContext(ctx).Create(org).Error; err != nil {
		return nil, fmt.Errorf("organization service: create organization: %w", err)
	}

	return org, nil
}

// GetByID loads an organization.
func (s *OrganizationService) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	ctx = ensureContext(ctx)

	var org models.Organization
	err := s.db.WithContext(ctx).First(&org, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("organization service: get organization: %w", err)
	}
	return &org, nil
}

// List returns all organizations ordered by creation date.
func (s *OrganizationService) List(ctx context.Context) ([]models.Organization, error) {
	ctx = ensureContext(ctx)

	var orgs []models.Organization
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&orgs).Error; err != nil {
		return nil, fmt.Errorf("organization service: list organizations: %w", err)
	}
	return orgs, nil
}

// ListActive returns organizations eligible for the scheduled health sweep.
func (s *OrganizationService) ListActive(ctx context.Context) ([]models.Organization, error) {
	ctx = ensureContext(ctx)

	var orgs []models.Organization
	if err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at ASC").
		Find(&orgs).Error; err != nil {
		return nil, fmt.Errorf("organization service: list active organizations: %w", err)
	}
	return orgs, nil
}

// Update modifies metadata for an organization.
func (s *OrganizationService) Update(ctx context.Context, id string, input UpdateOrganizationInput) (*models.Organization, error) {
	ctx = ensureContext(ctx)

	org, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, errors.New("organization service: name cannot be empty")
		}
		org.Name = name
	}
	if input.ContactEmail != nil {
		email := strings.TrimSpace(*input.ContactEmail)
		if email != "" {
			if _, err := mail.ParseAddress(email); err != nil {
				return nil, fmt.Errorf("organization service: invalid contact email: %w", err)
			}
		}
		org.ContactEmail = email
	}
	if input.Active != nil {
		org.Active = *input.Active
	}
	if input.Monitors != nil {
		if err := input.Monitors.Validate(); err != nil {
			return nil, err
		}
		org.UptimeMonitorID = strings.TrimSpace(input.Monitors.UptimeMonitorID)
		org.UptimeAPIKey = strings.TrimSpace(input.Monitors.UptimeAPIKey)
		org.SSLHost = strings.TrimSpace(input.Monitors.SSLHost)
		org.BackupBucket = strings.TrimSpace(input.Monitors.BackupBucket)
		org.BackupPrefix = strings.TrimSpace(input.Monitors.BackupPrefix)
	}
	if input.Settings != nil {
		data, err := json.Marshal(input.Settings)
		if err != nil {
			return nil, fmt.Errorf("organization service: marshal settings: %w", err)
		}
		org.Settings = datatypes.JSON(data)
	}

	if err := s.db.WithContext(ctx).Save(org).Error; err != nil {
		return nil, fmt.Errorf("organization service: update organization: %w", err)
	}
	return org, nil
}

// Delete removes an organization and its timers.
func (s *OrganizationService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("organization_id = ?", id).Delete(&models.Timer{}).Error; err != nil {
			return fmt.Errorf("organization service: delete timers: %w", err)
		}

		result := tx.Delete(&models.Organization{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("organization service: delete organization: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrOrganizationNotFound
		}
		return nil
	})
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
