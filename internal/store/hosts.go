package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"wolweb/internal/validate"
)

// DefaultWakePort is used when a descriptor leaves the port unset.
const DefaultWakePort = 9

// HostDescriptor carries the caller-supplied host fields. IPAddress and
// Interface are optional; a zero Port means DefaultWakePort.
type HostDescriptor struct {
	Name       string
	MACAddress string
	Port       int
	IPAddress  string
	Interface  string
}

func (d *HostDescriptor) normalize() error {
	if d.Port == 0 {
		d.Port = DefaultWakePort
	}
	if err := validate.HostName(d.Name); err != nil {
		return err
	}
	if err := validate.MACAddress(d.MACAddress); err != nil {
		return err
	}
	if err := validate.Port(d.Port); err != nil {
		return err
	}
	if err := validate.IPv4("ipaddress", d.IPAddress); err != nil {
		return err
	}
	return validate.IPv4("interface", d.Interface)
}

// Hosts is the host registry over the hosts table.
type Hosts struct {
	db *gorm.DB
}

// Create validates the descriptor and persists a new host owned by
// ownerID. A colliding uniqueness tuple yields ErrDuplicateHost.
func (h *Hosts) Create(ctx context.Context, ownerID uint, d HostDescriptor) (uint, error) {
	if err := d.normalize(); err != nil {
		return 0, err
	}
	host := Host{
		Name:       d.Name,
		MACAddress: d.MACAddress,
		Port:       d.Port,
		IPAddress:  d.IPAddress,
		Interface:  d.Interface,
		UserID:     ownerID,
	}
	if err := h.db.WithContext(ctx).Create(&host).Error; err != nil {
		if isUniqueViolation(err, "") {
			return 0, ErrDuplicateHost
		}
		return 0, fmt.Errorf("creating host: %w", err)
	}
	return host.ID, nil
}

// Update overwrites the descriptor fields of the host identified by id
// and owned by ownerID. A host owned by someone else is reported as
// ErrNotFound, never as a hint that the row exists.
func (h *Hosts) Update(ctx context.Context, id, ownerID uint, d HostDescriptor) error {
	if err := d.normalize(); err != nil {
		return err
	}
	res := h.db.WithContext(ctx).Model(&Host{}).
		Where("id = ? AND user_id = ?", id, ownerID).
		Updates(map[string]any{
			"name":       d.Name,
			"macaddress": d.MACAddress,
			"port":       d.Port,
			"ipaddress":  d.IPAddress,
			"interface":  d.Interface,
		})
	if res.Error != nil {
		if isUniqueViolation(res.Error, "") {
			return ErrDuplicateHost
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the host. A second delete of the same id yields
// ErrNotFound.
func (h *Hosts) Delete(ctx context.Context, id uint) error {
	res := h.db.WithContext(ctx).Delete(&Host{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns the host or ErrNotFound.
func (h *Hosts) Get(ctx context.Context, id uint) (Host, error) {
	var host Host
	err := h.db.WithContext(ctx).First(&host, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Host{}, ErrNotFound
		}
		return Host{}, err
	}
	return host, nil
}

// ListByOwner returns the owner's hosts in insertion order. It never
// fails on an empty result.
func (h *Hosts) ListByOwner(ctx context.Context, ownerID uint) ([]Host, error) {
	var hosts []Host
	err := h.db.WithContext(ctx).Where("user_id = ?", ownerID).Order("id").Find(&hosts).Error
	if err != nil {
		return nil, err
	}
	return hosts, nil
}
