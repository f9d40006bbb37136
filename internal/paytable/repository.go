package paytable

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	// ActiveEntries returns the tenant's active rows, or the default rows
	// (tenant_id IS NULL) when the tenant has none.
	ActiveEntries(ctx context.Context, tenantID string) ([]Entry, error)

	// ReplaceTable atomically deactivates the tenant's current rows and inserts
	// the new set. Validation happens in the service before this is called.
	ReplaceTable(ctx context.Context, tenantID string, entries []Entry) error

	// SeedDefault inserts the default table if no default rows exist yet.
	SeedDefault(ctx context.Context, entries []Entry) error
}

type RepositoryImpl struct {
	db *gorm.DB
}

func NewRepositoryImpl(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) ActiveEntries(ctx context.Context, tenantID string) ([]Entry, error) {
	var entries []Entry
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND active = true", tenantID).
		Order("weight DESC, multiplier ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		return entries, nil
	}
	err = r.db.WithContext(ctx).
		Where("tenant_id IS NULL AND active = true").
		Order("weight DESC, multiplier ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *RepositoryImpl) ReplaceTable(ctx context.Context, tenantID string, entries []Entry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&Entry{}).
			Where("tenant_id = ? AND active = true", tenantID).
			Updates(map[string]interface{}{"active": false, "updated_at": time.Now()}).Error
		if err != nil {
			return err
		}
		for i := range entries {
			e := entries[i]
			e.EntryID = uuid.NewString()
			e.TenantID = &tenantID
			e.Active = true
			if err := tx.Create(&e).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *RepositoryImpl) SeedDefault(ctx context.Context, entries []Entry) error {
	var count int64
	err := r.db.WithContext(ctx).Model(&Entry{}).
		Where("tenant_id IS NULL").
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range entries {
			e := entries[i]
			e.EntryID = uuid.NewString()
			e.TenantID = nil
			e.Active = true
			if err := tx.Create(&e).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
