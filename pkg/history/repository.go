// Package history persists processed queries.
package history

import (
	"context"

	"github.com/pitabwire/frame/datastore/pool"
	"github.com/rs/xid"
	"gorm.io/gorm"
)

// Repository stores and lists query records.
type Repository struct {
	pool pool.Pool
}

// NewRepository creates a new history repository.
func NewRepository(pool pool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) db(ctx context.Context, readOnly bool) *gorm.DB {
	return r.pool.DB(ctx, readOnly)
}

// Migrate creates or updates the query_records table.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db(ctx, false).AutoMigrate(&QueryRecord{})
}

// Save persists a new record.
func (r *Repository) Save(ctx context.Context, rec *QueryRecord) error {
	if rec.ID == "" {
		rec.ID = xid.New().String()
	}
	return r.db(ctx, false).Create(rec).Error
}

// GetByID returns a record by ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*QueryRecord, error) {
	var rec QueryRecord
	err := r.db(ctx, true).Where("id = ?", id).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns records newest first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]QueryRecord, error) {
	var records []QueryRecord
	q := r.db(ctx, true).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	err := q.Find(&records).Error
	return records, err
}

// Delete soft-deletes a record.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.db(ctx, false).Where("id = ?", id).Delete(&QueryRecord{}).Error
}
