package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bchfaucet/internal/model"
)

// IPRepository stores requester IPs that were paid.
type IPRepository interface {
	Exists(ctx context.Context, ip string) (bool, error)
	Create(ctx context.Context, record *model.IPRecord) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	List(ctx context.Context) ([]model.IPRecord, error)
}

type ipRepository struct {
	db *gorm.DB
}

// NewIPRepository builds a GORM-backed repository.
func NewIPRepository(db *gorm.DB) IPRepository {
	return &ipRepository{db: db}
}

func (r *ipRepository) Exists(ctx context.Context, ip string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.IPRecord{}).Where("ip_address = ?", ip).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *ipRepository) Create(ctx context.Context, record *model.IPRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *ipRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where(clause.Lt{Column: clause.Column{Name: "timestamp"}, Value: cutoff}).Delete(&model.IPRecord{})
	return res.RowsAffected, res.Error
}

func (r *ipRepository) List(ctx context.Context) ([]model.IPRecord, error) {
	var records []model.IPRecord
	if err := r.db.WithContext(ctx).Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true}).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
