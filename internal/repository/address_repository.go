package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"bchfaucet/internal/model"
)

// AddressRepository stores addresses that were paid.
type AddressRepository interface {
	Exists(ctx context.Context, address string) (bool, error)
	Create(ctx context.Context, record *model.AddressRecord) error
	List(ctx context.Context) ([]model.AddressRecord, error)
}

type addressRepository struct {
	db *gorm.DB
}

// NewAddressRepository builds a GORM-backed repository.
func NewAddressRepository(db *gorm.DB) AddressRepository {
	return &addressRepository{db: db}
}

func (r *addressRepository) Exists(ctx context.Context, address string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.AddressRecord{}).Where("bch_address = ?", address).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts the record. A concurrent duplicate is not an error: the address is already marked.
func (r *addressRepository) Create(ctx context.Context, record *model.AddressRecord) error {
	err := r.db.WithContext(ctx).Create(record).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

func (r *addressRepository) List(ctx context.Context) ([]model.AddressRecord, error) {
	var records []model.AddressRecord
	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
