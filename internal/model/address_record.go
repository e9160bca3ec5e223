package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AddressRecord marks a BCH address that already received a payout. Records never expire.
type AddressRecord struct {
	ID         uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	BchAddress string    `json:"bchAddress" gorm:"size:128;not null;uniqueIndex"`
	TxID       string    `json:"txid,omitempty" gorm:"size:64"`
	CreatedAt  time.Time `json:"createdAt"`
}

// BeforeCreate sets UUID before creating the record.
func (r *AddressRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
