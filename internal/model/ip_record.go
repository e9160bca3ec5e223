package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IPRecord marks a requester IP that already received a payout.
type IPRecord struct {
	ID        uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	IPAddress string    `json:"ipAddress" gorm:"size:64;not null;index"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index"`
}

// BeforeCreate sets UUID and timestamp before creating the record.
func (r *IPRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	return nil
}
