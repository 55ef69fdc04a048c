package model

import (
	"time"
)

// Partner 推广伙伴档案，对本核心只读
type Partner struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	DisplayName    string    `gorm:"size:100;not null" json:"display_name"`
	Email          string    `gorm:"size:100" json:"email"`
	Active         bool      `gorm:"default:true;index" json:"active"`
	CommissionRate float64   `gorm:"type:decimal(5,4)" json:"commission_rate"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Partner) TableName() string {
	return "partners"
}

// PartnerCode 推广码记录。uses 由 webhook 路径递增，校验路径只读
type PartnerCode struct {
	ID        int64      `gorm:"primaryKey" json:"id"`
	Code      string     `gorm:"size:50;uniqueIndex;not null" json:"code"`
	PartnerID int64      `gorm:"not null;index" json:"partner_id"`
	Active    bool       `gorm:"default:true" json:"active"`
	Uses      int        `gorm:"default:0" json:"uses"`
	MaxUses   *int       `json:"max_uses,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (PartnerCode) TableName() string {
	return "partner_codes"
}
