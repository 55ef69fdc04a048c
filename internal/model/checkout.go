package model

import (
	"time"
)

// 结账会话状态：created 为唯一非终态，fulfilled/rejected 均为终态
const (
	CheckoutStatusCreated   = "created"
	CheckoutStatusFulfilled = "fulfilled"
	CheckoutStatusRejected  = "rejected"
)

// 结账类型
const (
	CheckoutTypeSubscription = "subscription"
	CheckoutTypePayment      = "payment"
	CheckoutTypeTrial        = "trial"
)

type CheckoutSession struct {
	ID               int64      `gorm:"primaryKey" json:"id"`
	UserID           int64      `gorm:"not null;index" json:"user_id"`
	GatewaySessionID string     `gorm:"size:100;index" json:"gateway_session_id,omitempty"`
	CheckoutType     string     `gorm:"size:20;not null" json:"checkout_type"`
	PlanID           string     `gorm:"size:20" json:"plan_id,omitempty"`
	BillingPeriod    string     `gorm:"size:20" json:"billing_period,omitempty"`
	PriceID          string     `gorm:"size:100" json:"price_id"`
	ClientReference  string     `gorm:"size:100" json:"client_reference"`
	ReferralCode     string     `gorm:"size:50" json:"referral_code,omitempty"`
	PartnerID        *int64     `json:"partner_id,omitempty"`
	Status           string     `gorm:"size:20;default:created;index" json:"status"`
	URL              string     `gorm:"size:500" json:"url,omitempty"`
	ErrorMessage     string     `gorm:"type:text" json:"error_message,omitempty"`
	PaymentConfirmed bool       `gorm:"default:false" json:"payment_confirmed"`
	CreatedAt        time.Time  `json:"created_at"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
}

func (CheckoutSession) TableName() string {
	return "checkout_sessions"
}
