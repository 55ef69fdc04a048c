package model

import (
	"time"
)

// 套餐类型常量
const (
	PlanFree  = "free"
	PlanTrial = "trial"
	PlanLite  = "lite"
	PlanPro   = "pro"
)

// 计费周期常量
const (
	PeriodMonthly = "monthly"
	PeriodYearly  = "yearly"
)

// IsPaidPlan 判断是否为付费套餐（lite/pro，含弹性加量）
func IsPaidPlan(plan string) bool {
	return plan != PlanFree && plan != PlanTrial
}

type User struct {
	ID               int64   `gorm:"primaryKey" json:"id"`
	Username         string  `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email            *string `gorm:"size:100;uniqueIndex" json:"email,omitempty"`
	PasswordHash     *string `gorm:"size:255" json:"-"`
	AvatarURL        string  `gorm:"size:500" json:"avatar_url"`
	GithubID         *string `gorm:"column:github_id;size:50;uniqueIndex" json:"-"`
	StripeCustomerID *string `gorm:"size:100;index" json:"-"`

	// 用量账本：requests_used 只增不减，除非套餐变更/账期续费时显式重置
	PlanType      string `gorm:"size:20;default:free" json:"plan_type"`
	BillingPeriod string `gorm:"size:20" json:"billing_period,omitempty"`
	RequestsUsed  int    `gorm:"default:0" json:"requests_used"`
	RequestsLimit int    `gorm:"default:3" json:"requests_limit"`

	// 试用状态机：has_used_trial 只会从 false 变为 true，且仅一次
	HasUsedTrial   bool       `gorm:"default:false" json:"has_used_trial"`
	TrialPending   bool       `gorm:"default:false" json:"trial_pending"`
	TrialEndDate   *time.Time `json:"trial_end_date,omitempty"`
	SelectedPlan   string     `gorm:"size:20" json:"-"`
	SelectedPeriod string     `gorm:"size:20" json:"-"`

	EmailVerified         bool       `gorm:"default:false" json:"email_verified"`
	VerificationCode      *string    `gorm:"size:100" json:"-"`
	VerificationExpiresAt *time.Time `json:"-"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
