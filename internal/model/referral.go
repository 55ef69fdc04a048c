package model

import (
	"time"
)

// ReferralCapture 推荐归因快照，冗余存储在 Cookie 与 Redis 两层。
// 不落库，序列化为 JSON 后写入存储层。
type ReferralCapture struct {
	Code         string    `json:"code"`
	PartnerID    int64     `json:"partner_id"`
	PartnerName  string    `json:"partner_name"`
	PartnerEmail string    `json:"partner_email,omitempty"`
	CapturedAt   time.Time `json:"captured_at"`
}

// Expired 判断归因是否超过保留期
func (r *ReferralCapture) Expired(ttl time.Duration) bool {
	return time.Since(r.CapturedAt) >= ttl
}
