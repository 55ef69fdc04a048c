package dto

// ReferralInfo 当前请求解析出的推荐归因
type ReferralInfo struct {
	Code        string `json:"code"`
	PartnerName string `json:"partner_name,omitempty"`
	CapturedAt  string `json:"captured_at,omitempty"`
}
