package dto

// AvailabilityInfo 单次计费操作前的可用性检查结果
type AvailabilityInfo struct {
	CanProceed bool   `json:"can_proceed"`
	Used       int    `json:"used"`
	Limit      int    `json:"limit"`
	Plan       string `json:"plan"`
}

// PlanStatusInfo 套餐状态，usage_percentage 恒在 [0,100] 区间内
type PlanStatusInfo struct {
	Status          string `json:"status"` // ok, upgrade, limit_reached
	Message         string `json:"message"`
	UsagePercentage int    `json:"usage_percentage"`
	Used            int    `json:"used"`
	Limit           int    `json:"limit"`
	Plan            string `json:"plan"`
}
