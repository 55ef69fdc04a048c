package dto

// CreateCheckoutRequest 创建结账会话请求
type CreateCheckoutRequest struct {
	PlanID        string `json:"plan_id" binding:"required_unless=CheckoutType payment"`
	BillingPeriod string `json:"billing_period,omitempty" binding:"omitempty,oneof=monthly yearly"`
	CheckoutType  string `json:"checkout_type" binding:"required,oneof=subscription payment trial"`
}

// CreateCheckoutResponse 创建结账会话响应
type CreateCheckoutResponse struct {
	SessionID   int64  `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// PlanItem 套餐目录项
type PlanItem struct {
	ID           string   `json:"id"`
	RequestLimit int      `json:"request_limit"`
	Price        float64  `json:"price"`
	Features     []string `json:"features,omitempty"`
}
