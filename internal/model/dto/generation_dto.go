package dto

// CreateGenerationRequest 创建内容生成请求
type CreateGenerationRequest struct {
	Title     string `json:"title" binding:"required,max=200"`
	Prompt    string `json:"prompt" binding:"required,max=5000"`
	ModelName string `json:"model_name" binding:"required,max=50"`
}

// CreateGenerationResponse 创建内容生成响应
type CreateGenerationResponse struct {
	GenerationID int64 `json:"generation_id"`
	JobID        int64 `json:"job_id"`
	CostUnits    int   `json:"cost_units"`
}

// GenerationListItem 生成记录列表项
type GenerationListItem struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	ModelName string `json:"model_name"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// GenerationDetail 生成记录详情
type GenerationDetail struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Prompt       string `json:"prompt"`
	Content      string `json:"content,omitempty"`
	ModelName    string `json:"model_name"`
	CostUnits    int    `json:"cost_units"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	ExportURL    string `json:"export_url,omitempty"`
	CreatedAt    string `json:"created_at"`
	CompletedAt  string `json:"completed_at,omitempty"`
}
