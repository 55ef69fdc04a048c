package model

import (
	"time"
)

// Generation 生成的内容记录
type Generation struct {
	ID           int64      `gorm:"primaryKey" json:"id"`
	UserID       int64      `gorm:"not null;index" json:"user_id"`
	Title        string     `gorm:"size:200;not null" json:"title"`
	Prompt       string     `gorm:"type:text" json:"prompt"`
	Content      string     `gorm:"type:longtext" json:"content,omitempty"`
	ModelName    string     `gorm:"size:50" json:"model_name"`
	CostUnits    int        `gorm:"default:1" json:"cost_units"`
	Status       string     `gorm:"size:20;default:pending;index" json:"status"` // pending, generating, completed, failed
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	ExportURL    string     `gorm:"size:500" json:"export_url,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

func (Generation) TableName() string {
	return "generations"
}

// GenerationJob 生成任务，由 worker 消费
type GenerationJob struct {
	ID           int64      `gorm:"primaryKey" json:"id"`
	GenerationID int64      `gorm:"not null;index" json:"generation_id"`
	UserID       int64      `gorm:"not null;index" json:"user_id"`
	ModelName    string     `gorm:"size:50" json:"model_name"`
	CostUnits    int        `gorm:"default:1" json:"cost_units"`
	Status       string     `gorm:"size:20;default:queued;index" json:"status"` // queued, processing, completed, failed
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (GenerationJob) TableName() string {
	return "generation_jobs"
}
