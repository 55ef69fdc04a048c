package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/pkadima1/sharewizard-server/internal/model"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(job *model.GenerationJob) error {
	return r.db.Create(job).Error
}

func (r *JobRepository) GetByID(id int64) (*model.GenerationJob, error) {
	var job model.GenerationJob
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobRepository) GetByGenerationID(generationID int64) (*model.GenerationJob, error) {
	var job model.GenerationJob
	err := r.db.Where("generation_id = ?", generationID).
		Order("created_at DESC").First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobRepository) Update(job *model.GenerationJob) error {
	return r.db.Save(job).Error
}

// MarkProcessing 开始处理
func (r *JobRepository) MarkProcessing(id int64) error {
	now := time.Now()
	return r.db.Model(&model.GenerationJob{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     "processing",
		"started_at": now,
	}).Error
}

// MarkCompleted 处理完成
func (r *JobRepository) MarkCompleted(id int64) error {
	now := time.Now()
	return r.db.Model(&model.GenerationJob{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       "completed",
		"completed_at": now,
	}).Error
}

// MarkFailed 处理失败
func (r *JobRepository) MarkFailed(id int64, errMsg string) error {
	now := time.Now()
	return r.db.Model(&model.GenerationJob{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        "failed",
		"error_message": errMsg,
		"completed_at":  now,
	}).Error
}
