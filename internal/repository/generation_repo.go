package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/pkadima1/sharewizard-server/internal/model"
)

type GenerationRepository struct {
	db *gorm.DB
}

func NewGenerationRepository(db *gorm.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

func (r *GenerationRepository) Create(generation *model.Generation) error {
	return r.db.Create(generation).Error
}

func (r *GenerationRepository) GetByID(id int64) (*model.Generation, error) {
	var generation model.Generation
	err := r.db.Where("id = ?", id).First(&generation).Error
	if err != nil {
		return nil, err
	}
	return &generation, nil
}

func (r *GenerationRepository) Update(generation *model.Generation) error {
	return r.db.Save(generation).Error
}

func (r *GenerationRepository) UpdateStatus(id int64, status string) error {
	return r.db.Model(&model.Generation{}).Where("id = ?", id).
		Update("status", status).Error
}

// Complete 写入生成结果并置为完成
func (r *GenerationRepository) Complete(id int64, content string) error {
	now := time.Now()
	return r.db.Model(&model.Generation{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       "completed",
		"content":      content,
		"completed_at": now,
	}).Error
}

// Fail 记录失败原因
func (r *GenerationRepository) Fail(id int64, errMsg string) error {
	return r.db.Model(&model.Generation{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        "failed",
		"error_message": errMsg,
	}).Error
}

func (r *GenerationRepository) SetExportURL(id int64, url string) error {
	return r.db.Model(&model.Generation{}).Where("id = ?", id).
		Update("export_url", url).Error
}

func (r *GenerationRepository) ListByUserID(userID int64, page, pageSize int) ([]*model.Generation, int64, error) {
	var generations []*model.Generation
	var total int64

	query := r.db.Model(&model.Generation{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&generations).Error
	return generations, total, err
}

func (r *GenerationRepository) Delete(id int64) error {
	return r.db.Delete(&model.Generation{}, id).Error
}
