package repository

import (
	"gorm.io/gorm"

	"github.com/pkadima1/sharewizard-server/internal/model"
)

type PartnerRepository struct {
	db *gorm.DB
}

func NewPartnerRepository(db *gorm.DB) *PartnerRepository {
	return &PartnerRepository{db: db}
}

// GetCode 按推广码查询记录（码已规范化为大写）
func (r *PartnerRepository) GetCode(code string) (*model.PartnerCode, error) {
	var record model.PartnerCode
	err := r.db.Where("code = ?", code).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *PartnerRepository) GetPartnerByID(id int64) (*model.Partner, error) {
	var partner model.Partner
	err := r.db.Where("id = ?", id).First(&partner).Error
	if err != nil {
		return nil, err
	}
	return &partner, nil
}

// IncrementUses 结账成功后递增推广码使用次数（webhook 路径专用）
func (r *PartnerRepository) IncrementUses(code string) error {
	return r.db.Model(&model.PartnerCode{}).Where("code = ?", code).
		Update("uses", gorm.Expr("uses + 1")).Error
}
