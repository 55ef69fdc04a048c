package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/pkadima1/sharewizard-server/internal/model"
)

type CheckoutRepository struct {
	db *gorm.DB
}

func NewCheckoutRepository(db *gorm.DB) *CheckoutRepository {
	return &CheckoutRepository{db: db}
}

func (r *CheckoutRepository) Create(session *model.CheckoutSession) error {
	return r.db.Create(session).Error
}

func (r *CheckoutRepository) GetByID(id int64) (*model.CheckoutSession, error) {
	var session model.CheckoutSession
	err := r.db.Where("id = ?", id).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *CheckoutRepository) GetByGatewaySessionID(gatewayID string) (*model.CheckoutSession, error) {
	var session model.CheckoutSession
	err := r.db.Where("gateway_session_id = ?", gatewayID).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *CheckoutRepository) SetGatewaySessionID(id int64, gatewayID string) error {
	return r.db.Model(&model.CheckoutSession{}).Where("id = ?", id).
		Update("gateway_session_id", gatewayID).Error
}

// Resolve 将会话置为终态，仅首次生效。
// created 是唯一非终态，条件化更新保证 fulfilled/rejected 不会互相覆盖。
func (r *CheckoutRepository) Resolve(id int64, status, url, errMsg string) (bool, error) {
	now := time.Now()
	result := r.db.Model(&model.CheckoutSession{}).
		Where("id = ? AND status = ?", id, model.CheckoutStatusCreated).
		Updates(map[string]interface{}{
			"status":        status,
			"url":           url,
			"error_message": errMsg,
			"resolved_at":   now,
		})
	return result.RowsAffected > 0, result.Error
}

// ConfirmPayment 标记支付确认，仅首次命中。
// 网关事件可能重复投递，套餐变更以此为幂等闸门。
func (r *CheckoutRepository) ConfirmPayment(id int64) (bool, error) {
	result := r.db.Model(&model.CheckoutSession{}).
		Where("id = ? AND payment_confirmed = ?", id, false).
		Update("payment_confirmed", true)
	return result.RowsAffected > 0, result.Error
}

func (r *CheckoutRepository) ListByUserID(userID int64, limit int) ([]*model.CheckoutSession, error) {
	var sessions []*model.CheckoutSession
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Find(&sessions).Error
	return sessions, err
}

// RejectStale 将长期未解析的会话批量置为 rejected，返回处理条数
func (r *CheckoutRepository) RejectStale(olderThan time.Time) (int64, error) {
	now := time.Now()
	result := r.db.Model(&model.CheckoutSession{}).
		Where("status = ? AND created_at < ?", model.CheckoutStatusCreated, olderThan).
		Updates(map[string]interface{}{
			"status":        model.CheckoutStatusRejected,
			"error_message": "会话超时未完成",
			"resolved_at":   now,
		})
	return result.RowsAffected, result.Error
}
