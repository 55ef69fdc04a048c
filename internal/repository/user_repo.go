package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/pkadima1/sharewizard-server/internal/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

func (r *UserRepository) GetByID(id int64) (*model.User, error) {
	var user model.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByUsername(username string) (*model.User, error) {
	var user model.User
	err := r.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByGithubID(githubID string) (*model.User, error) {
	var user model.User
	err := r.db.Where("github_id = ?", githubID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByStripeCustomerID(customerID string) (*model.User, error) {
	var user model.User
	err := r.db.Where("stripe_customer_id = ?", customerID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByVerificationCode(code string) (*model.User, error) {
	var user model.User
	err := r.db.Where("verification_code = ?", code).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) Update(user *model.User) error {
	return r.db.Save(user).Error
}

func (r *UserRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Updates(fields).Error
}

// IncrementRequestsUsed 按调用成本原子递增用量。
// 依赖数据库侧原子更新，避免两个并发计费操作互相覆盖。
func (r *UserRepository) IncrementRequestsUsed(id int64, cost int) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).
		Update("requests_used", gorm.Expr("requests_used + ?", cost)).Error
}

// AddFlexRequests 弹性加量：只增加额度，不改变套餐与已用量
func (r *UserRepository) AddFlexRequests(id int64, requests int) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).
		Update("requests_limit", gorm.Expr("requests_limit + ?", requests)).Error
}

// ApplyPlan 套餐变更：覆盖套餐与额度并清零已用量
func (r *UserRepository) ApplyPlan(id int64, plan, period string, limit int) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"plan_type":      plan,
		"billing_period": period,
		"requests_limit": limit,
		"requests_used":  0,
		"trial_end_date": nil,
	}).Error
}

// ResetUsage 账期续费：只清零已用量
func (r *UserRepository) ResetUsage(id int64) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).
		Update("requests_used", 0).Error
}

// MarkTrialPending 从 free 套餐标记试用待支付，返回是否命中。
// 条件化更新保证非 free 套餐下调用不产生任何副作用。
func (r *UserRepository) MarkTrialPending(id int64, plan, period string) (bool, error) {
	result := r.db.Model(&model.User{}).
		Where("id = ? AND plan_type = ?", id, model.PlanFree).
		Updates(map[string]interface{}{
			"trial_pending":   true,
			"selected_plan":   plan,
			"selected_period": period,
		})
	return result.RowsAffected > 0, result.Error
}

// ActivateTrial 支付确认后激活试用，仅在 trial_pending 时命中，保证幂等
func (r *UserRepository) ActivateTrial(id int64, limit int, endDate time.Time) (bool, error) {
	result := r.db.Model(&model.User{}).
		Where("id = ? AND trial_pending = ?", id, true).
		Updates(map[string]interface{}{
			"plan_type":      model.PlanTrial,
			"requests_limit": limit,
			"requests_used":  0,
			"has_used_trial": true,
			"trial_pending":  false,
			"trial_end_date": endDate,
		})
	return result.RowsAffected > 0, result.Error
}

// ClearTrialPending 取消结账时清除待支付标记，不触碰 has_used_trial
func (r *UserRepository) ClearTrialPending(id int64) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"trial_pending":   false,
		"selected_plan":   "",
		"selected_period": "",
	}).Error
}

// ListExpiredTrials 查询试用期已过的用户
func (r *UserRepository) ListExpiredTrials(now time.Time) ([]*model.User, error) {
	var users []*model.User
	err := r.db.Where("plan_type = ? AND trial_end_date IS NOT NULL AND trial_end_date < ?",
		model.PlanTrial, now).Find(&users).Error
	return users, err
}

func (r *UserRepository) ExistsByEmail(email string) (bool, error) {
	var count int64
	err := r.db.Model(&model.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) ExistsByUsername(username string) (bool, error) {
	var count int64
	err := r.db.Model(&model.User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}
