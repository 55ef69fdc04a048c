package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/pkadima1/sharewizard-server/internal/model"
	"github.com/pkadima1/sharewizard-server/internal/repository"
)

var ErrReferralInvalid = errors.New("推广码无效或已过期")

type ReferralService struct {
	partnerRepo *repository.PartnerRepository
	store       *repository.ReferralStore
}

func NewReferralService(partnerRepo *repository.PartnerRepository, store *repository.ReferralStore) *ReferralService {
	return &ReferralService{
		partnerRepo: partnerRepo,
		store:       store,
	}
}

// NormalizeCode 推广码规范化：去空白并统一大写
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate 校验推广码并返回归因快照。
// 码不存在、停用、过期、超出使用上限或伙伴停用均视为无效。
func (s *ReferralService) Validate(rawCode string) (*model.ReferralCapture, error) {
	code := NormalizeCode(rawCode)
	if code == "" {
		return nil, ErrReferralInvalid
	}

	record, err := s.partnerRepo.GetCode(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReferralInvalid
		}
		return nil, err
	}

	if !record.Active {
		return nil, ErrReferralInvalid
	}
	if record.ExpiresAt != nil && time.Now().After(*record.ExpiresAt) {
		return nil, ErrReferralInvalid
	}
	if record.MaxUses != nil && record.Uses >= *record.MaxUses {
		return nil, ErrReferralInvalid
	}

	partner, err := s.partnerRepo.GetPartnerByID(record.PartnerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReferralInvalid
		}
		return nil, err
	}
	if !partner.Active {
		return nil, ErrReferralInvalid
	}

	return &model.ReferralCapture{
		Code:         code,
		PartnerID:    partner.ID,
		PartnerName:  partner.DisplayName,
		PartnerEmail: partner.Email,
		CapturedAt:   time.Now(),
	}, nil
}

// Capture 校验并持久化归因快照。只有通过校验的码才会落存储。
func (s *ReferralService) Capture(ctx context.Context, visitorID, rawCode string) (*model.ReferralCapture, error) {
	capture, err := s.Validate(rawCode)
	if err != nil {
		return nil, err
	}

	if visitorID != "" {
		if err := s.store.Save(ctx, visitorID, capture); err != nil {
			// 持久层失败不阻断捕获，Cookie 层仍然可用
			log.Printf("Failed to save referral capture for visitor %s: %v", visitorID, err)
		}
	}
	return capture, nil
}

// Resolve 按优先级解析当前访问的归因：
// URL 参数 > Cookie 快照 > Redis 快照。
// 过期快照在读取时清除，无效的 URL 码回落到下一层。
func (s *ReferralService) Resolve(ctx context.Context, visitorID, queryCode string, cookie *model.ReferralCapture) *model.ReferralCapture {
	if queryCode != "" {
		capture, err := s.Capture(ctx, visitorID, queryCode)
		if err == nil {
			return capture
		}
		if !errors.Is(err, ErrReferralInvalid) {
			log.Printf("Failed to capture referral code %q: %v", queryCode, err)
		}
	}

	if cookie != nil && cookie.Code != "" {
		if cookie.Expired(s.store.TTL()) {
			// Cookie 已过期，连带清除持久层
			s.purge(ctx, visitorID)
			return nil
		}
		if cookie.PartnerID != 0 {
			return cookie
		}
		// Cookie 层只存精简字段，优先用持久层补全，缺失时重新校验
		if visitorID != "" {
			if full, err := s.store.Get(ctx, visitorID); err == nil && full != nil && full.Code == cookie.Code {
				return full
			}
		}
		if capture, err := s.Validate(cookie.Code); err == nil {
			capture.CapturedAt = cookie.CapturedAt
			return capture
		}
		return nil
	}

	if visitorID != "" {
		capture, err := s.store.Get(ctx, visitorID)
		if err != nil {
			log.Printf("Failed to load referral capture for visitor %s: %v", visitorID, err)
			return nil
		}
		if capture == nil {
			return nil
		}
		if capture.Expired(s.store.TTL()) {
			s.purge(ctx, visitorID)
			return nil
		}
		return capture
	}

	return nil
}

// Clear 清除访客的归因快照（持久层）
func (s *ReferralService) Clear(ctx context.Context, visitorID string) error {
	if visitorID == "" {
		return nil
	}
	return s.store.Delete(ctx, visitorID)
}

// TTL 归因保留期，Cookie 过期时间与此保持一致
func (s *ReferralService) TTL() time.Duration {
	return s.store.TTL()
}

func (s *ReferralService) purge(ctx context.Context, visitorID string) {
	if visitorID == "" {
		return
	}
	if err := s.store.Delete(ctx, visitorID); err != nil {
		log.Printf("Failed to purge referral capture for visitor %s: %v", visitorID, err)
	}
}
