package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/pkadima1/sharewizard-server/internal/model"
)

const referralKeyPrefix = "referral:capture:"

// ReferralStore 推荐归因的持久层（Redis）。
// 与 Cookie 层互为冗余：任意一层被清除后，另一层仍可独立满足读取。
type ReferralStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewReferralStore(client *redis.Client, ttlDays int) *ReferralStore {
	return &ReferralStore{
		client: client,
		ttl:    time.Duration(ttlDays) * 24 * time.Hour,
	}
}

// Save 写入归因快照，TTL 与 Cookie 过期时间一致
func (s *ReferralStore) Save(ctx context.Context, visitorID string, capture *model.ReferralCapture) error {
	data, err := json.Marshal(capture)
	if err != nil {
		return fmt.Errorf("failed to marshal referral capture: %w", err)
	}
	return s.client.Set(ctx, referralKeyPrefix+visitorID, data, s.ttl).Err()
}

// Get 读取归因快照，不存在时返回 (nil, nil)
func (s *ReferralStore) Get(ctx context.Context, visitorID string) (*model.ReferralCapture, error) {
	data, err := s.client.Get(ctx, referralKeyPrefix+visitorID).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var capture model.ReferralCapture
	if err := json.Unmarshal([]byte(data), &capture); err != nil {
		return nil, fmt.Errorf("failed to unmarshal referral capture: %w", err)
	}
	return &capture, nil
}

// Delete 清除归因快照
func (s *ReferralStore) Delete(ctx context.Context, visitorID string) error {
	return s.client.Del(ctx, referralKeyPrefix+visitorID).Err()
}

// TTL 归因保留期
func (s *ReferralStore) TTL() time.Duration {
	return s.ttl
}
