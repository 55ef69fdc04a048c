package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelGenerationProgress = "generation_progress"
	ChannelCheckoutEvents     = "checkout_events"
)

// ProgressMessage 生成任务进度消息
type ProgressMessage struct {
	Type         string `json:"type"`
	UserID       int64  `json:"user_id"`
	GenerationID int64  `json:"generation_id"`
	JobID        int64  `json:"job_id"`
	Status       string `json:"status"`
	Step         string `json:"step"`
	Progress     int    `json:"progress"`
	Message      string `json:"message,omitempty"`
	Error        string `json:"error,omitempty"`
}

// CheckoutMessage 结账会话状态变更消息
type CheckoutMessage struct {
	Type       string `json:"type"`
	UserID     int64  `json:"user_id"`
	CheckoutID int64  `json:"checkout_id"`
	Status     string `json:"status"`
	URL        string `json:"url,omitempty"`
	Error      string `json:"error,omitempty"`
}

// 进度阶段常量
const (
	StepQueued     = "queued"
	StepGenerating = "generating"
	StepSaving     = "saving"
	StepDone       = "done"
)

// 阶段对应的进度百分比
var StepProgress = map[string]int{
	StepQueued:     10,
	StepGenerating: 50,
	StepSaving:     80,
	StepDone:       100,
}

// 阶段对应的消息
var StepMessages = map[string]string{
	StepQueued:     "任务已入队",
	StepGenerating: "正在生成内容",
	StepSaving:     "正在保存结果",
	StepDone:       "生成完成",
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishProgress 发布生成进度消息
func (p *Publisher) PublishProgress(ctx context.Context, msg *ProgressMessage) error {
	msg.Type = "job_progress"

	// 自动填充进度和消息
	if msg.Progress == 0 && msg.Step != "" {
		if progress, ok := StepProgress[msg.Step]; ok {
			msg.Progress = progress
		}
	}
	if msg.Message == "" && msg.Step != "" {
		if message, ok := StepMessages[msg.Step]; ok {
			msg.Message = message
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal progress message: %w", err)
	}

	return p.client.Publish(ctx, ChannelGenerationProgress, data).Err()
}

// PublishCheckout 发布结账会话状态变更
func (p *Publisher) PublishCheckout(ctx context.Context, msg *CheckoutMessage) error {
	msg.Type = "checkout_update"

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal checkout message: %w", err)
	}

	return p.client.Publish(ctx, ChannelCheckoutEvents, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅生成进度消息
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*ProgressMessage)) error {
	pubsub := s.client.Subscribe(ctx, ChannelGenerationProgress)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var progressMsg ProgressMessage
			if err := json.Unmarshal([]byte(msg.Payload), &progressMsg); err != nil {
				continue // 忽略解析错误
			}

			handler(&progressMsg)
		}
	}
}

// SubscribeCheckout 订阅结账状态变更消息
func (s *Subscriber) SubscribeCheckout(ctx context.Context, handler func(*CheckoutMessage)) error {
	pubsub := s.client.Subscribe(ctx, ChannelCheckoutEvents)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var checkoutMsg CheckoutMessage
			if err := json.Unmarshal([]byte(msg.Payload), &checkoutMsg); err != nil {
				continue // 忽略解析错误
			}

			handler(&checkoutMsg)
		}
	}
}
