package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

// 结账会话模式
const (
	ModeSubscription = "subscription"
	ModePayment      = "payment"
)

// SessionInput 创建结账会话的入参
type SessionInput struct {
	CustomerID        string
	CustomerEmail     string
	Mode              string
	PriceID           string
	Quantity          int64
	TrialDays         int64
	ClientReferenceID string
	SuccessURL        string
	CancelURL         string
	Metadata          map[string]string
}

// Session 网关返回的会话摘要
type Session struct {
	ID  string
	URL string
}

// Gateway 支付网关抽象，便于测试时替换
type Gateway interface {
	CreateCustomer(ctx context.Context, email string, metadata map[string]string) (string, error)
	CreateSession(ctx context.Context, in *SessionInput) (*Session, error)
}

// StripeGateway Stripe 实现
type StripeGateway struct {
	sc            *stripe.Client
	webhookSecret string
}

func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	return &StripeGateway{
		sc:            stripe.NewClient(secretKey),
		webhookSecret: webhookSecret,
	}
}

// CreateCustomer 创建 Stripe 客户，返回客户 ID
func (g *StripeGateway) CreateCustomer(ctx context.Context, email string, metadata map[string]string) (string, error) {
	params := &stripe.CustomerCreateParams{
		Email:    stripe.String(email),
		Metadata: metadata,
	}
	customer, err := g.sc.V1Customers.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to create customer: %w", err)
	}
	return customer.ID, nil
}

// CreateSession 创建结账会话。
// 订阅模式下 TrialDays > 0 时附带试用期，元数据同时写入订阅对象，
// 以便后续 invoice 事件仍能携带归因信息。
func (g *StripeGateway) CreateSession(ctx context.Context, in *SessionInput) (*Session, error) {
	quantity := in.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	params := &stripe.CheckoutSessionCreateParams{
		Mode:       stripe.String(in.Mode),
		SuccessURL: stripe.String(in.SuccessURL),
		CancelURL:  stripe.String(in.CancelURL),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(in.PriceID),
				Quantity: stripe.Int64(quantity),
			},
		},
		Metadata: in.Metadata,
	}

	if in.CustomerID != "" {
		params.Customer = stripe.String(in.CustomerID)
	} else if in.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(in.CustomerEmail)
	}

	if in.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(in.ClientReferenceID)
	}

	if in.Mode == ModeSubscription {
		subData := &stripe.CheckoutSessionCreateSubscriptionDataParams{
			Metadata: in.Metadata,
		}
		if in.TrialDays > 0 {
			subData.TrialPeriodDays = stripe.Int64(in.TrialDays)
		}
		params.SubscriptionData = subData
	}

	session, err := g.sc.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &Session{ID: session.ID, URL: session.URL}, nil
}

// VerifyWebhookSignature 校验 webhook 签名并解析事件
func (g *StripeGateway) VerifyWebhookSignature(payload []byte, signature string) (*stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}
	return &event, nil
}
