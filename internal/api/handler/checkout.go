package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/pkadima1/sharewizard-server/internal/api/middleware"
	"github.com/pkadima1/sharewizard-server/internal/model/dto"
	"github.com/pkadima1/sharewizard-server/internal/pkg/payment"
	"github.com/pkadima1/sharewizard-server/internal/pkg/response"
	"github.com/pkadima1/sharewizard-server/internal/service"
)

type CheckoutHandler struct {
	checkoutService *service.CheckoutService
	webhookService  *service.WebhookService
	gateway         *payment.StripeGateway
}

func NewCheckoutHandler(
	checkoutService *service.CheckoutService,
	webhookService *service.WebhookService,
	gateway *payment.StripeGateway,
) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
		webhookService:  webhookService,
		gateway:         gateway,
	}
}

// ListPlans 套餐目录
// GET /api/v1/plans
func (h *CheckoutHandler) ListPlans(c *gin.Context) {
	response.Success(c, h.checkoutService.ListPlans())
}

// Create 发起结账会话
// POST /api/v1/checkout
func (h *CheckoutHandler) Create(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	referral, _ := middleware.GetReferral(c)

	resp, err := h.checkoutService.CreateCheckout(c.Request.Context(), userID, &req, referral)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownPlan),
			errors.Is(err, service.ErrUnknownPeriod):
			response.ParamError(c, err.Error())
		case errors.Is(err, service.ErrFlexRequiresPaid),
			errors.Is(err, service.ErrTrialAlreadyUsed),
			errors.Is(err, service.ErrTrialNotEligible),
			errors.Is(err, service.ErrMissingEmail):
			response.PermissionError(c, err.Error())
		default:
			// 网关错误原样透传
			response.CheckoutError(c, err.Error())
		}
		return
	}

	response.Success(c, resp)
}

// Cancel 用户取消结账，撤销待激活的试用
// POST /api/v1/checkout/cancel
func (h *CheckoutHandler) Cancel(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	if err := h.checkoutService.CancelCheckout(userID); err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, nil)
}

// Get 查询结账会话
// GET /api/v1/checkout/:id
func (h *CheckoutHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	sessionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的会话 ID")
		return
	}

	session, err := h.checkoutService.GetSession(userID, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFoundError(c, "")
			return
		}
		response.PermissionError(c, err.Error())
		return
	}

	response.Success(c, session)
}

// Webhook 支付网关回调
// POST /api/v1/webhook/stripe
func (h *CheckoutHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "failed to read body")
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	event, err := h.gateway.VerifyWebhookSignature(payload, signature)
	if err != nil {
		log.Printf("Webhook signature verification failed: %v", err)
		c.String(http.StatusUnauthorized, "invalid signature")
		return
	}

	var handleErr error
	switch event.Type {
	case "checkout.session.completed":
		session, err := parseEventData[checkoutSessionEvent](event)
		if err == nil {
			handleErr = h.webhookService.HandleCheckoutCompleted(session.ID)
		} else {
			handleErr = err
		}
	case "invoice.paid":
		invoice, err := parseEventData[invoiceEvent](event)
		if err == nil {
			handleErr = h.webhookService.HandleInvoicePaid(invoice.Customer, invoice.BillingReason)
		} else {
			handleErr = err
		}
	case "customer.subscription.deleted":
		sub, err := parseEventData[subscriptionEvent](event)
		if err == nil {
			handleErr = h.webhookService.HandleSubscriptionDeleted(sub.Customer)
		} else {
			handleErr = err
		}
	case "checkout.session.expired":
		session, err := parseEventData[checkoutSessionEvent](event)
		if err == nil {
			handleErr = h.webhookService.HandleCheckoutExpired(session.ID)
		} else {
			handleErr = err
		}
	}

	if handleErr != nil {
		log.Printf("Webhook %s handling failed: %v", event.Type, handleErr)
		c.String(http.StatusInternalServerError, "webhook handling failed")
		return
	}

	c.Status(http.StatusOK)
}

// 回调事件只解析用到的字段
type checkoutSessionEvent struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
}

type invoiceEvent struct {
	Customer      string `json:"customer"`
	BillingReason string `json:"billing_reason"`
}

type subscriptionEvent struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
}

func parseEventData[T any](event *stripe.Event) (*T, error) {
	var data T
	if err := json.Unmarshal(event.Data.Raw, &data); err != nil {
		return nil, err
	}
	return &data, nil
}
