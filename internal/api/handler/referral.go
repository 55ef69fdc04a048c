package handler

import (
	"errors"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pkadima1/sharewizard-server/internal/api/middleware"
	"github.com/pkadima1/sharewizard-server/internal/model/dto"
	"github.com/pkadima1/sharewizard-server/internal/pkg/response"
	"github.com/pkadima1/sharewizard-server/internal/service"
)

type ReferralHandler struct {
	referralService *service.ReferralService
	cookieDomain    string
}

func NewReferralHandler(referralService *service.ReferralService, cookieDomain string) *ReferralHandler {
	return &ReferralHandler{
		referralService: referralService,
		cookieDomain:    cookieDomain,
	}
}

// Current 当前请求解析出的归因
// GET /api/v1/referral
func (h *ReferralHandler) Current(c *gin.Context) {
	capture, ok := middleware.GetReferral(c)
	if !ok || capture == nil {
		response.Success(c, nil)
		return
	}

	response.Success(c, &dto.ReferralInfo{
		Code:        capture.Code,
		PartnerName: capture.PartnerName,
		CapturedAt:  capture.CapturedAt.Format(time.RFC3339),
	})
}

// Logout 登出时清除两层归因存储。
// JWT 无状态，令牌由客户端丢弃，服务端只需清理归因。
// POST /api/v1/auth/logout
func (h *ReferralHandler) Logout(c *gin.Context) {
	if visitorID, err := c.Cookie(middleware.CookieVisitorID); err == nil && visitorID != "" {
		if err := h.referralService.Clear(c.Request.Context(), visitorID); err != nil {
			log.Printf("Failed to clear referral for visitor %s: %v", visitorID, err)
		}
	}
	middleware.ClearReferralCookies(c, h.cookieDomain)

	response.Success(c, nil)
}

// Validate 校验推广码
// GET /api/v1/referral/validate?code=xxx
func (h *ReferralHandler) Validate(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		response.ParamError(c, "请提供推广码")
		return
	}

	capture, err := h.referralService.Validate(code)
	if err != nil {
		if errors.Is(err, service.ErrReferralInvalid) {
			response.ParamError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, &dto.ReferralInfo{
		Code:        capture.Code,
		PartnerName: capture.PartnerName,
	})
}
