package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pkadima1/sharewizard-server/internal/model"
	"github.com/pkadima1/sharewizard-server/internal/service"
)

// 归因相关的 Cookie 键
const (
	ReferralKey = "referral"

	CookieVisitorID   = "sw_vid"
	CookieRefCode     = "sw_ref_code"
	CookieRefAt       = "sw_ref_at"
	CookieRefPartner  = "sw_ref_partner"
	visitorCookieDays = 365
)

// ReferralCapture 推荐归因中间件。
// 每个请求按 URL 参数 > Cookie > 持久层的顺序解析归因，
// 解析结果写回 Cookie 并挂到请求上下文。
func ReferralCapture(referralService *service.ReferralService, cookieDomain string) gin.HandlerFunc {
	return func(c *gin.Context) {
		visitorID := ensureVisitorID(c, cookieDomain)
		queryCode := c.Query("ref")
		cookieCapture := readCookieCapture(c)

		capture := referralService.Resolve(c.Request.Context(), visitorID, queryCode, cookieCapture)
		if capture != nil {
			writeCookieCapture(c, capture, cookieDomain, referralService.TTL())
			c.Set(ReferralKey, capture)
		} else if cookieCapture != nil {
			// 归因已失效，连带清除 Cookie 层
			ClearReferralCookies(c, cookieDomain)
		}

		c.Next()
	}
}

// GetReferral 从上下文获取归因快照
func GetReferral(c *gin.Context) (*model.ReferralCapture, bool) {
	value, exists := c.Get(ReferralKey)
	if !exists {
		return nil, false
	}
	capture, ok := value.(*model.ReferralCapture)
	return capture, ok
}

// ensureVisitorID 读取或生成访客 ID
func ensureVisitorID(c *gin.Context, cookieDomain string) string {
	visitorID, err := c.Cookie(CookieVisitorID)
	if err == nil && visitorID != "" {
		return visitorID
	}

	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return ""
	}
	visitorID = hex.EncodeToString(bytes)

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieVisitorID, visitorID, visitorCookieDays*24*3600, "/", cookieDomain, false, true)
	return visitorID
}

// readCookieCapture 从 Cookie 层还原归因快照
func readCookieCapture(c *gin.Context) *model.ReferralCapture {
	code, err := c.Cookie(CookieRefCode)
	if err != nil || code == "" {
		return nil
	}

	capture := &model.ReferralCapture{Code: code}

	if partner, err := c.Cookie(CookieRefPartner); err == nil {
		capture.PartnerName = partner
	}
	if at, err := c.Cookie(CookieRefAt); err == nil {
		if t, err := time.Parse(time.RFC3339, at); err == nil {
			capture.CapturedAt = t
		}
	}
	return capture
}

func writeCookieCapture(c *gin.Context, capture *model.ReferralCapture, cookieDomain string, ttl time.Duration) {
	maxAge := int(ttl.Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieRefCode, capture.Code, maxAge, "/", cookieDomain, false, true)
	c.SetCookie(CookieRefAt, capture.CapturedAt.Format(time.RFC3339), maxAge, "/", cookieDomain, false, true)
	c.SetCookie(CookieRefPartner, capture.PartnerName, maxAge, "/", cookieDomain, false, true)
}

// ClearReferralCookies 清除归因 Cookie 层，访客 ID 保留
func ClearReferralCookies(c *gin.Context, cookieDomain string) {
	c.SetCookie(CookieRefCode, "", -1, "/", cookieDomain, false, true)
	c.SetCookie(CookieRefAt, "", -1, "/", cookieDomain, false, true)
	c.SetCookie(CookieRefPartner, "", -1, "/", cookieDomain, false, true)
}
