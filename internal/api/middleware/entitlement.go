package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/pkadima1/sharewizard-server/internal/model"
	"github.com/pkadima1/sharewizard-server/internal/pkg/response"
	"github.com/pkadima1/sharewizard-server/internal/service"
)

// EntitlementCheck 计费操作前的额度检查中间件。
// 账户不可读时一律拒绝放行。
func EntitlementCheck(entitlementService *service.EntitlementService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			response.AuthError(c, "")
			c.Abort()
			return
		}

		availability := entitlementService.CheckAvailability(userID)
		if !availability.CanProceed {
			if model.IsPaidPlan(availability.Plan) {
				response.LimitError(c, "")
			} else {
				response.UpgradeError(c, "")
			}
			c.Abort()
			return
		}

		c.Next()
	}
}
