package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/pkadima1/sharewizard-server/internal/api/middleware"
	"github.com/pkadima1/sharewizard-server/internal/pkg/response"
	"github.com/pkadima1/sharewizard-server/internal/service"
)

type EntitlementHandler struct {
	entitlementService *service.EntitlementService
}

func NewEntitlementHandler(entitlementService *service.EntitlementService) *EntitlementHandler {
	return &EntitlementHandler{
		entitlementService: entitlementService,
	}
}

// GetAvailability 计费操作前的可用性检查
// GET /api/v1/user/availability
func (h *EntitlementHandler) GetAvailability(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	response.Success(c, h.entitlementService.CheckAvailability(userID))
}

// GetPlanStatus 套餐状态查询
// GET /api/v1/user/plan-status
func (h *EntitlementHandler) GetPlanStatus(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	response.Success(c, h.entitlementService.CheckPlanStatus(userID))
}
