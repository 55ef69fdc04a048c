package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/pkadima1/sharewizard-server/config"
	"github.com/pkadima1/sharewizard-server/internal/api/middleware"
	"github.com/pkadima1/sharewizard-server/internal/model/dto"
	"github.com/pkadima1/sharewizard-server/internal/pkg/response"
	"github.com/pkadima1/sharewizard-server/internal/service"
)

type GenerationHandler struct {
	generationService *service.GenerationService
	cfg               *config.Config
}

func NewGenerationHandler(generationService *service.GenerationService, cfg *config.Config) *GenerationHandler {
	return &GenerationHandler{
		generationService: generationService,
		cfg:               cfg,
	}
}

// Create 创建生成任务
// POST /api/v1/generations
func (h *GenerationHandler) Create(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CreateGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.generationService.CreateGeneration(c.Request.Context(), userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrModelDenied):
			response.ParamError(c, err.Error())
		case errors.Is(err, service.ErrUpgradeRequired):
			response.UpgradeError(c, "")
		case errors.Is(err, service.ErrLimitReached):
			response.LimitError(c, "")
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, resp)
}

// List 分页查询生成记录
// GET /api/v1/generations?page=1&page_size=20
func (h *GenerationHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	items, total, err := h.generationService.ListGenerations(userID, page, pageSize)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// Get 查询生成记录详情
// GET /api/v1/generations/:id
func (h *GenerationHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	generationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的记录 ID")
		return
	}

	detail, err := h.generationService.GetGeneration(userID, generationID)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			response.NotFoundError(c, "")
		case errors.Is(err, service.ErrGenerationDenied):
			response.PermissionError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, detail)
}

// Delete 删除生成记录
// DELETE /api/v1/generations/:id
func (h *GenerationHandler) Delete(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	generationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的记录 ID")
		return
	}

	if err := h.generationService.DeleteGeneration(userID, generationID); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			response.NotFoundError(c, "")
		case errors.Is(err, service.ErrGenerationDenied):
			response.PermissionError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, nil)
}

// ListModels 可用生成模型列表
// GET /api/v1/models
func (h *GenerationHandler) ListModels(c *gin.Context) {
	type modelItem struct {
		Name        string `json:"name"`
		DisplayName string `json:"display_name"`
		CostUnits   int    `json:"cost_units"`
		Description string `json:"description,omitempty"`
	}

	items := make([]modelItem, 0, len(h.cfg.Generation.Models))
	for _, m := range h.cfg.Generation.Models {
		items = append(items, modelItem{
			Name:        m.Name,
			DisplayName: m.DisplayName,
			CostUnits:   m.CostUnits,
			Description: m.Description,
		})
	}

	response.Success(c, items)
}
