package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pkadima1/sharewizard-server/config"
	"github.com/pkadima1/sharewizard-server/internal/api/middleware"
	"github.com/pkadima1/sharewizard-server/internal/model"
	"github.com/pkadima1/sharewizard-server/internal/pkg/response"
	"github.com/pkadima1/sharewizard-server/internal/repository"
	"github.com/pkadima1/sharewizard-server/internal/service"
	"github.com/pkadima1/sharewizard-server/internal/testutil"
)

func setupEntitlementHandler(t *testing.T) (*EntitlementHandler, *gorm.DB, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)

	cfg := &config.Config{
		Plans: config.PlansConfig{
			Levels: map[string]config.PlanLevel{
				"free": {RequestLimit: 3},
				"lite": {RequestLimit: 100},
				"pro":  {RequestLimit: 500},
			},
		},
	}

	entitlementService := service.NewEntitlementService(repository.NewUserRepository(db), cfg)
	handler := NewEntitlementHandler(entitlementService)

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}
	return handler, db, cleanup
}

// authedRouter 模拟已通过认证中间件的路由
func authedRouter(userID int64, register func(*gin.Engine)) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Next()
	})
	register(router)
	return router
}

func TestEntitlementHandler_GetAvailability(t *testing.T) {
	handler, db, cleanup := setupEntitlementHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithPlan(model.PlanLite, 100), testutil.WithUsage(42))
	router := authedRouter(user.ID, func(r *gin.Engine) {
		r.GET("/availability", handler.GetAvailability)
	})

	w := performRequest(router, "GET", "/availability", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := parseResponse(t, w)
	assert.Equal(t, response.CodeSuccess, resp.Code)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, data["can_proceed"])
	assert.Equal(t, float64(42), data["used"])
	assert.Equal(t, float64(100), data["limit"])
	assert.Equal(t, model.PlanLite, data["plan"])
}

func TestEntitlementHandler_GetAvailability_Exhausted(t *testing.T) {
	handler, db, cleanup := setupEntitlementHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithUsage(3))
	router := authedRouter(user.ID, func(r *gin.Engine) {
		r.GET("/availability", handler.GetAvailability)
	})

	w := performRequest(router, "GET", "/availability", nil)

	resp := parseResponse(t, w)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, data["can_proceed"])
}

func TestEntitlementHandler_GetAvailability_NoAuth(t *testing.T) {
	handler, _, cleanup := setupEntitlementHandler(t)
	defer cleanup()

	router := gin.New()
	router.GET("/availability", handler.GetAvailability)

	w := performRequest(router, "GET", "/availability", nil)

	resp := parseResponse(t, w)
	assert.Equal(t, response.CodeAuthFailed, resp.Code)
}

func TestEntitlementHandler_GetPlanStatus(t *testing.T) {
	handler, db, cleanup := setupEntitlementHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithPlan(model.PlanPro, 500), testutil.WithUsage(250))
	router := authedRouter(user.ID, func(r *gin.Engine) {
		r.GET("/plan-status", handler.GetPlanStatus)
	})

	w := performRequest(router, "GET", "/plan-status", nil)

	resp := parseResponse(t, w)
	assert.Equal(t, response.CodeSuccess, resp.Code)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, service.StatusOK, data["status"])
	assert.Equal(t, float64(50), data["usage_percentage"])
}

func TestEntitlementHandler_GetPlanStatus_FreeExhausted(t *testing.T) {
	handler, db, cleanup := setupEntitlementHandler(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithUsage(3))
	router := authedRouter(user.ID, func(r *gin.Engine) {
		r.GET("/plan-status", handler.GetPlanStatus)
	})

	w := performRequest(router, "GET", "/plan-status", nil)

	resp := parseResponse(t, w)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, service.StatusUpgrade, data["status"])
	assert.Equal(t, float64(100), data["usage_percentage"])
}
