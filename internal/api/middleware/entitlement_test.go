package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pkadima1/sharewizard-server/config"
	"github.com/pkadima1/sharewizard-server/internal/model"
	"github.com/pkadima1/sharewizard-server/internal/pkg/response"
	"github.com/pkadima1/sharewizard-server/internal/repository"
	"github.com/pkadima1/sharewizard-server/internal/service"
	"github.com/pkadima1/sharewizard-server/internal/testutil"
)

func setupEntitlementService(t *testing.T) (*service.EntitlementService, *gorm.DB, func()) {
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

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}
	return entitlementService, db, cleanup
}

func entitlementRouter(entitlementService *service.EntitlementService, userID int64) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(UserIDKey, userID)
		c.Next()
	})
	router.Use(EntitlementCheck(entitlementService))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	return router
}

func TestEntitlementCheck_Proceeds(t *testing.T) {
	entitlementService, db, cleanup := setupEntitlementService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithPlan(model.PlanLite, 100), testutil.WithUsage(50))
	router := entitlementRouter(entitlementService, user.ID)

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestEntitlementCheck_FreeExhausted(t *testing.T) {
	entitlementService, db, cleanup := setupEntitlementService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithUsage(3))
	router := entitlementRouter(entitlementService, user.ID)

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, response.CodeUpgradeRequired, resp.Code)
}

func TestEntitlementCheck_PaidExhausted(t *testing.T) {
	entitlementService, db, cleanup := setupEntitlementService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithPlan(model.PlanPro, 500), testutil.WithUsage(500))
	router := entitlementRouter(entitlementService, user.ID)

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, response.CodeLimitReached, resp.Code)
}

func TestEntitlementCheck_UnknownUser(t *testing.T) {
	entitlementService, _, cleanup := setupEntitlementService(t)
	defer cleanup()

	router := entitlementRouter(entitlementService, 99999)

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// 账户不可读时拒绝放行
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, response.CodeUpgradeRequired, resp.Code)
}

func TestEntitlementCheck_NoUserID(t *testing.T) {
	entitlementService, _, cleanup := setupEntitlementService(t)
	defer cleanup()

	router := gin.New()
	router.Use(EntitlementCheck(entitlementService))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, response.CodeAuthFailed, resp.Code)
}
