package service

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pkadima1/sharewizard-server/internal/model"
	"github.com/pkadima1/sharewizard-server/internal/model/dto"
	"github.com/pkadima1/sharewizard-server/internal/pkg/pubsub"
	"github.com/pkadima1/sharewizard-server/internal/pkg/queue"
	"github.com/pkadima1/sharewizard-server/internal/repository"
	"github.com/pkadima1/sharewizard-server/internal/testutil"
)

func setupGenerationService(t *testing.T) (*GenerationService, *gorm.DB, *queue.Queue, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := testPlansConfig()
	jobQueue := queue.NewQueue(client, "test_generation_queue")
	service := NewGenerationService(
		repository.NewGenerationRepository(db),
		repository.NewJobRepository(db),
		NewEntitlementService(repository.NewUserRepository(db), cfg),
		jobQueue,
		pubsub.NewPublisher(client),
		cfg,
	)

	cleanup := func() {
		client.Close()
		mr.Close()
		testutil.CleanupTestDB(t, db)
	}
	return service, db, jobQueue, cleanup
}

func TestGenerationService_CreateGeneration(t *testing.T) {
	service, db, jobQueue, cleanup := setupGenerationService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithPlan(model.PlanPro, 500), testutil.WithUsage(10))
	ctx := context.Background()

	resp, err := service.CreateGeneration(ctx, user.ID, &dto.CreateGenerationRequest{
		Title:     "Go 并发入门",
		Prompt:    "写一篇介绍 Go 并发的短文",
		ModelName: "gemini-1.5-pro",
	})
	require.NoError(t, err)
	assert.NotZero(t, resp.GenerationID)
	assert.NotZero(t, resp.JobID)
	assert.Equal(t, 3, resp.CostUnits, "成本取自模型配置")

	var generation model.Generation
	require.NoError(t, db.First(&generation, resp.GenerationID).Error)
	assert.Equal(t, "pending", generation.Status)
	assert.Equal(t, 3, generation.CostUnits)

	var job model.GenerationJob
	require.NoError(t, db.First(&job, resp.JobID).Error)
	assert.Equal(t, "queued", job.Status)

	length, err := jobQueue.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)

	// 入队不扣额度，扣减发生在 worker 成功之后
	var updated model.User
	require.NoError(t, db.First(&updated, user.ID).Error)
	assert.Equal(t, 10, updated.RequestsUsed)
}

func TestGenerationService_CreateGeneration_UnknownModel(t *testing.T) {
	service, db, _, cleanup := setupGenerationService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithPlan(model.PlanPro, 500))

	_, err := service.CreateGeneration(context.Background(), user.ID, &dto.CreateGenerationRequest{
		Title:     "t",
		Prompt:    "p",
		ModelName: "gpt-99",
	})
	assert.ErrorIs(t, err, ErrModelDenied)
}

func TestGenerationService_CreateGeneration_FreeExhausted(t *testing.T) {
	service, db, _, cleanup := setupGenerationService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithUsage(3))

	_, err := service.CreateGeneration(context.Background(), user.ID, &dto.CreateGenerationRequest{
		Title:     "t",
		Prompt:    "p",
		ModelName: "gemini-1.5-flash",
	})
	assert.ErrorIs(t, err, ErrUpgradeRequired)
}

func TestGenerationService_CreateGeneration_PaidExhausted(t *testing.T) {
	service, db, _, cleanup := setupGenerationService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithPlan(model.PlanPro, 500), testutil.WithUsage(500))

	_, err := service.CreateGeneration(context.Background(), user.ID, &dto.CreateGenerationRequest{
		Title:     "t",
		Prompt:    "p",
		ModelName: "gemini-1.5-flash",
	})
	assert.ErrorIs(t, err, ErrLimitReached)
}

func TestGenerationService_CreateGeneration_UnknownUser(t *testing.T) {
	service, _, _, cleanup := setupGenerationService(t)
	defer cleanup()

	// 账户不可读走升级提示，而非加量包提示
	_, err := service.CreateGeneration(context.Background(), 99999, &dto.CreateGenerationRequest{
		Title:     "t",
		Prompt:    "p",
		ModelName: "gemini-1.5-flash",
	})
	assert.ErrorIs(t, err, ErrUpgradeRequired)
}

func TestGenerationService_GetGeneration_Ownership(t *testing.T) {
	service, db, _, cleanup := setupGenerationService(t)
	defer cleanup()

	owner := testutil.TestUser(t, db)
	intruder := testutil.TestUser(t, db)
	generation := testutil.TestGeneration(t, db, owner.ID)

	detail, err := service.GetGeneration(owner.ID, generation.ID)
	require.NoError(t, err)
	assert.Equal(t, generation.ID, detail.ID)

	_, err = service.GetGeneration(intruder.ID, generation.ID)
	assert.ErrorIs(t, err, ErrGenerationDenied)
}

func TestGenerationService_DeleteGeneration_Ownership(t *testing.T) {
	service, db, _, cleanup := setupGenerationService(t)
	defer cleanup()

	owner := testutil.TestUser(t, db)
	intruder := testutil.TestUser(t, db)
	generation := testutil.TestGeneration(t, db, owner.ID)

	err := service.DeleteGeneration(intruder.ID, generation.ID)
	assert.ErrorIs(t, err, ErrGenerationDenied)

	require.NoError(t, service.DeleteGeneration(owner.ID, generation.ID))

	var count int64
	db.Model(&model.Generation{}).Where("id = ?", generation.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestGenerationService_ListGenerations(t *testing.T) {
	service, db, _, cleanup := setupGenerationService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	for i := 0; i < 3; i++ {
		testutil.TestGeneration(t, db, user.ID)
	}

	items, total, err := service.ListGenerations(user.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, items, 2)
}
