package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/pkadima1/sharewizard-server/config"
	"github.com/pkadima1/sharewizard-server/internal/model"
	"github.com/pkadima1/sharewizard-server/internal/model/dto"
	"github.com/pkadima1/sharewizard-server/internal/pkg/pubsub"
	"github.com/pkadima1/sharewizard-server/internal/pkg/queue"
	"github.com/pkadima1/sharewizard-server/internal/repository"
)

var ErrGenerationDenied = errors.New("无权访问该生成记录")

type GenerationService struct {
	generationRepo *repository.GenerationRepository
	jobRepo        *repository.JobRepository
	entitlementSvc *EntitlementService
	jobQueue       *queue.Queue
	publisher      *pubsub.Publisher
	cfg            *config.Config
}

func NewGenerationService(
	generationRepo *repository.GenerationRepository,
	jobRepo *repository.JobRepository,
	entitlementSvc *EntitlementService,
	jobQueue *queue.Queue,
	publisher *pubsub.Publisher,
	cfg *config.Config,
) *GenerationService {
	return &GenerationService{
		generationRepo: generationRepo,
		jobRepo:        jobRepo,
		entitlementSvc: entitlementSvc,
		jobQueue:       jobQueue,
		publisher:      publisher,
		cfg:            cfg,
	}
}

// CreateGeneration 创建生成任务。
// 入队前检查可用性，额度在任务成功后才扣减。
func (s *GenerationService) CreateGeneration(ctx context.Context, userID int64, req *dto.CreateGenerationRequest) (*dto.CreateGenerationResponse, error) {
	modelCfg, err := s.entitlementSvc.CheckModel(req.ModelName)
	if err != nil {
		return nil, err
	}

	availability := s.entitlementSvc.CheckAvailability(userID)
	if !availability.CanProceed {
		if model.IsPaidPlan(availability.Plan) {
			return nil, ErrLimitReached
		}
		return nil, ErrUpgradeRequired
	}

	generation := &model.Generation{
		UserID:    userID,
		Title:     req.Title,
		Prompt:    req.Prompt,
		ModelName: req.ModelName,
		CostUnits: modelCfg.CostUnits,
		Status:    "pending",
	}
	if err := s.generationRepo.Create(generation); err != nil {
		return nil, err
	}

	job := &model.GenerationJob{
		GenerationID: generation.ID,
		UserID:       userID,
		ModelName:    req.ModelName,
		CostUnits:    modelCfg.CostUnits,
		Status:       "queued",
	}
	if err := s.jobRepo.Create(job); err != nil {
		return nil, err
	}

	msg := &queue.JobMessage{
		JobID:        job.ID,
		GenerationID: generation.ID,
		UserID:       userID,
		ModelName:    req.ModelName,
		CostUnits:    modelCfg.CostUnits,
	}
	if err := s.jobQueue.Push(ctx, msg); err != nil {
		s.failJob(generation.ID, job.ID, "任务入队失败")
		return nil, err
	}

	if err := s.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
		UserID:       userID,
		GenerationID: generation.ID,
		JobID:        job.ID,
		Status:       "queued",
		Step:         pubsub.StepQueued,
	}); err != nil {
		log.Printf("Failed to publish queued progress for job %d: %v", job.ID, err)
	}

	return &dto.CreateGenerationResponse{
		GenerationID: generation.ID,
		JobID:        job.ID,
		CostUnits:    modelCfg.CostUnits,
	}, nil
}

// GetGeneration 查询生成记录详情，仅限本人
func (s *GenerationService) GetGeneration(userID, generationID int64) (*dto.GenerationDetail, error) {
	generation, err := s.generationRepo.GetByID(generationID)
	if err != nil {
		return nil, err
	}
	if generation.UserID != userID {
		return nil, ErrGenerationDenied
	}

	detail := &dto.GenerationDetail{
		ID:           generation.ID,
		Title:        generation.Title,
		Prompt:       generation.Prompt,
		Content:      generation.Content,
		ModelName:    generation.ModelName,
		CostUnits:    generation.CostUnits,
		Status:       generation.Status,
		ErrorMessage: generation.ErrorMessage,
		ExportURL:    generation.ExportURL,
		CreatedAt:    generation.CreatedAt.Format(time.RFC3339),
	}
	if generation.CompletedAt != nil {
		detail.CompletedAt = generation.CompletedAt.Format(time.RFC3339)
	}
	return detail, nil
}

// ListGenerations 分页查询生成记录
func (s *GenerationService) ListGenerations(userID int64, page, pageSize int) ([]*dto.GenerationListItem, int64, error) {
	generations, total, err := s.generationRepo.ListByUserID(userID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*dto.GenerationListItem, 0, len(generations))
	for _, g := range generations {
		items = append(items, &dto.GenerationListItem{
			ID:        g.ID,
			Title:     g.Title,
			ModelName: g.ModelName,
			Status:    g.Status,
			CreatedAt: g.CreatedAt.Format(time.RFC3339),
		})
	}
	return items, total, nil
}

// DeleteGeneration 删除生成记录，仅限本人
func (s *GenerationService) DeleteGeneration(userID, generationID int64) error {
	generation, err := s.generationRepo.GetByID(generationID)
	if err != nil {
		return err
	}
	if generation.UserID != userID {
		return ErrGenerationDenied
	}
	return s.generationRepo.Delete(generationID)
}

func (s *GenerationService) failJob(generationID, jobID int64, reason string) {
	if err := s.generationRepo.Fail(generationID, reason); err != nil {
		log.Printf("Failed to mark generation %d failed: %v", generationID, err)
	}
	if err := s.jobRepo.MarkFailed(jobID, reason); err != nil {
		log.Printf("Failed to mark job %d failed: %v", jobID, err)
	}
}
