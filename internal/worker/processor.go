package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/pkadima1/sharewizard-server/config"
	"github.com/pkadima1/sharewizard-server/internal/pkg/genai"
	"github.com/pkadima1/sharewizard-server/internal/pkg/oss"
	"github.com/pkadima1/sharewizard-server/internal/pkg/pubsub"
	"github.com/pkadima1/sharewizard-server/internal/pkg/queue"
	"github.com/pkadima1/sharewizard-server/internal/repository"
)

// Processor 生成任务处理器。
// 额度在生成成功后才扣减，失败的任务不计费。
type Processor struct {
	jobRepo        *repository.JobRepository
	generationRepo *repository.GenerationRepository
	userRepo       *repository.UserRepository
	generator      genai.Generator
	ossClient      *oss.Client
	publisher      *pubsub.Publisher
	cfg            *config.Config
}

// NewProcessor 创建任务处理器
func NewProcessor(
	jobRepo *repository.JobRepository,
	generationRepo *repository.GenerationRepository,
	userRepo *repository.UserRepository,
	generator genai.Generator,
	ossClient *oss.Client,
	publisher *pubsub.Publisher,
	cfg *config.Config,
) *Processor {
	return &Processor{
		jobRepo:        jobRepo,
		generationRepo: generationRepo,
		userRepo:       userRepo,
		generator:      generator,
		ossClient:      ossClient,
		publisher:      publisher,
		cfg:            cfg,
	}
}

// Process 处理生成任务
func (p *Processor) Process(ctx context.Context, msg *queue.JobMessage) error {
	job, err := p.jobRepo.GetByID(msg.JobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	generation, err := p.generationRepo.GetByID(msg.GenerationID)
	if err != nil {
		return fmt.Errorf("failed to get generation: %w", err)
	}

	// 更新状态为处理中
	now := time.Now()
	job.Status = "processing"
	job.StartedAt = &now
	p.jobRepo.Update(job)
	p.generationRepo.UpdateStatus(generation.ID, "generating")

	publishProgress := func(step, status string, errMsg string) {
		p.publisher.PublishProgress(ctx, &pubsub.ProgressMessage{
			UserID:       msg.UserID,
			GenerationID: msg.GenerationID,
			JobID:        msg.JobID,
			Status:       status,
			Step:         step,
			Error:        errMsg,
		})
	}

	handleError := func(step string, err error) error {
		errMsg := err.Error()
		p.jobRepo.MarkFailed(job.ID, errMsg)
		p.generationRepo.Fail(generation.ID, errMsg)
		publishProgress(step, "failed", errMsg)
		return err
	}

	// Step 1: 调用模型生成
	log.Printf("Job %d: generating with model %s", job.ID, msg.ModelName)
	publishProgress(pubsub.StepGenerating, "processing", "")

	content, err := p.generator.Generate(ctx, msg.ModelName, generation.Prompt)
	if err != nil {
		return handleError(pubsub.StepGenerating, fmt.Errorf("generation failed: %w", err))
	}

	// Step 2: 保存结果
	log.Printf("Job %d: saving result", job.ID)
	publishProgress(pubsub.StepSaving, "processing", "")

	if err := p.generationRepo.Complete(generation.ID, content); err != nil {
		return handleError(pubsub.StepSaving, fmt.Errorf("failed to save content: %w", err))
	}

	// 导出到 OSS（可选，失败不影响主流程）
	if p.ossClient != nil {
		p.uploadExport(generation.ID, generation.Title, content)
	}

	// Step 3: 扣减额度。只有走到这里的任务才计费
	cost := msg.CostUnits
	if cost <= 0 {
		cost = 1
	}
	if err := p.userRepo.IncrementRequestsUsed(msg.UserID, cost); err != nil {
		// 计费失败不回滚已生成的内容，记录后人工对账
		log.Printf("Job %d: failed to debit %d units for user %d: %v", job.ID, cost, msg.UserID, err)
	}

	p.jobRepo.MarkCompleted(job.ID)
	publishProgress(pubsub.StepDone, "completed", "")

	log.Printf("Job %d: completed, user=%d, cost=%d", job.ID, msg.UserID, cost)
	return nil
}

// uploadExport 将生成结果导出为 JSON 存档
func (p *Processor) uploadExport(generationID int64, title, content string) {
	data, err := json.Marshal(map[string]string{
		"title":   title,
		"content": content,
	})
	if err != nil {
		log.Printf("Failed to marshal export for generation %d: %v", generationID, err)
		return
	}

	url, err := p.ossClient.UploadExport(generationID, data)
	if err != nil {
		log.Printf("Failed to upload export for generation %d: %v", generationID, err)
		return
	}

	if err := p.generationRepo.SetExportURL(generationID, url); err != nil {
		log.Printf("Failed to record export url for generation %d: %v", generationID, err)
	}
}
