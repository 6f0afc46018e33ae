package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"storybot-server/internal/interfaces"
	"storybot-server/internal/models"
	"storybot-server/internal/service"

	"go.uber.org/zap"
)

const activationClaimLimit = 20

// ActivationPoller периодически забирает созревшие задачи активации и
// проверяет условия отложенного старта историй. Забор идет с
// FOR UPDATE SKIP LOCKED, так что несколько инстансов не обработают одну
// задачу дважды, а сама проверка идемпотентна для уже активных историй.
type ActivationPoller struct {
	txHelper     interfaces.Transactor
	jobRepo      interfaces.ScheduledJobRepository
	storyService service.StoryService
	interval     time.Duration
	logger       *zap.Logger
	stopChannel  chan struct{}
	doneChannel  chan struct{}
}

func NewActivationPoller(
	txHelper interfaces.Transactor,
	jobRepo interfaces.ScheduledJobRepository,
	storyService service.StoryService,
	interval time.Duration,
	logger *zap.Logger,
) *ActivationPoller {
	return &ActivationPoller{
		txHelper:     txHelper,
		jobRepo:      jobRepo,
		storyService: storyService,
		interval:     interval,
		logger:       logger.Named("ActivationPoller"),
		stopChannel:  make(chan struct{}),
		doneChannel:  make(chan struct{}),
	}
}

// Start блокируется до вызова Stop.
func (p *ActivationPoller) Start() {
	defer close(p.doneChannel)
	p.logger.Info("Поллер активации запущен", zap.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChannel:
			p.logger.Info("Поллер активации остановлен")
			return
		case <-ticker.C:
			p.runOnce(context.Background())
		}
	}
}

func (p *ActivationPoller) Stop() {
	close(p.stopChannel)
	<-p.doneChannel
}

// runOnce забирает пачку созревших задач и обрабатывает их. Задача с ошибкой
// обработки остается pending и будет взята на следующем тике.
func (p *ActivationPoller) runOnce(ctx context.Context) {
	err := p.txHelper.WithTransaction(ctx, func(ctx context.Context, tx interfaces.DBTX) error {
		jobs, err := p.jobRepo.ClaimDue(ctx, tx, time.Now().UTC(), activationClaimLimit)
		if err != nil {
			return err
		}
		for _, job := range jobs {
			if p.processJob(ctx, job) {
				if err := p.jobRepo.MarkRun(ctx, tx, job.ID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		p.logger.Error("Ошибка обработки задач активации", zap.Error(err))
	}
}

// processJob возвращает true, если задачу можно пометить выполненной.
func (p *ActivationPoller) processJob(ctx context.Context, job *models.ScheduledJob) bool {
	logFields := []zap.Field{zap.String("jobID", job.ID.String()), zap.String("jobType", string(job.JobType))}

	if job.JobType != models.JobTypeStoryActivation {
		p.logger.Warn("Неизвестный тип отложенной задачи", logFields...)
		return true
	}

	var payload models.StoryActivationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		p.logger.Error("Ошибка десериализации payload задачи", append(logFields, zap.Error(err))...)
		return true // битый payload не станет валидным при повторе
	}

	result, err := p.storyService.CheckActivationDelay(ctx, payload.StoryID)
	if err != nil {
		if errors.Is(err, models.ErrStoryNotFound) {
			p.logger.Warn("История задачи активации не найдена",
				append(logFields, zap.String("storyID", payload.StoryID.String()))...)
			return true
		}
		p.logger.Error("Ошибка проверки активации истории",
			append(logFields, zap.String("storyID", payload.StoryID.String()), zap.Error(err))...)
		return false
	}

	p.logger.Info("Задача активации обработана",
		append(logFields, zap.String("storyID", payload.StoryID.String()), zap.Bool("activated", result.Activated))...)
	return true
}
