package repository

import (
	"context"
	"fmt"
	"time"

	"storybot-server/internal/interfaces"
	"storybot-server/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Compile-time check
var _ interfaces.ScheduledJobRepository = (*pgScheduledJobRepository)(nil)

const (
	createJobQuery = `
        INSERT INTO scheduled_jobs (id, job_type, payload, run_at, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	// SKIP LOCKED: параллельный поллер (если он все же появится) не возьмет
	// задачу, которую уже держит другая транзакция.
	claimDueJobsQuery = `
        SELECT id, job_type, payload, run_at, status, created_at
        FROM scheduled_jobs
        WHERE status = $1 AND run_at <= $2
        ORDER BY run_at
        LIMIT $3
        FOR UPDATE SKIP LOCKED
    `
	markJobRunQuery = `UPDATE scheduled_jobs SET status = $2 WHERE id = $1`
)

type pgScheduledJobRepository struct {
	logger *zap.Logger
}

// NewPgScheduledJobRepository создает репозиторий отложенных задач.
func NewPgScheduledJobRepository(logger *zap.Logger) interfaces.ScheduledJobRepository {
	return &pgScheduledJobRepository{logger: logger.Named("PgScheduledJobRepo")}
}

func (r *pgScheduledJobRepository) Create(ctx context.Context, querier interfaces.DBTX, job *models.ScheduledJob) error {
	logFields := []zap.Field{
		zap.String("jobID", job.ID.String()),
		zap.String("jobType", string(job.JobType)),
		zap.Time("runAt", job.RunAt),
	}
	r.logger.Debug("Creating scheduled job", logFields...)

	_, err := querier.Exec(ctx, createJobQuery,
		job.ID,
		job.JobType,
		job.Payload,
		job.RunAt,
		job.Status,
		job.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create scheduled job", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка создания отложенной задачи: %w", err)
	}
	r.logger.Info("Scheduled job created", logFields...)
	return nil
}

func (r *pgScheduledJobRepository) ClaimDue(ctx context.Context, querier interfaces.DBTX, now time.Time, limit int) ([]*models.ScheduledJob, error) {
	var jobs []*models.ScheduledJob
	err := pgxscan.Select(ctx, querier, &jobs, claimDueJobsQuery, models.JobStatusPending, now, limit)
	if err != nil {
		r.logger.Error("Failed to claim due jobs", zap.Error(err))
		return nil, fmt.Errorf("ошибка выборки отложенных задач: %w", err)
	}
	return jobs, nil
}

func (r *pgScheduledJobRepository) MarkRun(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) error {
	tag, err := querier.Exec(ctx, markJobRunQuery, id, models.JobStatusRun)
	if err != nil {
		r.logger.Error("Failed to mark job as run", zap.String("jobID", id.String()), zap.Error(err))
		return fmt.Errorf("ошибка отметки задачи %s выполненной: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
