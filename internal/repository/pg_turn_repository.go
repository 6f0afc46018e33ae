package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storybot-server/internal/interfaces"
	"storybot-server/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Compile-time check
var _ interfaces.TurnRepository = (*pgTurnRepository)(nil)

const (
	turnColumns = `id, story_id, writer_id, started_at, ended_at, status, thread_id`

	createTurnQuery = `
        INSERT INTO turns (id, story_id, writer_id, started_at, ended_at, status, thread_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	getTurnByIDQuery = `SELECT ` + turnColumns + ` FROM turns WHERE id = $1`

	// Частичный уникальный индекс по (story_id) WHERE status = 1 страхует этот
	// запрос от гонки двух параллельных стартов хода.
	getActiveTurnQuery = `SELECT ` + turnColumns + ` FROM turns WHERE story_id = $1 AND status = $2`

	getLatestTurnQuery = `
        SELECT ` + turnColumns + ` FROM turns
        WHERE story_id = $1
        ORDER BY started_at DESC
        LIMIT 1
    `

	finishTurnQuery = `
        UPDATE turns SET status = $2, ended_at = $3
        WHERE id = $1 AND status = $4
    `
	countTurnsQuery = `SELECT COUNT(*) FROM turns WHERE story_id = $1`
)

type pgTurnRepository struct {
	logger *zap.Logger
}

// NewPgTurnRepository создает репозиторий ходов.
func NewPgTurnRepository(logger *zap.Logger) interfaces.TurnRepository {
	return &pgTurnRepository{logger: logger.Named("PgTurnRepo")}
}

func (r *pgTurnRepository) Create(ctx context.Context, querier interfaces.DBTX, turn *models.Turn) error {
	logFields := []zap.Field{
		zap.String("turnID", turn.ID.String()),
		zap.String("storyID", turn.StoryID.String()),
		zap.String("writerID", turn.WriterID.String()),
	}
	r.logger.Debug("Creating turn", logFields...)

	_, err := querier.Exec(ctx, createTurnQuery,
		turn.ID,
		turn.StoryID,
		turn.WriterID,
		turn.StartedAt,
		turn.EndedAt,
		turn.Status,
		turn.ThreadID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// Сработал частичный уникальный индекс по (story_id) WHERE status = 1.
			return models.ErrTurnAlreadyActive
		}
		r.logger.Error("Failed to create turn", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка создания хода: %w", err)
	}
	r.logger.Info("Turn created", logFields...)
	return nil
}

func (r *pgTurnRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Turn, error) {
	var turn models.Turn
	err := pgxscan.Get(ctx, querier, &turn, getTurnByIDQuery, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get turn by ID", zap.String("turnID", id.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения хода %s: %w", id, err)
	}
	return &turn, nil
}

func (r *pgTurnRepository) GetActiveByStory(ctx context.Context, querier interfaces.DBTX, storyID uuid.UUID) (*models.Turn, error) {
	var turn models.Turn
	err := pgxscan.Get(ctx, querier, &turn, getActiveTurnQuery, storyID, models.TurnStatusActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNoActiveTurn
		}
		r.logger.Error("Failed to get active turn", zap.String("storyID", storyID.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения активного хода истории %s: %w", storyID, err)
	}
	return &turn, nil
}

func (r *pgTurnRepository) GetLatestByStory(ctx context.Context, querier interfaces.DBTX, storyID uuid.UUID) (*models.Turn, error) {
	var turn models.Turn
	err := pgxscan.Get(ctx, querier, &turn, getLatestTurnQuery, storyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get latest turn", zap.String("storyID", storyID.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения последнего хода истории %s: %w", storyID, err)
	}
	return &turn, nil
}

func (r *pgTurnRepository) Finish(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, status models.TurnStatus, endedAt time.Time) error {
	tag, err := querier.Exec(ctx, finishTurnQuery, id, status, endedAt, models.TurnStatusActive)
	if err != nil {
		r.logger.Error("Failed to finish turn",
			zap.String("turnID", id.String()), zap.Int("status", int(status)), zap.Error(err))
		return fmt.Errorf("ошибка завершения хода %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Ход уже завершен или не существует: либо двойное подтверждение, либо гонка.
		return models.ErrNoActiveTurn
	}
	r.logger.Debug("Turn finished", zap.String("turnID", id.String()), zap.Int("status", int(status)))
	return nil
}

func (r *pgTurnRepository) CountByStory(ctx context.Context, querier interfaces.DBTX, storyID uuid.UUID) (int, error) {
	var count int
	err := querier.QueryRow(ctx, countTurnsQuery, storyID).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count turns", zap.String("storyID", storyID.String()), zap.Error(err))
		return 0, fmt.Errorf("ошибка подсчета ходов истории %s: %w", storyID, err)
	}
	return count, nil
}
