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
var _ interfaces.StoryRepository = (*pgStoryRepository)(nil)

const (
	createStoryQuery = `
        INSERT INTO stories
            (id, guild_id, title, status, quick_mode, turn_length, reminder_percent, ordering,
             private_turns, allow_late_join, max_writers, delay_hours, delay_writers, channel_id,
             created_at, updated_at)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
    `
	getStoryByIDQuery = `
        SELECT id, guild_id, title, status, quick_mode, turn_length, reminder_percent, ordering,
               private_turns, allow_late_join, max_writers, delay_hours, delay_writers, channel_id,
               created_at, updated_at
        FROM stories
        WHERE id = $1
    `
	getStoryByIDForUpdateQuery = getStoryByIDQuery + ` FOR UPDATE`

	updateStoryStatusQuery = `UPDATE stories SET status = $2, updated_at = $3 WHERE id = $1`
	setStoryChannelQuery   = `UPDATE stories SET channel_id = $2, updated_at = $3 WHERE id = $1`
)

type pgStoryRepository struct {
	logger *zap.Logger
}

// NewPgStoryRepository создает репозиторий историй. Исполнитель запросов (пул
// или транзакция) передается в каждый метод.
func NewPgStoryRepository(logger *zap.Logger) interfaces.StoryRepository {
	return &pgStoryRepository{logger: logger.Named("PgStoryRepo")}
}

func (r *pgStoryRepository) Create(ctx context.Context, querier interfaces.DBTX, story *models.Story) error {
	logFields := []zap.Field{zap.String("storyID", story.ID.String()), zap.String("guildID", story.GuildID)}
	r.logger.Debug("Creating story", logFields...)

	_, err := querier.Exec(ctx, createStoryQuery,
		story.ID,
		story.GuildID,
		story.Title,
		story.Status,
		story.QuickMode,
		story.TurnLengthHours,
		story.ReminderPercent,
		story.Ordering,
		story.PrivateTurns,
		story.AllowLateJoin,
		story.MaxWriters,
		story.DelayHours,
		story.DelayWriters,
		story.ChannelID,
		story.CreatedAt,
		story.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create story", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка создания истории: %w", err)
	}
	r.logger.Info("Story created successfully", logFields...)
	return nil
}

func (r *pgStoryRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Story, error) {
	return r.get(ctx, querier, getStoryByIDQuery, id)
}

func (r *pgStoryRepository) GetByIDForUpdate(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Story, error) {
	return r.get(ctx, querier, getStoryByIDForUpdateQuery, id)
}

func (r *pgStoryRepository) get(ctx context.Context, querier interfaces.DBTX, query string, id uuid.UUID) (*models.Story, error) {
	var story models.Story
	err := pgxscan.Get(ctx, querier, &story, query, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("Story not found", zap.String("storyID", id.String()))
			return nil, models.ErrStoryNotFound
		}
		r.logger.Error("Failed to get story", zap.String("storyID", id.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения истории %s: %w", id, err)
	}
	return &story, nil
}

func (r *pgStoryRepository) UpdateStatus(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, status models.StoryStatus) error {
	tag, err := querier.Exec(ctx, updateStoryStatusQuery, id, status, time.Now().UTC())
	if err != nil {
		r.logger.Error("Failed to update story status",
			zap.String("storyID", id.String()), zap.Int("status", int(status)), zap.Error(err))
		return fmt.Errorf("ошибка обновления статуса истории %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStoryNotFound
	}
	r.logger.Debug("Story status updated", zap.String("storyID", id.String()), zap.Int("status", int(status)))
	return nil
}

func (r *pgStoryRepository) SetChannelID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, channelID string) error {
	tag, err := querier.Exec(ctx, setStoryChannelQuery, id, channelID, time.Now().UTC())
	if err != nil {
		r.logger.Error("Failed to set story channel",
			zap.String("storyID", id.String()), zap.String("channelID", channelID), zap.Error(err))
		return fmt.Errorf("ошибка привязки канала к истории %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStoryNotFound
	}
	return nil
}
