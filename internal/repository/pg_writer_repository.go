package repository

import (
	"context"
	"errors"
	"fmt"

	"storybot-server/internal/interfaces"
	"storybot-server/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Compile-time check
var _ interfaces.WriterRepository = (*pgWriterRepository)(nil)

const (
	writerColumns = `id, story_id, user_id, display_name, pen_name, private_turns, notify_pref, status, joined_at, turn_order`

	createWriterQuery = `
        INSERT INTO writers
            (id, story_id, user_id, display_name, pen_name, private_turns, notify_pref, status, joined_at, turn_order)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `
	getWriterByIDQuery           = `SELECT ` + writerColumns + ` FROM writers WHERE id = $1`
	getWriterByStoryAndUserQuery = `SELECT ` + writerColumns + ` FROM writers WHERE story_id = $1 AND user_id = $2`

	// Порядок вступления определяет и детерминированный первый ход, и ротацию join_order.
	listActiveWritersQuery = `
        SELECT ` + writerColumns + `
        FROM writers
        WHERE story_id = $1 AND status = 'active'
        ORDER BY joined_at, id
    `
	countActiveWritersQuery = `SELECT COUNT(*) FROM writers WHERE story_id = $1 AND status = 'active'`
	updateWriterStatusQuery = `UPDATE writers SET status = $2 WHERE id = $1`
	setWriterPenNameQuery   = `UPDATE writers SET pen_name = $2 WHERE id = $1`

	// Последний указанный псевдоним пользователя в любой истории.
	lastKnownPenNameQuery = `
        SELECT pen_name
        FROM writers
        WHERE user_id = $1 AND pen_name IS NOT NULL
        ORDER BY joined_at DESC
        LIMIT 1
    `
)

type pgWriterRepository struct {
	logger *zap.Logger
}

// NewPgWriterRepository создает репозиторий участий писателей.
func NewPgWriterRepository(logger *zap.Logger) interfaces.WriterRepository {
	return &pgWriterRepository{logger: logger.Named("PgWriterRepo")}
}

func (r *pgWriterRepository) Create(ctx context.Context, querier interfaces.DBTX, writer *models.Writer) error {
	logFields := []zap.Field{
		zap.String("writerID", writer.ID.String()),
		zap.String("storyID", writer.StoryID.String()),
		zap.String("userID", writer.UserID),
	}
	r.logger.Debug("Creating writer membership", logFields...)

	_, err := querier.Exec(ctx, createWriterQuery,
		writer.ID,
		writer.StoryID,
		writer.UserID,
		writer.DisplayName,
		writer.PenName,
		writer.PrivateTurns,
		writer.NotifyPref,
		writer.Status,
		writer.JoinedAt,
		writer.TurnOrder,
	)
	if err != nil {
		r.logger.Error("Failed to create writer membership", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка создания участия писателя: %w", err)
	}
	r.logger.Info("Writer membership created", logFields...)
	return nil
}

func (r *pgWriterRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Writer, error) {
	var writer models.Writer
	err := pgxscan.Get(ctx, querier, &writer, getWriterByIDQuery, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get writer by ID", zap.String("writerID", id.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения писателя %s: %w", id, err)
	}
	return &writer, nil
}

func (r *pgWriterRepository) GetByStoryAndUser(ctx context.Context, querier interfaces.DBTX, storyID uuid.UUID, userID string) (*models.Writer, error) {
	var writer models.Writer
	err := pgxscan.Get(ctx, querier, &writer, getWriterByStoryAndUserQuery, storyID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get writer by story and user",
			zap.String("storyID", storyID.String()), zap.String("userID", userID), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения писателя (story=%s, user=%s): %w", storyID, userID, err)
	}
	return &writer, nil
}

func (r *pgWriterRepository) ListActiveByStory(ctx context.Context, querier interfaces.DBTX, storyID uuid.UUID) ([]*models.Writer, error) {
	var writers []*models.Writer
	err := pgxscan.Select(ctx, querier, &writers, listActiveWritersQuery, storyID)
	if err != nil {
		r.logger.Error("Failed to list active writers", zap.String("storyID", storyID.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения списка писателей истории %s: %w", storyID, err)
	}
	return writers, nil
}

func (r *pgWriterRepository) CountActiveByStory(ctx context.Context, querier interfaces.DBTX, storyID uuid.UUID) (int, error) {
	var count int
	err := querier.QueryRow(ctx, countActiveWritersQuery, storyID).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count active writers", zap.String("storyID", storyID.String()), zap.Error(err))
		return 0, fmt.Errorf("ошибка подсчета писателей истории %s: %w", storyID, err)
	}
	return count, nil
}

func (r *pgWriterRepository) UpdateStatus(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, status models.WriterStatus) error {
	tag, err := querier.Exec(ctx, updateWriterStatusQuery, id, status)
	if err != nil {
		r.logger.Error("Failed to update writer status",
			zap.String("writerID", id.String()), zap.String("status", string(status)), zap.Error(err))
		return fmt.Errorf("ошибка обновления статуса писателя %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *pgWriterRepository) SetPenName(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, penName *string) error {
	tag, err := querier.Exec(ctx, setWriterPenNameQuery, id, penName)
	if err != nil {
		r.logger.Error("Failed to set pen name", zap.String("writerID", id.String()), zap.Error(err))
		return fmt.Errorf("ошибка обновления псевдонима писателя %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *pgWriterRepository) LastKnownPenName(ctx context.Context, querier interfaces.DBTX, userID string) (*string, error) {
	var penName *string
	err := querier.QueryRow(ctx, lastKnownPenNameQuery, userID).Scan(&penName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // псевдоним ни разу не задавался, это не ошибка
		}
		r.logger.Error("Failed to get last known pen name", zap.String("userID", userID), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения псевдонима пользователя %s: %w", userID, err)
	}
	return penName, nil
}
