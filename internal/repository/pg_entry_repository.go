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
var _ interfaces.EntryRepository = (*pgEntryRepository)(nil)

const (
	entryColumns = `id, turn_id, content, status, position, created_at, updated_at`

	createEntryQuery = `
        INSERT INTO entries (id, turn_id, content, status, position, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	getEntryByIDQuery      = `SELECT ` + entryColumns + ` FROM entries WHERE id = $1`
	getPendingEntryQuery   = `SELECT ` + entryColumns + ` FROM entries WHERE turn_id = $1 AND status = $2`
	updateEntryContent     = `UPDATE entries SET content = $2, updated_at = $3 WHERE id = $1`
	updateEntryStatusQuery = `UPDATE entries SET status = $2, updated_at = $3 WHERE id = $1`
	nextEntryPositionQuery = `SELECT COALESCE(MAX(position), 0) + 1 FROM entries WHERE turn_id = $1`
)

type pgEntryRepository struct {
	logger *zap.Logger
}

// NewPgEntryRepository создает репозиторий записей.
func NewPgEntryRepository(logger *zap.Logger) interfaces.EntryRepository {
	return &pgEntryRepository{logger: logger.Named("PgEntryRepo")}
}

func (r *pgEntryRepository) Create(ctx context.Context, querier interfaces.DBTX, entry *models.Entry) error {
	logFields := []zap.Field{zap.String("entryID", entry.ID.String()), zap.String("turnID", entry.TurnID.String())}
	r.logger.Debug("Creating entry", logFields...)

	_, err := querier.Exec(ctx, createEntryQuery,
		entry.ID,
		entry.TurnID,
		entry.Content,
		entry.Status,
		entry.Position,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// Сработал частичный уникальный индекс по (turn_id) WHERE status = 'pending'.
			return models.ErrPendingEntryExists
		}
		r.logger.Error("Failed to create entry", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка создания записи: %w", err)
	}
	r.logger.Info("Entry created", logFields...)
	return nil
}

func (r *pgEntryRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Entry, error) {
	var entry models.Entry
	err := pgxscan.Get(ctx, querier, &entry, getEntryByIDQuery, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrEntryNotFound
		}
		r.logger.Error("Failed to get entry by ID", zap.String("entryID", id.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения записи %s: %w", id, err)
	}
	return &entry, nil
}

func (r *pgEntryRepository) GetPendingByTurn(ctx context.Context, querier interfaces.DBTX, turnID uuid.UUID) (*models.Entry, error) {
	var entry models.Entry
	err := pgxscan.Get(ctx, querier, &entry, getPendingEntryQuery, turnID, models.EntryStatusPending)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrEntryNotFound
		}
		r.logger.Error("Failed to get pending entry", zap.String("turnID", turnID.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения pending-записи хода %s: %w", turnID, err)
	}
	return &entry, nil
}

func (r *pgEntryRepository) UpdateContent(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, content string) error {
	tag, err := querier.Exec(ctx, updateEntryContent, id, content, time.Now().UTC())
	if err != nil {
		r.logger.Error("Failed to update entry content", zap.String("entryID", id.String()), zap.Error(err))
		return fmt.Errorf("ошибка обновления содержимого записи %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrEntryNotFound
	}
	return nil
}

func (r *pgEntryRepository) UpdateStatus(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, status models.EntryStatus) error {
	tag, err := querier.Exec(ctx, updateEntryStatusQuery, id, status, time.Now().UTC())
	if err != nil {
		r.logger.Error("Failed to update entry status",
			zap.String("entryID", id.String()), zap.String("status", string(status)), zap.Error(err))
		return fmt.Errorf("ошибка обновления статуса записи %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrEntryNotFound
	}
	return nil
}

func (r *pgEntryRepository) NextPosition(ctx context.Context, querier interfaces.DBTX, turnID uuid.UUID) (int, error) {
	var position int
	err := querier.QueryRow(ctx, nextEntryPositionQuery, turnID).Scan(&position)
	if err != nil {
		r.logger.Error("Failed to get next entry position", zap.String("turnID", turnID.String()), zap.Error(err))
		return 0, fmt.Errorf("ошибка получения позиции записи для хода %s: %w", turnID, err)
	}
	return position, nil
}
