package interfaces

import (
	"context"
	"time"

	"storybot-server/internal/models"

	"github.com/google/uuid"
)

// StoryRepository defines persistence operations for stories.
type StoryRepository interface {
	Create(ctx context.Context, querier DBTX, story *models.Story) error

	// GetByID возвращает историю или models.ErrStoryNotFound.
	GetByID(ctx context.Context, querier DBTX, id uuid.UUID) (*models.Story, error)

	// GetByIDForUpdate читает историю с блокировкой строки (SELECT ... FOR UPDATE).
	// Используется внутри транзакций, меняющих статус истории или активный ход.
	GetByIDForUpdate(ctx context.Context, querier DBTX, id uuid.UUID) (*models.Story, error)

	UpdateStatus(ctx context.Context, querier DBTX, id uuid.UUID, status models.StoryStatus) error

	// SetChannelID записывает ID главного канала после его создания.
	SetChannelID(ctx context.Context, querier DBTX, id uuid.UUID, channelID string) error
}

// WriterRepository defines persistence operations for writer memberships.
type WriterRepository interface {
	Create(ctx context.Context, querier DBTX, writer *models.Writer) error
	GetByID(ctx context.Context, querier DBTX, id uuid.UUID) (*models.Writer, error)

	// GetByStoryAndUser возвращает участие пользователя в истории (в любом статусе)
	// или models.ErrNotFound.
	GetByStoryAndUser(ctx context.Context, querier DBTX, storyID uuid.UUID, userID string) (*models.Writer, error)

	// ListActiveByStory возвращает активных писателей истории, отсортированных
	// по времени вступления.
	ListActiveByStory(ctx context.Context, querier DBTX, storyID uuid.UUID) ([]*models.Writer, error)

	CountActiveByStory(ctx context.Context, querier DBTX, storyID uuid.UUID) (int, error)
	UpdateStatus(ctx context.Context, querier DBTX, id uuid.UUID, status models.WriterStatus) error
	SetPenName(ctx context.Context, querier DBTX, id uuid.UUID, penName *string) error

	// LastKnownPenName возвращает последний псевдоним, который пользователь
	// указывал в любой истории, или nil, если псевдоним ни разу не задавался.
	LastKnownPenName(ctx context.Context, querier DBTX, userID string) (*string, error)
}

// TurnRepository defines persistence operations for turns.
type TurnRepository interface {
	Create(ctx context.Context, querier DBTX, turn *models.Turn) error
	GetByID(ctx context.Context, querier DBTX, id uuid.UUID) (*models.Turn, error)

	// GetActiveByStory возвращает активный ход истории или models.ErrNoActiveTurn.
	GetActiveByStory(ctx context.Context, querier DBTX, storyID uuid.UUID) (*models.Turn, error)

	// GetLatestByStory возвращает последний по времени старта ход истории
	// независимо от статуса или models.ErrNotFound, если ходов еще не было.
	// Ротация писателей опирается на этот ход: внутри транзакции, завершившей
	// текущий ход, активного хода уже нет, а точка отсчета остаться должна.
	GetLatestByStory(ctx context.Context, querier DBTX, storyID uuid.UUID) (*models.Turn, error)

	// Finish переводит ход в конечный статус и проставляет время завершения.
	Finish(ctx context.Context, querier DBTX, id uuid.UUID, status models.TurnStatus, endedAt time.Time) error

	// CountByStory возвращает общее число ходов истории (для номера хода в заголовке треда).
	CountByStory(ctx context.Context, querier DBTX, storyID uuid.UUID) (int, error)
}

// EntryRepository defines persistence operations for entries.
type EntryRepository interface {
	Create(ctx context.Context, querier DBTX, entry *models.Entry) error
	GetByID(ctx context.Context, querier DBTX, id uuid.UUID) (*models.Entry, error)

	// GetPendingByTurn возвращает ожидающую подтверждения запись хода
	// или models.ErrEntryNotFound.
	GetPendingByTurn(ctx context.Context, querier DBTX, turnID uuid.UUID) (*models.Entry, error)

	// UpdateContent перезаписывает содержимое pending-записи и обновляет updated_at.
	UpdateContent(ctx context.Context, querier DBTX, id uuid.UUID, content string) error

	UpdateStatus(ctx context.Context, querier DBTX, id uuid.UUID, status models.EntryStatus) error

	// NextPosition возвращает следующую позицию записи внутри хода.
	NextPosition(ctx context.Context, querier DBTX, turnID uuid.UUID) (int, error)
}

// ScheduledJobRepository defines persistence operations for deferred jobs.
type ScheduledJobRepository interface {
	Create(ctx context.Context, querier DBTX, job *models.ScheduledJob) error

	// ClaimDue забирает до limit задач, чье время наступило, с блокировкой
	// FOR UPDATE SKIP LOCKED, чтобы конкурирующие поллеры не взяли одну задачу дважды.
	ClaimDue(ctx context.Context, querier DBTX, now time.Time, limit int) ([]*models.ScheduledJob, error)

	MarkRun(ctx context.Context, querier DBTX, id uuid.UUID) error
}

// ConfigRepository defines persistence operations for dynamic config rows.
type ConfigRepository interface {
	// Get возвращает строку конфигурации или models.ErrNotFound.
	Get(ctx context.Context, querier DBTX, guildID, lang, key string) (*models.DynamicConfig, error)
	ListAll(ctx context.Context, querier DBTX) ([]*models.DynamicConfig, error)
	Upsert(ctx context.Context, querier DBTX, cfg *models.DynamicConfig) error
}
