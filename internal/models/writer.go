package models

import (
	"time"

	"github.com/google/uuid"
)

// WriterStatus определяет статус участия писателя в истории.
type WriterStatus string

const (
	WriterStatusActive    WriterStatus = "active"
	WriterStatusWithdrawn WriterStatus = "withdrawn"
)

// NotifyPreference определяет, как писатель хочет получать уведомление о своем ходе.
type NotifyPreference string

const (
	NotifyPreferenceDM      NotifyPreference = "dm"
	NotifyPreferenceMention NotifyPreference = "mention"
)

// Writer представляет участие одного пользователя в одной истории.
// Записи не удаляются физически, только переводятся в статус withdrawn.
type Writer struct {
	ID           uuid.UUID        `db:"id"`
	StoryID      uuid.UUID        `db:"story_id"`
	UserID       string           `db:"user_id"` // внешний ID пользователя (Discord snowflake)
	DisplayName  string           `db:"display_name"`
	PenName      *string          `db:"pen_name"` // псевдоним (AO3), переиспользуется между историями
	PrivateTurns bool             `db:"private_turns"`
	NotifyPref   NotifyPreference `db:"notify_pref"`
	Status       WriterStatus     `db:"status"`
	JoinedAt     time.Time        `db:"joined_at"`
	TurnOrder    *int             `db:"turn_order"` // позиция, используется только при fixed_order
}

// Name возвращает отображаемое имя писателя: псевдоним, если задан, иначе display name.
func (w *Writer) Name() string {
	if w.PenName != nil && *w.PenName != "" {
		return *w.PenName
	}
	return w.DisplayName
}
