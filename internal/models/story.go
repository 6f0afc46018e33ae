package models

import (
	"time"

	"github.com/google/uuid"
)

// StoryStatus определяет статус истории.
type StoryStatus int

// Возможные статусы истории. Paused и Pending делят одно значение:
// история, ожидающая активации, с точки зрения игроков поставлена на паузу.
const (
	StoryStatusActive StoryStatus = 1
	StoryStatusPaused StoryStatus = 2
	StoryStatusClosed StoryStatus = 3
)

// OrderingType определяет алгоритм выбора следующего писателя.
type OrderingType string

const (
	OrderingRandom     OrderingType = "random"
	OrderingJoinOrder  OrderingType = "join_order"
	OrderingFixedOrder OrderingType = "fixed_order"
)

// IsValidOrderingType проверяет, является ли строка допустимым OrderingType.
func IsValidOrderingType(o OrderingType) bool {
	switch o {
	case OrderingRandom, OrderingJoinOrder, OrderingFixedOrder:
		return true
	default:
		return false
	}
}

// Story представляет одну round-robin историю внутри гильдии.
type Story struct {
	ID              uuid.UUID    `db:"id"`
	GuildID         string       `db:"guild_id"` // ID гильдии (сообщества), которой принадлежит история
	Title           string       `db:"title"`
	Status          StoryStatus  `db:"status"`
	QuickMode       bool         `db:"quick_mode"`       // true: ходы через DM/анонсы, без тредов
	TurnLengthHours int          `db:"turn_length"`      // длительность хода в часах
	ReminderPercent int          `db:"reminder_percent"` // 0, 25, 50 или 75 — когда напоминать о дедлайне
	Ordering        OrderingType `db:"ordering"`
	PrivateTurns    bool         `db:"private_turns"` // дефолт приватности тредов хода на уровне истории
	AllowLateJoin   bool         `db:"allow_late_join"`
	MaxWriters      *int         `db:"max_writers"`   // nil — без ограничения
	DelayHours      *int         `db:"delay_hours"`   // отложенная активация по времени
	DelayWriters    *int         `db:"delay_writers"` // отложенная активация по числу писателей
	ChannelID       string       `db:"channel_id"`    // главный канал истории (communication surface)
	CreatedAt       time.Time    `db:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at"`
}

// HasActivationDelay возвращает true, если истории задано хотя бы одно условие
// отложенного старта.
func (s *Story) HasActivationDelay() bool {
	return (s.DelayHours != nil && *s.DelayHours > 0) || (s.DelayWriters != nil && *s.DelayWriters > 0)
}
