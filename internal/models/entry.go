package models

import (
	"time"

	"github.com/google/uuid"
)

// EntryStatus определяет статус текста, сданного писателем.
type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "pending"
	EntryStatusConfirmed EntryStatus = "confirmed"
	EntryStatusDiscarded EntryStatus = "discarded"
)

// Entry представляет текстовый вклад писателя за один ход.
// Инвариант: на ход приходится не более одной записи со статусом pending,
// повторная отправка перезаписывает содержимое вместо создания дубликата.
type Entry struct {
	ID        uuid.UUID   `db:"id"`
	TurnID    uuid.UUID   `db:"turn_id"`
	Content   string      `db:"content"`
	Status    EntryStatus `db:"status"`
	Position  int         `db:"position"` // порядок внутри хода
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}
