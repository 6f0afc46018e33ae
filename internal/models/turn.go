package models

import (
	"time"

	"github.com/google/uuid"
)

// TurnStatus определяет статус хода.
type TurnStatus int

const (
	TurnStatusEnded     TurnStatus = 0 // завершен без записи (например, при закрытии истории)
	TurnStatusActive    TurnStatus = 1
	TurnStatusCompleted TurnStatus = 2 // писатель сдал текст
	TurnStatusSkipped   TurnStatus = 3
)

// Turn представляет окно, в котором один писатель пишет свою часть истории.
// Центральный инвариант всей системы: на историю в любой момент времени
// приходится не более одного хода со статусом Active.
type Turn struct {
	ID        uuid.UUID  `db:"id"`
	StoryID   uuid.UUID  `db:"story_id"` // денормализация для уникального индекса активного хода
	WriterID  uuid.UUID  `db:"writer_id"`
	StartedAt time.Time  `db:"started_at"`
	EndedAt   *time.Time `db:"ended_at"`
	Status    TurnStatus `db:"status"`
	ThreadID  *string    `db:"thread_id"` // nil в quick-режиме
}

// Deadline возвращает момент, к которому писатель должен закончить ход.
func (t *Turn) Deadline(turnLengthHours int) time.Time {
	return t.StartedAt.Add(time.Duration(turnLengthHours) * time.Hour)
}

// ReminderAt возвращает момент напоминания о дедлайне. Сам механизм напоминаний
// живет во внешнем планировщике, здесь только расчет точки.
func (t *Turn) ReminderAt(turnLengthHours, reminderPercent int) *time.Time {
	if reminderPercent <= 0 {
		return nil
	}
	offset := time.Duration(turnLengthHours) * time.Hour * time.Duration(reminderPercent) / 100
	at := t.StartedAt.Add(offset)
	return &at
}
