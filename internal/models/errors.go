package models

import "errors"

// Стандартные ошибки приложения. Сервисы возвращают их как типизированные
// результаты нарушения предусловий; handler-слой маппит их на HTTP-коды и
// ключи локализованных сообщений.
var (
	// Общие ошибки ресурсов/БД
	ErrNotFound      = errors.New("resource not found")
	ErrStoryNotFound = errors.New("story not found")
	ErrEntryNotFound = errors.New("entry not found")

	// Жизненный цикл истории
	ErrStoryClosed    = errors.New("story is closed")
	ErrStoryNotActive = errors.New("story is not active")
	ErrStoryFull      = errors.New("story has reached its writer limit")
	ErrLateJoinClosed = errors.New("story does not allow late joining")
	ErrAlreadyJoined  = errors.New("user is already a writer in this story")
	ErrNotAWriter     = errors.New("user is not a writer in this story")

	// Ходы и записи
	ErrNotYourTurn        = errors.New("it is not this writer's turn")
	ErrNoActiveTurn       = errors.New("story has no active turn")
	ErrTurnAlreadyActive  = errors.New("story already has an active turn")
	ErrNoEligibleWriters  = errors.New("no eligible writers to pick from")
	ErrEntryNotPending    = errors.New("entry is not in pending status")
	ErrPendingEntryExists = errors.New("turn already has a pending entry")
	ErrNotQuickMode       = errors.New("operation is only available in quick mode")
	ErrQuickModeStory     = errors.New("operation is not available for quick mode stories")

	// Общие ошибки запросов
	ErrInvalidInput   = errors.New("invalid input data")
	ErrInternalServer = errors.New("internal server error")
)
