package mocks

import (
	"context"

	"storybot-server/internal/interfaces"

	"github.com/stretchr/testify/mock"
)

// Mock Messenger
type Messenger struct {
	mock.Mock
}

func (m *Messenger) CreateChannel(ctx context.Context, guildID, name string) (string, error) {
	args := m.Called(ctx, guildID, name)
	return args.String(0), args.Error(1)
}
func (m *Messenger) CreateThread(ctx context.Context, channelID, title string, private bool, writerUserID string) (string, error) {
	args := m.Called(ctx, channelID, title, private, writerUserID)
	return args.String(0), args.Error(1)
}
func (m *Messenger) PostMessage(ctx context.Context, channelID, text string) error {
	args := m.Called(ctx, channelID, text)
	return args.Error(0)
}
func (m *Messenger) SendDirectMessage(ctx context.Context, userID, text string) error {
	args := m.Called(ctx, userID, text)
	return args.Error(0)
}
func (m *Messenger) LockChannel(ctx context.Context, channelID string) error {
	args := m.Called(ctx, channelID)
	return args.Error(0)
}
func (m *Messenger) FetchRecentMessages(ctx context.Context, channelID string, limit int) ([]interfaces.SurfaceMessage, error) {
	args := m.Called(ctx, channelID, limit)
	messages, _ := args.Get(0).([]interfaces.SurfaceMessage)
	return messages, args.Error(1)
}

// FakeTransactor выполняет функцию транзакции напрямую, без реальной БД.
// Ошибка функции возвращается как ошибка "транзакции" (эквивалент отката).
type FakeTransactor struct {
	Tx interfaces.DBTX
}

func (t *FakeTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx interfaces.DBTX) error) error {
	return fn(ctx, t.Tx)
}
