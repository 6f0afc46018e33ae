package mocks

import (
	"context"

	"storybot-server/internal/messaging"

	"github.com/stretchr/testify/mock"
)

// Mock NotificationPublisher
type NotificationPublisher struct {
	mock.Mock
}

func (m *NotificationPublisher) PublishNotification(ctx context.Context, payload messaging.NotificationPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}
