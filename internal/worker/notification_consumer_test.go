package worker_test

import (
	"context"
	"errors"
	"testing"

	"storybot-server/internal/interfaces/mocks"
	"storybot-server/internal/messaging"
	"storybot-server/internal/worker"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// fakeAcknowledger записывает исход обработки доставки.
type fakeAcknowledger struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error { a.acked = true; return nil }
func (a *fakeAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}
func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}

func turnPayload(preferDM bool) messaging.NotificationPayload {
	return messaging.NotificationPayload{
		Kind:        messaging.NotificationKindTurn,
		GuildID:     "guild-1",
		StoryID:     "story-1",
		ChannelID:   "chan-1",
		UserID:      "user-1",
		PreferDM:    preferDM,
		DirectText:  "your turn",
		ChannelText: "<@user-1>, your turn",
	}
}

func TestDispatcherDeliver(t *testing.T) {
	ctx := context.Background()

	t.Run("prefers DM for turn notifications", func(t *testing.T) {
		messenger := new(mocks.Messenger)
		messenger.On("SendDirectMessage", mock.Anything, "user-1", "your turn").Return(nil).Once()

		err := worker.NewDispatcher(zap.NewNop(), messenger).Deliver(ctx, turnPayload(true))
		assert.NoError(t, err)
		messenger.AssertNotCalled(t, "PostMessage", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("falls back to a channel mention when DM delivery fails", func(t *testing.T) {
		messenger := new(mocks.Messenger)
		messenger.On("SendDirectMessage", mock.Anything, "user-1", "your turn").Return(errors.New("DMs closed")).Once()
		messenger.On("PostMessage", mock.Anything, "chan-1", "<@user-1>, your turn").Return(nil).Once()

		err := worker.NewDispatcher(zap.NewNop(), messenger).Deliver(ctx, turnPayload(true))
		assert.NoError(t, err)
		messenger.AssertExpectations(t)
	})

	t.Run("mention preference skips DM entirely", func(t *testing.T) {
		messenger := new(mocks.Messenger)
		messenger.On("PostMessage", mock.Anything, "chan-1", "<@user-1>, your turn").Return(nil).Once()

		err := worker.NewDispatcher(zap.NewNop(), messenger).Deliver(ctx, turnPayload(false))
		assert.NoError(t, err)
		messenger.AssertNotCalled(t, "SendDirectMessage", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("announcements go to the story channel", func(t *testing.T) {
		messenger := new(mocks.Messenger)
		messenger.On("PostMessage", mock.Anything, "chan-1", "Ann joined").Return(nil).Once()

		err := worker.NewDispatcher(zap.NewNop(), messenger).Deliver(ctx, messaging.NotificationPayload{
			Kind:        messaging.NotificationKindAnnouncement,
			ChannelID:   "chan-1",
			ChannelText: "Ann joined",
		})
		assert.NoError(t, err)
	})

	t.Run("unknown kind is an error", func(t *testing.T) {
		err := worker.NewDispatcher(zap.NewNop(), new(mocks.Messenger)).Deliver(ctx, messaging.NotificationPayload{Kind: "bogus"})
		assert.Error(t, err)
	})
}

func TestDispatcherProcessMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed payload is rejected without requeue", func(t *testing.T) {
		ack := &fakeAcknowledger{}
		d := amqp.Delivery{Acknowledger: ack, Body: []byte("{not json")}

		worker.NewDispatcher(zap.NewNop(), new(mocks.Messenger)).ProcessMessage(ctx, d)
		assert.True(t, ack.nacked)
		assert.False(t, ack.requeue)
	})

	t.Run("delivered notification is acked", func(t *testing.T) {
		messenger := new(mocks.Messenger)
		messenger.On("PostMessage", mock.Anything, "chan-1", "Ann joined").Return(nil).Once()

		ack := &fakeAcknowledger{}
		d := amqp.Delivery{
			Acknowledger: ack,
			Body:         []byte(`{"kind":"announcement","channelId":"chan-1","channelText":"Ann joined"}`),
		}

		worker.NewDispatcher(zap.NewNop(), messenger).ProcessMessage(ctx, d)
		assert.True(t, ack.acked)
		assert.False(t, ack.nacked)
	})
}
