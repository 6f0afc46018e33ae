package service_test

import (
	"context"
	"testing"

	"storybot-server/internal/interfaces/mocks"
	"storybot-server/internal/models"
	"storybot-server/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// stubResolver возвращает ключ как есть: в тестах важно, какой ключ запрошен,
// а не итоговый текст.
type stubResolver struct{}

func (stubResolver) Resolve(guildID, key string) string                      { return key }
func (stubResolver) Text(guildID, key string, vars map[string]string) string { return key }

func TestStartTurn(t *testing.T) {
	ctx := context.Background()

	newService := func(writerRepo *mocks.WriterRepository, turnRepo *mocks.TurnRepository, messenger *mocks.Messenger) service.TurnService {
		selector := service.NewWriterSelector(writerRepo, turnRepo, zap.NewNop())
		return service.NewTurnService(writerRepo, turnRepo, selector, messenger, stubResolver{}, zap.NewNop())
	}

	t.Run("quick mode skips thread creation and prefers DM", func(t *testing.T) {
		story := &models.Story{ID: uuid.New(), Title: "Space", QuickMode: true, TurnLengthHours: 24, ChannelID: "chan-1"}
		writer := &models.Writer{ID: uuid.New(), StoryID: story.ID, UserID: "user-1", DisplayName: "Ann", NotifyPref: models.NotifyPreferenceDM}

		writerRepo := new(mocks.WriterRepository)
		turnRepo := new(mocks.TurnRepository)
		messenger := new(mocks.Messenger)

		turnRepo.On("GetActiveByStory", ctx, nil, story.ID).Return(nil, models.ErrNoActiveTurn).Once()
		writerRepo.On("GetByID", ctx, nil, writer.ID).Return(writer, nil).Once()
		turnRepo.On("CountByStory", ctx, nil, story.ID).Return(0, nil).Once()
		turnRepo.On("Create", ctx, nil, mock.MatchedBy(func(turn *models.Turn) bool {
			return turn.StoryID == story.ID && turn.WriterID == writer.ID &&
				turn.Status == models.TurnStatusActive && turn.ThreadID == nil
		})).Return(nil).Once()

		turn, payload, err := newService(writerRepo, turnRepo, messenger).StartTurn(ctx, nil, story, writer.ID, true)
		assert.NoError(t, err)
		assert.Nil(t, turn.ThreadID)
		assert.True(t, payload.PreferDM)
		assert.Equal(t, "user-1", payload.UserID)
		assert.Equal(t, "chan-1", payload.ChannelID)
		messenger.AssertNotCalled(t, "CreateThread", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("normal mode creates a thread", func(t *testing.T) {
		story := &models.Story{ID: uuid.New(), Title: "Space", TurnLengthHours: 24, ChannelID: "chan-1"}
		writer := &models.Writer{ID: uuid.New(), StoryID: story.ID, UserID: "user-1", NotifyPref: models.NotifyPreferenceMention}

		writerRepo := new(mocks.WriterRepository)
		turnRepo := new(mocks.TurnRepository)
		messenger := new(mocks.Messenger)

		turnRepo.On("GetActiveByStory", ctx, nil, story.ID).Return(nil, models.ErrNoActiveTurn).Once()
		writerRepo.On("GetByID", ctx, nil, writer.ID).Return(writer, nil).Once()
		turnRepo.On("CountByStory", ctx, nil, story.ID).Return(2, nil).Once()
		messenger.On("CreateThread", ctx, "chan-1", mock.Anything, false, "user-1").Return("thread-9", nil).Once()
		turnRepo.On("Create", ctx, nil, mock.MatchedBy(func(turn *models.Turn) bool {
			return turn.ThreadID != nil && *turn.ThreadID == "thread-9"
		})).Return(nil).Once()

		turn, payload, err := newService(writerRepo, turnRepo, messenger).StartTurn(ctx, nil, story, writer.ID, false)
		assert.NoError(t, err)
		assert.Equal(t, "thread-9", *turn.ThreadID)
		assert.False(t, payload.PreferDM)
	})

	t.Run("thread is private when either story or writer demands it", func(t *testing.T) {
		cases := []struct {
			storyPrivate  bool
			writerPrivate bool
			want          bool
		}{
			{false, false, false},
			{true, false, true},
			{false, true, true},
			{true, true, true},
		}
		for _, tc := range cases {
			story := &models.Story{ID: uuid.New(), TurnLengthHours: 24, ChannelID: "chan-1", PrivateTurns: tc.storyPrivate}
			writer := &models.Writer{ID: uuid.New(), StoryID: story.ID, UserID: "user-1", PrivateTurns: tc.writerPrivate}

			writerRepo := new(mocks.WriterRepository)
			turnRepo := new(mocks.TurnRepository)
			messenger := new(mocks.Messenger)

			turnRepo.On("GetActiveByStory", ctx, nil, story.ID).Return(nil, models.ErrNoActiveTurn)
			writerRepo.On("GetByID", ctx, nil, writer.ID).Return(writer, nil)
			turnRepo.On("CountByStory", ctx, nil, story.ID).Return(0, nil)
			messenger.On("CreateThread", ctx, "chan-1", mock.Anything, tc.want, "user-1").Return("thread-1", nil)
			turnRepo.On("Create", ctx, nil, mock.Anything).Return(nil)

			_, _, err := newService(writerRepo, turnRepo, messenger).StartTurn(ctx, nil, story, writer.ID, false)
			assert.NoError(t, err)
			messenger.AssertExpectations(t)
		}
	})

	t.Run("rejects a second active turn", func(t *testing.T) {
		story := &models.Story{ID: uuid.New(), TurnLengthHours: 24}

		writerRepo := new(mocks.WriterRepository)
		turnRepo := new(mocks.TurnRepository)
		messenger := new(mocks.Messenger)

		turnRepo.On("GetActiveByStory", ctx, nil, story.ID).Return(&models.Turn{ID: uuid.New()}, nil).Once()

		_, _, err := newService(writerRepo, turnRepo, messenger).StartTurn(ctx, nil, story, uuid.New(), false)
		assert.ErrorIs(t, err, models.ErrTurnAlreadyActive)
		turnRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestEndTurn(t *testing.T) {
	ctx := context.Background()

	writerRepo := new(mocks.WriterRepository)
	turnRepo := new(mocks.TurnRepository)
	selector := service.NewWriterSelector(writerRepo, turnRepo, zap.NewNop())
	svc := service.NewTurnService(writerRepo, turnRepo, selector, new(mocks.Messenger), stubResolver{}, zap.NewNop())

	t.Run("rejects active as a final status", func(t *testing.T) {
		err := svc.EndTurn(ctx, nil, uuid.New(), models.TurnStatusActive)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("finishes the turn with the given status", func(t *testing.T) {
		turnID := uuid.New()
		turnRepo.On("Finish", ctx, nil, turnID, models.TurnStatusSkipped, mock.Anything).Return(nil).Once()

		err := svc.EndTurn(ctx, nil, turnID, models.TurnStatusSkipped)
		assert.NoError(t, err)
		turnRepo.AssertExpectations(t)
	})
}
