package service_test

import (
	"context"
	"errors"
	"testing"

	"storybot-server/internal/interfaces/mocks"
	messagingMocks "storybot-server/internal/messaging/mocks"
	"storybot-server/internal/models"
	"storybot-server/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type storyServiceFixture struct {
	storyRepo  *mocks.StoryRepository
	writerRepo *mocks.WriterRepository
	turnRepo   *mocks.TurnRepository
	jobRepo    *mocks.ScheduledJobRepository
	messenger  *mocks.Messenger
	publisher  *messagingMocks.NotificationPublisher
	service    service.StoryService
}

func newStoryServiceFixture() *storyServiceFixture {
	f := &storyServiceFixture{
		storyRepo:  new(mocks.StoryRepository),
		writerRepo: new(mocks.WriterRepository),
		turnRepo:   new(mocks.TurnRepository),
		jobRepo:    new(mocks.ScheduledJobRepository),
		messenger:  new(mocks.Messenger),
		publisher:  new(messagingMocks.NotificationPublisher),
	}
	selector := service.NewWriterSelector(f.writerRepo, f.turnRepo, zap.NewNop())
	turnService := service.NewTurnService(f.writerRepo, f.turnRepo, selector, f.messenger, stubResolver{}, zap.NewNop())
	f.service = service.NewStoryService(
		&mocks.FakeTransactor{}, nil, f.storyRepo, f.writerRepo, f.turnRepo, f.jobRepo,
		turnService, f.messenger, stubResolver{}, f.publisher, zap.NewNop(),
	)
	return f
}

func TestCreateStory(t *testing.T) {
	ctx := context.Background()
	params := service.CreateStoryParams{
		GuildID:            "guild-1",
		CreatorUserID:      "user-1",
		CreatorDisplayName: "Ann",
		Title:              "Starfall",
		QuickMode:          true,
		TurnLengthHours:    24,
		Ordering:           models.OrderingJoinOrder,
	}

	t.Run("immediate story starts with the creator's turn", func(t *testing.T) {
		f := newStoryServiceFixture()
		creator := &models.Writer{ID: uuid.New(), UserID: "user-1", DisplayName: "Ann", Status: models.WriterStatusActive}

		f.storyRepo.On("Create", ctx, nil, mock.MatchedBy(func(s *models.Story) bool {
			return s.Status == models.StoryStatusActive && s.Title == "Starfall"
		})).Return(nil).Once()
		f.messenger.On("CreateChannel", ctx, "guild-1", "Starfall").Return("chan-1", nil).Once()
		f.storyRepo.On("SetChannelID", ctx, nil, mock.Anything, "chan-1").Return(nil).Once()
		f.writerRepo.On("LastKnownPenName", ctx, nil, "user-1").Return(nil, nil).Once()
		f.writerRepo.On("Create", ctx, nil, mock.Anything).Return(nil).Once()

		// Первый ход создателя
		f.turnRepo.On("GetActiveByStory", ctx, nil, mock.Anything).Return(nil, models.ErrNoActiveTurn)
		f.writerRepo.On("GetByID", ctx, nil, mock.Anything).Return(creator, nil)
		f.turnRepo.On("CountByStory", ctx, nil, mock.Anything).Return(0, nil)
		f.turnRepo.On("Create", ctx, nil, mock.Anything).Return(nil).Once()
		f.publisher.On("PublishNotification", mock.Anything, mock.Anything).Return(nil)

		result, err := f.service.CreateStory(ctx, params)
		assert.NoError(t, err)
		assert.Equal(t, models.StoryStatusActive, result.Status)
		assert.Equal(t, "chan-1", result.ChannelID)
		f.publisher.AssertNumberOfCalls(t, "PublishNotification", 1)
	})

	t.Run("delayed story is created paused without a turn", func(t *testing.T) {
		f := newStoryServiceFixture()
		delayWriters := 3
		delayed := params
		delayed.DelayWriters = &delayWriters

		f.storyRepo.On("Create", ctx, nil, mock.MatchedBy(func(s *models.Story) bool {
			return s.Status == models.StoryStatusPaused
		})).Return(nil).Once()
		f.messenger.On("CreateChannel", ctx, "guild-1", "Starfall").Return("chan-1", nil).Once()
		f.storyRepo.On("SetChannelID", ctx, nil, mock.Anything, "chan-1").Return(nil).Once()
		f.writerRepo.On("LastKnownPenName", ctx, nil, "user-1").Return(nil, nil).Once()
		f.writerRepo.On("Create", ctx, nil, mock.Anything).Return(nil).Once()
		// Порог еще не достигнут: один писатель из трех
		f.writerRepo.On("CountActiveByStory", ctx, nil, mock.Anything).Return(1, nil).Once()

		result, err := f.service.CreateStory(ctx, delayed)
		assert.NoError(t, err)
		assert.Equal(t, models.StoryStatusPaused, result.Status)
		f.turnRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
		f.jobRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("hour delay schedules an activation job", func(t *testing.T) {
		f := newStoryServiceFixture()
		delayHours := 48
		delayed := params
		delayed.DelayHours = &delayHours

		f.storyRepo.On("Create", ctx, nil, mock.Anything).Return(nil).Once()
		f.jobRepo.On("Create", ctx, nil, mock.MatchedBy(func(job *models.ScheduledJob) bool {
			return job.JobType == models.JobTypeStoryActivation && job.Status == models.JobStatusPending
		})).Return(nil).Once()
		f.messenger.On("CreateChannel", ctx, "guild-1", "Starfall").Return("chan-1", nil).Once()
		f.storyRepo.On("SetChannelID", ctx, nil, mock.Anything, "chan-1").Return(nil).Once()
		f.writerRepo.On("LastKnownPenName", ctx, nil, "user-1").Return(nil, nil).Once()
		f.writerRepo.On("Create", ctx, nil, mock.Anything).Return(nil).Once()
		f.writerRepo.On("CountActiveByStory", ctx, nil, mock.Anything).Return(1, nil)

		result, err := f.service.CreateStory(ctx, delayed)
		assert.NoError(t, err)
		assert.Equal(t, models.StoryStatusPaused, result.Status)
		f.jobRepo.AssertExpectations(t)
	})

	t.Run("channel creation failure rolls the story back", func(t *testing.T) {
		f := newStoryServiceFixture()

		f.storyRepo.On("Create", ctx, nil, mock.Anything).Return(nil).Once()
		f.messenger.On("CreateChannel", ctx, "guild-1", "Starfall").Return("", errors.New("gateway down")).Once()

		_, err := f.service.CreateStory(ctx, params)
		assert.Error(t, err)
		f.writerRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
		f.publisher.AssertNotCalled(t, "PublishNotification", mock.Anything, mock.Anything)
	})
}

func TestJoinStory(t *testing.T) {
	ctx := context.Background()
	storyID := uuid.New()
	joinParams := service.JoinStoryParams{StoryID: storyID, UserID: "user-2", DisplayName: "Ben"}

	t.Run("closed story rejects joins", func(t *testing.T) {
		f := newStoryServiceFixture()
		f.storyRepo.On("GetByIDForUpdate", ctx, nil, storyID).Return(&models.Story{ID: storyID, Status: models.StoryStatusClosed}, nil).Once()

		_, err := f.service.JoinStory(ctx, joinParams)
		assert.ErrorIs(t, err, models.ErrStoryClosed)
	})

	t.Run("active story with closed late join rejects newcomers", func(t *testing.T) {
		f := newStoryServiceFixture()
		story := &models.Story{ID: storyID, Status: models.StoryStatusActive, AllowLateJoin: false}
		f.storyRepo.On("GetByIDForUpdate", ctx, nil, storyID).Return(story, nil).Once()
		f.writerRepo.On("GetByStoryAndUser", ctx, nil, storyID, "user-2").Return(nil, models.ErrNotFound).Once()

		_, err := f.service.JoinStory(ctx, joinParams)
		assert.ErrorIs(t, err, models.ErrLateJoinClosed)
	})

	t.Run("full story rejects joins", func(t *testing.T) {
		f := newStoryServiceFixture()
		maxWriters := 2
		story := &models.Story{ID: storyID, Status: models.StoryStatusActive, AllowLateJoin: true, MaxWriters: &maxWriters}
		f.storyRepo.On("GetByIDForUpdate", ctx, nil, storyID).Return(story, nil).Once()
		f.writerRepo.On("GetByStoryAndUser", ctx, nil, storyID, "user-2").Return(nil, models.ErrNotFound).Once()
		f.writerRepo.On("CountActiveByStory", ctx, nil, storyID).Return(2, nil).Once()

		_, err := f.service.JoinStory(ctx, joinParams)
		assert.ErrorIs(t, err, models.ErrStoryFull)
	})

	t.Run("repeat join is rejected", func(t *testing.T) {
		f := newStoryServiceFixture()
		story := &models.Story{ID: storyID, Status: models.StoryStatusActive, AllowLateJoin: true}
		existing := &models.Writer{ID: uuid.New(), StoryID: storyID, UserID: "user-2", Status: models.WriterStatusActive}
		f.storyRepo.On("GetByIDForUpdate", ctx, nil, storyID).Return(story, nil).Once()
		f.writerRepo.On("GetByStoryAndUser", ctx, nil, storyID, "user-2").Return(existing, nil).Once()

		_, err := f.service.JoinStory(ctx, joinParams)
		assert.ErrorIs(t, err, models.ErrAlreadyJoined)
	})

	t.Run("reaching the writer threshold activates the story", func(t *testing.T) {
		f := newStoryServiceFixture()
		delayWriters := 2
		story := &models.Story{
			ID:              storyID,
			GuildID:         "guild-1",
			Title:           "Starfall",
			Status:          models.StoryStatusPaused,
			QuickMode:       true,
			TurnLengthHours: 24,
			Ordering:        models.OrderingJoinOrder,
			DelayWriters:    &delayWriters,
			ChannelID:       "chan-1",
		}
		first := &models.Writer{ID: uuid.New(), StoryID: storyID, UserID: "user-1", DisplayName: "Ann", Status: models.WriterStatusActive}
		second := &models.Writer{ID: uuid.New(), StoryID: storyID, UserID: "user-2", DisplayName: "Ben", Status: models.WriterStatusActive}

		f.storyRepo.On("GetByIDForUpdate", ctx, nil, storyID).Return(story, nil).Once()
		f.writerRepo.On("GetByStoryAndUser", ctx, nil, storyID, "user-2").Return(nil, models.ErrNotFound).Once()
		f.writerRepo.On("CountActiveByStory", ctx, nil, storyID).Return(1, nil).Once() // до вступления
		f.writerRepo.On("LastKnownPenName", ctx, nil, "user-2").Return(nil, nil).Once()
		f.writerRepo.On("Create", ctx, nil, mock.Anything).Return(nil).Once()
		f.writerRepo.On("CountActiveByStory", ctx, nil, storyID).Return(2, nil).Once() // проверка порога

		f.storyRepo.On("UpdateStatus", ctx, nil, storyID, models.StoryStatusActive).Return(nil).Once()
		f.writerRepo.On("ListActiveByStory", ctx, nil, storyID).Return([]*models.Writer{first, second}, nil).Once()
		f.turnRepo.On("GetActiveByStory", ctx, nil, storyID).Return(nil, models.ErrNoActiveTurn)
		f.turnRepo.On("GetLatestByStory", ctx, nil, storyID).Return(nil, models.ErrNotFound).Once()
		f.writerRepo.On("GetByID", ctx, nil, first.ID).Return(first, nil).Once()
		f.turnRepo.On("CountByStory", ctx, nil, storyID).Return(0, nil).Once()
		f.turnRepo.On("Create", ctx, nil, mock.Anything).Return(nil).Once()
		f.publisher.On("PublishNotification", mock.Anything, mock.Anything).Return(nil)

		writer, err := f.service.JoinStory(ctx, joinParams)
		assert.NoError(t, err)
		assert.Equal(t, "user-2", writer.UserID)
		// Уведомления: вступление, активация, начало хода
		f.publisher.AssertNumberOfCalls(t, "PublishNotification", 3)
		f.storyRepo.AssertExpectations(t)
	})

	t.Run("join into a manually paused story resumes its active turn", func(t *testing.T) {
		f := newStoryServiceFixture()
		delayWriters := 2
		story := &models.Story{
			ID:              storyID,
			GuildID:         "guild-1",
			Title:           "Starfall",
			Status:          models.StoryStatusPaused,
			QuickMode:       true,
			TurnLengthHours: 24,
			Ordering:        models.OrderingJoinOrder,
			DelayWriters:    &delayWriters,
			ChannelID:       "chan-1",
		}
		// История уже была активна и поставлена на паузу вручную: ее ход жив.
		activeTurn := &models.Turn{ID: uuid.New(), StoryID: storyID, WriterID: uuid.New(), Status: models.TurnStatusActive}

		f.storyRepo.On("GetByIDForUpdate", ctx, nil, storyID).Return(story, nil).Once()
		f.writerRepo.On("GetByStoryAndUser", ctx, nil, storyID, "user-2").Return(nil, models.ErrNotFound).Once()
		f.writerRepo.On("CountActiveByStory", ctx, nil, storyID).Return(1, nil).Once()
		f.writerRepo.On("LastKnownPenName", ctx, nil, "user-2").Return(nil, nil).Once()
		f.writerRepo.On("Create", ctx, nil, mock.Anything).Return(nil).Once()
		f.writerRepo.On("CountActiveByStory", ctx, nil, storyID).Return(2, nil).Once()
		f.storyRepo.On("UpdateStatus", ctx, nil, storyID, models.StoryStatusActive).Return(nil).Once()
		f.turnRepo.On("GetActiveByStory", ctx, nil, storyID).Return(activeTurn, nil).Once()
		f.publisher.On("PublishNotification", mock.Anything, mock.Anything).Return(nil)

		writer, err := f.service.JoinStory(ctx, joinParams)
		assert.NoError(t, err)
		assert.Equal(t, "user-2", writer.UserID)
		// Новый ход не открывается, объявляется только вступление.
		f.turnRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
		f.publisher.AssertNumberOfCalls(t, "PublishNotification", 1)
		f.storyRepo.AssertExpectations(t)
	})
}

func TestCheckActivationDelay(t *testing.T) {
	ctx := context.Background()
	storyID := uuid.New()

	t.Run("already active story is a no-op", func(t *testing.T) {
		f := newStoryServiceFixture()
		f.storyRepo.On("GetByIDForUpdate", ctx, nil, storyID).Return(&models.Story{ID: storyID, Status: models.StoryStatusActive}, nil).Once()

		result, err := f.service.CheckActivationDelay(ctx, storyID)
		assert.NoError(t, err)
		assert.False(t, result.Activated)
		f.storyRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unmet threshold reports remaining writers", func(t *testing.T) {
		f := newStoryServiceFixture()
		delayWriters := 5
		story := &models.Story{ID: storyID, Status: models.StoryStatusPaused, DelayWriters: &delayWriters}
		f.storyRepo.On("GetByIDForUpdate", ctx, nil, storyID).Return(story, nil).Once()
		f.writerRepo.On("CountActiveByStory", ctx, nil, storyID).Return(2, nil).Once()

		result, err := f.service.CheckActivationDelay(ctx, storyID)
		assert.NoError(t, err)
		assert.False(t, result.Activated)
		if assert.NotNil(t, result.RemainingWriters) {
			assert.Equal(t, 3, *result.RemainingWriters)
		}
	})
}

func TestLeaveStory(t *testing.T) {
	ctx := context.Background()
	storyID := uuid.New()

	t.Run("non-member cannot leave", func(t *testing.T) {
		f := newStoryServiceFixture()
		f.storyRepo.On("GetByIDForUpdate", ctx, nil, storyID).Return(&models.Story{ID: storyID, Status: models.StoryStatusActive}, nil).Once()
		f.writerRepo.On("GetByStoryAndUser", ctx, nil, storyID, "user-9").Return(nil, models.ErrNotFound).Once()

		err := f.service.LeaveStory(ctx, storyID, "user-9")
		assert.ErrorIs(t, err, models.ErrNotAWriter)
	})

	t.Run("leaving writer with the active turn skips it and passes the turn on", func(t *testing.T) {
		f := newStoryServiceFixture()
		story := &models.Story{
			ID: storyID, GuildID: "guild-1", Title: "Starfall", Status: models.StoryStatusActive,
			QuickMode: true, TurnLengthHours: 24, Ordering: models.OrderingJoinOrder, ChannelID: "chan-1",
		}
		leaver := &models.Writer{ID: uuid.New(), StoryID: storyID, UserID: "user-1", DisplayName: "Ann", Status: models.WriterStatusActive}
		stayer := &models.Writer{ID: uuid.New(), StoryID: storyID, UserID: "user-2", DisplayName: "Ben", Status: models.WriterStatusActive}
		activeTurn := &models.Turn{ID: uuid.New(), StoryID: storyID, WriterID: leaver.ID, Status: models.TurnStatusActive}

		f.storyRepo.On("GetByIDForUpdate", ctx, nil, storyID).Return(story, nil).Once()
		f.writerRepo.On("GetByStoryAndUser", ctx, nil, storyID, "user-1").Return(leaver, nil).Once()
		f.turnRepo.On("GetActiveByStory", ctx, nil, storyID).Return(activeTurn, nil).Once()
		f.writerRepo.On("UpdateStatus", ctx, nil, leaver.ID, models.WriterStatusWithdrawn).Return(nil).Once()
		f.turnRepo.On("Finish", ctx, nil, activeTurn.ID, models.TurnStatusSkipped, mock.Anything).Return(nil).Once()

		// Передача хода оставшемуся писателю: точка отсчета — пропущенный ход
		f.writerRepo.On("ListActiveByStory", ctx, nil, storyID).Return([]*models.Writer{stayer}, nil).Once()
		f.turnRepo.On("GetLatestByStory", ctx, nil, storyID).Return(activeTurn, nil).Once()
		f.turnRepo.On("GetActiveByStory", ctx, nil, storyID).Return(nil, models.ErrNoActiveTurn)
		f.writerRepo.On("GetByID", ctx, nil, stayer.ID).Return(stayer, nil).Once()
		f.turnRepo.On("CountByStory", ctx, nil, storyID).Return(1, nil).Once()
		f.turnRepo.On("Create", ctx, nil, mock.MatchedBy(func(turn *models.Turn) bool {
			return turn.WriterID == stayer.ID
		})).Return(nil).Once()
		f.publisher.On("PublishNotification", mock.Anything, mock.Anything).Return(nil)

		err := f.service.LeaveStory(ctx, storyID, "user-1")
		assert.NoError(t, err)
		f.turnRepo.AssertExpectations(t)
	})
}

func TestCloseStory(t *testing.T) {
	ctx := context.Background()
	storyID := uuid.New()

	f := newStoryServiceFixture()
	story := &models.Story{ID: storyID, GuildID: "guild-1", Title: "Starfall", Status: models.StoryStatusActive, ChannelID: "chan-1"}
	activeTurn := &models.Turn{ID: uuid.New(), StoryID: storyID, Status: models.TurnStatusActive}

	f.storyRepo.On("GetByIDForUpdate", ctx, nil, storyID).Return(story, nil).Once()
	f.turnRepo.On("GetActiveByStory", ctx, nil, storyID).Return(activeTurn, nil).Once()
	f.turnRepo.On("Finish", ctx, nil, activeTurn.ID, models.TurnStatusEnded, mock.Anything).Return(nil).Once()
	f.storyRepo.On("UpdateStatus", ctx, nil, storyID, models.StoryStatusClosed).Return(nil).Once()
	f.messenger.On("LockChannel", ctx, "chan-1").Return(nil).Once()
	f.publisher.On("PublishNotification", mock.Anything, mock.Anything).Return(nil)

	err := f.service.CloseStory(ctx, storyID)
	assert.NoError(t, err)
	f.messenger.AssertExpectations(t)
	f.turnRepo.AssertExpectations(t)
}

func TestSetPenName(t *testing.T) {
	ctx := context.Background()
	storyID := uuid.New()

	t.Run("pen name is sanitized before persisting", func(t *testing.T) {
		f := newStoryServiceFixture()
		writer := &models.Writer{ID: uuid.New(), StoryID: storyID, UserID: "user-1", Status: models.WriterStatusActive}

		f.writerRepo.On("GetByStoryAndUser", ctx, nil, storyID, "user-1").Return(writer, nil).Once()
		f.writerRepo.On("SetPenName", ctx, nil, writer.ID, mock.MatchedBy(func(p *string) bool {
			return p != nil && *p == "Quill"
		})).Return(nil).Once()

		penName := "  Quill<span>  "
		err := f.service.SetPenName(ctx, storyID, "user-1", &penName)
		assert.NoError(t, err)
		f.writerRepo.AssertExpectations(t)
	})

	t.Run("nil clears the pen name", func(t *testing.T) {
		f := newStoryServiceFixture()
		writer := &models.Writer{ID: uuid.New(), StoryID: storyID, UserID: "user-1", Status: models.WriterStatusActive}

		f.writerRepo.On("GetByStoryAndUser", ctx, nil, storyID, "user-1").Return(writer, nil).Once()
		f.writerRepo.On("SetPenName", ctx, nil, writer.ID, (*string)(nil)).Return(nil).Once()

		err := f.service.SetPenName(ctx, storyID, "user-1", nil)
		assert.NoError(t, err)
		f.writerRepo.AssertExpectations(t)
	})

	t.Run("withdrawn writer cannot change the pen name", func(t *testing.T) {
		f := newStoryServiceFixture()
		writer := &models.Writer{ID: uuid.New(), StoryID: storyID, UserID: "user-1", Status: models.WriterStatusWithdrawn}

		f.writerRepo.On("GetByStoryAndUser", ctx, nil, storyID, "user-1").Return(writer, nil).Once()

		penName := "Quill"
		err := f.service.SetPenName(ctx, storyID, "user-1", &penName)
		assert.ErrorIs(t, err, models.ErrNotAWriter)
	})
}
