package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"storybot-server/internal/configservice"
	"storybot-server/internal/interfaces"
	"storybot-server/internal/messaging"
	"storybot-server/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateStoryParams — уже провалидированные фронтендом параметры новой истории.
type CreateStoryParams struct {
	GuildID            string
	CreatorUserID      string
	CreatorDisplayName string
	Title              string
	QuickMode          bool
	TurnLengthHours    int
	ReminderPercent    int
	Ordering           models.OrderingType
	PrivateTurns       bool
	AllowLateJoin      bool
	MaxWriters         *int
	DelayHours         *int
	DelayWriters       *int
	PenName            *string
	CreatorPrivate     bool
	NotifyPref         models.NotifyPreference
}

// CreateStoryResult — результат успешного создания истории.
type CreateStoryResult struct {
	StoryID   uuid.UUID
	ChannelID string
	Status    models.StoryStatus
}

// JoinStoryParams — параметры вступления писателя в историю.
type JoinStoryParams struct {
	StoryID      uuid.UUID
	UserID       string
	DisplayName  string
	PenName      *string
	PrivateTurns bool
	NotifyPref   models.NotifyPreference
}

// ActivationResult — результат проверки условий отложенной активации.
type ActivationResult struct {
	Activated        bool
	RemainingWriters *int
	RemainingHours   *float64
}

// StoryDetail — история вместе со списком активных писателей.
type StoryDetail struct {
	Story   *models.Story
	Writers []*models.Writer
}

// StoryService определяет бизнес-логику жизненного цикла историй.
type StoryService interface {
	CreateStory(ctx context.Context, params CreateStoryParams) (*CreateStoryResult, error)
	JoinStory(ctx context.Context, params JoinStoryParams) (*models.Writer, error)
	LeaveStory(ctx context.Context, storyID uuid.UUID, userID string) error
	PauseStory(ctx context.Context, storyID uuid.UUID) error
	CloseStory(ctx context.Context, storyID uuid.UUID) error

	// SetPenName меняет псевдоним писателя в истории. nil сбрасывает псевдоним,
	// после чего в выводе используется отображаемое имя.
	SetPenName(ctx context.Context, storyID uuid.UUID, userID string, penName *string) error

	// CheckActivationDelay проверяет условия отложенного старта. Вызывается и
	// синхронно после вступления писателя, и поллером отложенных задач.
	// Для уже активной истории — no-op.
	CheckActivationDelay(ctx context.Context, storyID uuid.UUID) (*ActivationResult, error)

	GetStory(ctx context.Context, storyID uuid.UUID) (*StoryDetail, error)
}

type storyServiceImpl struct {
	txHelper    interfaces.Transactor
	db          interfaces.DBTX
	storyRepo   interfaces.StoryRepository
	writerRepo  interfaces.WriterRepository
	turnRepo    interfaces.TurnRepository
	jobRepo     interfaces.ScheduledJobRepository
	turnService TurnService
	messenger   interfaces.Messenger
	resolver    interfaces.TextResolver
	publisher   messaging.NotificationPublisher
	logger      *zap.Logger
}

// NewStoryService создает сервис историй.
func NewStoryService(
	txHelper interfaces.Transactor,
	db interfaces.DBTX,
	storyRepo interfaces.StoryRepository,
	writerRepo interfaces.WriterRepository,
	turnRepo interfaces.TurnRepository,
	jobRepo interfaces.ScheduledJobRepository,
	turnService TurnService,
	messenger interfaces.Messenger,
	resolver interfaces.TextResolver,
	publisher messaging.NotificationPublisher,
	logger *zap.Logger,
) StoryService {
	return &storyServiceImpl{
		txHelper:    txHelper,
		db:          db,
		storyRepo:   storyRepo,
		writerRepo:  writerRepo,
		turnRepo:    turnRepo,
		jobRepo:     jobRepo,
		turnService: turnService,
		messenger:   messenger,
		resolver:    resolver,
		publisher:   publisher,
		logger:      logger.Named("StoryService"),
	}
}

// CreateStory создает историю атомарно: строка истории, отложенная задача
// активации, главный канал, участие создателя и (если история сразу активна)
// первый ход — либо все вместе, либо ничего.
func (s *storyServiceImpl) CreateStory(ctx context.Context, params CreateStoryParams) (*CreateStoryResult, error) {
	now := time.Now().UTC()
	story := &models.Story{
		ID:              uuid.New(),
		GuildID:         params.GuildID,
		Title:           Sanitize(params.Title),
		Status:          models.StoryStatusActive,
		QuickMode:       params.QuickMode,
		TurnLengthHours: params.TurnLengthHours,
		ReminderPercent: params.ReminderPercent,
		Ordering:        params.Ordering,
		PrivateTurns:    params.PrivateTurns,
		AllowLateJoin:   params.AllowLateJoin,
		MaxWriters:      params.MaxWriters,
		DelayHours:      params.DelayHours,
		DelayWriters:    params.DelayWriters,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if story.HasActivationDelay() {
		story.Status = models.StoryStatusPaused
	}

	var payloads []*messaging.NotificationPayload
	err := s.txHelper.WithTransaction(ctx, func(ctx context.Context, tx interfaces.DBTX) error {
		if err := s.storyRepo.Create(ctx, tx, story); err != nil {
			return err
		}

		if story.DelayHours != nil && *story.DelayHours > 0 {
			if err := s.enqueueActivationJob(ctx, tx, story, now); err != nil {
				return err
			}
		}

		// История без канала — не история: ошибка создания канала откатывает все.
		channelID, err := s.messenger.CreateChannel(ctx, story.GuildID, story.Title)
		if err != nil {
			s.logger.Error("Failed to create story channel",
				zap.String("storyID", story.ID.String()), zap.String("guildID", story.GuildID), zap.Error(err))
			return fmt.Errorf("ошибка создания канала истории: %w", err)
		}
		if err := s.storyRepo.SetChannelID(ctx, tx, story.ID, channelID); err != nil {
			return err
		}
		story.ChannelID = channelID

		writer, err := s.createWriterTx(ctx, tx, story, JoinStoryParams{
			StoryID:      story.ID,
			UserID:       params.CreatorUserID,
			DisplayName:  params.CreatorDisplayName,
			PenName:      params.PenName,
			PrivateTurns: params.CreatorPrivate,
			NotifyPref:   params.NotifyPref,
		}, now)
		if err != nil {
			return err
		}

		if story.Status == models.StoryStatusActive {
			// Активация без задержки: первый ход достается создателю.
			_, turnPayload, err := s.turnService.StartTurn(ctx, tx, story, writer.ID, true)
			if err != nil {
				return err
			}
			payloads = append(payloads, turnPayload)
			return nil
		}

		// Порог по числу писателей может быть выполнен уже создателем.
		activation, err := s.checkActivationTx(ctx, tx, story, &payloads)
		if err != nil {
			return err
		}
		if activation.Activated {
			s.logger.Info("Story activated immediately at creation", zap.String("storyID", story.ID.String()))
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Story creation rolled back",
			zap.String("guildID", params.GuildID), zap.String("title", params.Title), zap.Error(err))
		return nil, err
	}

	s.publishAll(ctx, payloads)
	return &CreateStoryResult{StoryID: story.ID, ChannelID: story.ChannelID, Status: story.Status}, nil
}

// JoinStory добавляет писателя в историю и сразу же проверяет условия активации.
func (s *storyServiceImpl) JoinStory(ctx context.Context, params JoinStoryParams) (*models.Writer, error) {
	var (
		writer   *models.Writer
		payloads []*messaging.NotificationPayload
	)
	err := s.txHelper.WithTransaction(ctx, func(ctx context.Context, tx interfaces.DBTX) error {
		story, err := s.storyRepo.GetByIDForUpdate(ctx, tx, params.StoryID)
		if err != nil {
			return err
		}
		if story.Status == models.StoryStatusClosed {
			return models.ErrStoryClosed
		}

		existing, err := s.writerRepo.GetByStoryAndUser(ctx, tx, story.ID, params.UserID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return err
		}
		if existing != nil && existing.Status == models.WriterStatusActive {
			return models.ErrAlreadyJoined
		}

		if story.Status == models.StoryStatusActive && !story.AllowLateJoin {
			return models.ErrLateJoinClosed
		}

		count, err := s.writerRepo.CountActiveByStory(ctx, tx, story.ID)
		if err != nil {
			return err
		}
		if story.MaxWriters != nil && count >= *story.MaxWriters {
			return models.ErrStoryFull
		}

		now := time.Now().UTC()
		if existing != nil {
			// Ранее вышедший писатель возвращается: запись только реактивируется.
			if err := s.writerRepo.UpdateStatus(ctx, tx, existing.ID, models.WriterStatusActive); err != nil {
				return err
			}
			writer = existing
			writer.Status = models.WriterStatusActive
		} else {
			writer, err = s.createWriterTx(ctx, tx, story, params, now)
			if err != nil {
				return err
			}
		}

		payloads = append(payloads, s.announcement(story, configservice.KeyWriterJoined, map[string]string{
			"writer": writer.Name(),
			"story":  story.Title,
		}))

		_, err = s.checkActivationTx(ctx, tx, story, &payloads)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishAll(ctx, payloads)
	return writer, nil
}

// LeaveStory переводит участие в статус withdrawn. Если уходящий писатель
// держал активный ход, ход помечается пропущенным и ротация продолжается.
func (s *storyServiceImpl) SetPenName(ctx context.Context, storyID uuid.UUID, userID string, penName *string) error {
	writer, err := s.writerRepo.GetByStoryAndUser(ctx, s.db, storyID, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotAWriter
		}
		return err
	}
	if writer.Status != models.WriterStatusActive {
		return models.ErrNotAWriter
	}

	if penName != nil {
		sanitized := strings.TrimSpace(Sanitize(*penName))
		if sanitized == "" {
			return fmt.Errorf("%w: пустой псевдоним", models.ErrInvalidInput)
		}
		penName = &sanitized
	}

	if err := s.writerRepo.SetPenName(ctx, s.db, writer.ID, penName); err != nil {
		return err
	}
	s.logger.Info("Pen name updated",
		zap.String("storyID", storyID.String()), zap.String("userID", userID), zap.Bool("cleared", penName == nil))
	return nil
}

func (s *storyServiceImpl) LeaveStory(ctx context.Context, storyID uuid.UUID, userID string) error {
	var payloads []*messaging.NotificationPayload
	err := s.txHelper.WithTransaction(ctx, func(ctx context.Context, tx interfaces.DBTX) error {
		story, err := s.storyRepo.GetByIDForUpdate(ctx, tx, storyID)
		if err != nil {
			return err
		}

		writer, err := s.writerRepo.GetByStoryAndUser(ctx, tx, storyID, userID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return models.ErrNotAWriter
			}
			return err
		}
		if writer.Status != models.WriterStatusActive {
			return models.ErrNotAWriter
		}

		holdsActiveTurn := false
		var activeTurnID uuid.UUID
		turn, err := s.turnRepo.GetActiveByStory(ctx, tx, storyID)
		switch {
		case err == nil:
			holdsActiveTurn = turn.WriterID == writer.ID
			activeTurnID = turn.ID
		case errors.Is(err, models.ErrNoActiveTurn):
			// истории на паузе или без писателей
		default:
			return err
		}

		if err := s.writerRepo.UpdateStatus(ctx, tx, writer.ID, models.WriterStatusWithdrawn); err != nil {
			return err
		}

		payloads = append(payloads, s.announcement(story, configservice.KeyWriterLeft, map[string]string{
			"writer": writer.Name(),
			"story":  story.Title,
		}))

		if holdsActiveTurn && story.Status == models.StoryStatusActive {
			if err := s.turnService.EndTurn(ctx, tx, activeTurnID, models.TurnStatusSkipped); err != nil {
				return err
			}
			_, turnPayload, err := s.turnService.AdvanceTurn(ctx, tx, story)
			if err != nil {
				if errors.Is(err, models.ErrNoEligibleWriters) {
					// Последний писатель ушел: история остается без активного хода.
					s.logger.Warn("Story left without eligible writers", zap.String("storyID", storyID.String()))
					return nil
				}
				return err
			}
			payloads = append(payloads, turnPayload)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publishAll(ctx, payloads)
	return nil
}

// PauseStory останавливает активную историю. Текущий ход остается активным
// и продолжится после возобновления.
func (s *storyServiceImpl) PauseStory(ctx context.Context, storyID uuid.UUID) error {
	return s.txHelper.WithTransaction(ctx, func(ctx context.Context, tx interfaces.DBTX) error {
		story, err := s.storyRepo.GetByIDForUpdate(ctx, tx, storyID)
		if err != nil {
			return err
		}
		if story.Status == models.StoryStatusClosed {
			return models.ErrStoryClosed
		}
		if story.Status != models.StoryStatusActive {
			return models.ErrStoryNotActive
		}
		return s.storyRepo.UpdateStatus(ctx, tx, storyID, models.StoryStatusPaused)
	})
}

// CloseStory закрывает историю навсегда: из Closed обратного пути нет.
// Активный ход завершается со статусом Ended, канал блокируется best-effort.
func (s *storyServiceImpl) CloseStory(ctx context.Context, storyID uuid.UUID) error {
	var (
		story    *models.Story
		payloads []*messaging.NotificationPayload
	)
	err := s.txHelper.WithTransaction(ctx, func(ctx context.Context, tx interfaces.DBTX) error {
		var err error
		story, err = s.storyRepo.GetByIDForUpdate(ctx, tx, storyID)
		if err != nil {
			return err
		}
		if story.Status == models.StoryStatusClosed {
			return nil // уже закрыта, идемпотентность
		}

		turn, err := s.turnRepo.GetActiveByStory(ctx, tx, storyID)
		if err == nil {
			if err := s.turnService.EndTurn(ctx, tx, turn.ID, models.TurnStatusEnded); err != nil {
				return err
			}
		} else if !errors.Is(err, models.ErrNoActiveTurn) {
			return err
		}

		if err := s.storyRepo.UpdateStatus(ctx, tx, storyID, models.StoryStatusClosed); err != nil {
			return err
		}

		payloads = append(payloads, s.announcement(story, configservice.KeyStoryClosedNotice, map[string]string{
			"story": story.Title,
		}))
		return nil
	})
	if err != nil {
		return err
	}

	// Блокировка канала — best-effort: ошибка логируется и не отменяет закрытие.
	if story.ChannelID != "" {
		if err := s.messenger.LockChannel(ctx, story.ChannelID); err != nil {
			s.logger.Warn("Failed to lock channel of closed story",
				zap.String("storyID", storyID.String()), zap.String("channelID", story.ChannelID), zap.Error(err))
		}
	}
	s.publishAll(ctx, payloads)
	return nil
}

func (s *storyServiceImpl) CheckActivationDelay(ctx context.Context, storyID uuid.UUID) (*ActivationResult, error) {
	var (
		result   *ActivationResult
		payloads []*messaging.NotificationPayload
	)
	err := s.txHelper.WithTransaction(ctx, func(ctx context.Context, tx interfaces.DBTX) error {
		story, err := s.storyRepo.GetByIDForUpdate(ctx, tx, storyID)
		if err != nil {
			return err
		}
		result, err = s.checkActivationTx(ctx, tx, story, &payloads)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishAll(ctx, payloads)
	return result, nil
}

func (s *storyServiceImpl) GetStory(ctx context.Context, storyID uuid.UUID) (*StoryDetail, error) {
	story, err := s.storyRepo.GetByID(ctx, s.db, storyID)
	if err != nil {
		return nil, err
	}
	writers, err := s.writerRepo.ListActiveByStory(ctx, s.db, storyID)
	if err != nil {
		return nil, err
	}
	return &StoryDetail{Story: story, Writers: writers}, nil
}

// checkActivationTx проверяет условия отложенного старта внутри транзакции.
// Достаточно выполнения ЛЮБОГО из настроенных условий (порог писателей либо
// истекшие часы). Для неактивной-непаузной или уже активной истории — no-op.
func (s *storyServiceImpl) checkActivationTx(ctx context.Context, tx interfaces.DBTX, story *models.Story, payloads *[]*messaging.NotificationPayload) (*ActivationResult, error) {
	if story.Status != models.StoryStatusPaused {
		return &ActivationResult{Activated: false}, nil
	}

	result := &ActivationResult{}
	satisfied := false

	if story.DelayWriters != nil && *story.DelayWriters > 0 {
		count, err := s.writerRepo.CountActiveByStory(ctx, tx, story.ID)
		if err != nil {
			return nil, err
		}
		if count >= *story.DelayWriters {
			satisfied = true
		} else {
			remaining := *story.DelayWriters - count
			result.RemainingWriters = &remaining
		}
	}

	if !satisfied && story.DelayHours != nil && *story.DelayHours > 0 {
		deadline := story.CreatedAt.Add(time.Duration(*story.DelayHours) * time.Hour)
		now := time.Now().UTC()
		if !now.Before(deadline) {
			satisfied = true
		} else {
			remaining := math.Ceil(deadline.Sub(now).Hours()*100) / 100
			result.RemainingHours = &remaining
		}
	}

	if !story.HasActivationDelay() {
		// Пауза без условий активации снимается только вручную.
		return &ActivationResult{Activated: false}, nil
	}
	if !satisfied {
		return result, nil
	}

	if err := s.storyRepo.UpdateStatus(ctx, tx, story.ID, models.StoryStatusActive); err != nil {
		return nil, err
	}
	story.Status = models.StoryStatusActive

	// История, поставленная на паузу вручную после активации, сохраняет свой
	// активный ход. Возобновляем его вместо открытия нового.
	if _, err := s.turnRepo.GetActiveByStory(ctx, tx, story.ID); err == nil {
		s.logger.Info("Story resumed with its active turn", zap.String("storyID", story.ID.String()))
		return &ActivationResult{Activated: true}, nil
	} else if !errors.Is(err, models.ErrNoActiveTurn) {
		return nil, err
	}

	_, turnPayload, err := s.turnService.AdvanceTurn(ctx, tx, story)
	if err != nil {
		return nil, err
	}
	*payloads = append(*payloads,
		s.announcement(story, configservice.KeyStoryActivated, map[string]string{"story": story.Title}),
		turnPayload,
	)

	s.logger.Info("Story activated", zap.String("storyID", story.ID.String()))
	return &ActivationResult{Activated: true}, nil
}

// createWriterTx добавляет участие писателя. Если псевдоним не указан,
// подставляется последний известный псевдоним пользователя из других историй.
func (s *storyServiceImpl) createWriterTx(ctx context.Context, tx interfaces.DBTX, story *models.Story, params JoinStoryParams, now time.Time) (*models.Writer, error) {
	penName := params.PenName
	if penName == nil {
		lastKnown, err := s.writerRepo.LastKnownPenName(ctx, tx, params.UserID)
		if err != nil {
			return nil, err
		}
		penName = lastKnown
	}

	notifyPref := params.NotifyPref
	if notifyPref == "" {
		notifyPref = models.NotifyPreferenceDM
	}

	var turnOrder *int
	if story.Ordering == models.OrderingFixedOrder {
		count, err := s.writerRepo.CountActiveByStory(ctx, tx, story.ID)
		if err != nil {
			return nil, err
		}
		position := count + 1
		turnOrder = &position
	}

	writer := &models.Writer{
		ID:           uuid.New(),
		StoryID:      story.ID,
		UserID:       params.UserID,
		DisplayName:  Sanitize(params.DisplayName),
		PenName:      penName,
		PrivateTurns: params.PrivateTurns,
		NotifyPref:   notifyPref,
		Status:       models.WriterStatusActive,
		JoinedAt:     now,
		TurnOrder:    turnOrder,
	}
	if err := s.writerRepo.Create(ctx, tx, writer); err != nil {
		return nil, err
	}
	return writer, nil
}

func (s *storyServiceImpl) enqueueActivationJob(ctx context.Context, tx interfaces.DBTX, story *models.Story, now time.Time) error {
	payload, err := json.Marshal(models.StoryActivationPayload{StoryID: story.ID})
	if err != nil {
		return fmt.Errorf("ошибка маршалинга payload задачи активации: %w", err)
	}
	job := &models.ScheduledJob{
		ID:        uuid.New(),
		JobType:   models.JobTypeStoryActivation,
		Payload:   payload,
		RunAt:     now.Add(time.Duration(*story.DelayHours) * time.Hour),
		Status:    models.JobStatusPending,
		CreatedAt: now,
	}
	return s.jobRepo.Create(ctx, tx, job)
}

func (s *storyServiceImpl) announcement(story *models.Story, key string, vars map[string]string) *messaging.NotificationPayload {
	return &messaging.NotificationPayload{
		Kind:        messaging.NotificationKindAnnouncement,
		GuildID:     story.GuildID,
		StoryID:     story.ID.String(),
		ChannelID:   story.ChannelID,
		ChannelText: s.resolver.Text(story.GuildID, key, vars),
	}
}

// publishAll публикует собранные уведомления после коммита. Ошибки публикации
// логируются и глотаются: анонсы не должны ронять уже закоммиченную операцию.
func (s *storyServiceImpl) publishAll(ctx context.Context, payloads []*messaging.NotificationPayload) {
	for _, p := range payloads {
		if p == nil {
			continue
		}
		if err := s.publisher.PublishNotification(ctx, *p); err != nil {
			s.logger.Warn("Failed to publish notification",
				zap.String("kind", string(p.Kind)), zap.String("storyID", p.StoryID), zap.Error(err))
		}
	}
}
