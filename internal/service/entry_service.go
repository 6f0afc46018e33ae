package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storybot-server/internal/configservice"
	"storybot-server/internal/interfaces"
	"storybot-server/internal/messaging"
	"storybot-server/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubmitEntryResult — принятая на предпросмотр запись и срок, до которого
// подсказывается ее подтвердить. Срок чисто информационный, по его истечении
// запись не удаляется.
type SubmitEntryResult struct {
	Entry           *models.Entry
	PreviewDeadline time.Time
}

// EntryService определяет бизнес-логику записей и завершения ходов.
type EntryService interface {
	// SubmitEntry принимает текст писателя в quick-режиме. Повторная отправка
	// до подтверждения перезаписывает ожидающую запись.
	SubmitEntry(ctx context.Context, storyID uuid.UUID, userID, content string) (*SubmitEntryResult, error)

	// ConfirmEntry подтверждает ожидающую запись, завершает ход и передает его дальше.
	ConfirmEntry(ctx context.Context, entryID uuid.UUID) error

	// DiscardEntry отклоняет ожидающую запись. Ход остается активным.
	DiscardEntry(ctx context.Context, entryID uuid.UUID) error

	// SkipTurn принудительно пропускает активный ход истории и передает его дальше.
	SkipTurn(ctx context.Context, storyID uuid.UUID) error

	// FinalizeTurn завершает ход обычного (тредового) режима: собирает сообщения
	// писателя из треда хода в подтвержденную запись и передает ход дальше.
	FinalizeTurn(ctx context.Context, storyID uuid.UUID) error
}

type entryServiceImpl struct {
	txHelper          interfaces.Transactor
	storyRepo         interfaces.StoryRepository
	writerRepo        interfaces.WriterRepository
	turnRepo          interfaces.TurnRepository
	entryRepo         interfaces.EntryRepository
	turnService       TurnService
	messenger         interfaces.Messenger
	resolver          interfaces.TextResolver
	publisher         messaging.NotificationPublisher
	previewTimeout    time.Duration
	finalizeFetchSize int
	logger            *zap.Logger
}

// NewEntryService создает сервис записей.
func NewEntryService(
	txHelper interfaces.Transactor,
	storyRepo interfaces.StoryRepository,
	writerRepo interfaces.WriterRepository,
	turnRepo interfaces.TurnRepository,
	entryRepo interfaces.EntryRepository,
	turnService TurnService,
	messenger interfaces.Messenger,
	resolver interfaces.TextResolver,
	publisher messaging.NotificationPublisher,
	previewTimeout time.Duration,
	finalizeFetchSize int,
	logger *zap.Logger,
) EntryService {
	return &entryServiceImpl{
		txHelper:          txHelper,
		storyRepo:         storyRepo,
		writerRepo:        writerRepo,
		turnRepo:          turnRepo,
		entryRepo:         entryRepo,
		turnService:       turnService,
		messenger:         messenger,
		resolver:          resolver,
		publisher:         publisher,
		previewTimeout:    previewTimeout,
		finalizeFetchSize: finalizeFetchSize,
		logger:            logger.Named("EntryService"),
	}
}

func (s *entryServiceImpl) SubmitEntry(ctx context.Context, storyID uuid.UUID, userID, content string) (*SubmitEntryResult, error) {
	content = strings.TrimSpace(Sanitize(content))
	if content == "" {
		return nil, fmt.Errorf("%w: пустой текст записи", models.ErrInvalidInput)
	}

	var entry *models.Entry
	err := s.txHelper.WithTransaction(ctx, func(ctx context.Context, tx interfaces.DBTX) error {
		story, turn, err := s.activeTurnForUser(ctx, tx, storyID, userID)
		if err != nil {
			return err
		}
		if !story.QuickMode {
			// В тредовом режиме писатель пишет прямо в тред, команда отправки не нужна.
			return models.ErrNotQuickMode
		}

		now := time.Now().UTC()
		pending, err := s.entryRepo.GetPendingByTurn(ctx, tx, turn.ID)
		switch {
		case err == nil:
			// Повторная отправка: перезаписываем содержимое, позиция сохраняется.
			if err := s.entryRepo.UpdateContent(ctx, tx, pending.ID, content); err != nil {
				return err
			}
			pending.Content = content
			pending.UpdatedAt = now
			entry = pending
			return nil
		case errors.Is(err, models.ErrEntryNotFound):
			position, err := s.entryRepo.NextPosition(ctx, tx, turn.ID)
			if err != nil {
				return err
			}
			entry = &models.Entry{
				ID:        uuid.New(),
				TurnID:    turn.ID,
				Content:   content,
				Status:    models.EntryStatusPending,
				Position:  position,
				CreatedAt: now,
				UpdatedAt: now,
			}
			return s.entryRepo.Create(ctx, tx, entry)
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	return &SubmitEntryResult{
		Entry:           entry,
		PreviewDeadline: entry.UpdatedAt.Add(s.previewTimeout),
	}, nil
}

func (s *entryServiceImpl) ConfirmEntry(ctx context.Context, entryID uuid.UUID) error {
	var payloads []*messaging.NotificationPayload
	err := s.txHelper.WithTransaction(ctx, func(ctx context.Context, tx interfaces.DBTX) error {
		entry, err := s.entryRepo.GetByID(ctx, tx, entryID)
		if err != nil {
			return err
		}
		if entry.Status != models.EntryStatusPending {
			return models.ErrEntryNotPending
		}

		turn, err := s.turnRepo.GetByID(ctx, tx, entry.TurnID)
		if err != nil {
			return err
		}
		story, err := s.storyRepo.GetByIDForUpdate(ctx, tx, turn.StoryID)
		if err != nil {
			return err
		}

		if err := s.entryRepo.UpdateStatus(ctx, tx, entry.ID, models.EntryStatusConfirmed); err != nil {
			return err
		}
		if err := s.turnService.EndTurn(ctx, tx, turn.ID, models.TurnStatusCompleted); err != nil {
			return err
		}

		writer, err := s.writerRepo.GetByID(ctx, tx, turn.WriterID)
		if err != nil {
			return err
		}
		payloads = append(payloads, &messaging.NotificationPayload{
			Kind:      messaging.NotificationKindAnnouncement,
			GuildID:   story.GuildID,
			StoryID:   story.ID.String(),
			ChannelID: story.ChannelID,
			ChannelText: s.resolver.Text(story.GuildID, configservice.KeyEntryConfirmed, map[string]string{
				"writer": writer.Name(),
				"story":  story.Title,
				"text":   entry.Content,
			}),
		})

		return s.advance(ctx, tx, story, &payloads)
	})
	if err != nil {
		return err
	}

	s.publishAll(ctx, payloads)
	return nil
}

func (s *entryServiceImpl) DiscardEntry(ctx context.Context, entryID uuid.UUID) error {
	return s.txHelper.WithTransaction(ctx, func(ctx context.Context, tx interfaces.DBTX) error {
		entry, err := s.entryRepo.GetByID(ctx, tx, entryID)
		if err != nil {
			return err
		}
		if entry.Status != models.EntryStatusPending {
			return models.ErrEntryNotPending
		}
		// Ход остается активным: писатель может прислать новый вариант.
		return s.entryRepo.UpdateStatus(ctx, tx, entry.ID, models.EntryStatusDiscarded)
	})
}

func (s *entryServiceImpl) SkipTurn(ctx context.Context, storyID uuid.UUID) error {
	var payloads []*messaging.NotificationPayload
	err := s.txHelper.WithTransaction(ctx, func(ctx context.Context, tx interfaces.DBTX) error {
		story, err := s.storyRepo.GetByIDForUpdate(ctx, tx, storyID)
		if err != nil {
			return err
		}
		if story.Status != models.StoryStatusActive {
			return models.ErrStoryNotActive
		}
		turn, err := s.turnRepo.GetActiveByStory(ctx, tx, storyID)
		if err != nil {
			return err
		}

		// Незакрытая pending-запись пропущенного хода отклоняется.
		pending, err := s.entryRepo.GetPendingByTurn(ctx, tx, turn.ID)
		if err == nil {
			if err := s.entryRepo.UpdateStatus(ctx, tx, pending.ID, models.EntryStatusDiscarded); err != nil {
				return err
			}
		} else if !errors.Is(err, models.ErrEntryNotFound) {
			return err
		}

		if err := s.turnService.EndTurn(ctx, tx, turn.ID, models.TurnStatusSkipped); err != nil {
			return err
		}

		writer, err := s.writerRepo.GetByID(ctx, tx, turn.WriterID)
		if err != nil {
			return err
		}
		payloads = append(payloads, &messaging.NotificationPayload{
			Kind:      messaging.NotificationKindAnnouncement,
			GuildID:   story.GuildID,
			StoryID:   story.ID.String(),
			ChannelID: story.ChannelID,
			ChannelText: s.resolver.Text(story.GuildID, configservice.KeyTurnSkippedNotice, map[string]string{
				"writer": writer.Name(),
				"story":  story.Title,
			}),
		})

		return s.advance(ctx, tx, story, &payloads)
	})
	if err != nil {
		return err
	}

	s.publishAll(ctx, payloads)
	return nil
}

func (s *entryServiceImpl) FinalizeTurn(ctx context.Context, storyID uuid.UUID) error {
	var payloads []*messaging.NotificationPayload
	err := s.txHelper.WithTransaction(ctx, func(ctx context.Context, tx interfaces.DBTX) error {
		story, err := s.storyRepo.GetByIDForUpdate(ctx, tx, storyID)
		if err != nil {
			return err
		}
		if story.Status != models.StoryStatusActive {
			return models.ErrStoryNotActive
		}
		if story.QuickMode {
			return models.ErrQuickModeStory
		}
		turn, err := s.turnRepo.GetActiveByStory(ctx, tx, storyID)
		if err != nil {
			return err
		}
		if turn.ThreadID == nil {
			return fmt.Errorf("%w: у активного хода нет треда", models.ErrInternalServer)
		}

		writer, err := s.writerRepo.GetByID(ctx, tx, turn.WriterID)
		if err != nil {
			return err
		}

		content, err := s.collectThreadContent(ctx, *turn.ThreadID, writer.UserID)
		if err != nil {
			return err
		}
		if content != "" {
			position, err := s.entryRepo.NextPosition(ctx, tx, turn.ID)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			entry := &models.Entry{
				ID:        uuid.New(),
				TurnID:    turn.ID,
				Content:   content,
				Status:    models.EntryStatusConfirmed,
				Position:  position,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.entryRepo.Create(ctx, tx, entry); err != nil {
				return err
			}
		} else {
			s.logger.Info("Turn finalized with empty thread content",
				zap.String("storyID", storyID.String()), zap.String("turnID", turn.ID.String()))
		}

		if err := s.turnService.EndTurn(ctx, tx, turn.ID, models.TurnStatusCompleted); err != nil {
			return err
		}
		return s.advance(ctx, tx, story, &payloads)
	})
	if err != nil {
		return err
	}

	s.publishAll(ctx, payloads)
	return nil
}

// activeTurnForUser проверяет, что пользователь — активный писатель истории
// и держатель ее текущего хода.
func (s *entryServiceImpl) activeTurnForUser(ctx context.Context, tx interfaces.DBTX, storyID uuid.UUID, userID string) (*models.Story, *models.Turn, error) {
	story, err := s.storyRepo.GetByIDForUpdate(ctx, tx, storyID)
	if err != nil {
		return nil, nil, err
	}
	if story.Status == models.StoryStatusClosed {
		return nil, nil, models.ErrStoryClosed
	}
	if story.Status != models.StoryStatusActive {
		return nil, nil, models.ErrStoryNotActive
	}

	writer, err := s.writerRepo.GetByStoryAndUser(ctx, tx, storyID, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, models.ErrNotAWriter
		}
		return nil, nil, err
	}
	if writer.Status != models.WriterStatusActive {
		return nil, nil, models.ErrNotAWriter
	}

	turn, err := s.turnRepo.GetActiveByStory(ctx, tx, storyID)
	if err != nil {
		return nil, nil, err
	}
	if turn.WriterID != writer.ID {
		return nil, nil, models.ErrNotYourTurn
	}
	return story, turn, nil
}

// collectThreadContent читает недавние сообщения треда и склеивает сообщения
// писателя в один текст в хронологическом порядке.
func (s *entryServiceImpl) collectThreadContent(ctx context.Context, threadID, writerUserID string) (string, error) {
	messages, err := s.messenger.FetchRecentMessages(ctx, threadID, s.finalizeFetchSize)
	if err != nil {
		return "", fmt.Errorf("ошибка чтения сообщений треда %s: %w", threadID, err)
	}

	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.AuthorID != writerUserID {
			continue
		}
		if text := strings.TrimSpace(m.Content); text != "" {
			parts = append(parts, text)
		}
	}
	return Sanitize(strings.Join(parts, "\n\n")), nil
}

// advance передает ход следующему писателю. Отсутствие кандидатов не считается
// ошибкой операции: история просто остается без активного хода.
func (s *entryServiceImpl) advance(ctx context.Context, tx interfaces.DBTX, story *models.Story, payloads *[]*messaging.NotificationPayload) error {
	_, turnPayload, err := s.turnService.AdvanceTurn(ctx, tx, story)
	if err != nil {
		if errors.Is(err, models.ErrNoEligibleWriters) {
			s.logger.Warn("No eligible writers to advance turn", zap.String("storyID", story.ID.String()))
			return nil
		}
		return err
	}
	*payloads = append(*payloads, turnPayload)
	return nil
}

func (s *entryServiceImpl) publishAll(ctx context.Context, payloads []*messaging.NotificationPayload) {
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
