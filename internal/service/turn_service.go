package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"storybot-server/internal/configservice"
	"storybot-server/internal/interfaces"
	"storybot-server/internal/messaging"
	"storybot-server/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TurnService определяет бизнес-логику жизненного цикла ходов.
// Методы работают внутри транзакции вызывающего кода: ровно один активный ход
// на историю гарантируется связкой check-then-insert под FOR UPDATE истории
// и частичным уникальным индексом в схеме.
type TurnService interface {
	// StartTurn открывает ход писателя. Возвращает созданный ход и уведомление,
	// которое вызывающий код публикует ПОСЛЕ коммита транзакции.
	StartTurn(ctx context.Context, tx interfaces.DBTX, story *models.Story, writerID uuid.UUID, isFirstTurn bool) (*models.Turn, *messaging.NotificationPayload, error)

	// EndTurn переводит активный ход в конечный статус.
	EndTurn(ctx context.Context, tx interfaces.DBTX, turnID uuid.UUID, status models.TurnStatus) error

	// AdvanceTurn выбирает следующего писателя и открывает его ход.
	AdvanceTurn(ctx context.Context, tx interfaces.DBTX, story *models.Story) (*models.Turn, *messaging.NotificationPayload, error)
}

type turnServiceImpl struct {
	writerRepo interfaces.WriterRepository
	turnRepo   interfaces.TurnRepository
	selector   *WriterSelector
	messenger  interfaces.Messenger
	resolver   interfaces.TextResolver
	logger     *zap.Logger
}

// NewTurnService создает сервис ходов.
func NewTurnService(
	writerRepo interfaces.WriterRepository,
	turnRepo interfaces.TurnRepository,
	selector *WriterSelector,
	messenger interfaces.Messenger,
	resolver interfaces.TextResolver,
	logger *zap.Logger,
) TurnService {
	return &turnServiceImpl{
		writerRepo: writerRepo,
		turnRepo:   turnRepo,
		selector:   selector,
		messenger:  messenger,
		resolver:   resolver,
		logger:     logger.Named("TurnService"),
	}
}

func (s *turnServiceImpl) StartTurn(ctx context.Context, tx interfaces.DBTX, story *models.Story, writerID uuid.UUID, isFirstTurn bool) (*models.Turn, *messaging.NotificationPayload, error) {
	logFields := []zap.Field{zap.String("storyID", story.ID.String()), zap.String("writerID", writerID.String())}

	// Транзакционная защита инварианта: проверка активного хода и вставка нового
	// обязаны идти в одной транзакции.
	_, err := s.turnRepo.GetActiveByStory(ctx, tx, story.ID)
	if err == nil {
		s.logger.Warn("Attempt to start a turn while another is active", logFields...)
		return nil, nil, models.ErrTurnAlreadyActive
	}
	if !errors.Is(err, models.ErrNoActiveTurn) {
		return nil, nil, fmt.Errorf("ошибка проверки активного хода: %w", err)
	}

	writer, err := s.writerRepo.GetByID(ctx, tx, writerID)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка получения писателя для хода: %w", err)
	}

	turnCount, err := s.turnRepo.CountByStory(ctx, tx, story.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка получения номера хода: %w", err)
	}
	turnNumber := turnCount + 1

	now := time.Now().UTC()
	turn := &models.Turn{
		ID:        uuid.New(),
		StoryID:   story.ID,
		WriterID:  writer.ID,
		StartedAt: now,
		Status:    models.TurnStatusActive,
	}
	deadline := turn.Deadline(story.TurnLengthHours)

	// В quick-режиме отдельная поверхность не создается: писатель получает DM,
	// а в канал истории уходит анонс.
	if !story.QuickMode {
		title := s.resolver.Text(story.GuildID, configservice.KeyTurnThreadTitle, map[string]string{
			"story":    story.Title,
			"turn":     strconv.Itoa(turnNumber),
			"writer":   writer.Name(),
			"deadline": deadline.Format("2006-01-02 15:04 MST"),
		})
		private := story.PrivateTurns || writer.PrivateTurns
		threadID, err := s.messenger.CreateThread(ctx, story.ChannelID, title, private, writer.UserID)
		if err != nil {
			s.logger.Error("Failed to create turn thread", append(logFields, zap.Error(err))...)
			return nil, nil, fmt.Errorf("ошибка создания треда хода: %w", err)
		}
		turn.ThreadID = &threadID
	}

	if err := s.turnRepo.Create(ctx, tx, turn); err != nil {
		return nil, nil, err
	}

	s.logger.Info("Turn started",
		append(logFields, zap.String("turnID", turn.ID.String()), zap.Int("turnNumber", turnNumber), zap.Bool("first", isFirstTurn))...)

	payload := s.buildTurnNotification(story, writer, turn, turnNumber, deadline)
	return turn, payload, nil
}

func (s *turnServiceImpl) EndTurn(ctx context.Context, tx interfaces.DBTX, turnID uuid.UUID, status models.TurnStatus) error {
	if status == models.TurnStatusActive {
		return fmt.Errorf("%w: недопустимый конечный статус хода", models.ErrInvalidInput)
	}
	return s.turnRepo.Finish(ctx, tx, turnID, status, time.Now().UTC())
}

func (s *turnServiceImpl) AdvanceTurn(ctx context.Context, tx interfaces.DBTX, story *models.Story) (*models.Turn, *messaging.NotificationPayload, error) {
	nextWriterID, err := s.selector.PickNextWriter(ctx, tx, story)
	if err != nil {
		return nil, nil, err
	}
	return s.StartTurn(ctx, tx, story, nextWriterID, false)
}

// buildTurnNotification собирает исходящее уведомление о начале хода.
// Доставка (DM с откатом на упоминание) — забота воркера доставки.
func (s *turnServiceImpl) buildTurnNotification(story *models.Story, writer *models.Writer, turn *models.Turn, turnNumber int, deadline time.Time) *messaging.NotificationPayload {
	vars := map[string]string{
		"story":    story.Title,
		"turn":     strconv.Itoa(turnNumber),
		"writer":   writer.Name(),
		"mention":  "<@" + writer.UserID + ">",
		"deadline": deadline.Format("2006-01-02 15:04 MST"),
	}
	if turn.ThreadID != nil {
		vars["thread"] = "<#" + *turn.ThreadID + ">"
	} else {
		vars["thread"] = ""
	}

	return &messaging.NotificationPayload{
		Kind:        messaging.NotificationKindTurn,
		GuildID:     story.GuildID,
		StoryID:     story.ID.String(),
		ChannelID:   story.ChannelID,
		UserID:      writer.UserID,
		PreferDM:    writer.NotifyPref == models.NotifyPreferenceDM,
		DirectText:  s.resolver.Text(story.GuildID, configservice.KeyTurnDMNotice, vars),
		ChannelText: s.resolver.Text(story.GuildID, configservice.KeyTurnMentionNotice, vars),
		Deadline:    &deadline,
		ReminderAt:  turn.ReminderAt(story.TurnLengthHours, story.ReminderPercent),
	}
}
