package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"storybot-server/internal/interfaces"
	"storybot-server/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WriterSelector реализует политику выбора следующего писателя. Чистая функция
// от персистентного состояния: читает тип ротации истории, писателя последнего
// хода и список активных участников.
type WriterSelector struct {
	writerRepo interfaces.WriterRepository
	turnRepo   interfaces.TurnRepository
	logger     *zap.Logger

	// intn подменяется в тестах для детерминированной случайной выборки.
	intn func(n int) int
}

// NewWriterSelector создает селектор писателей.
func NewWriterSelector(writerRepo interfaces.WriterRepository, turnRepo interfaces.TurnRepository, logger *zap.Logger) *WriterSelector {
	return &WriterSelector{
		writerRepo: writerRepo,
		turnRepo:   turnRepo,
		logger:     logger.Named("WriterSelector"),
		intn:       rand.Intn,
	}
}

// PickNextWriter возвращает ID участия писателя, который должен ходить следующим.
//
// Для join_order/fixed_order выбор детерминирован: повторные вызовы при
// неизменном составе писателей возвращают один и тот же результат. Для random
// текущий писатель исключается из кандидатов; если после исключения кандидатов
// не осталось (история с одним писателем), текущий писатель возвращается снова,
// чтобы ротация не встала намертво.
func (s *WriterSelector) PickNextWriter(ctx context.Context, querier interfaces.DBTX, story *models.Story) (uuid.UUID, error) {
	writers, err := s.writerRepo.ListActiveByStory(ctx, querier, story.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("ошибка получения писателей для выбора хода: %w", err)
	}
	if len(writers) == 0 {
		return uuid.Nil, models.ErrNoEligibleWriters
	}

	// Точка отсчета ротации — последний ход независимо от статуса: при
	// подтверждении или пропуске текущий ход завершается в той же транзакции,
	// и активного хода в этот момент уже нет.
	var currentID uuid.UUID
	current, err := s.turnRepo.GetLatestByStory(ctx, querier, story.ID)
	switch {
	case err == nil:
		currentID = current.WriterID
	case errors.Is(err, models.ErrNotFound):
		// Ходов еще не было: первый ход получает первый вступивший.
		return writers[0].ID, nil
	default:
		return uuid.Nil, fmt.Errorf("ошибка получения последнего хода для выбора: %w", err)
	}

	switch story.Ordering {
	case models.OrderingRandom:
		return s.pickRandom(writers, currentID), nil
	case models.OrderingFixedOrder:
		sortByFixedOrder(writers)
		return pickAfter(writers, currentID), nil
	default: // join_order; список уже отсортирован по времени вступления
		return pickAfter(writers, currentID), nil
	}
}

func (s *WriterSelector) pickRandom(writers []*models.Writer, currentID uuid.UUID) uuid.UUID {
	candidates := make([]*models.Writer, 0, len(writers))
	for _, w := range writers {
		if w.ID != currentID {
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		// Единственный писатель: возвращаем его же вместо ошибки.
		s.logger.Debug("Random selection fell back to sole writer", zap.String("writerID", currentID.String()))
		return currentID
	}
	return candidates[s.intn(len(candidates))].ID
}

// pickAfter возвращает писателя, стоящего в отсортированной последовательности
// сразу после текущего, с циклическим переходом через конец списка. Если
// текущий писатель покинул историю, ротация продолжается с начала списка.
func pickAfter(writers []*models.Writer, currentID uuid.UUID) uuid.UUID {
	for i, w := range writers {
		if w.ID == currentID {
			return writers[(i+1)%len(writers)].ID
		}
	}
	return writers[0].ID
}

// sortByFixedOrder сортирует писателей по явной позиции; писатели без позиции
// идут после всех в порядке вступления.
func sortByFixedOrder(writers []*models.Writer) {
	sort.SliceStable(writers, func(i, j int) bool {
		oi, oj := writers[i].TurnOrder, writers[j].TurnOrder
		switch {
		case oi != nil && oj != nil:
			return *oi < *oj
		case oi != nil:
			return true
		default:
			return false
		}
	})
}
