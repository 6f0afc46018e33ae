package mocks

import (
	"context"
	"time"

	"storybot-server/internal/interfaces"
	"storybot-server/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// Mock StoryRepository
type StoryRepository struct {
	mock.Mock
}

func (m *StoryRepository) Create(ctx context.Context, querier interfaces.DBTX, story *models.Story) error {
	args := m.Called(ctx, querier, story)
	return args.Error(0)
}
func (m *StoryRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Story, error) {
	args := m.Called(ctx, querier, id)
	story, _ := args.Get(0).(*models.Story)
	return story, args.Error(1)
}
func (m *StoryRepository) GetByIDForUpdate(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Story, error) {
	args := m.Called(ctx, querier, id)
	story, _ := args.Get(0).(*models.Story)
	return story, args.Error(1)
}
func (m *StoryRepository) UpdateStatus(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, status models.StoryStatus) error {
	args := m.Called(ctx, querier, id, status)
	return args.Error(0)
}
func (m *StoryRepository) SetChannelID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, channelID string) error {
	args := m.Called(ctx, querier, id, channelID)
	return args.Error(0)
}

// Mock WriterRepository
type WriterRepository struct {
	mock.Mock
}

func (m *WriterRepository) Create(ctx context.Context, querier interfaces.DBTX, writer *models.Writer) error {
	args := m.Called(ctx, querier, writer)
	return args.Error(0)
}
func (m *WriterRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Writer, error) {
	args := m.Called(ctx, querier, id)
	writer, _ := args.Get(0).(*models.Writer)
	return writer, args.Error(1)
}
func (m *WriterRepository) GetByStoryAndUser(ctx context.Context, querier interfaces.DBTX, storyID uuid.UUID, userID string) (*models.Writer, error) {
	args := m.Called(ctx, querier, storyID, userID)
	writer, _ := args.Get(0).(*models.Writer)
	return writer, args.Error(1)
}
func (m *WriterRepository) ListActiveByStory(ctx context.Context, querier interfaces.DBTX, storyID uuid.UUID) ([]*models.Writer, error) {
	args := m.Called(ctx, querier, storyID)
	writers, _ := args.Get(0).([]*models.Writer)
	return writers, args.Error(1)
}
func (m *WriterRepository) CountActiveByStory(ctx context.Context, querier interfaces.DBTX, storyID uuid.UUID) (int, error) {
	args := m.Called(ctx, querier, storyID)
	return args.Int(0), args.Error(1)
}
func (m *WriterRepository) UpdateStatus(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, status models.WriterStatus) error {
	args := m.Called(ctx, querier, id, status)
	return args.Error(0)
}
func (m *WriterRepository) SetPenName(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, penName *string) error {
	args := m.Called(ctx, querier, id, penName)
	return args.Error(0)
}
func (m *WriterRepository) LastKnownPenName(ctx context.Context, querier interfaces.DBTX, userID string) (*string, error) {
	args := m.Called(ctx, querier, userID)
	penName, _ := args.Get(0).(*string)
	return penName, args.Error(1)
}

// Mock TurnRepository
type TurnRepository struct {
	mock.Mock
}

func (m *TurnRepository) Create(ctx context.Context, querier interfaces.DBTX, turn *models.Turn) error {
	args := m.Called(ctx, querier, turn)
	return args.Error(0)
}
func (m *TurnRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Turn, error) {
	args := m.Called(ctx, querier, id)
	turn, _ := args.Get(0).(*models.Turn)
	return turn, args.Error(1)
}
func (m *TurnRepository) GetActiveByStory(ctx context.Context, querier interfaces.DBTX, storyID uuid.UUID) (*models.Turn, error) {
	args := m.Called(ctx, querier, storyID)
	turn, _ := args.Get(0).(*models.Turn)
	return turn, args.Error(1)
}
func (m *TurnRepository) GetLatestByStory(ctx context.Context, querier interfaces.DBTX, storyID uuid.UUID) (*models.Turn, error) {
	args := m.Called(ctx, querier, storyID)
	turn, _ := args.Get(0).(*models.Turn)
	return turn, args.Error(1)
}
func (m *TurnRepository) Finish(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, status models.TurnStatus, endedAt time.Time) error {
	args := m.Called(ctx, querier, id, status, endedAt)
	return args.Error(0)
}
func (m *TurnRepository) CountByStory(ctx context.Context, querier interfaces.DBTX, storyID uuid.UUID) (int, error) {
	args := m.Called(ctx, querier, storyID)
	return args.Int(0), args.Error(1)
}

// Mock EntryRepository
type EntryRepository struct {
	mock.Mock
}

func (m *EntryRepository) Create(ctx context.Context, querier interfaces.DBTX, entry *models.Entry) error {
	args := m.Called(ctx, querier, entry)
	return args.Error(0)
}
func (m *EntryRepository) GetByID(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) (*models.Entry, error) {
	args := m.Called(ctx, querier, id)
	entry, _ := args.Get(0).(*models.Entry)
	return entry, args.Error(1)
}
func (m *EntryRepository) GetPendingByTurn(ctx context.Context, querier interfaces.DBTX, turnID uuid.UUID) (*models.Entry, error) {
	args := m.Called(ctx, querier, turnID)
	entry, _ := args.Get(0).(*models.Entry)
	return entry, args.Error(1)
}
func (m *EntryRepository) UpdateContent(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, content string) error {
	args := m.Called(ctx, querier, id, content)
	return args.Error(0)
}
func (m *EntryRepository) UpdateStatus(ctx context.Context, querier interfaces.DBTX, id uuid.UUID, status models.EntryStatus) error {
	args := m.Called(ctx, querier, id, status)
	return args.Error(0)
}
func (m *EntryRepository) NextPosition(ctx context.Context, querier interfaces.DBTX, turnID uuid.UUID) (int, error) {
	args := m.Called(ctx, querier, turnID)
	return args.Int(0), args.Error(1)
}

// Mock ScheduledJobRepository
type ScheduledJobRepository struct {
	mock.Mock
}

func (m *ScheduledJobRepository) Create(ctx context.Context, querier interfaces.DBTX, job *models.ScheduledJob) error {
	args := m.Called(ctx, querier, job)
	return args.Error(0)
}
func (m *ScheduledJobRepository) ClaimDue(ctx context.Context, querier interfaces.DBTX, now time.Time, limit int) ([]*models.ScheduledJob, error) {
	args := m.Called(ctx, querier, now, limit)
	jobs, _ := args.Get(0).([]*models.ScheduledJob)
	return jobs, args.Error(1)
}
func (m *ScheduledJobRepository) MarkRun(ctx context.Context, querier interfaces.DBTX, id uuid.UUID) error {
	args := m.Called(ctx, querier, id)
	return args.Error(0)
}

// Mock ConfigRepository
type ConfigRepository struct {
	mock.Mock
}

func (m *ConfigRepository) Get(ctx context.Context, querier interfaces.DBTX, guildID, lang, key string) (*models.DynamicConfig, error) {
	args := m.Called(ctx, querier, guildID, lang, key)
	cfg, _ := args.Get(0).(*models.DynamicConfig)
	return cfg, args.Error(1)
}
func (m *ConfigRepository) ListAll(ctx context.Context, querier interfaces.DBTX) ([]*models.DynamicConfig, error) {
	args := m.Called(ctx, querier)
	cfgs, _ := args.Get(0).([]*models.DynamicConfig)
	return cfgs, args.Error(1)
}
func (m *ConfigRepository) Upsert(ctx context.Context, querier interfaces.DBTX, cfg *models.DynamicConfig) error {
	args := m.Called(ctx, querier, cfg)
	return args.Error(0)
}
