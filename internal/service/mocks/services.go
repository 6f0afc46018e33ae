package mocks

import (
	"context"

	"storybot-server/internal/models"
	"storybot-server/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// Mock StoryService
type StoryService struct {
	mock.Mock
}

func (m *StoryService) CreateStory(ctx context.Context, params service.CreateStoryParams) (*service.CreateStoryResult, error) {
	args := m.Called(ctx, params)
	result, _ := args.Get(0).(*service.CreateStoryResult)
	return result, args.Error(1)
}
func (m *StoryService) JoinStory(ctx context.Context, params service.JoinStoryParams) (*models.Writer, error) {
	args := m.Called(ctx, params)
	writer, _ := args.Get(0).(*models.Writer)
	return writer, args.Error(1)
}
func (m *StoryService) LeaveStory(ctx context.Context, storyID uuid.UUID, userID string) error {
	args := m.Called(ctx, storyID, userID)
	return args.Error(0)
}
func (m *StoryService) PauseStory(ctx context.Context, storyID uuid.UUID) error {
	args := m.Called(ctx, storyID)
	return args.Error(0)
}
func (m *StoryService) CloseStory(ctx context.Context, storyID uuid.UUID) error {
	args := m.Called(ctx, storyID)
	return args.Error(0)
}
func (m *StoryService) SetPenName(ctx context.Context, storyID uuid.UUID, userID string, penName *string) error {
	args := m.Called(ctx, storyID, userID, penName)
	return args.Error(0)
}
func (m *StoryService) CheckActivationDelay(ctx context.Context, storyID uuid.UUID) (*service.ActivationResult, error) {
	args := m.Called(ctx, storyID)
	result, _ := args.Get(0).(*service.ActivationResult)
	return result, args.Error(1)
}
func (m *StoryService) GetStory(ctx context.Context, storyID uuid.UUID) (*service.StoryDetail, error) {
	args := m.Called(ctx, storyID)
	detail, _ := args.Get(0).(*service.StoryDetail)
	return detail, args.Error(1)
}

// Mock EntryService
type EntryService struct {
	mock.Mock
}

func (m *EntryService) SubmitEntry(ctx context.Context, storyID uuid.UUID, userID, content string) (*service.SubmitEntryResult, error) {
	args := m.Called(ctx, storyID, userID, content)
	result, _ := args.Get(0).(*service.SubmitEntryResult)
	return result, args.Error(1)
}
func (m *EntryService) ConfirmEntry(ctx context.Context, entryID uuid.UUID) error {
	args := m.Called(ctx, entryID)
	return args.Error(0)
}
func (m *EntryService) DiscardEntry(ctx context.Context, entryID uuid.UUID) error {
	args := m.Called(ctx, entryID)
	return args.Error(0)
}
func (m *EntryService) SkipTurn(ctx context.Context, storyID uuid.UUID) error {
	args := m.Called(ctx, storyID)
	return args.Error(0)
}
func (m *EntryService) FinalizeTurn(ctx context.Context, storyID uuid.UUID) error {
	args := m.Called(ctx, storyID)
	return args.Error(0)
}
