package handler

import (
	"time"

	"storybot-server/internal/models"
)

// APIError представляет стандартизированный ответ об ошибке.
type APIError struct {
	Message string `json:"message"`
}

// CreateStoryRequest — тело запроса на создание истории.
type CreateStoryRequest struct {
	GuildID            string  `json:"guild_id" validate:"required"`
	CreatorUserID      string  `json:"creator_user_id" validate:"required"`
	CreatorDisplayName string  `json:"creator_display_name" validate:"required"`
	Title              string  `json:"title" validate:"required,max=200"`
	QuickMode          bool    `json:"quick_mode"`
	TurnLengthHours    int     `json:"turn_length_hours" validate:"required,min=1,max=720"`
	ReminderPercent    int     `json:"reminder_percent" validate:"oneof=0 25 50 75"`
	Ordering           string  `json:"ordering" validate:"required,oneof=random join_order fixed_order"`
	PrivateTurns       bool    `json:"private_turns"`
	AllowLateJoin      bool    `json:"allow_late_join"`
	MaxWriters         *int    `json:"max_writers" validate:"omitempty,min=2"`
	DelayHours         *int    `json:"delay_hours" validate:"omitempty,min=1"`
	DelayWriters       *int    `json:"delay_writers" validate:"omitempty,min=2"`
	PenName            *string `json:"pen_name" validate:"omitempty,max=100"`
	CreatorPrivate     bool    `json:"creator_private"`
	NotifyPref         string  `json:"notify_pref" validate:"omitempty,oneof=dm mention"`
}

// CreateStoryResponse — ответ на успешное создание истории.
type CreateStoryResponse struct {
	StoryID   string `json:"story_id"`
	ChannelID string `json:"channel_id"`
	Status    int    `json:"status"`
}

// JoinStoryRequest — тело запроса на вступление в историю.
type JoinStoryRequest struct {
	UserID       string  `json:"user_id" validate:"required"`
	DisplayName  string  `json:"display_name" validate:"required"`
	PenName      *string `json:"pen_name" validate:"omitempty,max=100"`
	PrivateTurns bool    `json:"private_turns"`
	NotifyPref   string  `json:"notify_pref" validate:"omitempty,oneof=dm mention"`
}

// SetPenNameRequest — тело запроса на смену псевдонима. Отсутствующий pen_name
// сбрасывает псевдоним.
type SetPenNameRequest struct {
	UserID  string  `json:"user_id" validate:"required"`
	PenName *string `json:"pen_name" validate:"omitempty,max=100"`
}

// UserActionRequest — тело запросов, где достаточно идентификатора пользователя.
type UserActionRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// SubmitEntryRequest — тело запроса на отправку текста в quick-режиме.
type SubmitEntryRequest struct {
	StoryID string `json:"story_id" validate:"required,uuid"`
	UserID  string `json:"user_id" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// SubmitEntryResponse — принятая на предпросмотр запись.
type SubmitEntryResponse struct {
	EntryID         string    `json:"entry_id"`
	Content         string    `json:"content"`
	PreviewDeadline time.Time `json:"preview_deadline"`
}

// WriterView — писатель в ответе GetStory.
type WriterView struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	PrivateTurns bool      `json:"private_turns"`
	NotifyPref   string    `json:"notify_pref"`
	JoinedAt     time.Time `json:"joined_at"`
	TurnOrder    *int      `json:"turn_order,omitempty"`
}

// StoryView — история в ответе GetStory.
type StoryView struct {
	ID              string       `json:"id"`
	GuildID         string       `json:"guild_id"`
	Title           string       `json:"title"`
	Status          int          `json:"status"`
	QuickMode       bool         `json:"quick_mode"`
	TurnLengthHours int          `json:"turn_length_hours"`
	ReminderPercent int          `json:"reminder_percent"`
	Ordering        string       `json:"ordering"`
	PrivateTurns    bool         `json:"private_turns"`
	AllowLateJoin   bool         `json:"allow_late_join"`
	MaxWriters      *int         `json:"max_writers,omitempty"`
	DelayHours      *int         `json:"delay_hours,omitempty"`
	DelayWriters    *int         `json:"delay_writers,omitempty"`
	ChannelID       string       `json:"channel_id"`
	CreatedAt       time.Time    `json:"created_at"`
	Writers         []WriterView `json:"writers"`
}

func toStoryView(story *models.Story, writers []*models.Writer) StoryView {
	view := StoryView{
		ID:              story.ID.String(),
		GuildID:         story.GuildID,
		Title:           story.Title,
		Status:          int(story.Status),
		QuickMode:       story.QuickMode,
		TurnLengthHours: story.TurnLengthHours,
		ReminderPercent: story.ReminderPercent,
		Ordering:        string(story.Ordering),
		PrivateTurns:    story.PrivateTurns,
		AllowLateJoin:   story.AllowLateJoin,
		MaxWriters:      story.MaxWriters,
		DelayHours:      story.DelayHours,
		DelayWriters:    story.DelayWriters,
		ChannelID:       story.ChannelID,
		CreatedAt:       story.CreatedAt,
		Writers:         make([]WriterView, 0, len(writers)),
	}
	for _, w := range writers {
		view.Writers = append(view.Writers, WriterView{
			ID:           w.ID.String(),
			UserID:       w.UserID,
			Name:         w.Name(),
			PrivateTurns: w.PrivateTurns,
			NotifyPref:   string(w.NotifyPref),
			JoinedAt:     w.JoinedAt,
			TurnOrder:    w.TurnOrder,
		})
	}
	return view
}
