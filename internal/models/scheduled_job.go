package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobType определяет тип отложенной задачи.
type JobType string

const (
	// JobTypeStoryActivation — отложенная проверка активации истории по времени.
	JobTypeStoryActivation JobType = "story_activation"
)

// JobStatus определяет статус отложенной задачи.
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRun     JobStatus = "run"
)

// ScheduledJob представляет отложенную задачу, которую заберет поллер по
// наступлении RunAt. Payload непрозрачен для планировщика.
type ScheduledJob struct {
	ID        uuid.UUID       `db:"id"`
	JobType   JobType         `db:"job_type"`
	Payload   json.RawMessage `db:"payload"`
	RunAt     time.Time       `db:"run_at"`
	Status    JobStatus       `db:"status"`
	CreatedAt time.Time       `db:"created_at"`
}

// StoryActivationPayload — полезная нагрузка задачи JobTypeStoryActivation.
type StoryActivationPayload struct {
	StoryID uuid.UUID `json:"storyId"`
}
