package messaging

import "time"

// NotificationKind определяет тип исходящего сообщения.
type NotificationKind string

const (
	// NotificationKindTurn — уведомление писателя о начале его хода
	// (личное сообщение с откатом на упоминание в канале).
	NotificationKindTurn NotificationKind = "turn"
	// NotificationKindAnnouncement — best-effort анонс в канал истории.
	NotificationKindAnnouncement NotificationKind = "announcement"
)

// NotificationPayload — структура сообщения исходящей очереди уведомлений.
// Сервисы решают, ЧТО сказать; воркер доставки решает, КАК это доставить.
type NotificationPayload struct {
	Kind      NotificationKind `json:"kind"`
	GuildID   string           `json:"guildId"`
	StoryID   string           `json:"storyId"`
	ChannelID string           `json:"channelId"` // главный канал истории

	// Поля уведомления о ходе
	UserID      string `json:"userId,omitempty"`      // кому слать DM
	PreferDM    bool   `json:"preferDm,omitempty"`    // false: сразу упоминание в канале
	DirectText  string `json:"directText,omitempty"`  // текст личного сообщения
	ChannelText string `json:"channelText,omitempty"` // текст анонса/фоллбэка с упоминанием

	// Моменты для внешнего планировщика напоминаний. Напоминания здесь не
	// отправляются, только вычисляются.
	Deadline   *time.Time `json:"deadline,omitempty"`
	ReminderAt *time.Time `json:"reminderAt,omitempty"`
}
