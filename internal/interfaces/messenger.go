package interfaces

import (
	"context"
	"time"
)

// SurfaceMessage — одно сообщение, прочитанное из канала/треда.
type SurfaceMessage struct {
	AuthorID string
	Content  string
	SentAt   time.Time
}

// Messenger — порт к внешнему мессенджеру (Discord-шлюзу). Ядро знает только
// идентификаторы каналов; рендеринг, транспорт и ретраи — забота шлюза.
//
// SendDirectMessage возвращает ошибку при недоставке: для закрытых DM это
// ожидаемое, обрабатываемое состояние, а не исключение.
type Messenger interface {
	// CreateChannel создает главный канал истории в гильдии и возвращает его ID.
	CreateChannel(ctx context.Context, guildID, name string) (string, error)

	// CreateThread создает тред хода внутри канала. private управляет видимостью;
	// для публичных тредов шлюз сам ограничивает право записи писателем и модераторами.
	CreateThread(ctx context.Context, channelID, title string, private bool, writerUserID string) (string, error)

	PostMessage(ctx context.Context, channelID, text string) error
	SendDirectMessage(ctx context.Context, userID, text string) error
	LockChannel(ctx context.Context, channelID string) error
	FetchRecentMessages(ctx context.Context, channelID string, limit int) ([]SurfaceMessage, error)
}
