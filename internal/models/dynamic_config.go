package models

import "time"

// DynamicConfig представляет одну строку конфигурации текстов/настроек.
// Строки с пустым GuildID являются системными значениями по умолчанию
// на языке по умолчанию; строки гильдии записаны на языке гильдии.
type DynamicConfig struct {
	GuildID   string    `db:"guild_id"`
	Lang      string    `db:"lang"`
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}
