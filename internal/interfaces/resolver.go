package interfaces

// TextResolver резолвит ключ конфигурации в строку для конкретной гильдии,
// с откатом на системное значение по умолчанию. Никогда не возвращает ошибку:
// если ключ неизвестен вовсе, возвращается сам ключ.
type TextResolver interface {
	Resolve(guildID, key string) string

	// Text резолвит ключ и подставляет значения в плейсхолдеры вида {name}.
	Text(guildID, key string, vars map[string]string) string
}
