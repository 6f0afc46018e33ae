package configservice

import (
	"context"
	"strings"
	"sync"

	"storybot-server/internal/interfaces"

	"go.uber.org/zap"
)

// Ключи текстов, используемые движком. Значения лежат в таблице config и
// редактируются администраторами гильдий; системные дефолты загружаются миграцией.
const (
	KeyTurnThreadTitle    = "txtTurnThreadTitle"   // заголовок треда хода
	KeyTurnDMNotice       = "txtTurnDMNotice"      // личное уведомление о начале хода
	KeyTurnMentionNotice  = "txtTurnMentionNotice" // анонс с упоминанием в канале истории
	KeyTurnSkippedNotice  = "txtTurnSkippedNotice" // анонс о пропуске хода
	KeyStoryActivated     = "txtStoryActivated"    // анонс активации истории
	KeyStoryClosedNotice  = "txtStoryClosedNotice" // анонс закрытия истории
	KeyWriterJoined       = "txtWriterJoined"      // анонс вступления писателя
	KeyWriterLeft         = "txtWriterLeft"        // анонс выхода писателя
	KeyEntryConfirmed     = "txtEntryConfirmed"    // публикация подтвержденного текста
	KeyCreateFailed       = "errCreateFailed"      // общая ошибка создания истории
	KeyStoryClosedError   = "errStoryClosed"
	KeyNotYourTurnError   = "errNotYourTurn"
	KeyAlreadyJoinedError = "errAlreadyJoined"
	KeyStoryFullError     = "errStoryFull"
)

// Compile-time check
var _ interfaces.TextResolver = (*Resolver)(nil)

// Resolver управляет строками конфигурации, загруженными из БД, и обеспечивает
// потокобезопасный доступ к ним. Разрешение идет в два шага: строка гильдии
// (записанная на языке гильдии), затем системный дефолт на языке по умолчанию.
type Resolver struct {
	logger      *zap.Logger
	repo        interfaces.ConfigRepository
	db          interfaces.DBTX
	defaultLang string

	mu     sync.RWMutex
	guild  map[string]map[string]string // guild_id -> key -> value
	system map[string]string            // key -> value (guild_id = '', lang = defaultLang)
}

// NewResolver создает резолвер и загружает начальный кэш из БД.
// Ошибка загрузки при старте считается критичной.
func NewResolver(repo interfaces.ConfigRepository, db interfaces.DBTX, defaultLang string, logger *zap.Logger) (*Resolver, error) {
	r := &Resolver{
		logger:      logger.Named("TextResolver"),
		repo:        repo,
		db:          db,
		defaultLang: defaultLang,
		guild:       make(map[string]map[string]string),
		system:      make(map[string]string),
	}

	r.logger.Info("Загрузка строк конфигурации...")
	if err := r.Reload(context.Background()); err != nil {
		r.logger.Error("Не удалось загрузить строки конфигурации", zap.Error(err))
		return nil, err
	}
	return r, nil
}

// Reload перечитывает все строки конфигурации из БД в кэш.
func (r *Resolver) Reload(ctx context.Context) error {
	configs, err := r.repo.ListAll(ctx, r.db)
	if err != nil {
		return err
	}

	guild := make(map[string]map[string]string)
	system := make(map[string]string)
	for _, cfg := range configs {
		if cfg.GuildID == "" {
			if cfg.Lang == r.defaultLang {
				system[cfg.Key] = cfg.Value
			}
			continue
		}
		m, ok := guild[cfg.GuildID]
		if !ok {
			m = make(map[string]string)
			guild[cfg.GuildID] = m
		}
		m[cfg.Key] = cfg.Value
	}

	r.mu.Lock()
	r.guild = guild
	r.system = system
	r.mu.Unlock()

	r.logger.Info("Строки конфигурации загружены",
		zap.Int("guilds", len(guild)), zap.Int("systemKeys", len(system)))
	return nil
}

// Resolve возвращает значение ключа для гильдии, откатываясь на системный
// дефолт. Если ключ не найден нигде, возвращается сам ключ: вызывающий код
// всегда получает хоть какую-то строку для показа.
func (r *Resolver) Resolve(guildID, key string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if m, ok := r.guild[guildID]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if v, ok := r.system[key]; ok {
		return v
	}
	r.logger.Warn("Config key not resolvable, returning key itself",
		zap.String("guildID", guildID), zap.String("key", key))
	return key
}

// Text резолвит ключ и подставляет значения в плейсхолдеры.
func (r *Resolver) Text(guildID, key string, vars map[string]string) string {
	return Render(r.Resolve(guildID, key), vars)
}

// Render подставляет значения в плейсхолдеры вида {name}. Неизвестные
// плейсхолдеры остаются как есть.
func Render(template string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(template, "{") {
		return template
	}
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
