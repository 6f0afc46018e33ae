package repository

import (
	"context"
	"errors"
	"fmt"

	"storybot-server/internal/interfaces"
	"storybot-server/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Compile-time check
var _ interfaces.ConfigRepository = (*pgConfigRepository)(nil)

const (
	getConfigQuery = `
        SELECT guild_id, lang, key, value, updated_at
        FROM config
        WHERE guild_id = $1 AND lang = $2 AND key = $3
    `
	listAllConfigsQuery = `SELECT guild_id, lang, key, value, updated_at FROM config ORDER BY guild_id, lang, key`
	upsertConfigQuery   = `
        INSERT INTO config (guild_id, lang, key, value)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (guild_id, lang, key) DO UPDATE SET
            value = EXCLUDED.value,
            updated_at = now()
    `
)

type pgConfigRepository struct {
	logger *zap.Logger
}

// NewPgConfigRepository создает репозиторий строк конфигурации текстов.
func NewPgConfigRepository(logger *zap.Logger) interfaces.ConfigRepository {
	return &pgConfigRepository{logger: logger.Named("PgConfigRepo")}
}

func (r *pgConfigRepository) Get(ctx context.Context, querier interfaces.DBTX, guildID, lang, key string) (*models.DynamicConfig, error) {
	var cfg models.DynamicConfig
	err := pgxscan.Get(ctx, querier, &cfg, getConfigQuery, guildID, lang, key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Error getting config row",
			zap.String("guildID", guildID), zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to get config row %q: %w", key, err)
	}
	return &cfg, nil
}

func (r *pgConfigRepository) ListAll(ctx context.Context, querier interfaces.DBTX) ([]*models.DynamicConfig, error) {
	var configs []*models.DynamicConfig
	err := pgxscan.Select(ctx, querier, &configs, listAllConfigsQuery)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []*models.DynamicConfig{}, nil
		}
		r.logger.Error("Error listing config rows", zap.Error(err))
		return nil, fmt.Errorf("failed to list config rows: %w", err)
	}
	return configs, nil
}

func (r *pgConfigRepository) Upsert(ctx context.Context, querier interfaces.DBTX, cfg *models.DynamicConfig) error {
	_, err := querier.Exec(ctx, upsertConfigQuery, cfg.GuildID, cfg.Lang, cfg.Key, cfg.Value)
	if err != nil {
		r.logger.Error("Error upserting config row",
			zap.String("guildID", cfg.GuildID), zap.String("key", cfg.Key), zap.Error(err))
		return fmt.Errorf("failed to upsert config row %q: %w", cfg.Key, err)
	}
	r.logger.Info("Config row upserted", zap.String("guildID", cfg.GuildID), zap.String("key", cfg.Key))
	return nil
}
