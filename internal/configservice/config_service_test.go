package configservice_test

import (
	"context"
	"testing"

	"storybot-server/internal/configservice"
	"storybot-server/internal/interfaces/mocks"
	"storybot-server/internal/models"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestResolver(t *testing.T, configs []*models.DynamicConfig) *configservice.Resolver {
	t.Helper()
	repo := new(mocks.ConfigRepository)
	repo.On("ListAll", context.Background(), nil).Return(configs, nil)

	r, err := configservice.NewResolver(repo, nil, "en", zap.NewNop())
	assert.NoError(t, err)
	return r
}

func TestResolve(t *testing.T) {
	r := newTestResolver(t, []*models.DynamicConfig{
		{GuildID: "", Lang: "en", Key: "txtWriterJoined", Value: "{writer} joined {story}."},
		{GuildID: "", Lang: "en", Key: "txtStoryActivated", Value: "The story has begun!"},
		{GuildID: "", Lang: "de", Key: "txtStoryActivated", Value: "Die Geschichte beginnt!"},
		{GuildID: "guild-ru", Lang: "ru", Key: "txtWriterJoined", Value: "{writer} вступает в {story}."},
	})

	t.Run("guild override wins over the system default", func(t *testing.T) {
		assert.Equal(t, "{writer} вступает в {story}.", r.Resolve("guild-ru", "txtWriterJoined"))
	})

	t.Run("falls back to the system default", func(t *testing.T) {
		assert.Equal(t, "{writer} joined {story}.", r.Resolve("guild-other", "txtWriterJoined"))
		assert.Equal(t, "The story has begun!", r.Resolve("guild-ru", "txtStoryActivated"))
	})

	t.Run("system defaults only come from the default language", func(t *testing.T) {
		assert.Equal(t, "The story has begun!", r.Resolve("", "txtStoryActivated"))
	})

	t.Run("unknown key resolves to itself", func(t *testing.T) {
		assert.Equal(t, "txtNoSuchKey", r.Resolve("guild-ru", "txtNoSuchKey"))
	})
}

func TestText(t *testing.T) {
	r := newTestResolver(t, []*models.DynamicConfig{
		{GuildID: "", Lang: "en", Key: "txtWriterJoined", Value: "{writer} joined {story}."},
	})

	got := r.Text("any-guild", "txtWriterJoined", map[string]string{
		"writer": "Ann",
		"story":  "Starfall",
	})
	assert.Equal(t, "Ann joined Starfall.", got)
}

func TestRender(t *testing.T) {
	t.Run("substitutes placeholders", func(t *testing.T) {
		assert.Equal(t, "turn 3 of Ann", configservice.Render("turn {turn} of {writer}", map[string]string{"turn": "3", "writer": "Ann"}))
	})

	t.Run("keeps unknown placeholders intact", func(t *testing.T) {
		assert.Equal(t, "hello {who}", configservice.Render("hello {who}", map[string]string{"writer": "Ann"}))
	})

	t.Run("template without placeholders is returned as is", func(t *testing.T) {
		assert.Equal(t, "plain text", configservice.Render("plain text", map[string]string{"writer": "Ann"}))
	})
}
