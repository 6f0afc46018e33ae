package service_test

import (
	"strings"
	"testing"

	"storybot-server/internal/service"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	t.Run("decodes html entities", func(t *testing.T) {
		assert.Equal(t, `"War & Peace"`, service.Sanitize("&quot;War &amp; Peace&quot;"))
		assert.Equal(t, "it's fine", service.Sanitize("it&#39;s fine"))
	})

	t.Run("escapes markdown control characters", func(t *testing.T) {
		assert.Equal(t, `\*not bold\*`, service.Sanitize("*not bold*"))
		assert.Equal(t, `snake\_case`, service.Sanitize("snake_case"))
	})

	t.Run("converts common html tags to markdown", func(t *testing.T) {
		assert.Equal(t, "*italic*", service.Sanitize("<i>italic</i>"))
		assert.Equal(t, "**bold**", service.Sanitize("<B>bold</B>"))
		assert.Equal(t, "~~gone~~", service.Sanitize("<s>gone</s>"))
		assert.Equal(t, "one\ntwo", service.Sanitize("one<br/>two"))
		assert.Equal(t, "first\n\nsecond\n\n", service.Sanitize(`<p class="x">first</p><p>second</p>`))
	})

	t.Run("strips unknown tags", func(t *testing.T) {
		assert.Equal(t, "hello", service.Sanitize(`<script>hello</script>`))
	})

	t.Run("collapses runs of blank lines", func(t *testing.T) {
		assert.Equal(t, "a\n\nb", service.Sanitize("a\n\n\n\n\nb"))
	})

	t.Run("truncates long text on a rune boundary", func(t *testing.T) {
		long := strings.Repeat("ё", 2000)
		got := service.Sanitize(long)
		runes := []rune(got)
		assert.Len(t, runes, service.MaxFieldLength)
		assert.Equal(t, "...", string(runes[service.MaxFieldLength-3:]))
	})
}
