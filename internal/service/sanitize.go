package service

import (
	"regexp"
	"strings"
)

// Максимальная длина текстового поля в embed у мессенджера.
const maxFieldLength = 1024

var (
	reParagraphOpen = regexp.MustCompile(`(?i)<p[^>]*>`)
	reParagraphEnd  = regexp.MustCompile(`(?i)</p>`)
	reStrike        = regexp.MustCompile(`(?i)</?s>`)
	reItalic        = regexp.MustCompile(`(?i)</?i>`)
	reBold          = regexp.MustCompile(`(?i)</?b>`)
	reLineBreak     = regexp.MustCompile(`(?i)<br\s*/?>`)
	reAnyTag        = regexp.MustCompile(`<[^>]*>`)
	reExtraNewlines = regexp.MustCompile(`\n{3,}`)

	entityReplacer = strings.NewReplacer(
		"&quot;", `"`,
		"&#34;", `"`,
		"&amp;", "&",
		"&#38;", "&",
		"&apos;", "'",
		"&#39;", "'",
		"&nbsp;", " ",
	)

	markdownEscaper = strings.NewReplacer(
		"*", `\*`,
		"_", `\_`,
		"~", `\~`,
	)
)

// Sanitize готовит произвольный пользовательский текст к публикации в
// мессенджере: декодирует HTML-сущности, экранирует markdown-символы,
// переводит распространенные HTML-теги в markdown и обрезает до лимита поля.
func Sanitize(input string) string {
	s := entityReplacer.Replace(input)
	s = markdownEscaper.Replace(s)

	s = reParagraphOpen.ReplaceAllString(s, "")
	s = reParagraphEnd.ReplaceAllString(s, "\n\n")
	s = reStrike.ReplaceAllString(s, "~~")
	s = reItalic.ReplaceAllString(s, "*")
	s = reBold.ReplaceAllString(s, "**")
	s = reLineBreak.ReplaceAllString(s, "\n")
	s = reAnyTag.ReplaceAllString(s, "")
	s = reExtraNewlines.ReplaceAllString(s, "\n\n")

	if runes := []rune(s); len(runes) > maxFieldLength {
		s = string(runes[:maxFieldLength-3]) + "..."
	}
	return s
}
