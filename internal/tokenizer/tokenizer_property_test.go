package tokenizer

import (
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestTokenize_LengthBound verifies no token is empty or longer than the max length.
func TestTokenize_LengthBound(t *testing.T) {
	properties := gopter.NewProperties(nil)
	tok := New()

	properties.Property("tokens are non-empty and bounded", prop.ForAll(
		func(text string, maxLen int) bool {
			tokens, err := tok.Tokenize(text, maxLen)
			if err != nil {
				return false
			}
			for _, token := range tokens {
				n := utf8.RuneCountInString(token)
				if n == 0 || n > maxLen {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}

// TestTokenize_PreservesLetters verifies tokens are the letters of the input, in order.
func TestTokenize_PreservesLetters(t *testing.T) {
	properties := gopter.NewProperties(nil)
	tok := New()

	properties.Property("concatenated tokens equal the input letters", prop.ForAll(
		func(text string, maxLen int) bool {
			tokens, err := tok.Tokenize(text, maxLen)
			if err != nil {
				return false
			}
			var letters strings.Builder
			for _, r := range text {
				if unicode.IsLetter(r) {
					letters.WriteRune(r)
				}
			}
			return strings.Join(tokens, "") == letters.String()
		},
		gen.AnyString(),
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}

// TestTokenize_NonLettersOnly verifies that text without letters yields nothing.
func TestTokenize_NonLettersOnly(t *testing.T) {
	properties := gopter.NewProperties(nil)
	tok := New()

	nonLetters := gen.SliceOf(gen.OneConstOf(' ', ',', '.', '!', '?', '\n', '\t', '-', '1', '9', '"')).
		Map(func(rs []rune) string {
			var b strings.Builder
			for _, r := range rs {
				b.WriteRune(r)
			}
			return b.String()
		})

	properties.Property("punctuation and whitespace yield no tokens", prop.ForAll(
		func(text string) bool {
			tokens, err := tok.Tokenize(text, 5)
			return err == nil && len(tokens) == 0
		},
		nonLetters,
	))

	properties.TestingRun(t)
}
