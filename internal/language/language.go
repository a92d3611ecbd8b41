// Package language provides the closed, ordered catalog of languages a detector can predict,
// the synthetic Unknown language and the Distribution type over a catalog.
package language

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/langdetect/internal/langerr"
	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Language is an entry of a Catalog. The zero index of a catalog is its first entry;
// Unknown has index -1 and belongs to no catalog.
type Language struct {
	Code  string
	index int
}

// Unknown is returned when there is no evidence for any supported language.
var Unknown = Language{Code: "", index: -1}

// Index returns the position of the language in its catalog, or -1 for Unknown.
func (l Language) Index() int { return l.index }

// IsUnknown reports whether l is the synthetic Unknown language.
func (l Language) IsUnknown() bool { return l.index < 0 }

// Name returns the English display name of the language.
func (l Language) Name() string {
	if l.IsUnknown() {
		return "Unknown"
	}
	base, err := xlanguage.ParseBase(l.Code)
	if err != nil {
		return strings.ToUpper(l.Code)
	}
	if name := display.English.Languages().Name(base); name != "" {
		return name
	}
	return strings.ToUpper(l.Code)
}

func (l Language) String() string {
	if l.IsUnknown() {
		return "Unknown"
	}
	return l.Code
}

// defaultCodes is the catalog used when no explicit list of languages is configured.
var defaultCodes = []string{
	"ar", "bg", "ca", "cs", "da", "de", "el", "en", "es", "et", "fa",
	"fi", "fr", "he", "hr", "hu", "it", "ja", "ko", "lt", "lv", "nl",
	"no", "pl", "pt", "ro", "ru", "sk", "sl", "sv", "tr", "uk", "zh",
}

// DefaultCodes returns a copy of the ISO codes of the default catalog.
func DefaultCodes() []string {
	out := make([]string, len(defaultCodes))
	copy(out, defaultCodes)
	return out
}

// Catalog is an ordered list of supported languages. Unknown is never part of it.
type Catalog struct {
	langs  []Language
	byCode map[string]Language
}

// NewCatalog builds a catalog from two-letter ISO 639-1 codes, keeping their order.
func NewCatalog(codes ...string) (*Catalog, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: catalog needs at least one language", langerr.ErrInvalidConfiguration)
	}
	c := &Catalog{
		langs:  make([]Language, 0, len(codes)),
		byCode: make(map[string]Language, len(codes)),
	}
	for _, raw := range codes {
		code, err := normalizeCode(raw)
		if err != nil {
			return nil, err
		}
		if _, err := xlanguage.ParseBase(code); err != nil {
			return nil, fmt.Errorf("%w: unrecognized ISO 639-1 code %q", langerr.ErrInvalidConfiguration, raw)
		}
		if _, dup := c.byCode[code]; dup {
			return nil, fmt.Errorf("%w: duplicate language %q", langerr.ErrInvalidConfiguration, code)
		}
		l := Language{Code: code, index: len(c.langs)}
		c.langs = append(c.langs, l)
		c.byCode[code] = l
	}
	return c, nil
}

// MustCatalog is like NewCatalog but panics on error. Intended for fixed code lists.
func MustCatalog(codes ...string) *Catalog {
	c, err := NewCatalog(codes...)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns the default catalog.
func Default() *Catalog {
	return MustCatalog(defaultCodes...)
}

// Size returns the number of supported languages.
func (c *Catalog) Size() int { return len(c.langs) }

// Languages returns the supported languages in catalog order.
func (c *Catalog) Languages() []Language {
	out := make([]Language, len(c.langs))
	copy(out, c.langs)
	return out
}

// Codes returns the ISO codes in catalog order.
func (c *Catalog) Codes() []string {
	out := make([]string, len(c.langs))
	for i, l := range c.langs {
		out[i] = l.Code
	}
	return out
}

// At returns the language at index i, or Unknown when i is out of range.
func (c *Catalog) At(i int) Language {
	if i < 0 || i >= len(c.langs) {
		return Unknown
	}
	return c.langs[i]
}

// Lookup maps an ISO code to its language. Codes that are well formed but not in the
// catalog map to Unknown; codes that are not exactly two characters are an error.
func (c *Catalog) Lookup(code string) (Language, error) {
	norm, err := normalizeCode(code)
	if err != nil {
		return Unknown, err
	}
	if l, ok := c.byCode[norm]; ok {
		return l, nil
	}
	return Unknown, nil
}

// Equal reports whether both catalogs list the same codes in the same order.
func (c *Catalog) Equal(other *Catalog) bool {
	if c == nil || other == nil {
		return c == other
	}
	if len(c.langs) != len(other.langs) {
		return false
	}
	for i := range c.langs {
		if c.langs[i].Code != other.langs[i].Code {
			return false
		}
	}
	return true
}

func normalizeCode(code string) (string, error) {
	if len([]rune(code)) != 2 {
		return "", fmt.Errorf("%w: invalid language iso code (must be 2 chars long): %q",
			langerr.ErrInvalidConfiguration, code)
	}
	return strings.ToLower(code), nil
}
