package models

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Language is a supported output language code.
type Language string

const (
	English Language = "en"
	French  Language = "fr"
	Spanish Language = "es"
	German  Language = "de"
	Italian Language = "it"
	Hindi   Language = "hi"
	Telugu  Language = "te"
	Tamil   Language = "ta"
	Kannada Language = "ka"
)

// DefaultLanguage is the language completions are generated in.
const DefaultLanguage = English

// Languages lists the supported codes in display order.
var Languages = []Language{English, French, Spanish, German, Italian, Hindi, Telugu, Tamil, Kannada}

var languageNames = map[Language]string{
	English: "English",
	French:  "French",
	Spanish: "Spanish",
	German:  "German",
	Italian: "Italian",
	Hindi:   "Hindi",
	Telugu:  "Telugu",
	Tamil:   "Tamil",
	Kannada: "Kannada",
}

// extra display-name spellings accepted by ParseLanguage
var languageAliases = map[string]Language{
	"kanada": Kannada,
}

// ParseLanguage resolves a code, BCP-47 tag or display name to a supported
// Language. An empty string yields DefaultLanguage.
func ParseLanguage(s string) (Language, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultLanguage, nil
	}
	lower := strings.ToLower(s)
	if l, ok := languageAliases[lower]; ok {
		return l, nil
	}
	for l, name := range languageNames {
		if strings.ToLower(name) == lower || string(l) == lower {
			return l, nil
		}
	}
	tag, err := language.Parse(s)
	if err != nil {
		return "", fmt.Errorf("unsupported language %q", s)
	}
	base, _ := tag.Base()
	l := Language(base.String())
	if base.String() == "kn" {
		l = Kannada
	}
	if !l.Valid() {
		return "", fmt.Errorf("unsupported language %q", s)
	}
	return l, nil
}

// Valid reports whether l is one of the supported codes.
func (l Language) Valid() bool {
	_, ok := languageNames[l]
	return ok
}

// IsDefault reports whether l needs no translation.
func (l Language) IsDefault() bool {
	return l == DefaultLanguage || l == ""
}

// Name returns the English display name.
func (l Language) Name() string {
	if n, ok := languageNames[l]; ok {
		return n
	}
	return string(l)
}

// Tag returns the x/text tag for l. Unknown codes map to language.Und.
func (l Language) Tag() language.Tag {
	if l == Kannada {
		// "ka" is the code used on the wire; the BCP-47 tag is kn.
		return language.MustParse("kn")
	}
	t, err := language.Parse(string(l))
	if err != nil {
		return language.Und
	}
	return t
}

// MatchLanguage picks the best supported language for an Accept-Language
// header value, falling back to DefaultLanguage.
func MatchLanguage(acceptLanguage string) Language {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return DefaultLanguage
	}
	supported := make([]language.Tag, len(Languages))
	for i, l := range Languages {
		supported[i] = l.Tag()
	}
	_, idx, conf := language.NewMatcher(supported).Match(tags...)
	if conf == language.No {
		return DefaultLanguage
	}
	return Languages[idx]
}
