package language

import (
	"fmt"
	"strings"

	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"captioner/internal/services"
)

// aliases covers what x/text does not parse: ISO 639-2/B codes written by
// older muxers and plain English names typed by users.
var aliases = map[string]string{
	"fre":        "fr",
	"ger":        "de",
	"chi":        "zh",
	"dut":        "nl",
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
	"polish":     "pl",
	"swedish":    "sv",
	"danish":     "da",
	"norwegian":  "no",
	"finnish":    "fi",
}

// displayOverrides replaces CLDR names that read poorly in translation
// prompts and CLI output (CLDR maps "no" to "Norwegian Bokmål").
var displayOverrides = map[string]string{
	"no":  "Norwegian",
	"nor": "Norwegian",
}

var tagKeys = []string{"language", "LANGUAGE", "Language", "language_ietf", "lang", "LANG"}

func parseBase(code string) (xlanguage.Base, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return xlanguage.Base{}, false
	}
	if alias, ok := aliases[code]; ok {
		code = alias
	}
	base, err := xlanguage.ParseBase(code)
	if err != nil {
		return xlanguage.Base{}, false
	}
	return base, true
}

// ToISO2 reduces a code or English name to its two-letter form. Unknown
// two-letter input passes through; anything else unknown yields "".
func ToISO2(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if base, ok := parseBase(code); ok {
		if s := base.String(); len(s) == 2 {
			return s
		}
	}
	if len(code) == 2 {
		return code
	}
	return ""
}

// DisplayName returns the English name for code, "Unknown" for blank input
// and the upper-cased input when it cannot be parsed.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	base, ok := parseBase(trimmed)
	if !ok {
		return strings.ToUpper(trimmed)
	}
	key := strings.ToLower(trimmed)
	if alias, ok := aliases[key]; ok {
		key = alias
	}
	for _, k := range []string{key, base.String()} {
		if name, ok := displayOverrides[k]; ok {
			return name
		}
	}
	if name := display.English.Languages().Name(base); name != "" {
		return name
	}
	return strings.ToUpper(trimmed)
}

// ExtractFromTags returns the lower-cased language from stream metadata tags.
func ExtractFromTags(tags map[string]string) string {
	for _, key := range tagKeys {
		value := strings.TrimSpace(strings.ReplaceAll(tags[key], "\x00", ""))
		if value != "" {
			return strings.ToLower(value)
		}
	}
	return ""
}

// Target is a validated translation target.
type Target struct {
	Code    string
	Display string
	Tag     xlanguage.Tag
}

// ResolveTarget validates a user-supplied target language. Bare languages
// resolve to their two-letter code; regional tags such as pt-BR are kept.
func ResolveTarget(code string) (Target, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return Target{}, services.Wrap(services.ErrInput, "language", "resolve target", "target language is required", nil)
	}
	if base, ok := parseBase(trimmed); ok {
		tag := xlanguage.Make(base.String())
		return Target{Code: base.String(), Display: DisplayName(base.String()), Tag: tag}, nil
	}
	tag, err := xlanguage.Parse(trimmed)
	if err != nil {
		return Target{}, services.Wrap(services.ErrInput, "language", "resolve target", fmt.Sprintf("unknown language %q", trimmed), err)
	}
	if _, confidence := tag.Base(); confidence == xlanguage.No {
		return Target{}, services.Wrap(services.ErrInput, "language", "resolve target", fmt.Sprintf("unknown language %q", trimmed), nil)
	}
	name := display.English.Tags().Name(tag)
	if name == "" {
		name = tag.String()
	}
	return Target{Code: tag.String(), Display: name, Tag: tag}, nil
}
