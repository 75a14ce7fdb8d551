// Package remoteconfig stores site parameters as string values, the way a
// remote feature-flag service does, and parses the colour theme out of them.
package remoteconfig

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// ColorConfig is the storefront theme.
type ColorConfig struct {
	Background string `json:"background"`
	Text       string `json:"text"`
	SearchBar  string `json:"searchBar"`
	Dropdown   string `json:"dropdown"`
}

func DefaultColors() ColorConfig {
	return ColorConfig{
		Background: "#fdf8f3",
		Text:       "#3b2f2f",
		SearchBar:  "#ffffff",
		Dropdown:   "#f4ebe1",
	}
}

var (
	ErrEmptyConfig   = errors.New("color config is empty")
	ErrInvalidConfig = errors.New("color config is not a JSON object")

	bareKeyPattern       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// requoteStrings rewrites single-quoted strings as double-quoted ones.
// Apostrophes inside double-quoted strings are left alone.
func requoteStrings(raw string) string {
	runes := []rune(raw)
	var b strings.Builder
	b.Grow(len(raw))

	var quote rune
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch quote {
		case 0:
			switch r {
			case '\'':
				quote = r
				b.WriteRune('"')
				continue
			case '"':
				quote = r
			}
			b.WriteRune(r)
		case '"':
			b.WriteRune(r)
			if r == '\\' && i+1 < len(runes) {
				i++
				b.WriteRune(runes[i])
			} else if r == '"' {
				quote = 0
			}
		default:
			switch {
			case r == '\\' && i+1 < len(runes) && runes[i+1] == '\'':
				i++
				b.WriteRune('\'')
			case r == '\\' && i+1 < len(runes):
				b.WriteRune(r)
				i++
				b.WriteRune(runes[i])
			case r == '"':
				b.WriteString(`\"`)
			case r == '\'':
				quote = 0
				b.WriteRune('"')
			default:
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// normalizeLooseJSON turns JS-style object literals into JSON: single-quoted
// strings become double-quoted, bare keys are quoted and trailing commas dropped.
func normalizeLooseJSON(raw string) string {
	out := requoteStrings(raw)
	out = bareKeyPattern.ReplaceAllString(out, `$1"$2":`)
	out = trailingCommaPattern.ReplaceAllString(out, `$1`)
	return out
}

// ParseColorConfig reads a stored value. Strict JSON is tried first, then a
// JSON-encoded string holding the object, then the normalised form.
// Missing or non-string fields keep their defaults.
func ParseColorConfig(raw string) (ColorConfig, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return DefaultColors(), ErrEmptyConfig
	}

	if gjson.Valid(value) {
		if parsed := gjson.Parse(value); parsed.Type == gjson.String {
			value = strings.TrimSpace(parsed.String())
		}
	}
	if !gjson.Valid(value) {
		value = normalizeLooseJSON(value)
	}
	if !gjson.Valid(value) || !gjson.Parse(value).IsObject() {
		return DefaultColors(), ErrInvalidConfig
	}

	cfg := DefaultColors()
	fields := map[string]*string{
		"background": &cfg.Background,
		"text":       &cfg.Text,
		"searchBar":  &cfg.SearchBar,
		"dropdown":   &cfg.Dropdown,
	}
	for key, target := range fields {
		result := gjson.Get(value, key)
		if result.Type == gjson.String && strings.TrimSpace(result.String()) != "" {
			*target = strings.TrimSpace(result.String())
		}
	}
	return cfg, nil
}

// Encode renders the config as the strict JSON string that gets stored.
func (c ColorConfig) Encode() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
