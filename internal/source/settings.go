package source

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Setting keys understood by the sources.
const (
	SettingFieldDelimiter   = "Field Delimiter"
	SettingEncodingType     = "Encoding Type"
	SettingStrictEncoding   = "Strict Encoding"
	SettingFirstRowIsHeader = "First Row Is Header"
	SettingTrimCR           = "Trim Carriage Return"
	SettingSheet            = "Sheet"
	SettingSkipEmptyRows    = "Skip Empty Rows"
)

// Settings is the key/value configuration a source is built from.
// Missing keys return "".
type Settings interface {
	Get(key string) string
}

// delimiter returns the first rune of the configured delimiter, or def.
func delimiter(s Settings, def rune) rune {
	v := s.Get(SettingFieldDelimiter)
	if v == "" {
		return def
	}
	if v == `\t` {
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(v)
	return r
}

// boolSetting parses a boolean setting, returning def when unset or invalid.
func boolSetting(s Settings, key string, def bool) bool {
	v := strings.TrimSpace(s.Get(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		switch strings.ToLower(v) {
		case "yes", "y", "on":
			return true
		case "no", "n", "off":
			return false
		}
		return def
	}
	return b
}
