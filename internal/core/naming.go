package core

import (
	"strings"
	"unicode/utf8"
)

// invalidNameChars cannot appear in item names; they are path separators or
// reserved by most stores.
const invalidNameChars = `\/:?"<>|[]*`

// BuildItemName derives the new item's name from row.
// It returns "" when every name column is empty.
func (ic *ImportContext) BuildItemName(row RowRecord) string {
	parts := make([]string, 0, len(ic.Naming.Columns))
	for _, col := range ic.Naming.Columns {
		if v := strings.TrimSpace(row.Value(col)); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return ""
	}

	maxLen := ic.Naming.MaxLength
	if maxLen <= 0 {
		maxLen = DefaultMaxNameLength
	}
	return CleanItemName(strings.Join(parts, ic.Naming.Delimiter), maxLen)
}

// folderName returns the cleaned folder name for row, or "" when foldering
// is disabled or the folder column is empty.
func (ic *ImportContext) folderName(row RowRecord) string {
	if ic.Folder.Column == "" {
		return ""
	}
	return CleanItemName(row.Value(ic.Folder.Column), DefaultMaxNameLength)
}

// CleanItemName strips characters that are invalid in item names, collapses
// whitespace and truncates the result to maxLen runes.
func CleanItemName(s string, maxLen int) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidNameChars, r) {
			return -1
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")

	if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
		s = strings.TrimSpace(string([]rune(s)[:maxLen]))
	}
	return s
}

// JoinPath appends name to a store path.
func JoinPath(parent, name string) string {
	return strings.TrimSuffix(parent, "/") + "/" + name
}
