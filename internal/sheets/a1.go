package sheets

import "strings"

// EscapeSheetName produces the quoted interior of an A1 sheet reference.
// At most one leading and one trailing quote is stripped (tolerates
// callers who pre-quote), then every remaining quote is doubled.
// Already-doubled quotes are collapsed first so the transform is
// idempotent: escaping an escaped name yields the same string.
func EscapeSheetName(name string) string {
	s := strings.TrimPrefix(name, "'")
	s = strings.TrimSuffix(s, "'")
	s = strings.ReplaceAll(s, "''", "'")
	return strings.ReplaceAll(s, "'", "''")
}

// A1 joins a sheet name and a cell range into a full A1 reference of
// the form '<escaped-name>'!<range>.
func A1(sheetName, cellRange string) string {
	return "'" + EscapeSheetName(sheetName) + "'!" + cellRange
}
