package repository

import "strings"

// likeEscaper escapes LIKE metacharacters with '!', the escape character
// every search predicate declares via ESCAPE '!'.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// containsPattern turns free text into a lower-cased LIKE pattern that
// matches it literally anywhere in the column.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}
