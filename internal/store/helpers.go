// ABOUTME: SQL helper functions for query construction.
// ABOUTME: Escapes LIKE patterns so path filters match literally.

package store

import "strings"

// escapeSQLLike escapes %, _ and \ for use with ESCAPE '\'.
// The backslash must be escaped first to avoid double-escaping.
func escapeSQLLike(pattern string) string {
	pattern = strings.ReplaceAll(pattern, `\`, `\\`)
	pattern = strings.ReplaceAll(pattern, "%", `\%`)
	pattern = strings.ReplaceAll(pattern, "_", `\_`)
	return pattern
}

// likePrefix builds a LIKE pattern matching values that start with prefix.
func likePrefix(prefix string) string {
	return escapeSQLLike(prefix) + "%"
}
