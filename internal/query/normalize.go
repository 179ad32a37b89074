package query

import "strings"

const fence = "```"

// Normalize strips a markdown code fence from a model reply. A "```json"
// fence wins over a bare one; text without fences is returned unchanged.
func Normalize(reply string) string {
	if _, after, ok := strings.Cut(reply, fence+"json"); ok {
		body, _, _ := strings.Cut(after, fence)
		return strings.TrimSpace(body)
	}
	if _, after, ok := strings.Cut(reply, fence); ok {
		body, _, _ := strings.Cut(after, fence)
		return strings.TrimSpace(body)
	}
	return reply
}

// truncate returns at most n runes of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
