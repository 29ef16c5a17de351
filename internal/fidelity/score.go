// Package fidelity measures how well documents survive the Markdown to
// storage-format round trip and gates releases of the converter on a
// corpus-wide similarity threshold.
package fidelity

import (
	"strings"

	"github.com/fbain/confluence-markdown-sync/internal/converter"
)

// Score returns the token-level similarity of two texts in [0, 1], computed
// as 2*matches/(tokens(a)+tokens(b)) over the longest common subsequence of
// whitespace-separated tokens. Two empty texts score 1.
func Score(a, b string) float64 {
	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)
	if len(tokensA) == 0 && len(tokensB) == 0 {
		return 1
	}
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	matches := lcsLength(tokensA, tokensB)
	return 2 * float64(matches) / float64(len(tokensA)+len(tokensB))
}

func lcsLength(a, b []string) int {
	previous := make([]int, len(b)+1)
	current := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				current[j] = previous[j-1] + 1
			} else if previous[j] >= current[j-1] {
				current[j] = previous[j]
			} else {
				current[j] = current[j-1]
			}
		}
		previous, current = current, previous
	}
	return previous[len(b)]
}

// StorageScore renders Markdown to storage format and scores it against an
// expected storage document.
func StorageScore(source []byte, expected string) (float64, error) {
	tree, _, err := converter.ParseMarkdown(source)
	if err != nil {
		return 0, err
	}
	storage := converter.RenderStorage(tree)
	return Score(storage.Output, expected), nil
}

// RoundTripScore pushes Markdown through storage format and back, then
// scores the result against the original.
func RoundTripScore(source []byte) (float64, error) {
	tree, _, err := converter.ParseMarkdown(source)
	if err != nil {
		return 0, err
	}
	storage := converter.RenderStorage(tree)

	parsed, _, err := converter.ParseStorage([]byte(storage.Output))
	if err != nil {
		return 0, err
	}
	markdown := converter.RenderMarkdown(parsed)

	return Score(string(source), markdown.Output), nil
}
