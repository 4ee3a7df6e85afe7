// SPDX-License-Identifier: MIT

package epg

import (
	"regexp"
	"strings"

	unorm "golang.org/x/text/unicode/norm"
)

var (
	suffix = regexp.MustCompile(`\s+(hd|uhd|fhd|4k|sd)$`)
	space  = regexp.MustCompile(`\s+`)
)

// NameKey normalizes a channel name for guide matching: NFC form,
// lowercased, quality suffixes stripped, whitespace collapsed.
func NameKey(s string) string {
	s = unorm.NFC.String(s)
	s = strings.ToLower(strings.TrimSpace(s))
	s = unorm.NFC.String(s)

	// Strip suffixes repeatedly; names like "Ch HD 4K" carry several.
	for {
		before := s
		s = suffix.ReplaceAllString(s, "")
		if s == before {
			break
		}
	}

	s = space.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// findBest returns the guide channel ID whose name key is closest to name,
// within maxDist edits. Exact key matches win outright.
func findBest(name string, nameToID map[string]string, maxDist int) (string, bool) {
	key := NameKey(name)
	if id, ok := nameToID[key]; ok {
		return id, true
	}

	bestID := ""
	bestDist := maxDist + 1
	for k, id := range nameToID {
		if d := levenshtein(key, k); d < bestDist {
			bestDist = d
			bestID = id
		}
	}
	if bestDist <= maxDist {
		return bestID, true
	}
	return "", false
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	lenA, lenB := len(ra), len(rb)
	if lenA == 0 {
		return lenB
	}
	if lenB == 0 {
		return lenA
	}

	dp := make([][]int, lenA+1)
	for i := range dp {
		dp[i] = make([]int, lenB+1)
		dp[i][0] = i
	}
	for j := 0; j <= lenB; j++ {
		dp[0][j] = j
	}

	for i := 1; i <= lenA; i++ {
		for j := 1; j <= lenB; j++ {
			cost := 0
			if ra[i-1] != rb[j-1] {
				cost = 1
			}
			dp[i][j] = min(dp[i-1][j]+1, dp[i][j-1]+1, dp[i-1][j-1]+cost)
		}
	}
	return dp[lenA][lenB]
}
