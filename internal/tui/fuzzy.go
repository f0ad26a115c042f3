package tui

import (
	"sort"
	"strings"
	"sync"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

var initScheme sync.Once

// Match is an item that survived filtering, with its fzf score.
type Match struct {
	Item  string
	Index int // Position in the original item list
	Score int
}

// Rank filters items with fzf's v2 fuzzy algorithm (smart case off) and
// orders them best score first, keeping input order on ties. An empty
// query returns every item in input order.
func Rank(items []string, query string) []Match {
	query = strings.TrimSpace(query)
	matches := make([]Match, 0, len(items))
	if query == "" {
		for i, item := range items {
			matches = append(matches, Match{Item: item, Index: i})
		}
		return matches
	}

	initScheme.Do(func() { algo.Init("default") })

	pattern := []rune(strings.ToLower(query))
	slab := util.MakeSlab(100*1024, 2048)
	for i, item := range items {
		chars := util.ToChars([]byte(item))
		res, _ := algo.FuzzyMatchV2(false, true, true, &chars, pattern, false, slab)
		if res.Start < 0 {
			continue
		}
		matches = append(matches, Match{Item: item, Index: i, Score: res.Score})
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Score > matches[b].Score
	})
	return matches
}
