package retrieval

import (
	"sort"

	"github.com/yungbote/english-trainer-backend/internal/domain/kb"
)

const (
	categoryUser = iota
	categoryExample
	categoryStructural
)

func category(c Card) int {
	switch {
	case c.Owned:
		return categoryUser
	case c.SourceType == kb.SourceExample:
		return categoryExample
	default:
		return categoryStructural
	}
}

// Merge orders user cards, then curated examples, then the remaining curated
// rubric and structural cards. Category wins over similarity. The result does
// not depend on input order.
func Merge(userCards, publicCards []Card) []Card {
	out := make([]Card, 0, len(userCards)+len(publicCards))
	out = append(out, userCards...)
	out = append(out, publicCards...)
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := category(out[i]), category(out[j])
		if ci != cj {
			return ci < cj
		}
		return rankLess(out[i], out[j])
	})
	return out
}
