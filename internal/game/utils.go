// internal/game/utils.go
package game

import (
	"sort"
	"strings"
)

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// colorHues spreads seats evenly around the color wheel in the given order.
func colorHues(order []int64) map[int64]int {
	hues := make(map[int64]int, len(order))
	for i, id := range order {
		hues[id] = i * 360 / len(order)
	}
	return hues
}
