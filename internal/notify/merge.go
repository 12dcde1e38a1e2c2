package notify

import (
	"sort"

	"github.com/kobbycode/prestige-merchandise/internal/domain"
)

// MergeAndDedup combines the user feed and the role feed into one list,
// newest first. A notification appearing in both feeds is kept once, keyed
// by id. Pure function: input slices are not modified.
func MergeAndDedup(userFeed, roleFeed []domain.Notification) []domain.Notification {
	seen := make(map[string]struct{}, len(userFeed)+len(roleFeed))
	merged := make([]domain.Notification, 0, len(userFeed)+len(roleFeed))

	for _, feed := range [][]domain.Notification{userFeed, roleFeed} {
		for _, n := range feed {
			if _, dup := seen[n.ID]; dup {
				continue
			}
			seen[n.ID] = struct{}{}
			merged = append(merged, n)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].CreatedAt.After(merged[j].CreatedAt)
		}
		return merged[i].ID < merged[j].ID // deterministic order for equal timestamps
	})
	return merged
}
