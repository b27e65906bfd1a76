package tasks

import (
	"github.com/Jikexiaobai/Y2B/internal/models"
)

// Group is one channel's selected work for this run, in feed order.
type Group struct {
	ChannelID string
	Items     []models.Candidate
}

// SelectPending filters candidates down to this run's workload: videos
// already present in the migration index are dropped, the remainder is
// grouped by source channel, and each group is truncated to quota while
// preserving feed order. Groups appear in first-candidate order and empty
// groups are omitted, so repeated runs over an unchanged feed and index
// select nothing.
func SelectPending(candidates []models.Candidate, index models.MigrationIndex, quota int) []Group {
	if quota <= 0 {
		return nil
	}

	var order []string
	byChannel := map[string]*Group{}

	for _, c := range candidates {
		if index.Has(c.Item.VideoID) {
			continue
		}

		channel := c.Config.ChannelID
		group, ok := byChannel[channel]
		if !ok {
			group = &Group{ChannelID: channel}
			byChannel[channel] = group
			order = append(order, channel)
		}
		if len(group.Items) >= quota {
			continue
		}
		group.Items = append(group.Items, c)
	}

	groups := make([]Group, 0, len(order))
	for _, channel := range order {
		groups = append(groups, *byChannel[channel])
	}
	return groups
}
