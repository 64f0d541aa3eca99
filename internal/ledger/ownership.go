// Package ledger implements the append-only transfer event ledger:
// idempotent ingestion, ownership reconstruction by replay, and the holder
// leaderboard derived from it.
package ledger

import (
	"sort"

	"github.com/mint-engine/internal/models"
	"github.com/mint-engine/internal/types"
)

// ReplayOwnership derives the current owner of every token by folding the
// event log in chain order: ascending block number, ties broken by ingestion
// order. The input slice is not modified. This is a pure function of the
// ledger; recomputing from scratch is always correct.
func ReplayOwnership(events []*models.TransferEvent) map[uint64]string {
	ordered := make([]*models.TransferEvent, len(events))
	copy(ordered, events)

	// Stable sort keeps ingestion order for events within the same block,
	// which reflects chain order.
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].BlockNumber < ordered[j].BlockNumber
	})

	owners := make(map[uint64]string)
	for _, ev := range ordered {
		owners[ev.TokenID] = types.NormalizeAddress(ev.ToAddress)
	}

	return owners
}

// HolderCounts aggregates an ownership snapshot into per-address token
// counts. Tokens transferred back to the zero address (burned) hold no owner.
func HolderCounts(owners map[uint64]string) map[string]int {
	counts := make(map[string]int)
	for _, owner := range owners {
		if types.IsZeroAddress(owner) {
			continue
		}
		counts[owner]++
	}
	return counts
}

// Leaderboard ranks holder counts descending, ties broken by address value
// for determinism, truncated to n. n <= 0 returns the full ranking.
func Leaderboard(counts map[string]int, n int) []types.HolderCount {
	entries := make([]types.HolderCount, 0, len(counts))
	for address, count := range counts {
		entries = append(entries, types.HolderCount{Address: address, Count: count})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Address < entries[j].Address
	})

	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}

	return entries
}
