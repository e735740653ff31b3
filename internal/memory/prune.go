package memory

import (
	"time"

	gikerrors "github.com/standardbeagle/gik/internal/errors"
	"github.com/standardbeagle/gik/internal/model"
)

// PruneResult is the outcome of one prune pass; ArchivedIDs/DeletedIDs
// carry the entry ids the caller must also remove from the vector index
// (via VectorID) and the BM25 index.
type PruneResult struct {
	Count       int
	ArchivedIDs []string
	DeletedIDs  []string
}

// Prune reads memory/config.json's pruningPolicy, identifies entries
// matching any eviction criterion (age, obsolete tags; every entry when
// the policy sets neither), and evicts them (spec §4.10). When maxEntries
// or maxEstimatedTokens is set, only the oldest matches needed to bring
// the full entry set back under those thresholds go; when neither is set,
// every match goes. now is passed in rather than
// read from time.Now() so pruning is deterministic to test.
func (s *Store) Prune(now time.Time) (PruneResult, error) {
	policy, exists, err := s.Policy()
	if err != nil {
		return PruneResult{}, err
	}
	if !exists {
		return PruneResult{}, gikerrors.New(gikerrors.MissingPruningPolicy, "memory.Prune", s.dir, "configure memory/config.json", nil)
	}

	entries, err := s.All()
	if err != nil {
		return PruneResult{}, err
	}

	candidates := matchCriteria(entries, policy, now)
	toEvict := overThreshold(entries, candidates, policy)
	if len(toEvict) == 0 {
		return PruneResult{}, nil
	}

	sortOldestFirst(toEvict)
	ids := make([]string, len(toEvict))
	for i, e := range toEvict {
		ids[i] = e.ID
	}

	result := PruneResult{Count: len(ids)}
	switch policy.Mode {
	case model.PruneArchive:
		if err := s.archive(ids); err != nil {
			return PruneResult{}, err
		}
		result.ArchivedIDs = ids
	case model.PruneDelete:
		if err := s.delete(ids); err != nil {
			return PruneResult{}, err
		}
		result.DeletedIDs = ids
	default:
		return PruneResult{}, gikerrors.New(gikerrors.MemoryEntryInvalid, "memory.Prune", s.dir, "pruningPolicy.mode must be archive or delete", nil)
	}
	return result, nil
}

// matchCriteria returns entries matching any age or obsolete-tag
// criterion in policy — the eviction candidate pool, not necessarily all
// evicted (thresholds gate how many of them actually go).
func matchCriteria(entries []model.MemoryEntry, policy model.MemoryPruningPolicy, now time.Time) []model.MemoryEntry {
	if policy.MaxAgeDays == nil && len(policy.ObsoleteTags) == 0 {
		return append([]model.MemoryEntry(nil), entries...)
	}
	obsolete := make(map[string]bool, len(policy.ObsoleteTags))
	for _, t := range policy.ObsoleteTags {
		obsolete[t] = true
	}

	var out []model.MemoryEntry
	for _, e := range entries {
		if policy.MaxAgeDays != nil {
			age := now.Sub(e.CreatedAt)
			if age.Hours()/24 >= float64(*policy.MaxAgeDays) {
				out = append(out, e)
				continue
			}
		}
		for _, tag := range e.Tags {
			if obsolete[tag] {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// overThreshold trims candidates (oldest-first, so the newest candidates
// are kept whenever only a partial eviction is needed) down to just the
// entries that must go to bring the full entry set's count/estimated
// tokens back under policy's configured maximums.
func overThreshold(all, candidates []model.MemoryEntry, policy model.MemoryPruningPolicy) []model.MemoryEntry {
	if policy.MaxEntries == nil && policy.MaxEstimatedTokens == nil {
		return candidates
	}

	sortOldestFirst(candidates)
	totalCount := len(all)
	totalTokens := estimatedTokens(all)

	var evicted []model.MemoryEntry
	for _, e := range candidates {
		overCount := policy.MaxEntries != nil && totalCount > *policy.MaxEntries
		overTokens := policy.MaxEstimatedTokens != nil && totalTokens > *policy.MaxEstimatedTokens
		if !overCount && !overTokens {
			break
		}
		evicted = append(evicted, e)
		totalCount--
		totalTokens -= len(e.Text) / 4
	}
	return evicted
}

func estimatedTokens(entries []model.MemoryEntry) int {
	var chars int
	for _, e := range entries {
		chars += len(e.Text)
	}
	return chars / 4
}
