// Package deleteplan implements the Deletion Planner (spec section 4.6): a
// shared helper consulted by both the Directory Sync Worker's source
// deletion pass and, conceptually, any future delete-policy consumer. Given
// a task's delete policy and a candidate file, it decides whether to remove
// it now and how many parent directory levels may be ascended.
package deleteplan

import (
	"time"

	"github.com/cloudgather/cloudgather/internal/store"
)

// Candidate is the subset of cache-entry state the planner needs.
type Candidate struct {
	LastSyncInstant   time.Time
	FileCreateInstant time.Time
}

// Decision is the planner's verdict for one candidate.
type Decision struct {
	Delete       bool
	AscendLevels int
}

// Decide applies spec section 4.6's rule. baseInstant is LastSyncInstant if
// policy.TimeBase is SYNC_COMPLETE, else FileCreateInstant; delayDays==0
// means "eligible immediately on the first normal-run pass after SYNCED",
// otherwise eligibility requires now-baseInstant >= delayDays.
func Decide(policy store.DeletePolicy, c Candidate, now time.Time) Decision {
	if !policy.Enabled {
		return Decision{}
	}

	base := c.LastSyncInstant
	if policy.TimeBase == store.DeleteBaseFileCreate {
		base = c.FileCreateInstant
	}

	var eligible bool

	if policy.DelayDays == 0 {
		eligible = true
	} else {
		elapsedDays := now.Sub(base).Hours() / 24
		eligible = elapsedDays >= float64(policy.DelayDays)
	}

	if !eligible {
		return Decision{}
	}

	ascend := 0
	if policy.ParentDeletion {
		ascend = policy.ParentLevels
	}

	return Decision{Delete: true, AscendLevels: ascend}
}
