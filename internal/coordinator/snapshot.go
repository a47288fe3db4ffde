package coordinator

import (
	"time"

	"github.com/nerrad567/ponbike-core/internal/bike"
)

// Snapshot is one merged view of the account: the device list as fetched
// plus the latest telemetry indexed by bike id.
//
// A Snapshot is immutable once published. The device list and the state
// index come from independent responses and may disagree: bikes without
// telemetry resolve to the zero State, and states for unknown bikes are kept.
type Snapshot struct {
	Bikes          []bike.Bike
	StatesByBikeID map[string]bike.State
	FetchedAt      time.Time
}

// Merge builds a Snapshot from the two decoded vendor responses.
//
// Non-list responses count as empty lists. States without a bike id are
// dropped; on duplicate ids the later entry wins.
func Merge(rawBikes, rawStates any, fetchedAt time.Time) *Snapshot {
	states := bike.ParseStates(rawStates)
	byID := make(map[string]bike.State, len(states))
	for _, s := range states {
		if s.BikeID == "" {
			continue
		}
		byID[s.BikeID] = s
	}

	return &Snapshot{
		Bikes:          bike.ParseBikes(rawBikes),
		StatesByBikeID: byID,
		FetchedAt:      fetchedAt,
	}
}

// Bike returns the bike with the given id.
func (s *Snapshot) Bike(id string) (bike.Bike, bool) {
	if s == nil || id == "" {
		return bike.Bike{}, false
	}
	for _, b := range s.Bikes {
		if b.ID == id {
			return b, true
		}
	}
	return bike.Bike{}, false
}

// State returns the telemetry for id, or the zero State when there is none.
func (s *Snapshot) State(id string) bike.State {
	if s == nil {
		return bike.State{}
	}
	return s.StatesByBikeID[id]
}

// Len returns the number of bikes in the device list.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bikes)
}
