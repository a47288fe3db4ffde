package api

import (
	"time"

	"github.com/nerrad567/ponbike-core/internal/bike"
	"github.com/nerrad567/ponbike-core/internal/coordinator"
	"github.com/nerrad567/ponbike-core/internal/entity"
)

// bikeView is one bike with its latest telemetry, as returned by /bikes.
type bikeView struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Manufacturer    string   `json:"manufacturer"`
	Model           string   `json:"model"`
	SerialNumber    string   `json:"serial_number,omitempty"`
	HWVersion       string   `json:"hw_version,omitempty"`
	OdometerKM      *float64 `json:"odometer_km"`
	ModuleChargePct *int     `json:"module_charge_pct"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
	LastOnline      string   `json:"last_online,omitempty"`
	HasTelemetry    bool     `json:"has_telemetry"`
}

// snapshotView is the payload of GET /bikes and of snapshot.updated events.
type snapshotView struct {
	EntryID   string     `json:"entry_id"`
	FetchedAt time.Time  `json:"fetched_at"`
	Count     int        `json:"count"`
	Bikes     []bikeView `json:"bikes"`
}

// entityView is one entity plus its current rendered state.
type entityView struct {
	entity.Entity
	State entity.State `json:"state"`
}

func newBikeView(b bike.Bike, snap *coordinator.Snapshot) bikeView {
	s, hasState := snap.StatesByBikeID[b.ID]
	v := bikeView{
		ID:           b.ID,
		Name:         bike.DisplayName(b),
		Manufacturer: bike.ManufacturerLabel(b),
		Model:        bike.Model(b),
		LastOnline:   bike.LastOnline(s),
		HasTelemetry: hasState,
	}
	v.SerialNumber, _ = bike.SerialNumber(b)
	v.HWVersion, _ = bike.HardwareVersionTag(b)

	if km, ok := bike.Odometer(s); ok {
		v.OdometerKM = &km
	}
	if pct, ok := bike.ModuleCharge(s); ok {
		v.ModuleChargePct = &pct
	}
	if lat, lon, ok := bike.Position(s); ok {
		v.Latitude = &lat
		v.Longitude = &lon
	}
	return v
}

// newSnapshotView lists every bike with an id. Bikes without one cannot be
// addressed and are left out, as they are for entities.
func newSnapshotView(entryID string, snap *coordinator.Snapshot) snapshotView {
	view := snapshotView{
		EntryID:   entryID,
		FetchedAt: snap.FetchedAt.UTC(),
		Bikes:     make([]bikeView, 0, snap.Len()),
	}
	for _, b := range snap.Bikes {
		if b.ID == "" {
			continue
		}
		view.Bikes = append(view.Bikes, newBikeView(b, snap))
	}
	view.Count = len(view.Bikes)
	return view
}
