package entity

import (
	"fmt"

	"github.com/nerrad567/ponbike-core/internal/bike"
	"github.com/nerrad567/ponbike-core/internal/coordinator"
)

// Platform is the kind of presentation object an entity maps to.
type Platform string

const (
	PlatformSensor        Platform = "sensor"
	PlatformDeviceTracker Platform = "device_tracker"
)

// Entity keys, one per bike.
const (
	KeyOdometer     = "odometer"
	KeyModuleCharge = "module_charge"
	KeyTracker      = "tracker"
)

// Tracker attribute names.
const (
	AttrBikeID          = "bikeId"
	AttrLastOnline      = "lastOnline"
	AttrOdometerKM      = "odometer_km"
	AttrModuleChargePct = "module_charge_pct"
)

const objectIDPrefix = "ponbike"

// DeviceInfo describes the bike an entity belongs to.
type DeviceInfo struct {
	Identifier   string `json:"identifier"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	SerialNumber string `json:"serial_number,omitempty"`
	HWVersion    string `json:"hw_version,omitempty"`
}

// Entity is one presentation object for one bike. It holds identity and
// static metadata only; values come from Render.
type Entity struct {
	Key      string   `json:"key"`
	Platform Platform `json:"platform"`
	EntryID  string   `json:"entry_id"`
	BikeID   string   `json:"bike_id"`

	// UniqueID is stable across restarts: {entry}_{bike}_{key}.
	UniqueID string `json:"unique_id"`
	// ObjectID is the suggested short id: ponbike_{entry}_{bike}_{key}.
	ObjectID string `json:"object_id"`
	Name     string `json:"name"`

	Unit        string `json:"unit,omitempty"`
	DeviceClass string `json:"device_class,omitempty"`
	StateClass  string `json:"state_class,omitempty"`
	Icon        string `json:"icon,omitempty"`

	Device DeviceInfo `json:"device"`
}

// State is the rendered value of an entity.
//
// Sensors set Value (nil when unknown). Trackers set Latitude and Longitude
// (both nil when the position is unknown) plus Attributes.
type State struct {
	Value      any            `json:"value"`
	Latitude   *float64       `json:"latitude,omitempty"`
	Longitude  *float64       `json:"longitude,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Build creates the entities for every bike in snap with a non-empty id:
// an odometer sensor, a module charge sensor and a location tracker.
// A nil snapshot yields no entities.
func Build(entryID string, snap *coordinator.Snapshot) []Entity {
	if snap == nil {
		return nil
	}

	entities := make([]Entity, 0, len(snap.Bikes)*3)
	for _, b := range snap.Bikes {
		if b.ID == "" {
			continue
		}
		entities = append(entities, ForBike(entryID, b)...)
	}
	return entities
}

// ForBike returns the three entities of b.
func ForBike(entryID string, b bike.Bike) []Entity {
	name := bike.DisplayName(b)
	device := deviceInfo(b)

	base := func(key string, platform Platform, suffix string) Entity {
		return Entity{
			Key:      key,
			Platform: platform,
			EntryID:  entryID,
			BikeID:   b.ID,
			UniqueID: fmt.Sprintf("%s_%s_%s", entryID, b.ID, key),
			ObjectID: fmt.Sprintf("%s_%s_%s_%s", objectIDPrefix, entryID, b.ID, key),
			Name:     name + " " + suffix,
			Device:   device,
		}
	}

	odometer := base(KeyOdometer, PlatformSensor, "Odometer")
	odometer.Unit = "km"
	odometer.StateClass = "total_increasing"
	odometer.Icon = "mdi:counter"

	charge := base(KeyModuleCharge, PlatformSensor, "Module charge")
	charge.Unit = "%"
	charge.DeviceClass = "battery"
	charge.Icon = "mdi:battery"

	tracker := base(KeyTracker, PlatformDeviceTracker, "Location")

	return []Entity{odometer, charge, tracker}
}

// Render reads the entity's current value from snap. It keeps no state of
// its own, so a new snapshot is reflected on the next call.
func (e Entity) Render(snap *coordinator.Snapshot) State {
	s := snap.State(e.BikeID)

	switch e.Key {
	case KeyOdometer:
		if km, ok := bike.Odometer(s); ok {
			return State{Value: km}
		}
	case KeyModuleCharge:
		if pct, ok := bike.ModuleCharge(s); ok {
			return State{Value: pct}
		}
	case KeyTracker:
		return renderTracker(e.BikeID, s)
	}
	return State{}
}

func renderTracker(bikeID string, s bike.State) State {
	st := State{
		Attributes: map[string]any{
			AttrBikeID:          bikeID,
			AttrLastOnline:      nilIfEmpty(bike.LastOnline(s)),
			AttrOdometerKM:      s.BikeTelemetry[bike.FieldOdometer],
			AttrModuleChargePct: s.IoTTelemetry[bike.FieldModuleCharge],
		},
	}
	if lat, lon, ok := bike.Position(s); ok {
		st.Latitude = &lat
		st.Longitude = &lon
	}
	return st
}

func deviceInfo(b bike.Bike) DeviceInfo {
	d := DeviceInfo{
		Identifier:   b.ID,
		Name:         bike.DisplayName(b),
		Manufacturer: bike.ManufacturerLabel(b),
		Model:        bike.Model(b),
	}
	d.SerialNumber, _ = bike.SerialNumber(b)
	d.HWVersion, _ = bike.HardwareVersionTag(b)
	return d
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
