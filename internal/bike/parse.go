package bike

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ParseBikes converts a decoded bikes info response into Bikes.
//
// A non-list value yields an empty slice. List items that are not objects are
// kept as empty Bikes so the result stays index-aligned with the response.
func ParseBikes(v any) []Bike {
	items, ok := v.([]any)
	if !ok {
		return []Bike{}
	}

	bikes := make([]Bike, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			bikes = append(bikes, Bike{})
			continue
		}
		bikes = append(bikes, parseBike(obj))
	}
	return bikes
}

func parseBike(obj map[string]any) Bike {
	nick := stringField(obj, FieldNickName)
	if nick == "" {
		nick = stringField(obj, FieldNickNameLower)
	}
	return Bike{
		ID:             stringField(obj, FieldBikeID),
		NickName:       nick,
		FrameNumber:    stringField(obj, FieldFrameNumber),
		DisplayName:    stringField(obj, FieldDisplayName),
		SKU:            stringField(obj, FieldSKU),
		ManufacturerID: stringField(obj, FieldManufacturerID),
		Category:       stringField(obj, FieldCategory),
		Type:           stringField(obj, FieldType),
		Color:          stringField(obj, FieldColor),
		DriveUnitType:  stringField(obj, FieldDriveUnitType),
		Raw:            obj,
	}
}

// ParseStates converts a decoded last-known-states response into States.
//
// A non-list value yields an empty slice. Items that are not objects are
// skipped. Items without a bike id are returned with an empty BikeID; callers
// building an index decide what to do with them.
func ParseStates(v any) []State {
	items, ok := v.([]any)
	if !ok {
		return []State{}
	}

	states := make([]State, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		states = append(states, parseState(obj))
	}
	return states
}

func parseState(obj map[string]any) State {
	bt, _ := obj[FieldBikeTelemetry].(map[string]any)
	it, _ := obj[FieldIoTTelemetry].(map[string]any)
	return State{
		BikeID:        stringField(obj, FieldBikeID),
		Location:      parseLocation(obj[FieldLocation]),
		BikeTelemetry: bt,
		IoTTelemetry:  it,
		LastOnline:    stringField(obj, FieldLastOnline),
		Raw:           obj,
	}
}

func parseLocation(v any) *Coordinate {
	loc, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	coord, ok := loc[FieldCoordinate].(map[string]any)
	if !ok {
		return nil
	}
	lat, latOK := toFloat(coord[FieldLatitude])
	lon, lonOK := toFloat(coord[FieldLongitude])
	if !latOK || !lonOK {
		return nil
	}
	return &Coordinate{Latitude: lat, Longitude: lon}
}

// stringField returns obj[key] as a string. Scalars are stringified; absent,
// null and nested values give "".
func stringField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// toFloat accepts JSON numbers and numeric strings. NaN and infinities are
// rejected.
func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toInt accepts JSON numbers (truncated toward zero) and integer strings.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		f, ok := toFloat(v)
		if !ok {
			return 0, false
		}
		return int(f), true
	}
}
