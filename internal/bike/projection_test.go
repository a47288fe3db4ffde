package bike

import "testing"

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		bike Bike
		want string
	}{
		{"nickname and frame", Bike{ID: "A1", NickName: "Cargo", FrameNumber: "F-1"}, "Cargo (F-1)"},
		{"nickname only", Bike{ID: "A1", NickName: "Cargo"}, "Cargo"},
		{"frame only", Bike{ID: "A1", FrameNumber: "F-1"}, "F-1"},
		{"id only", Bike{ID: "A1"}, "A1"},
		{"nothing", Bike{}, PlaceholderName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayName(tt.bike); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDisplayName_NeverEmpty(t *testing.T) {
	values := []string{"", "x"}
	for _, nick := range values {
		for _, frame := range values {
			for _, id := range values {
				b := Bike{ID: id, NickName: nick, FrameNumber: frame}
				if DisplayName(b) == "" {
					t.Errorf("DisplayName(%+v) is empty", b)
				}
			}
		}
	}
}

func TestManufacturerLabel(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"UA", "Urban Arrow"},
		{"GZ", DefaultManufacturer},
		{"", DefaultManufacturer},
		{"ua", DefaultManufacturer},
	}
	for _, tt := range tests {
		if got := ManufacturerLabel(Bike{ManufacturerID: tt.id}); got != tt.want {
			t.Errorf("ManufacturerLabel(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestHardwareVersionTag(t *testing.T) {
	tests := []struct {
		name   string
		bike   Bike
		want   string
		wantOK bool
	}{
		{"all fields", Bike{Category: "cargo", Type: "family", Color: "black", DriveUnitType: "bosch"}, "cargo-family-black-bosch", true},
		{"gaps skipped", Bike{Category: "cargo", Color: "black"}, "cargo-black", true},
		{"order is fixed", Bike{DriveUnitType: "bosch", Type: "family"}, "family-bosch", true},
		{"all empty", Bike{}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := HardwareVersionTag(tt.bike)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("HardwareVersionTag() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestModelAndSerial(t *testing.T) {
	if got := Model(Bike{DisplayName: "Family", SKU: "UA-FAM"}); got != "Family" {
		t.Errorf("Model() = %q, want display name", got)
	}
	if got := Model(Bike{SKU: "UA-FAM"}); got != "UA-FAM" {
		t.Errorf("Model() = %q, want sku", got)
	}
	if got := Model(Bike{}); got != DefaultModel {
		t.Errorf("Model() = %q, want %q", got, DefaultModel)
	}

	if _, ok := SerialNumber(Bike{}); ok {
		t.Error("SerialNumber() ok = true for bike without frame number")
	}
	if s, ok := SerialNumber(Bike{FrameNumber: "F-1"}); !ok || s != "F-1" {
		t.Errorf("SerialNumber() = (%q, %v)", s, ok)
	}
}

func TestPosition(t *testing.T) {
	lat, lon, ok := Position(State{Location: &Coordinate{Latitude: 52.1, Longitude: 4.3}})
	if !ok || lat != 52.1 || lon != 4.3 {
		t.Errorf("Position() = (%v, %v, %v)", lat, lon, ok)
	}

	if _, _, ok := Position(State{}); ok {
		t.Error("Position() ok = true for state without location")
	}

	// Latitude present, longitude missing: the parse step drops the pair.
	states := ParseStates(decode(t, `[{"bikeId":"A1","location":{"coordinate":{"latitude":52.1}}}]`))
	if _, _, ok := Position(states[0]); ok {
		t.Error("Position() must collapse when longitude is absent")
	}
}

func TestOdometer(t *testing.T) {
	tests := []struct {
		name   string
		state  State
		want   float64
		wantOK bool
	}{
		{"string", State{BikeTelemetry: map[string]any{"odometer": "123.4"}}, 123.4, true},
		{"number", State{BikeTelemetry: map[string]any{"odometer": float64(88)}}, 88, true},
		{"garbage", State{BikeTelemetry: map[string]any{"odometer": "n/a"}}, 0, false},
		{"missing", State{BikeTelemetry: map[string]any{}}, 0, false},
		{"no telemetry", State{}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Odometer(tt.state)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Odometer() = (%v, %v), want (%v, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestModuleCharge(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		want   int
		wantOK bool
	}{
		{"integer", float64(87), 87, true},
		{"fraction truncated", float64(87.9), 87, true},
		{"integer string", "55", 55, true},
		{"decimal string", "55.5", 0, false},
		{"bool", true, 0, false},
		{"null", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := State{IoTTelemetry: map[string]any{"moduleCharge": tt.value}}
			got, ok := ModuleCharge(s)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ModuleCharge() = (%v, %v), want (%v, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
