package bike

import (
	"fmt"
	"strings"
)

// Fallback labels.
const (
	PlaceholderName     = "Bike"
	DefaultManufacturer = "PON"
	DefaultModel        = "Connected Bike"
)

// manufacturers maps the vendor manufacturer discriminator to a display label.
var manufacturers = map[string]string{
	"UA": "Urban Arrow",
}

// DisplayName returns a human name for b. It is never empty.
//
// Preference order: "{nickname} ({frame})", nickname, frame number, bike id,
// then PlaceholderName.
func DisplayName(b Bike) string {
	switch {
	case b.NickName != "" && b.FrameNumber != "":
		return fmt.Sprintf("%s (%s)", b.NickName, b.FrameNumber)
	case b.NickName != "":
		return b.NickName
	case b.FrameNumber != "":
		return b.FrameNumber
	case b.ID != "":
		return b.ID
	default:
		return PlaceholderName
	}
}

// ManufacturerLabel returns the brand shown for b.
func ManufacturerLabel(b Bike) string {
	if label, ok := manufacturers[b.ManufacturerID]; ok {
		return label
	}
	return DefaultManufacturer
}

// HardwareVersionTag joins the non-empty hardware descriptors in the fixed
// order category, type, color, drive unit type. ok is false when all are empty.
func HardwareVersionTag(b Bike) (tag string, ok bool) {
	parts := make([]string, 0, 4)
	for _, p := range []string{b.Category, b.Type, b.Color, b.DriveUnitType} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "-"), true
}

// Model returns the vendor display name, then the SKU, then DefaultModel.
func Model(b Bike) string {
	switch {
	case b.DisplayName != "":
		return b.DisplayName
	case b.SKU != "":
		return b.SKU
	default:
		return DefaultModel
	}
}

// SerialNumber returns the frame number; ok is false when it is unknown.
func SerialNumber(b Bike) (string, bool) {
	return b.FrameNumber, b.FrameNumber != ""
}

// Position returns the coordinates of s. ok is false unless both latitude
// and longitude are known.
func Position(s State) (lat, lon float64, ok bool) {
	if s.Location == nil {
		return 0, 0, false
	}
	return s.Location.Latitude, s.Location.Longitude, true
}

// Odometer returns bikeTelemetry.odometer in kilometres.
func Odometer(s State) (float64, bool) {
	if s.BikeTelemetry == nil {
		return 0, false
	}
	return toFloat(s.BikeTelemetry[FieldOdometer])
}

// ModuleCharge returns iotTelemetry.moduleCharge as a percentage.
func ModuleCharge(s State) (int, bool) {
	if s.IoTTelemetry == nil {
		return 0, false
	}
	return toInt(s.IoTTelemetry[FieldModuleCharge])
}

// LastOnline returns the vendor's last-online timestamp verbatim.
func LastOnline(s State) string {
	return s.LastOnline
}
