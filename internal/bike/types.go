package bike

// Vendor JSON field names.
const (
	FieldBikeID         = "bikeId"
	FieldNickName       = "nickName"
	FieldNickNameLower  = "nickname"
	FieldFrameNumber    = "frameNumber"
	FieldDisplayName    = "displayName"
	FieldSKU            = "sku"
	FieldManufacturerID = "manufacturerId"
	FieldCategory       = "category"
	FieldType           = "type"
	FieldColor          = "color"
	FieldDriveUnitType  = "driveUnitType"

	FieldLocation      = "location"
	FieldCoordinate    = "coordinate"
	FieldLatitude      = "latitude"
	FieldLongitude     = "longitude"
	FieldBikeTelemetry = "bikeTelemetry"
	FieldIoTTelemetry  = "iotTelemetry"
	FieldOdometer      = "odometer"
	FieldModuleCharge  = "moduleCharge"
	FieldLastOnline    = "lastOnline"
)

// Bike is one fleet member as returned by the bikes info endpoint.
//
// Every field defaults to "" when the vendor omits it. Instances are replaced
// wholesale on each refresh cycle and never mutated afterwards.
type Bike struct {
	ID             string
	NickName       string
	FrameNumber    string
	DisplayName    string
	SKU            string
	ManufacturerID string
	Category       string
	Type           string
	Color          string
	DriveUnitType  string

	// Raw is the vendor object exactly as decoded. Nil when the list item
	// was not a JSON object.
	Raw map[string]any
}

// Coordinate is a geographic position. Both values are always finite.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// State is the latest known telemetry for one bike.
//
// The zero State means "no telemetry" and is what readers get for bikes the
// last-known-states endpoint did not mention.
type State struct {
	BikeID string

	// Location is nil unless both latitude and longitude parsed as finite
	// numbers. A position is never partially reported.
	Location *Coordinate

	BikeTelemetry map[string]any
	IoTTelemetry  map[string]any
	LastOnline    string

	Raw map[string]any
}

// IsZero reports whether s carries no telemetry at all.
func (s State) IsZero() bool {
	return s.BikeID == "" && s.Location == nil && s.BikeTelemetry == nil &&
		s.IoTTelemetry == nil && s.LastOnline == "" && s.Raw == nil
}
