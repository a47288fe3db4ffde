package device

import (
	"time"

	"github.com/nerrad567/ponbike-core/internal/bike"
)

// Device is the registry record of one bike on an account.
//
// It holds identity and descriptive metadata only. Telemetry lives in the
// coordinator's in-memory snapshot and is never stored here.
type Device struct {
	// ID is the vendor bike id.
	ID string `json:"id"`

	// EntryID identifies the configured account the bike belongs to.
	EntryID string `json:"entry_id"`

	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`

	// Optional; nil when the vendor does not report them.
	SerialNumber *string `json:"serial_number,omitempty"`
	HWVersion    *string `json:"hw_version,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FromBike projects a vendor bike into a registry record.
func FromBike(entryID string, b bike.Bike) Device {
	d := Device{
		ID:           b.ID,
		EntryID:      entryID,
		Name:         bike.DisplayName(b),
		Manufacturer: bike.ManufacturerLabel(b),
		Model:        bike.Model(b),
	}
	if serial, ok := bike.SerialNumber(b); ok {
		d.SerialNumber = &serial
	}
	if hw, ok := bike.HardwareVersionTag(b); ok {
		d.HWVersion = &hw
	}
	return d
}

// SameMetadata reports whether d and other describe the bike identically,
// ignoring timestamps.
func (d *Device) SameMetadata(other *Device) bool {
	return d.ID == other.ID &&
		d.EntryID == other.EntryID &&
		d.Name == other.Name &&
		d.Manufacturer == other.Manufacturer &&
		d.Model == other.Model &&
		equalStringPtr(d.SerialNumber, other.SerialNumber) &&
		equalStringPtr(d.HWVersion, other.HWVersion)
}

// DeepCopy returns a copy that shares no pointers with d.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	cp := *d
	cp.SerialNumber = copyStringPtr(d.SerialNumber)
	cp.HWVersion = copyStringPtr(d.HWVersion)
	return &cp
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
