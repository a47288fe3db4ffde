package device

import (
	"fmt"
	"unicode/utf8"
)

const maxNameLength = 200

// ValidateDevice checks the fields the registry relies on.
func ValidateDevice(d *Device) error {
	if d.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDevice)
	}
	if d.EntryID == "" {
		return fmt.Errorf("%w: entry_id is required", ErrInvalidDevice)
	}
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDevice)
	}
	if utf8.RuneCountInString(d.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidDevice, maxNameLength)
	}
	if d.Manufacturer == "" || d.Model == "" {
		return fmt.Errorf("%w: manufacturer and model are required", ErrInvalidDevice)
	}
	return nil
}
