package ble

import (
	"fmt"
	"strconv"

	"tinygo.org/x/bluetooth"
)

// ParseUUID accepts full 128-bit UUIDs and 4-digit 16-bit short forms
// ("1001"), which expand onto the Bluetooth base UUID.
func ParseUUID(s string) (bluetooth.UUID, error) {
	if len(s) == 4 {
		v, err := strconv.ParseUint(s, 16, 16)
		if err != nil {
			return bluetooth.UUID{}, fmt.Errorf("ble: invalid 16-bit UUID %q: %w", s, err)
		}
		return bluetooth.New16BitUUID(uint16(v)), nil
	}
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		return bluetooth.UUID{}, fmt.Errorf("ble: invalid UUID %q: %w", s, err)
	}
	return u, nil
}
