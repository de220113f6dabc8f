package sensor

import (
	"net"
	"strings"

	"codeberg.org/mutker/imuproducer/internal/errors"
)

// deviceIDLength is the length of a colon separated 6 byte address
const deviceIDLength = 17

// DeviceID is a Bluetooth address such as 00:06:66:AA:BB:CC
type DeviceID string

func (d DeviceID) String() string {
	return string(d)
}

// ParseDeviceID validates s as a device id.
func ParseDeviceID(s string) (DeviceID, error) {
	errFactory := errors.New()

	if len(s) != deviceIDLength || strings.Count(s, ":") != 5 {
		return "", errFactory.WithData(errors.ErrInvalidDevice, s)
	}

	hw, err := net.ParseMAC(s)
	if err != nil || len(hw) != 6 {
		return "", errFactory.WithData(errors.ErrInvalidDevice, s)
	}

	return DeviceID(s), nil
}

// ParseDeviceIDs validates every id in order.
func ParseDeviceIDs(ids []string) ([]DeviceID, error) {
	if len(ids) == 0 {
		return nil, errors.New().New(errors.ErrMissingDevice)
	}

	out := make([]DeviceID, 0, len(ids))
	for _, s := range ids {
		id, err := ParseDeviceID(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}

	return out, nil
}
