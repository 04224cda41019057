package types

import (
	"fmt"
)

// OperatingMode of a channel, or of the bridge as a whole.
type OperatingMode uint8

const (
	Normal OperatingMode = iota
	RejectingOutbound
)

func (m OperatingMode) String() string {
	switch m {
	case Normal:
		return "normal"
	case RejectingOutbound:
		return "rejecting-outbound"
	default:
		return fmt.Sprintf("OperatingMode(%d)", uint8(m))
	}
}

func (m OperatingMode) Valid() bool {
	return m == Normal || m == RejectingOutbound
}

func (m OperatingMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown operating mode %d", uint8(m))
	}
	return []byte(m.String()), nil
}

func (m *OperatingMode) UnmarshalText(data []byte) error {
	switch string(data) {
	case "normal":
		*m = Normal
	case "rejecting-outbound":
		*m = RejectingOutbound
	default:
		return fmt.Errorf("unknown operating mode %q", data)
	}
	return nil
}
