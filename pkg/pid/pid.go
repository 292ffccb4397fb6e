package pid

import (
	"fmt"
	"sort"
	"strings"
)

// ID identifies one queryable vehicle parameter.
// Values follow the SAE J1979 mode-01 PID numbering where applicable,
// but the type is opaque to the rest of the system.
type ID uint16

// Well-known mode-01 parameter IDs.
const (
	IDEngineLoad       ID = 0x04
	IDCoolantTemp      ID = 0x05
	IDFuelPressure     ID = 0x0A
	IDIntakePressure   ID = 0x0B
	IDEngineRPM        ID = 0x0C
	IDVehicleSpeed     ID = 0x0D
	IDTimingAdvance    ID = 0x0E
	IDIntakeAirTemp    ID = 0x0F
	IDMAFRate          ID = 0x10
	IDThrottlePosition ID = 0x11
	IDRuntime          ID = 0x1F
	IDFuelLevel        ID = 0x2F
	IDBarometric       ID = 0x33
	IDControlVoltage   ID = 0x42
	IDAmbientAirTemp   ID = 0x46
	IDOilTemp          ID = 0x5C
)

// String returns the parameter name if known, otherwise "PID 0xNN".
func (id ID) String() string {
	if info, ok := catalog[id]; ok {
		return info.Name
	}
	return fmt.Sprintf("PID 0x%02X", uint16(id))
}

// Hex returns the stable hexadecimal form, e.g. "0x0C". Unlike String it
// never substitutes the catalog name, so it suits wire and API use.
func (id ID) Hex() string {
	return fmt.Sprintf("0x%02X", uint16(id))
}

// Kind classifies a parameter for stream routing. Measurements arriving
// for a KindUnknown parameter are dropped by the supervisor.
type Kind uint8

const (
	// KindUnknown marks parameters this core does not route.
	KindUnknown Kind = iota

	// KindEngine covers engine internals (RPM, load, timing, oil).
	KindEngine

	// KindVehicle covers vehicle motion and environment (speed, ambient).
	KindVehicle

	// KindFuel covers the fuel system (level, pressure, MAF).
	KindFuel

	// KindEmissions covers emissions-related readings.
	KindEmissions
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindEngine:
		return "ENGINE"
	case KindVehicle:
		return "VEHICLE"
	case KindFuel:
		return "FUEL"
	case KindEmissions:
		return "EMISSIONS"
	default:
		return "UNKNOWN"
	}
}

// Unit tags the physical unit of a measurement value.
type Unit uint8

const (
	UnitNone Unit = iota
	UnitRPM
	UnitKmh
	UnitCelsius
	UnitPercent
	UnitKPa
	UnitVolt
	UnitGramsPerSec
	UnitDegrees
	UnitSeconds
)

// String returns the unit symbol.
func (u Unit) String() string {
	switch u {
	case UnitRPM:
		return "rpm"
	case UnitKmh:
		return "km/h"
	case UnitCelsius:
		return "°C"
	case UnitPercent:
		return "%"
	case UnitKPa:
		return "kPa"
	case UnitVolt:
		return "V"
	case UnitGramsPerSec:
		return "g/s"
	case UnitDegrees:
		return "°"
	case UnitSeconds:
		return "s"
	default:
		return ""
	}
}

// Measurement is one decoded reading for a parameter. Arrival order is the
// only ordering guarantee; the transport attaches no timestamps.
type Measurement struct {
	Value float64
	Unit  Unit
}

// String formats the measurement with its unit symbol.
func (m Measurement) String() string {
	if m.Unit == UnitNone {
		return fmt.Sprintf("%g", m.Value)
	}
	return fmt.Sprintf("%g %s", m.Value, m.Unit)
}

// Info describes a cataloged parameter.
type Info struct {
	Name string
	Kind Kind
	Unit Unit
}

var catalog = map[ID]Info{
	IDEngineLoad:       {"Engine load", KindEngine, UnitPercent},
	IDCoolantTemp:      {"Coolant temperature", KindEngine, UnitCelsius},
	IDFuelPressure:     {"Fuel pressure", KindFuel, UnitKPa},
	IDIntakePressure:   {"Intake manifold pressure", KindEngine, UnitKPa},
	IDEngineRPM:        {"Engine RPM", KindEngine, UnitRPM},
	IDVehicleSpeed:     {"Vehicle speed", KindVehicle, UnitKmh},
	IDTimingAdvance:    {"Timing advance", KindEngine, UnitDegrees},
	IDIntakeAirTemp:    {"Intake air temperature", KindEngine, UnitCelsius},
	IDMAFRate:          {"MAF air flow rate", KindFuel, UnitGramsPerSec},
	IDThrottlePosition: {"Throttle position", KindEngine, UnitPercent},
	IDRuntime:          {"Engine run time", KindEngine, UnitSeconds},
	IDFuelLevel:        {"Fuel level", KindFuel, UnitPercent},
	IDBarometric:       {"Barometric pressure", KindVehicle, UnitKPa},
	IDControlVoltage:   {"Control module voltage", KindEngine, UnitVolt},
	IDAmbientAirTemp:   {"Ambient air temperature", KindVehicle, UnitCelsius},
	IDOilTemp:          {"Engine oil temperature", KindEngine, UnitCelsius},
}

// Known returns the cataloged parameter IDs in ascending order.
func Known() []ID {
	ids := make([]ID, 0, len(catalog))
	for id := range catalog {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Lookup returns catalog information for a parameter.
// The second return value is false for parameters not in the catalog.
func Lookup(id ID) (Info, bool) {
	info, ok := catalog[id]
	return info, ok
}

// KindOf returns the routing kind for a parameter.
// Uncataloged parameters are KindUnknown.
func KindOf(id ID) Kind {
	if info, ok := catalog[id]; ok {
		return info.Kind
	}
	return KindUnknown
}

// Set is an unordered set of parameter IDs.
type Set map[ID]struct{}

// NewSet builds a set from the given IDs.
func NewSet(ids ...ID) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is in the set.
func (s Set) Contains(id ID) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id into the set.
func (s Set) Add(id ID) {
	s[id] = struct{}{}
}

// Union returns a new set containing all IDs from s and other.
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Equal reports whether both sets contain exactly the same IDs.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if _, ok := other[id]; !ok {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Sorted returns the set's IDs in ascending order.
func (s Set) Sorted() []ID {
	ids := make([]ID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// String formats the set as a sorted, comma-separated list of names.
func (s Set) String() string {
	if len(s) == 0 {
		return "(empty)"
	}
	names := make([]string, 0, len(s))
	for _, id := range s.Sorted() {
		names = append(names, id.String())
	}
	return strings.Join(names, ", ")
}
