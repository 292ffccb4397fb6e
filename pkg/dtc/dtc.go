package dtc

import (
	"errors"
	"fmt"
	"strings"
)

// Parse errors.
var (
	ErrInvalidLength = errors.New("trouble code must be five characters")
	ErrInvalidSystem = errors.New("trouble code must start with P, C, B, or U")
	ErrInvalidDigits = errors.New("trouble code digits must be hexadecimal")
)

// System identifies the vehicle subsystem a code belongs to.
type System uint8

const (
	// SystemPowertrain covers engine and transmission codes (P).
	SystemPowertrain System = iota

	// SystemChassis covers chassis codes (C).
	SystemChassis

	// SystemBody covers body codes (B).
	SystemBody

	// SystemNetwork covers network/communication codes (U).
	SystemNetwork
)

// String returns the system's code letter.
func (s System) String() string {
	switch s {
	case SystemPowertrain:
		return "P"
	case SystemChassis:
		return "C"
	case SystemBody:
		return "B"
	case SystemNetwork:
		return "U"
	default:
		return "?"
	}
}

// Name returns the system's full name.
func (s System) Name() string {
	switch s {
	case SystemPowertrain:
		return "Powertrain"
	case SystemChassis:
		return "Chassis"
	case SystemBody:
		return "Body"
	case SystemNetwork:
		return "Network"
	default:
		return "Unknown"
	}
}

// Code is one decoded diagnostic trouble code.
type Code struct {
	// System is the subsystem letter.
	System System

	// Digits are the four hex digits following the letter, e.g. "0301".
	Digits string
}

// Parse decodes a five-character trouble code string like "P0301".
// Lowercase input is accepted.
func Parse(s string) (Code, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 5 {
		return Code{}, fmt.Errorf("%w: %q", ErrInvalidLength, s)
	}

	var system System
	switch s[0] {
	case 'P':
		system = SystemPowertrain
	case 'C':
		system = SystemChassis
	case 'B':
		system = SystemBody
	case 'U':
		system = SystemNetwork
	default:
		return Code{}, fmt.Errorf("%w: %q", ErrInvalidSystem, s)
	}

	digits := s[1:]
	for _, r := range digits {
		if (r < '0' || r > '9') && (r < 'A' || r > 'F') {
			return Code{}, fmt.Errorf("%w: %q", ErrInvalidDigits, s)
		}
	}

	return Code{System: system, Digits: digits}, nil
}

// MustParse is Parse for statically-known codes; it panics on error.
func MustParse(s string) Code {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// String returns the canonical five-character form.
func (c Code) String() string {
	return c.System.String() + c.Digits
}

// IsGeneric reports whether the code is in the SAE-defined generic range
// (second character 0) as opposed to manufacturer-specific.
func (c Code) IsGeneric() bool {
	return len(c.Digits) == 4 && c.Digits[0] == '0'
}
