package log

import (
	"time"
)

// Event represents one telemetry log event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID uniquely identifies the engine session (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"3,keyasint"`

	// Type-specific payload (exactly one of these is set).
	StateChange  *StateChangeEvent  `cbor:"4,keyasint,omitempty"`
	Subscription *SubscriptionEvent `cbor:"5,keyasint,omitempty"`
	Interest     *InterestEvent     `cbor:"6,keyasint,omitempty"`
	Scan         *ScanEvent         `cbor:"7,keyasint,omitempty"`
	Drop         *DropEvent         `cbor:"8,keyasint,omitempty"`
	Error        *ErrorEvent        `cbor:"9,keyasint,omitempty"`
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryState indicates a connection state change.
	CategoryState Category = 0
	// CategorySubscription indicates a subscription open/cancel.
	CategorySubscription Category = 1
	// CategoryInterest indicates an interested-set change.
	CategoryInterest Category = 2
	// CategoryScan indicates a trouble-code scan result.
	CategoryScan Category = 3
	// CategoryDrop indicates a dropped measurement.
	CategoryDrop Category = 4
	// CategoryError indicates an error event.
	CategoryError Category = 5
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryState:
		return "STATE"
	case CategorySubscription:
		return "SUBSCRIPTION"
	case CategoryInterest:
		return "INTEREST"
	case CategoryScan:
		return "SCAN"
	case CategoryDrop:
		return "DROP"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures a connection lifecycle transition.
type StateChangeEvent struct {
	// From is the previous state name.
	From string `cbor:"1,keyasint"`

	// To is the new state name.
	To string `cbor:"2,keyasint"`

	// Reason carries the failure description for transitions into FAILED,
	// or the ignored action for guarded no-ops.
	Reason string `cbor:"3,keyasint,omitempty"`
}

// SubscriptionAction distinguishes subscription events.
type SubscriptionAction uint8

const (
	// SubscriptionOpened indicates a new transport subscription.
	SubscriptionOpened SubscriptionAction = 0
	// SubscriptionCancelled indicates the active subscription was cancelled.
	SubscriptionCancelled SubscriptionAction = 1
	// SubscriptionIdle indicates there was nothing to monitor (empty set).
	SubscriptionIdle SubscriptionAction = 2
)

// String returns the action name.
func (a SubscriptionAction) String() string {
	switch a {
	case SubscriptionOpened:
		return "OPENED"
	case SubscriptionCancelled:
		return "CANCELLED"
	case SubscriptionIdle:
		return "IDLE"
	default:
		return "UNKNOWN"
	}
}

// SubscriptionEvent captures a stream supervisor action.
type SubscriptionEvent struct {
	// Action is what happened to the subscription.
	Action SubscriptionAction `cbor:"1,keyasint"`

	// Parameters are the subscribed parameter IDs (empty for cancel/idle).
	Parameters []uint16 `cbor:"2,keyasint,omitempty"`
}

// InterestEvent captures a published interested-set change.
type InterestEvent struct {
	// Tokens is the number of live interest tokens.
	Tokens int `cbor:"1,keyasint"`

	// Parameters is the new union of all tokens' sets.
	Parameters []uint16 `cbor:"2,keyasint,omitempty"`
}

// ScanEvent captures the trouble-code scan performed on connect.
type ScanEvent struct {
	// Codes are the reported codes in canonical form (e.g. "P0301").
	Codes []string `cbor:"1,keyasint,omitempty"`
}

// DropEvent captures a measurement discarded during routing.
type DropEvent struct {
	// Parameter is the parameter ID the measurement arrived for.
	Parameter uint16 `cbor:"1,keyasint"`

	// Reason describes why it was dropped.
	Reason string `cbor:"2,keyasint"`
}

// ErrorEvent captures an error at any layer.
type ErrorEvent struct {
	// Op names the operation that failed (e.g. "subscribe", "scan").
	Op string `cbor:"1,keyasint"`

	// Message is the error text.
	Message string `cbor:"2,keyasint"`
}
