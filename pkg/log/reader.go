package log

import (
	"bufio"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter narrows which events a Reader yields. Zero-valued fields are
// ignored, so the zero Filter matches everything.
type Filter struct {
	// SessionID requires an exact session match.
	SessionID string

	// Category requires an exact category match.
	Category *Category

	// TimeStart drops events before this instant.
	TimeStart *time.Time

	// TimeEnd drops events at or after this instant.
	TimeEnd *time.Time
}

func (f Filter) matches(event Event) bool {
	switch {
	case f.SessionID != "" && event.SessionID != f.SessionID:
		return false
	case f.Category != nil && event.Category != *f.Category:
		return false
	case f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart):
		return false
	case f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd):
		return false
	}
	return true
}

// Reader streams telemetry events out of a CBOR log file one at a time,
// so arbitrarily large files never need to fit in memory.
type Reader struct {
	file   *os.File
	dec    *cbor.Decoder
	filter Filter
}

// NewReader opens path and yields every event in it.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens path and yields only events matching filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		file:   f,
		dec:    NewDecoder(bufio.NewReader(f)),
		filter: filter,
	}, nil
}

// Next returns the next matching event, or io.EOF at end of file.
func (r *Reader) Next() (Event, error) {
	var event Event
	for {
		if err := r.dec.Decode(&event); err != nil {
			return Event{}, err
		}
		if r.filter.matches(event) {
			return event, nil
		}
	}
}

// ReadAll drains the remaining matching events.
func (r *Reader) ReadAll() ([]Event, error) {
	var events []Event
	for {
		event, err := r.Next()
		if err != nil {
			if err == io.EOF {
				err = nil
			}
			return events, err
		}
		events = append(events, event)
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
