package log

// MultiLogger fans an event out to several loggers, typically a
// SlogAdapter for the console plus a FileLogger sink.
type MultiLogger []Logger

// NewMultiLogger combines loggers into one. Nil entries are skipped.
func NewMultiLogger(loggers ...Logger) MultiLogger {
	out := make(MultiLogger, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

// Log delivers the event to every logger in order.
func (m MultiLogger) Log(event Event) {
	for _, l := range m {
		l.Log(event)
	}
}

// Compile-time interface satisfaction check.
var _ Logger = MultiLogger(nil)
