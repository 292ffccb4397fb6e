// Package dtc defines diagnostic trouble code values.
//
// A trouble code is the five-character identifier reported by a vehicle's
// diagnostic system, e.g. "P0301". The first letter names the subsystem,
// the remaining four characters are hex digits. The transport performs the
// actual scan; this package only models the decoded codes carried as
// read-only state after a successful connect.
package dtc
