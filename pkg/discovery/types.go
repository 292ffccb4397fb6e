package discovery

import (
	"errors"
	"net"
	"strconv"
	"time"
)

// Service type constants for mDNS.
const (
	// ServiceTypeAdapter is the service type announced by OBD adapters.
	ServiceTypeAdapter = "_obdkit._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default adapter port.
	DefaultPort = 35000
)

// TXT record key constants.
const (
	TXTKeySerial   = "serial" // Adapter serial number
	TXTKeyProtocol = "pr"     // Diagnostic protocol (e.g. "ISO15765-4")
	TXTKeyFirmware = "fw"     // Firmware version (optional)
	TXTKeyName     = "DN"     // User-configurable adapter name (optional)
	TXTKeyVehicle  = "VIN"    // VIN of the connected vehicle (optional)
)

// Timing constants.
const (
	// BrowseTimeout is the default timeout for mDNS browsing.
	BrowseTimeout = 10 * time.Second
)

// Limits.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63
)

// Discovery errors.
var (
	ErrMissingRequired  = errors.New("missing required TXT key")
	ErrInvalidTXTRecord = errors.New("invalid TXT record")
	ErrNotFound         = errors.New("adapter not found")
)

// AdapterInfo describes an adapter for advertisement.
type AdapterInfo struct {
	// Serial is the adapter serial number. Required.
	Serial string

	// Protocol names the diagnostic protocol the adapter speaks. Required.
	Protocol string

	// Firmware is the adapter firmware version.
	Firmware string

	// Name is a user-configurable display name.
	Name string

	// Vehicle is the VIN of the vehicle the adapter is plugged into,
	// if the adapter knows it.
	Vehicle string

	// Port is the TCP port the adapter listens on. Zero means DefaultPort.
	Port uint16
}

// AdapterService is a discovered adapter.
type AdapterService struct {
	// InstanceName is the mDNS instance name.
	InstanceName string

	// HostName is the advertised host.
	HostName string

	// Port is the TCP port.
	Port int

	// Addresses are the resolved IP addresses, aggregated across
	// interfaces.
	Addresses []net.IP

	// Info holds the decoded TXT record.
	Info AdapterInfo
}

// Addr returns the first usable "host:port" address, preferring IPv4,
// or the empty string when no address was resolved.
func (s *AdapterService) Addr() string {
	var pick net.IP
	for _, ip := range s.Addresses {
		if ip.To4() != nil {
			pick = ip
			break
		}
		if pick == nil {
			pick = ip
		}
	}
	if pick == nil {
		return ""
	}
	return net.JoinHostPort(pick.String(), strconv.Itoa(s.Port))
}
