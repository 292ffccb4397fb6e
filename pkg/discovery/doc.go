// Package discovery finds OBD network adapters on the local network via
// mDNS/DNS-SD.
//
// WiFi OBD adapters announce themselves as "_obdkit._tcp" services with a
// TXT record describing the adapter (serial number, supported protocol,
// firmware). The package has two halves:
//
//   - Advertiser registers an adapter service, used by simulators and by
//     adapter firmware bridges.
//   - Browser watches for adapter services and reports them as they appear
//     and disappear, aggregating addresses across network interfaces.
//
// The TXT codec (EncodeAdapterTXT, DecodeAdapterTXT) is separated from the
// mDNS plumbing so it can be tested without network access.
package discovery
