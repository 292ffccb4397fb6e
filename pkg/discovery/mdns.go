package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// Advertiser announces an adapter service via mDNS.
type Advertiser struct {
	mu    sync.Mutex
	iface string

	server *zeroconf.Server
}

// NewAdvertiser creates an advertiser. iface selects a network interface
// by name; the empty string means all interfaces.
func NewAdvertiser(iface string) *Advertiser {
	return &Advertiser{iface: iface}
}

// Advertise starts announcing the adapter. A previous announcement is
// replaced.
func (a *Advertiser) Advertise(info *AdapterInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	instanceName := "OBD-" + info.Serial
	if len(instanceName) > MaxInstanceNameLen {
		instanceName = instanceName[:MaxInstanceNameLen]
	}

	txtStrings := TXTRecordsToStrings(EncodeAdapterTXT(info))

	port := int(info.Port)
	if port == 0 {
		port = DefaultPort
	}

	server, err := zeroconf.Register(
		instanceName,
		ServiceTypeAdapter,
		Domain,
		port,
		txtStrings,
		a.interfaces(),
	)
	if err != nil {
		return fmt.Errorf("failed to register adapter service: %w", err)
	}

	a.server = server
	return nil
}

// Stop stops the announcement.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

func (a *Advertiser) interfaces() []net.Interface {
	if a.iface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.iface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Browser searches for adapter services via mDNS.
type Browser struct {
	iface string
}

// NewBrowser creates a browser. iface selects a network interface by
// name; the empty string means all interfaces.
func NewBrowser(iface string) *Browser {
	return &Browser{iface: iface}
}

// Browse searches for adapters until the context is cancelled.
// Services are aggregated by instance name so addresses seen on multiple
// interfaces are combined into a single entry; an adapter is emitted once
// when first seen.
func (b *Browser) Browse(ctx context.Context) (<-chan *AdapterService, error) {
	out := make(chan *AdapterService)

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)

		services := make(map[string]*AdapterService)

		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := entryToAdapter(entry)
				if svc == nil {
					continue
				}

				existing, found := services[svc.InstanceName]
				if found {
					existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
				} else {
					services[svc.InstanceName] = svc
					select {
					case out <- svc:
					case <-ctx.Done():
						return
					}
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				delete(services, entry.Instance)

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceTypeAdapter, Domain, entries, removed, b.options()...)
	}()

	return out, nil
}

// FindBySerial searches for the adapter with the given serial number.
// It returns when found or when the context expires.
func (b *Browser) FindBySerial(ctx context.Context, serial string) (*AdapterService, error) {
	ctx, cancel := context.WithTimeout(ctx, BrowseTimeout)
	defer cancel()

	found, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case svc, ok := <-found:
			if !ok {
				return nil, ErrNotFound
			}
			if svc.Info.Serial == serial {
				return svc, nil
			}
		case <-ctx.Done():
			return nil, ErrNotFound
		}
	}
}

func (b *Browser) options() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.iface != "" {
		if iface, err := net.InterfaceByName(b.iface); err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

// entryToAdapter converts a zeroconf entry, returning nil when the TXT
// record does not decode as an adapter.
func entryToAdapter(entry *zeroconf.ServiceEntry) *AdapterService {
	info, err := DecodeAdapterTXT(TXTRecordsFromStrings(entry.Text))
	if err != nil {
		return nil
	}
	info.Port = uint16(entry.Port)

	var addrs []net.IP
	addrs = append(addrs, entry.AddrIPv4...)
	addrs = append(addrs, entry.AddrIPv6...)

	return &AdapterService{
		InstanceName: entry.Instance,
		HostName:     entry.HostName,
		Port:         entry.Port,
		Addresses:    addrs,
		Info:         *info,
	}
}

// mergeAddresses unions two address lists, preserving order.
func mergeAddresses(existing, incoming []net.IP) []net.IP {
	for _, ip := range incoming {
		dup := false
		for _, have := range existing {
			if have.Equal(ip) {
				dup = true
				break
			}
		}
		if !dup {
			existing = append(existing, ip)
		}
	}
	return existing
}
