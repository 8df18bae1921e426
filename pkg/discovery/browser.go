package discovery

import (
	"context"
	"net"

	"github.com/enbility/zeroconf/v2"
)

// ServiceEntry is raw browse-result data, decoupled from the mDNS
// library so conversions can be exercised without a network.
type ServiceEntry struct {
	Instance string
	Host     string
	Port     int
	Text     []string
	Addrs    []string
}

// ToService converts the raw entry into a Service.
func (e *ServiceEntry) ToService() *Service {
	return &Service{
		Name:      e.Instance,
		Host:      e.Host,
		Port:      e.Port,
		Addresses: e.Addrs,
		TXT:       StringsToTXTRecords(e.Text),
	}
}

// Browser searches for _indigo._tcp services.
type Browser struct {
	config BrowserConfig
}

// NewBrowser creates a browser.
func NewBrowser(config BrowserConfig) *Browser {
	return &Browser{config: config}
}

// Browse searches for servers until ctx is cancelled. Results are
// aggregated by instance name: addresses seen on multiple interfaces
// are merged into the already-emitted entry, and a service is dropped
// once every interface withdrew it.
func (b *Browser) Browse(ctx context.Context) (<-chan *Service, error) {
	out := make(chan *Service)

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)

		services := make(map[string]*Service)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				if entry.Instance == "" {
					continue
				}
				svc := fromZeroconf(entry).ToService()

				existing, found := services[svc.Name]
				if found {
					existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
					continue
				}
				services[svc.Name] = svc
				select {
				case out <- svc:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				if existing, found := services[entry.Instance]; found {
					existing.Addresses = removeAddresses(existing.Addresses, entryAddrs(entry))
					if len(existing.Addresses) == 0 {
						delete(services, entry.Instance)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, b.browserOptions()...)
	}()

	return out, nil
}

// FindByName searches for the service with the given instance name.
func (b *Browser) FindByName(ctx context.Context, name string) (*Service, error) {
	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case svc, ok := <-results:
			if !ok {
				return nil, ErrNotFound
			}
			if svc.Name == name {
				return svc, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// FindFirst returns the first service discovered.
func (b *Browser) FindFirst(ctx context.Context) (*Service, error) {
	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}

	select {
	case svc, ok := <-results:
		if !ok {
			return nil, ErrNotFound
		}
		return svc, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Browser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.config.Interface != "" {
		if iface, err := net.InterfaceByName(b.config.Interface); err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

// fromZeroconf maps a library entry into a ServiceEntry, IPv4
// addresses first.
func fromZeroconf(entry *zeroconf.ServiceEntry) *ServiceEntry {
	return &ServiceEntry{
		Instance: entry.Instance,
		Host:     entry.HostName,
		Port:     entry.Port,
		Text:     entry.Text,
		Addrs:    entryAddrs(entry),
	}
}

func entryAddrs(entry *zeroconf.ServiceEntry) []string {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return addrs
}

func mergeAddresses(existing, found []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range found {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

func removeAddresses(addresses, gone []string) []string {
	toRemove := make(map[string]bool, len(gone))
	for _, addr := range gone {
		toRemove[addr] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}
