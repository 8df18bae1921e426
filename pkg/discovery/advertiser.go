package discovery

import (
	"fmt"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v2"
)

// Advertiser announces one _indigo._tcp service instance.
type Advertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates an advertiser. Nothing is announced until
// Announce is called.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	return &Advertiser{config: config}
}

// getInterfaces returns the interfaces to advertise on, nil for all.
func (a *Advertiser) getInterfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Announce registers the service, replacing any active announcement.
func (a *Advertiser) Announce(info *ServiceInfo) error {
	if err := ValidateInstanceName(info.Name); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	port := info.Port
	if port == 0 {
		port = DefaultPort
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		info.Name,
		ServiceType,
		Domain,
		port,
		TXTRecordsToStrings(info.TXT),
		a.getInterfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("register %s: %w", info.Name, err)
	}

	a.server = server
	return nil
}

// Update replaces the TXT records of the active announcement.
func (a *Advertiser) Update(txt TXTRecordMap) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return ErrNotAnnounced
	}
	a.server.SetText(TXTRecordsToStrings(txt))
	return nil
}

// Stop withdraws the announcement.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}
