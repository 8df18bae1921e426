package discovery

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	// ServiceType is the DNS-SD service type servers advertise.
	ServiceType = "_indigo._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the conventional server port.
	DefaultPort = 7624

	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// TXTKeyVersion carries the protocol version in TXT records.
	TXTKeyVersion = "version"
)

var (
	// ErrNotFound reports that no matching service was discovered.
	ErrNotFound = errors.New("discovery: service not found")

	// ErrInvalidInstanceName reports an empty or over-long instance name.
	ErrInvalidInstanceName = errors.New("discovery: invalid instance name")

	// ErrNotAnnounced reports an update without an active announcement.
	ErrNotAnnounced = errors.New("discovery: not announced")
)

// ServiceInfo describes the service an advertiser announces.
type ServiceInfo struct {
	// Name is the instance name shown to browsers.
	Name string

	// Port is the TCP port clients should connect to.
	Port int

	// TXT records to attach; may be nil.
	TXT TXTRecordMap
}

// Service is one discovered endpoint.
type Service struct {
	// Name is the instance name.
	Name string

	// Host is the mDNS hostname.
	Host string

	// Port is the advertised TCP port.
	Port int

	// Addresses holds the resolved IPs, IPv4 first.
	Addresses []string

	// TXT holds the decoded TXT records.
	TXT TXTRecordMap
}

// Addr returns a dialable "host:port" address, preferring a resolved
// IP over the mDNS hostname.
func (s *Service) Addr() string {
	host := s.Host
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	return net.JoinHostPort(strings.TrimSuffix(host, "."), strconv.Itoa(s.Port))
}

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// TXTRecordsToStrings converts a TXTRecordMap to "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	return result
}

// StringsToTXTRecords parses "key=value" strings into a TXTRecordMap.
// A bare key becomes an empty-valued entry.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			txt[parts[0]] = ""
		}
	}
	return txt
}

// ValidateInstanceName checks that a name fits in an mDNS label.
func ValidateInstanceName(name string) error {
	if name == "" || len(name) > MaxInstanceNameLen {
		return fmt.Errorf("%w: %q", ErrInvalidInstanceName, name)
	}
	return nil
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface restricts advertising to one network interface.
	// Empty means all interfaces.
	Interface string

	// TTL is the DNS record TTL. Default: 120 seconds.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{TTL: 120 * time.Second}
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// Interface restricts browsing to one network interface.
	// Empty means all interfaces.
	Interface string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{}
}
