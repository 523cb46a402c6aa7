// Package discovery finds network BLE bridges through DNS-SD over mDNS.
//
// A bridge holds the radio link to one pump and relays its characteristics
// over TCP (see transport.Bridge). It advertises the _x2bridge._tcp service
// with the pump serial number in its TXT record.
package discovery

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"
)

// Service and domain strings.
const (
	ServiceBridge = "_x2bridge._tcp"
	DefaultDomain = "local."
)

// DefaultBrowseTimeout is the default timeout for browse operations.
const DefaultBrowseTimeout = 5 * time.Second

// DefaultLookupTimeout is the default timeout for lookup operations.
const DefaultLookupTimeout = 3 * time.Second

// Bridge is a discovered relay.
type Bridge struct {
	// Instance is the DNS-SD instance name.
	Instance string

	// HostName is the target host name.
	HostName string

	// Port is the relay's TCP port.
	Port int

	// IPs contains the resolved addresses, sorted by preference.
	IPs []net.IP

	// TXT is the decoded TXT record. Serial is empty when the record was
	// missing or malformed.
	TXT BridgeTXT
}

// Address returns host:port for dialing, preferring the first resolved IP.
func (b *Bridge) Address() (string, error) {
	port := strconv.Itoa(b.Port)
	if len(b.IPs) > 0 {
		return net.JoinHostPort(b.IPs[0].String(), port), nil
	}
	if b.HostName != "" {
		return net.JoinHostPort(b.HostName, port), nil
	}
	return "", ErrNoAddress
}

// MDNSResolver is the interface for mDNS service resolution.
// This allows for dependency injection in tests.
type MDNSResolver interface {
	// Browse browses for services of the given type.
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

	// Lookup looks up a specific service instance.
	Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// zeroconfResolver is the production implementation using grandcat/zeroconf.
type zeroconfResolver struct {
	resolver *zeroconf.Resolver
}

func newZeroconfResolver() (*zeroconfResolver, error) {
	r, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}
	return &zeroconfResolver{resolver: r}, nil
}

func (z *zeroconfResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	return z.resolver.Browse(ctx, service, domain, entries)
}

func (z *zeroconfResolver) Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	return z.resolver.Lookup(ctx, instance, service, domain, entries)
}

// ResolverConfig holds configuration for the Resolver.
type ResolverConfig struct {
	// MDNSResolver is the underlying mDNS resolver implementation.
	// If nil, the default zeroconf resolver is used.
	MDNSResolver MDNSResolver

	// BrowseTimeout is the timeout for browse operations.
	// If zero, DefaultBrowseTimeout is used.
	BrowseTimeout time.Duration

	// LookupTimeout is the timeout for lookup operations.
	// If zero, DefaultLookupTimeout is used.
	LookupTimeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Resolver discovers bridges via DNS-SD.
type Resolver struct {
	config   ResolverConfig
	resolver MDNSResolver
	log      logging.LeveledLogger
}

// NewResolver creates a new Resolver with the given configuration.
func NewResolver(config ResolverConfig) (*Resolver, error) {
	resolver := config.MDNSResolver
	if resolver == nil {
		zr, err := newZeroconfResolver()
		if err != nil {
			return nil, err
		}
		resolver = zr
	}

	if config.BrowseTimeout == 0 {
		config.BrowseTimeout = DefaultBrowseTimeout
	}
	if config.LookupTimeout == 0 {
		config.LookupTimeout = DefaultLookupTimeout
	}

	r := &Resolver{
		config:   config,
		resolver: resolver,
	}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("discovery")
	}
	return r, nil
}

// BrowseBridges streams bridges until ctx is done or the browse timeout
// expires, then closes the returned channel.
func (r *Resolver) BrowseBridges(ctx context.Context) <-chan Bridge {
	results := make(chan Bridge)

	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); ok {
		ctx, cancel = context.WithCancel(ctx)
	} else {
		ctx, cancel = context.WithTimeout(ctx, r.config.BrowseTimeout)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		if err := r.resolver.Browse(ctx, ServiceBridge, DefaultDomain, entries); err != nil && r.log != nil {
			r.log.Warnf("browse %s failed: %v", ServiceBridge, err)
		}
	}()

	go func() {
		defer close(results)
		defer cancel()
		seen := make(map[string]bool)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				if entry == nil || seen[entry.Instance] {
					continue
				}
				seen[entry.Instance] = true
				b := entryToBridge(entry, r.log)
				select {
				case results <- b:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return results
}

// FirstBridge returns the first bridge attached to the pump with the given
// serial number. An empty serial matches any bridge.
func (r *Resolver) FirstBridge(ctx context.Context, serial string) (*Bridge, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for b := range r.BrowseBridges(ctx) {
		if serial == "" || b.TXT.Serial == serial {
			found := b
			return &found, nil
		}
		if r.log != nil {
			r.log.Debugf("skipping bridge %s for pump %q", b.Instance, b.TXT.Serial)
		}
	}
	if err := ctx.Err(); err != nil && err != context.DeadlineExceeded {
		return nil, err
	}
	return nil, ErrBridgeNotFound
}

// Lookup resolves a bridge by instance name.
func (r *Resolver) Lookup(ctx context.Context, instance string) (*Bridge, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.LookupTimeout)
		defer cancel()
	}

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		if err := r.resolver.Lookup(ctx, instance, ServiceBridge, DefaultDomain, entries); err != nil && r.log != nil {
			r.log.Warnf("lookup %s failed: %v", instance, err)
		}
	}()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return nil, ErrBridgeNotFound
			}
			if entry == nil || entry.Instance != instance {
				continue
			}
			b := entryToBridge(entry, r.log)
			return &b, nil
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return nil, ErrTimeout
			}
			return nil, ctx.Err()
		}
	}
}

func entryToBridge(entry *zeroconf.ServiceEntry, log logging.LeveledLogger) Bridge {
	var ips []net.IP
	ips = append(ips, entry.AddrIPv4...)
	ips = append(ips, entry.AddrIPv6...)

	b := Bridge{
		Instance: entry.Instance,
		HostName: entry.HostName,
		Port:     entry.Port,
		IPs:      SortIPsByPreference(ips),
	}
	if txt, err := ParseBridgeTXT(entry.Text); err == nil {
		b.TXT = *txt
	} else if log != nil {
		log.Debugf("bridge %s: %v", entry.Instance, err)
	}
	return b
}
