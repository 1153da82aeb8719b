package clients

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// defaultResolver is systemd-resolved's stub, used when /etc/resolv.conf is unreadable.
const defaultResolver = "127.0.0.53:53"

// ErrNoServers is returned when an SRV lookup yields no usable records.
var ErrNoServers = errors.New("no registry servers found")

// ResolveServers looks up the SRV records of name (e.g. "_registry._tcp.example.com")
// and returns "http://host:port" base URLs ordered by priority, then weight.
// resolverAddr may be empty to use the system resolver.
func ResolveServers(ctx context.Context, name, resolverAddr string) ([]string, error) {
	if resolverAddr == "" {
		resolverAddr = systemResolver()
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeSRV)
	m.RecursionDesired = true

	c := &dns.Client{Timeout: 5 * time.Second}
	in, _, err := c.ExchangeContext(ctx, m, resolverAddr)
	if err != nil {
		return nil, fmt.Errorf("SRV lookup of %s failed: %w", name, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("SRV lookup of %s failed: %s", name, dns.RcodeToString[in.Rcode])
	}

	records := make([]*dns.SRV, 0, len(in.Answer))
	for _, answer := range in.Answer {
		if srv, ok := answer.(*dns.SRV); ok {
			records = append(records, srv)
		}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoServers, name)
	}

	slices.SortStableFunc(records, func(a, b *dns.SRV) int {
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			return c
		}
		return cmp.Compare(b.Weight, a.Weight)
	})

	servers := make([]string, 0, len(records))
	for _, srv := range records {
		host := strings.TrimSuffix(srv.Target, ".")
		servers = append(servers, "http://"+net.JoinHostPort(host, strconv.Itoa(int(srv.Port))))
	}
	return servers, nil
}

func systemResolver() string {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		return defaultResolver
	}
	return net.JoinHostPort(conf.Servers[0], conf.Port)
}
