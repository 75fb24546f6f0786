// Package liveprobe checks whether a hostname publishes an SPF record in
// live DNS, independent of what the scanned tree declares.
package liveprobe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mdns "github.com/miekg/dns"

	"github.com/haukened/tf-spf-audit/internal/audit/common/log"
	"github.com/haukened/tf-spf-audit/internal/audit/domain"
)

// ErrNoAnswer is returned when no nameserver produced a usable answer.
var ErrNoAnswer = errors.New("liveprobe: no usable answer")

const defaultTimeout = 5 * time.Second

// Options configures a Prober.
type Options struct {
	// Nameservers in ip:port form. Empty falls back to /etc/resolv.conf,
	// then to public resolvers.
	Nameservers []string
	Timeout     time.Duration
	Logger      log.Logger
}

// Prober performs TXT lookups over UDP.
type Prober struct {
	client  *mdns.Client
	servers []string
	logger  log.Logger
}

// New returns a Prober for the given options.
func New(opts Options) *Prober {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if len(opts.Nameservers) == 0 {
		opts.Nameservers = systemNameservers()
	}
	return &Prober{
		client:  &mdns.Client{Timeout: opts.Timeout},
		servers: opts.Nameservers,
		logger:  log.OrNoop(opts.Logger),
	}
}

// systemNameservers reads resolv.conf, falling back to public resolvers.
func systemNameservers() []string {
	cfg, err := mdns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cfg.Servers) == 0 {
		return []string{"1.1.1.1:53", "8.8.8.8:53"}
	}
	out := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		out = append(out, s+":"+cfg.Port)
	}
	return out
}

// LookupTXT returns the TXT strings published at host, each record's
// character strings joined. NXDOMAIN and empty answers yield no records and
// no error.
func (p *Prober) LookupTXT(ctx context.Context, host domain.Hostname) ([]string, error) {
	m := new(mdns.Msg)
	m.SetQuestion(mdns.Fqdn(string(host)), mdns.TypeTXT)
	m.RecursionDesired = true

	var lastErr error
	for _, server := range p.servers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, _, err := p.client.ExchangeContext(ctx, m, server)
		if err != nil {
			lastErr = err
			continue
		}
		switch resp.Rcode {
		case mdns.RcodeSuccess:
			var records []string
			for _, rr := range resp.Answer {
				if txt, ok := rr.(*mdns.TXT); ok {
					records = append(records, strings.Join(txt.Txt, ""))
				}
			}
			return records, nil
		case mdns.RcodeNameError:
			return nil, nil
		default:
			lastErr = fmt.Errorf("rcode %s from %s", mdns.RcodeToString[resp.Rcode], server)
		}
	}
	if lastErr == nil {
		return nil, ErrNoAnswer
	}
	return nil, fmt.Errorf("%w for %s: %w", ErrNoAnswer, host, lastErr)
}

// HasSPF reports whether host publishes a TXT record starting with "v=spf1".
func (p *Prober) HasSPF(ctx context.Context, host domain.Hostname) (bool, error) {
	records, err := p.LookupTXT(ctx, host)
	if err != nil {
		return false, err
	}
	for _, r := range records {
		if strings.HasPrefix(r, domain.SPFPrefix) {
			return true, nil
		}
	}
	return false, nil
}

// Annotate sets LiveSPF on each violation. Lookup failures are logged and
// leave LiveSPF unset; they never fail the run.
func (p *Prober) Annotate(ctx context.Context, violations []domain.Violation) {
	for i := range violations {
		has, err := p.HasSPF(ctx, violations[i].Hostname)
		if err != nil {
			p.logger.Warn(map[string]any{"hostname": violations[i].Hostname, "error": err}, "Live SPF lookup failed")
			continue
		}
		violations[i].LiveSPF = &has
	}
}
