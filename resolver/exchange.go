package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"

	"github.com/hjrgrn/rusty-dns/dnsutil"
	"github.com/hjrgrn/rusty-dns/log"
	"github.com/hjrgrn/rusty-dns/record"
)

// exchanger implements Upstream with a miekg exchange against a single configured
// upstream server. One UDP attempt with a fallback to TCP on truncation; recursion
// desired, as the upstream is expected to do the recursive legwork for us.
type exchanger struct {
	server  string // host:port of the upstream server
	timeout time.Duration
	udpSize uint16
}

// NewExchanger creates a ready-to-use Upstream querying the supplied server. A missing
// port is coerced to the domain service.
func NewExchanger(server string) *exchanger {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, dnsutil.DomainService)
	}

	return &exchanger{
		server:  server,
		timeout: defaultExchangeTimeout,
		udpSize: dnsutil.MaxUDPSize,
	}
}

func (t *exchanger) Exchange(ctx context.Context, domain string, qType uint16) ([]record.Record, error) {
	query := new(dns.Msg)
	query.Id = dns.Id()
	query.RecursionDesired = true
	query.SetEdns0(t.udpSize, false)
	query.Question = append(query.Question,
		dns.Question{Name: dns.Fqdn(domain), Qtype: qType, Qclass: dns.ClassINET})

	resp, err := t.exchange(ctx, dnsutil.UDPNetwork, query)
	if err == nil && resp.MsgHdr.Truncated { // Truncated responses get a TCP retry
		resp, err = t.exchange(ctx, dnsutil.TCPNetwork, query)
	}
	if err != nil {
		return nil, classifyExchangeError(err)
	}

	switch resp.MsgHdr.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, ErrNameNotFound
	default:
		return nil, fmt.Errorf("%w: %s answered %s", ErrUpstreamUnreachable,
			t.server, dnsutil.RcodeToString(resp.MsgHdr.Rcode))
	}

	now := time.Now()
	recs := make([]record.Record, 0, len(resp.Answer))
	for _, rr := range resp.Answer {
		rec, err := record.FromRR(rr, now)
		if err != nil {
			// Answer types we don't store (OPT, RRSIG, ...) and junk values
			// are skipped rather than failing the usable remainder.
			if log.IfDebug() {
				log.Debug("upstream skip:", err.Error())
			}
			continue
		}
		recs = append(recs, rec)
	}

	return recs, nil
}

func (t *exchanger) exchange(ctx context.Context, network string, query *dns.Msg) (*dns.Msg, error) {
	client := &dns.Client{Net: network, Timeout: t.timeout, UDPSize: t.udpSize}

	if log.IfDebug() {
		log.Debugf("miekg Q:%s:%s q=%s/%s", network, t.server,
			dnsutil.CanonicalName(query.Question[0].Name),
			dnsutil.TypeToString(query.Question[0].Qtype))
	}

	resp, _, err := client.ExchangeContext(ctx, query, t.server)

	if log.IfDebug() {
		if err != nil {
			log.Debugf("miekg E:%s %s", t.server,
				dnsutil.ShortenLookupError(err).Error())
		} else {
			log.Debugf("miekg A:%s %s ans=%d", t.server,
				dnsutil.RcodeToString(resp.MsgHdr.Rcode), len(resp.Answer))
		}
	}

	return resp, err
}

// classifyExchangeError maps transport errors onto the package taxonomy while keeping
// the original wrapped underneath.
func classifyExchangeError(err error) error {
	if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
		return fmt.Errorf("%w: %s", ErrUpstreamTimeout, dnsutil.ShortenLookupError(err))
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s", ErrUpstreamTimeout, err.Error())
	}

	return fmt.Errorf("%w: %s", ErrUpstreamUnreachable, dnsutil.ShortenLookupError(err))
}
