package record

import (
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"

	"github.com/hjrgrn/rusty-dns/dnsutil"
)

// FromRR converts an answer RR obtained from an upstream server into a Record, stamping
// the absolute expiration as now+ttl. Unsupported types and invalid values return
// ErrMalformedRecord - callers normally skip those rather than fail the whole answer.
func FromRR(rr dns.RR, now time.Time) (Record, error) {
	hdr := rr.Header()
	rec := Record{
		Domain:         dnsutil.CanonicalName(hdr.Name),
		RecordType:     hdr.Rrtype,
		TTL:            hdr.Ttl,
		ExpirationDate: now.Add(time.Duration(hdr.Ttl) * time.Second),
	}

	switch rrt := rr.(type) {
	case *dns.A:
		rec.Address = rrt.A.String()
	case *dns.AAAA:
		rec.Address = rrt.AAAA.String()
	case *dns.NS:
		rec.Host = dnsutil.CanonicalName(rrt.Ns)
	case *dns.CNAME:
		rec.Host = dnsutil.CanonicalName(rrt.Target)
	case *dns.PTR:
		rec.Host = dnsutil.CanonicalName(rrt.Ptr)
	case *dns.MX:
		rec.Host = dnsutil.CanonicalName(rrt.Mx)
		rec.Priority = rrt.Preference
	default:
		return rec, fmt.Errorf("%w: unsupported answer type %s", ErrMalformedRecord,
			dnsutil.TypeToString(hdr.Rrtype))
	}

	return rec, rec.Validate()
}

// RR converts a Record back into a miekg RR ready for the answer section of a
// response. The source-declared TTL is used as-is, which matches how answers were
// served historically.
//
// An error here means invalid data made it into the cache, which the upsert validation
// is there to prevent.
func (t *Record) RR() (dns.RR, error) {
	hdr := dns.RR_Header{
		Name:   dns.Fqdn(t.Domain),
		Rrtype: t.RecordType,
		Class:  dns.ClassINET,
		Ttl:    t.TTL,
	}

	switch t.RecordType {
	case dns.TypeA:
		ip := net.ParseIP(t.Address)
		if ip == nil || ip.To4() == nil {
			return nil, fmt.Errorf("%w: stored A address '%s' for %s",
				ErrMalformedRecord, t.Address, t.Domain)
		}
		return &dns.A{Hdr: hdr, A: ip.To4()}, nil

	case dns.TypeAAAA:
		ip := net.ParseIP(t.Address)
		if ip == nil {
			return nil, fmt.Errorf("%w: stored AAAA address '%s' for %s",
				ErrMalformedRecord, t.Address, t.Domain)
		}
		return &dns.AAAA{Hdr: hdr, AAAA: ip.To16()}, nil

	case dns.TypeNS:
		return &dns.NS{Hdr: hdr, Ns: dns.Fqdn(t.Host)}, nil

	case dns.TypeCNAME:
		return &dns.CNAME{Hdr: hdr, Target: dns.Fqdn(t.Host)}, nil

	case dns.TypePTR:
		return &dns.PTR{Hdr: hdr, Ptr: dns.Fqdn(t.Host)}, nil

	case dns.TypeMX:
		return &dns.MX{Hdr: hdr, Preference: t.Priority, Mx: dns.Fqdn(t.Host)}, nil
	}

	return nil, fmt.Errorf("%w: stored record type %s for %s", ErrMalformedRecord,
		dnsutil.TypeToString(t.RecordType), t.Domain)
}
