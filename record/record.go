package record

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"

	"github.com/hjrgrn/rusty-dns/dnsutil"
)

// ErrMalformedRecord is returned when a Record violates the data model invariants. Such
// records are rejected before they ever reach storage.
var ErrMalformedRecord = errors.New("malformed resource record")

// Record is the unit of cached DNS knowledge and the row layout of the persisted
// "entries" table. Exactly one of Address/Host is populated, as determined by
// RecordType. ExpirationDate is computed once, at the instant an answer is accepted, as
// now+TTL and is the sole value ever consulted to decide validity. TTL is retained for
// reference and response generation but is never re-evaluated against a relative clock.
//
// A Record is never mutated once stored. A refreshed answer for the same key replaces
// the superseded row via the store's uniqueness constraint.
type Record struct {
	ID             uint      `gorm:"column:id;primarykey"`
	Address        string    `gorm:"column:address;size:45;uniqueIndex:idx_entries_key,priority:3"`
	Host           string    `gorm:"column:host;uniqueIndex:idx_entries_key,priority:4"`
	Priority       uint16    `gorm:"column:priority"`
	Domain         string    `gorm:"column:domain;not null;uniqueIndex:idx_entries_key,priority:1"`
	ExpirationDate time.Time `gorm:"column:expiration_date;not null"`
	TTL            uint32    `gorm:"column:ttl;not null"`
	RecordType     uint16    `gorm:"column:record_type;not null;uniqueIndex:idx_entries_key,priority:2"`
}

// TableName honours the on-disk schema contract inherited from earlier versions of the
// cache database.
func (Record) TableName() string {
	return "entries"
}

// Address-bearing types store a textual address literal. The column is wide enough for
// a full IPv6 literal so AAAA answers need no special handling.
var addressTypes = map[uint16]bool{
	dns.TypeA:    true,
	dns.TypeAAAA: true,
}

// Name-bearing types store a target name instead.
var nameTypes = map[uint16]bool{
	dns.TypeNS:    true,
	dns.TypeCNAME: true,
	dns.TypeMX:    true,
	dns.TypePTR:   true,
}

// Validate checks the data model invariants. Violations are wrapped in
// ErrMalformedRecord so callers can test with errors.Is().
func (t *Record) Validate() error {
	if len(t.Domain) == 0 {
		return fmt.Errorf("%w: empty domain", ErrMalformedRecord)
	}
	if t.RecordType == 0 {
		return fmt.Errorf("%w: record type not set for %s", ErrMalformedRecord, t.Domain)
	}
	if t.TTL == 0 {
		return fmt.Errorf("%w: non-positive ttl for %s", ErrMalformedRecord, t.Domain)
	}
	if t.ExpirationDate.IsZero() {
		return fmt.Errorf("%w: expiration date not set for %s", ErrMalformedRecord, t.Domain)
	}

	switch {
	case addressTypes[t.RecordType]:
		if len(t.Host) != 0 {
			return fmt.Errorf("%w: %s %s carries a host", ErrMalformedRecord,
				dnsutil.TypeToString(t.RecordType), t.Domain)
		}
		if net.ParseIP(t.Address) == nil {
			return fmt.Errorf("%w: %s %s has unparseable address '%s'",
				ErrMalformedRecord, dnsutil.TypeToString(t.RecordType),
				t.Domain, t.Address)
		}

	case nameTypes[t.RecordType]:
		if len(t.Host) == 0 || len(t.Address) != 0 {
			return fmt.Errorf("%w: %s %s needs a host and no address",
				ErrMalformedRecord, dnsutil.TypeToString(t.RecordType), t.Domain)
		}

	default:
		return fmt.Errorf("%w: unsupported record type %s for %s", ErrMalformedRecord,
			dnsutil.TypeToString(t.RecordType), t.Domain)
	}

	return nil
}

// Valid returns true if the record has not yet expired at the supplied instant. A
// record inserted at t0 with ttl=T is valid for all t in [t0, t0+T) and invalid from
// t0+T onwards.
func (t *Record) Valid(now time.Time) bool {
	return now.Before(t.ExpirationDate)
}

// Key returns the cache/coalescing key for this record.
func (t *Record) Key() string {
	return dnsutil.LookupKey(t.Domain, t.RecordType)
}

// Value returns whichever of Address/Host this record type carries. Handy for logging
// and uniqueness comparisons.
func (t *Record) Value() string {
	if addressTypes[t.RecordType] {
		return t.Address
	}

	return t.Host
}
