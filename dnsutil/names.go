package dnsutil

import (
	"fmt"

	"github.com/miekg/dns"
)

// CanonicalName normalizes a query or record name for use as a lookup key. It
// lower-cases the name and loses the trailing dot. Keys derived from wire-format
// queries and keys derived from stored rows must collide when they refer to the
// same name, so every layer normalizes with this one function.
func CanonicalName(n string) string {
	n = dns.CanonicalName(n)
	if len(n) > 0 && n[len(n)-1] == '.' {
		n = n[:len(n)-1]
	}

	return n
}

// LookupKey combines a canonical name and a qType into the single string used to
// index the cache shards and the in-flight fetch table.
func LookupKey(domain string, qType uint16) string {
	return fmt.Sprintf("%s/%d", CanonicalName(domain), qType)
}
