package dnsutil

import (
	"testing"
)

func TestCanonicalName(t *testing.T) {
	testCases := []struct{ in, expect string }{
		{"", ""},
		{".", ""},
		{"example.com.", "example.com"},
		{"example.com", "example.com"},
		{"WIKI.ArchLinux.ORG.", "wiki.archlinux.org"},
		{"a.B.c", "a.b.c"},
	}

	for ix, tc := range testCases {
		got := CanonicalName(tc.in)
		if got != tc.expect {
			t.Error(ix, "CanonicalName", tc.in, "got", got, "expect", tc.expect)
		}
	}
}

func TestLookupKey(t *testing.T) {
	k1 := LookupKey("Wiki.archlinux.org.", 1)
	k2 := LookupKey("wiki.archlinux.org", 1)
	if k1 != k2 {
		t.Error("Keys for the same name should collide", k1, k2)
	}
	k3 := LookupKey("wiki.archlinux.org", 28)
	if k1 == k3 {
		t.Error("Keys for different types should differ", k1, k3)
	}
}
