package fingerprint

import (
	"strings"
	"testing"
)

func TestExpandReturnsThreeWeightedIdentifiers(t *testing.T) {
	ids := Expand(sampleSignal())
	if len(ids) != 3 {
		t.Fatalf("expected 3 identifiers, got %d", len(ids))
	}

	want := []struct {
		kind   Kind
		weight string
	}{
		{KindFingerprint, "1"},
		{KindAddressOnly, "0.7"},
		{KindAddressSubnet, "0.3"},
	}
	for i, w := range want {
		if ids[i].Kind != w.kind {
			t.Fatalf("identifier %d: expected kind %s, got %s", i, w.kind, ids[i].Kind)
		}
		if ids[i].Weight.String() != w.weight {
			t.Fatalf("identifier %d: expected weight %s, got %s", i, w.weight, ids[i].Weight)
		}
		if !strings.HasPrefix(ids[i].Key, string(w.kind)+":") {
			t.Fatalf("identifier %d: key %q missing kind prefix", i, ids[i].Key)
		}
	}
}

func TestExpandSharesAddressAcrossFingerprints(t *testing.T) {
	a := sampleSignal()
	b := sampleSignal()
	b.UserAgent = "Other/1.0"

	ia, ib := Expand(a), Expand(b)
	if ia[0].Key == ib[0].Key {
		t.Fatalf("distinct fingerprints expected")
	}
	if ia[1].Key != ib[1].Key {
		t.Fatalf("address identifiers must match")
	}
	if ia[2].Key != ib[2].Key {
		t.Fatalf("subnet identifiers must match")
	}
}

func TestExpandGroupsSubnet(t *testing.T) {
	a := Expand(Signal{Address: "198.51.100.7"})
	b := Expand(Signal{Address: "198.51.100.200"})
	if a[1].Key == b[1].Key {
		t.Fatalf("different addresses must not share address identifier")
	}
	if a[2].Key != b[2].Key {
		t.Fatalf("same /24 must share subnet identifier")
	}
}

func TestSubnet(t *testing.T) {
	cases := map[string]string{
		"192.168.1.77":    "192.168.1.0",
		"10.0.0.0":        "10.0.0.0",
		"2001:db8::1":     "2001:db8::1",
		"not-an-ip":       "not-an-ip",
		"":                "",
		"1.2.3":           "1.2.3",
		"1.2.3.4.5":       "1.2.3.4.5",
		"300.1.1.1":       "300.1.1.1",
		"a.b.c.d":         "a.b.c.d",
		"1.2.3.-4":        "1.2.3.-4",
		"example.co.uk.x": "example.co.uk.x",
	}
	for in, want := range cases {
		if got := Subnet(in); got != want {
			t.Fatalf("Subnet(%q) = %q, want %q", in, got, want)
		}
	}
}
