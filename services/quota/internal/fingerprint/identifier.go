package fingerprint

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindFingerprint   Kind = "fp"
	KindAddressOnly   Kind = "addr"
	KindAddressSubnet Kind = "subnet"
)

var (
	WeightFingerprint   = decimal.NewFromInt(1)
	WeightAddressOnly   = decimal.RequireFromString("0.7")
	WeightAddressSubnet = decimal.RequireFromString("0.3")
)

// Identifier is one granularity at which an anonymous client is counted.
// Weight is the confidence that Key names exactly one real client.
type Identifier struct {
	Kind   Kind
	Key    string
	Weight decimal.Decimal
}

// Expand returns the fingerprint, address and subnet identifiers, in that order.
// Keys are prefixed with their kind so records of different kinds never collide.
func Expand(s Signal) []Identifier {
	return []Identifier{
		{Kind: KindFingerprint, Key: key(KindFingerprint, Derive(s)), Weight: WeightFingerprint},
		{Kind: KindAddressOnly, Key: key(KindAddressOnly, digest(s.Address)), Weight: WeightAddressOnly},
		{Kind: KindAddressSubnet, Key: key(KindAddressSubnet, digest(Subnet(s.Address))), Weight: WeightAddressSubnet},
	}
}

// Subnet zeroes the last octet of a dotted IPv4 address. Anything else is returned
// unchanged.
func Subnet(address string) string {
	octets := strings.Split(address, ".")
	if len(octets) != 4 {
		return address
	}
	for _, o := range octets {
		if !isOctet(o) {
			return address
		}
	}
	octets[3] = "0"
	return strings.Join(octets, ".")
}

func isOctet(s string) bool {
	if s == "" || len(s) > 3 {
		return false
	}
	n, err := strconv.Atoi(s)
	if err != nil || s[0] == '+' || s[0] == '-' {
		return false
	}
	return n >= 0 && n <= 255
}

func key(kind Kind, hash string) string {
	return string(kind) + ":" + hash
}
