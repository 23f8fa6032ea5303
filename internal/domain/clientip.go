package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/netip"
)

// ClientIP is a parsed IPv4 or IPv6 source address.
type ClientIP struct {
	addr netip.Addr
}

func ParseClientIP(raw string) (ClientIP, error) {
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return ClientIP{}, errors.New("invalid client ip: " + raw)
	}
	return ClientIP{addr: addr.Unmap()}, nil
}

func (c ClientIP) String() string { return c.addr.String() }

// HashForKey returns a 16-hex-char truncated SHA-256 of the canonical
// address form, so raw client addresses never appear in storage keys.
func (c ClientIP) HashForKey() string {
	sum := sha256.Sum256([]byte(c.addr.String()))
	return hex.EncodeToString(sum[:8])
}

// IsWhitelisted reports whether the address appears in the whitelist.
// Entries that fail to parse are ignored.
func (c ClientIP) IsWhitelisted(whitelist []string) bool {
	for _, entry := range whitelist {
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			continue
		}
		if addr.Unmap() == c.addr {
			return true
		}
	}
	return false
}
