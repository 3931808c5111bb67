package models

import (
	"fmt"
	"strings"
)

// KeyPrefix namespaces rate limit buckets by what they count.
type KeyPrefix string

const KeyPrefixIP KeyPrefix = "ip"

// RateLimitKey identifies one bucket: rl:<prefix>:<identifier>:<class>.
type RateLimitKey struct {
	Prefix     KeyPrefix
	Identifier string
	Class      EndpointClass
}

func NewRateLimitKey(prefix KeyPrefix, identifier string, class EndpointClass) RateLimitKey {
	return RateLimitKey{Prefix: prefix, Identifier: identifier, Class: class}
}

func (k RateLimitKey) String() string {
	return fmt.Sprintf("rl:%s:%s:%s", k.Prefix, SanitizeKeySegment(k.Identifier), k.Class)
}

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// so a client-controlled identifier cannot spill into an adjacent segment.
// IPv6 addresses are the common case: "2001:db8::1" becomes "2001_db8__1".
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
