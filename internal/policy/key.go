package policy

import (
	"fmt"
	"strings"
)

// Key identifies one rate-limited resource: a tenant tier and an endpoint.
type Key struct {
	Tier     string
	Endpoint string
}

// String renders the key in its canonical "tier:endpoint" form.
func (k Key) String() string {
	return k.Tier + ":" + k.Endpoint
}

// ParseKey parses the canonical "tier:endpoint" form.
func ParseKey(s string) (Key, error) {
	s = strings.TrimSpace(s)
	tierName, endpoint, ok := strings.Cut(s, ":")
	if !ok || strings.TrimSpace(tierName) == "" || strings.TrimSpace(endpoint) == "" {
		return Key{}, fmt.Errorf("policy: invalid key %q", s)
	}
	return Key{Tier: strings.TrimSpace(tierName), Endpoint: strings.TrimSpace(endpoint)}, nil
}
