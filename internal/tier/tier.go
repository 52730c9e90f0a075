package tier

import "strings"

// Tier describes one customer tier and its limit bounds.
type Tier struct {
	Name          string  // Tier identifier.
	BaselineRPS   float64 // Starting and minimum limit in requests per second.
	CapRPS        float64 // Maximum limit the arbiter may ever commit.
	Burst         int     // Token bucket burst capacity.
	RevenueWeight float64 // Revenue per request in dollars.
}

// Default tier names.
const (
	Free       = "free"
	Pro        = "pro"
	Enterprise = "ent"
)

// defaultTier bounds unknown tenants the same way the free tier is bounded.
var defaultTier = Tier{
	Name:          Free,
	BaselineRPS:   3,
	CapRPS:        15,
	Burst:         10,
	RevenueWeight: 0.01,
}

// Catalog resolves tier definitions by name.
type Catalog struct {
	tiers map[string]Tier
}

// NewCatalog constructs a Catalog from the given tiers, falling back to
// DefaultTiers when none are provided.
func NewCatalog(tiers []Tier) *Catalog {
	if len(tiers) == 0 {
		tiers = DefaultTiers()
	}
	byName := make(map[string]Tier, len(tiers))
	for _, t := range tiers {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			continue
		}
		t.Name = name
		if t.BaselineRPS <= 0 {
			t.BaselineRPS = defaultTier.BaselineRPS
		}
		if t.CapRPS < t.BaselineRPS {
			t.CapRPS = t.BaselineRPS
		}
		if t.Burst <= 0 {
			t.Burst = defaultTier.Burst
		}
		if t.RevenueWeight < 0 {
			t.RevenueWeight = 0
		}
		byName[name] = t
	}
	return &Catalog{tiers: byName}
}

// DefaultTiers returns the built-in free/pro/enterprise catalog.
func DefaultTiers() []Tier {
	return []Tier{
		{Name: Free, BaselineRPS: 3, CapRPS: 15, Burst: 10, RevenueWeight: 0.01},
		{Name: Pro, BaselineRPS: 8, CapRPS: 50, Burst: 20, RevenueWeight: 0.05},
		{Name: Enterprise, BaselineRPS: 15, CapRPS: 120, Burst: 40, RevenueWeight: 0.20},
	}
}

// Lookup returns the tier definition for name and whether it is known.
// Unknown names resolve to the default bounds.
func (c *Catalog) Lookup(name string) (Tier, bool) {
	if c == nil {
		return defaultTier, false
	}
	t, ok := c.tiers[strings.TrimSpace(name)]
	if !ok {
		return defaultTier, false
	}
	return t, true
}

// Names returns the known tier names.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.tiers))
	for name := range c.tiers {
		names = append(names, name)
	}
	return names
}

// RevenueWeight returns the per-request revenue for the named tier.
func (c *Catalog) RevenueWeight(name string) float64 {
	t, _ := c.Lookup(name)
	return t.RevenueWeight
}
