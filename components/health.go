package components

// Health tracks the three damage layers. Damage resolution is external;
// the state machine only reads these values to decide when to flee.
type Health struct {
	Shield    float32 `inspect:"bar"`
	MaxShield float32 `inspect:"skip"`
	Armor     float32 `inspect:"bar"`
	MaxArmor  float32 `inspect:"skip"`
	Hull      float32 `inspect:"bar"`
	MaxHull   float32 `inspect:"skip"`
}

// HullFraction returns Hull/MaxHull, or 1 for entities without a hull.
func (h *Health) HullFraction() float32 {
	if h.MaxHull <= 0 {
		return 1
	}
	return h.Hull / h.MaxHull
}

// Fraction returns the combined remaining share of all layers.
func (h *Health) Fraction() float32 {
	max := h.MaxShield + h.MaxArmor + h.MaxHull
	if max <= 0 {
		return 1
	}
	return (h.Shield + h.Armor + h.Hull) / max
}

// Damaged reports whether any layer is below its maximum.
func (h *Health) Damaged() bool {
	return h.Shield < h.MaxShield || h.Armor < h.MaxArmor || h.Hull < h.MaxHull
}

// Restore refills every layer.
func (h *Health) Restore() {
	h.Shield = h.MaxShield
	h.Armor = h.MaxArmor
	h.Hull = h.MaxHull
}

// Capacitor is the energy pool that pays for module cycles.
type Capacitor struct {
	Energy float32 `inspect:"bar"`
	Max    float32 `inspect:"skip"`
}

// Disruption holds the EWAR flags for one entity. TackleSystem is the only
// writer; everything else reads them.
type Disruption struct {
	Pointed        bool    `inspect:"bool"` // Warp disrupted
	Webbed         bool    `inspect:"bool"`
	WebSpeedFactor float32 `inspect:"label,fmt:%.2f"` // 1.0 when not webbed
	Nosed          bool    `inspect:"bool"`           // Capacitor drained this sweep
}

// Clear resets all flags to the undisrupted state.
func (d *Disruption) Clear() {
	d.Pointed = false
	d.Webbed = false
	d.WebSpeedFactor = 1
	d.Nosed = false
}

// Cargo holds carried ore and trade goods.
type Cargo struct {
	Ore      float32 `inspect:"label,fmt:%.0f"`
	Goods    float32 `inspect:"label,fmt:%.0f"`
	Capacity float32 `inspect:"skip"`
}

// Used returns the occupied volume.
func (c *Cargo) Used() float32 { return c.Ore + c.Goods }

// Full reports whether no more cargo fits.
func (c *Cargo) Full() bool { return c.Capacity > 0 && c.Used() >= c.Capacity }

// Empty reports whether the hold is empty.
func (c *Cargo) Empty() bool { return c.Used() <= 0 }

// Free returns the remaining volume.
func (c *Cargo) Free() float32 {
	if f := c.Capacity - c.Used(); f > 0 {
		return f
	}
	return 0
}

// Asteroid is a minable rock.
type Asteroid struct {
	Ore float32 `inspect:"label,fmt:%.0f"`
}

// Depleted reports whether the asteroid has no ore left.
func (a *Asteroid) Depleted() bool { return a.Ore <= 0 }

// Station is a dockable structure. Its owner faction lives in Identity.
type Station struct {
	ID uint32 `inspect:"label"`
}

// Gate links its sector to a destination sector.
type Gate struct {
	Dest SectorID `inspect:"label"`
}
