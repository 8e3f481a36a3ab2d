package machine

import "aegis/kernel"

const gicLines = 1024

// GIC models the distributor and CPU interface of a GICv2: one pending,
// enabled and active bit per INTID, 32 per register.
type GIC struct {
	pending [gicLines / 32]uint32
	enabled [gicLines / 32]uint32
	active  [gicLines / 32]uint32
}

func gicBit(intid uint32) (int, uint32) {
	return int(intid / 32), 1 << (intid % 32)
}

// Raise latches an interrupt. It is delivered once enabled.
func (g *GIC) Raise(intid uint32) {
	if intid >= kernel.SpuriousINTID {
		return
	}
	r, b := gicBit(intid)
	g.pending[r] |= b
}

// Acknowledge returns the lowest pending, enabled, inactive INTID and marks it
// active, or SpuriousINTID if there is none.
func (g *GIC) Acknowledge() uint32 {
	for r := range g.pending {
		ready := g.pending[r] & g.enabled[r] &^ g.active[r]
		if ready == 0 {
			continue
		}
		for i := uint32(0); i < 32; i++ {
			if ready&(1<<i) != 0 {
				intid := uint32(r)*32 + i
				g.pending[r] &^= 1 << i
				g.active[r] |= 1 << i
				return intid
			}
		}
	}
	return kernel.SpuriousINTID
}

func (g *GIC) EndInterrupt(intid uint32) {
	if intid >= gicLines {
		return
	}
	r, b := gicBit(intid)
	g.active[r] &^= b
}

func (g *GIC) Enable(intid uint32) {
	if intid >= gicLines {
		return
	}
	r, b := gicBit(intid)
	g.enabled[r] |= b
}

func (g *GIC) Disable(intid uint32) {
	if intid >= gicLines {
		return
	}
	r, b := gicBit(intid)
	g.enabled[r] &^= b
}

// HasPending reports whether Acknowledge would return a real interrupt.
func (g *GIC) HasPending() bool {
	for r := range g.pending {
		if g.pending[r]&g.enabled[r]&^g.active[r] != 0 {
			return true
		}
	}
	return false
}

// IsPending reports whether intid is latched.
func (g *GIC) IsPending(intid uint32) bool {
	if intid >= gicLines {
		return false
	}
	r, b := gicBit(intid)
	return g.pending[r]&b != 0
}

// IsEnabled reports whether intid is unmasked.
func (g *GIC) IsEnabled(intid uint32) bool {
	if intid >= gicLines {
		return false
	}
	r, b := gicBit(intid)
	return g.enabled[r]&b != 0
}
