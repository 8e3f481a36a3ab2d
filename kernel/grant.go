package kernel

// Shared-memory grants: one page per slot, owned by the creating task and
// mapped into exactly one peer.
const (
	NumGrants     = 2
	GrantPageSize = 4096
	// GrantPageBase is the physical address of grant page 0.
	GrantPageBase = 0x4100_0000
)

// Grant result codes, returned in X0.
const (
	ErrGrantInvalidID   = 0xFFFF_0001
	ErrGrantActive      = 0xFFFF_0002
	ErrGrantInvalidPeer = 0xFFFF_0003
	ErrGrantSelf        = 0xFFFF_0004
	ErrGrantNotOwner    = 0xFFFF_0005
)

type grant struct {
	owner  TaskID
	peer   TaskID
	phys   uint64
	active bool
}

var emptyGrant = grant{owner: NoTask, peer: NoTask}

// GrantPage returns the physical page backing grant id.
func GrantPage(id uint64) (uint64, bool) {
	if id >= NumGrants {
		return 0, false
	}
	return GrantPageBase + id*GrantPageSize, true
}

func (k *Kernel) grantCreate(id uint64, owner TaskID, peer uint64) uint64 {
	phys, ok := GrantPage(id)
	if !ok {
		k.logf(LevelWarn, "GRANT: invalid grant id %d", id)
		return ErrGrantInvalidID
	}
	g := &k.grants[id]
	if g.active {
		k.logf(LevelWarn, "GRANT: grant %d already active", id)
		return ErrGrantActive
	}
	if peer >= NumTasks {
		k.logf(LevelWarn, "GRANT: invalid peer %d", peer)
		return ErrGrantInvalidPeer
	}
	if TaskID(peer) == owner {
		k.logf(LevelWarn, "GRANT: owner == peer")
		return ErrGrantSelf
	}
	k.mmu.MapPage(owner, phys)
	k.mmu.MapPage(TaskID(peer), phys)
	*g = grant{owner: owner, peer: TaskID(peer), phys: phys, active: true}
	k.logf(LevelInfo, "GRANT: T%d -> T%d (grant %d)", owner, peer, id)
	return 0
}

// grantRevoke unmaps the peer's view. The owner keeps its mapping until the
// slot is reused or the owner dies.
func (k *Kernel) grantRevoke(id uint64, caller TaskID) uint64 {
	if id >= NumGrants {
		k.logf(LevelWarn, "GRANT: invalid grant id %d", id)
		return ErrGrantInvalidID
	}
	g := &k.grants[id]
	if !g.active {
		return 0
	}
	if g.owner != caller {
		k.logf(LevelWarn, "GRANT: T%d is not the owner of grant %d", caller, id)
		return ErrGrantNotOwner
	}
	if g.peer != NoTask {
		k.mmu.UnmapPage(g.peer, g.phys)
	}
	g.active = false
	g.peer = NoTask
	k.logf(LevelInfo, "GRANT REVOKED: grant %d", id)
	return 0
}

// cleanupGrants drops id's grants. An owner loses the whole slot and both
// mappings; a peer only loses its own mapping and the slot goes inactive.
func (k *Kernel) cleanupGrants(id TaskID) {
	for i := range k.grants {
		g := &k.grants[i]
		if !g.active {
			continue
		}
		switch id {
		case g.owner:
			if g.peer != NoTask {
				k.mmu.UnmapPage(g.peer, g.phys)
			}
			k.mmu.UnmapPage(id, g.phys)
			*g = emptyGrant
		case g.peer:
			k.mmu.UnmapPage(id, g.phys)
			g.peer = NoTask
			g.active = false
		}
	}
}

// GrantInfo describes one grant slot.
type GrantInfo struct {
	Owner  TaskID
	Peer   TaskID
	Phys   uint64
	Active bool
}

// Grant returns the state of a grant slot.
func (k *Kernel) Grant(id int) (GrantInfo, bool) {
	if id < 0 || id >= NumGrants {
		return GrantInfo{}, false
	}
	g := k.grants[id]
	return GrantInfo{Owner: g.owner, Peer: g.peer, Phys: g.phys, Active: g.active}, true
}
