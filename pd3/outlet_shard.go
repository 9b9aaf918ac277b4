package pd3

import (
	"github.com/OneOfOne/xxhash"
	rendezvous "github.com/dgryski/go-rendezvous"
)

// OutletGroup fans a single outlet name out across several concrete Outlet
// instances, rendezvous-hashing each flow's key to one member so a given
// flow's reports always land on the same instance (useful when an outlet
// such as "json" is backed by several sharded writers for locality/load
// spreading).
type OutletGroup struct {
	members []Outlet
	names   []string
	rv      *rendezvous.Rendezvous
}

// NewOutletGroup builds a group from named members; name is purely for the
// rendezvous hash seed (members themselves may be identical outlet types).
func NewOutletGroup(members map[string]Outlet) *OutletGroup {
	g := &OutletGroup{}
	for name, o := range members {
		g.names = append(g.names, name)
		g.members = append(g.members, o)
	}
	g.rv = rendezvous.New(g.names, hashNodeName)
	return g
}

func hashNodeName(s string) uint64 {
	return xxhash.Checksum64([]byte(s))
}

// Emit routes r to the member its FlowKey rendezvous-hashes to.
func (g *OutletGroup) Emit(r Report) {
	if len(g.members) == 0 {
		return
	}
	name := g.rv.Get(string(r.FlowKey[:]))
	for i, n := range g.names {
		if n == name {
			g.members[i].Emit(r)
			return
		}
	}
}
