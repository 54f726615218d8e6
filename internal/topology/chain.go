package topology

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/bavix/faros/internal/device"
	"github.com/bavix/faros/internal/status"
)

const (
	// LastPossibleChain is the first slot index past the physical chain
	// ports. Groups that could not be diagnosed are installed from here
	// up so they stay visible and addressable.
	LastPossibleChain = 7

	// ReferenceChain is the reserved slot for calibration hardware. Its
	// members are installed verbatim and never validated as a chain.
	ReferenceChain = 6
)

// IsReferenceChain reports whether a chain identifier belongs to the
// reserved calibration slot.
func IsReferenceChain(id int) bool { return id == ReferenceChain }

// Group is one reconciled chain-slot entry: either a validated
// daisy-chain or a flat grouping kept for traversal.
type Group interface {
	Item
	// Members returns the group's nodes in position order.
	Members() []*device.Device
	// GroupError reports whether the group is in an error state.
	GroupError() bool
}

// ValidatedChain is a daisy-chain with exactly one resolved head. The
// head's configuration carries the authoritative member identities.
type ValidatedChain struct {
	HubSerial string
	ChainID   int
	Head      *device.Device
	Config    *status.RRHConfig
	Nodes     []*device.Device

	// ConfigCorrect is the invariant "observed sorted member serials
	// equal the head's authoritative list, element-wise". A violation
	// is reported, never fatal.
	ConfigCorrect bool
	Err           bool

	handle int
}

// Ident implements Item: a validated chain is addressed by the serial
// in its head configuration.
func (c *ValidatedChain) Ident() string { return c.Config.Serial }

// Members implements Group.
func (c *ValidatedChain) Members() []*device.Device { return c.Nodes }

// GroupError implements Group.
func (c *ValidatedChain) GroupError() bool { return c.Err }

// Tail returns the deepest chain member.
func (c *ValidatedChain) Tail() *device.Device { return c.Nodes[len(c.Nodes)-1] }

// FlatGroup is the fallback grouping when no single authoritative head
// exists (or for the reference slot): a position-keyed mapping used
// purely for traversal.
type FlatGroup struct {
	HubSerial  string
	ChainID    int
	ByPosition map[int]*device.Device
	Err        bool

	handle int
}

// Ident implements Item. Flat groups have no configured identity.
func (g *FlatGroup) Ident() string { return "" }

// Members implements Group.
func (g *FlatGroup) Members() []*device.Device {
	positions := make([]int, 0, len(g.ByPosition))
	for pos := range g.ByPosition {
		positions = append(positions, pos)
	}

	sort.Ints(positions)

	out := make([]*device.Device, 0, len(positions))
	for _, pos := range positions {
		out = append(out, g.ByPosition[pos])
	}

	return out
}

// GroupError implements Group.
func (g *FlatGroup) GroupError() bool { return g.Err }

// unpairedBucket collects nodes pulled out of a group during head
// resolution, keyed by the offending head (nil when a whole group was
// abandoned).
type unpairedBucket struct {
	head  *device.Device
	nodes []*device.Device
}

// reconcile runs the chain algorithm for this hub's claimed,
// freshly-fetched nodes.
func (h *Hub) reconcile(ctx context.Context, topo *Topology) {
	logger := zerolog.Ctx(ctx)

	byChain := make(map[int][]*device.Device)

	for _, node := range h.claimed {
		if !node.Fetched() {
			continue
		}

		byChain[node.ChainID] = append(byChain[node.ChainID], node)
	}

	for _, chainID := range sortedKeys(byChain) {
		members := byChain[chainID]
		sort.SliceStable(members, func(i, j int) bool { return members[i].Position < members[j].Position })

		if IsReferenceChain(chainID) {
			h.install(topo, chainID, members, false, true)

			continue
		}

		// A negative decoded position is itself a marker of the
		// firmware indexing defect, even when head resolution succeeds.
		groupErr := false

		for _, node := range members {
			if node.Position < 0 {
				groupErr = true

				logger.Warn().Str("serial", node.Serial).Int("position", node.Position).
					Str("hub", h.Dev.Serial).Msg("negative chain position reported")
			}
		}

		remaining, resolved := h.resolveHeads(ctx, chainID, members)
		if !resolved {
			groupErr = true
		}

		switch {
		case len(remaining) == 0:
			// Nothing left after filtering; no chain emitted.
		case exactlyOneHead(remaining):
			h.install(topo, chainID, remaining, groupErr, false)
		default:
			// Structural validation abandoned: the group is dropped and
			// every remaining node stays visible via the unpaired path.
			h.unpaired = append(h.unpaired, unpairedBucket{nodes: remaining})
			h.Error = true

			logger.Warn().Int("chain", chainID).Str("hub", h.Dev.Serial).
				Int("nodes", len(remaining)).Msg("chain head unresolved, group degraded")
		}

		if groupErr {
			h.Error = true
		}
	}

	// Unpaired nodes are re-emitted at synthetic slot indices so they
	// remain addressable instead of silently dropped.
	slot := LastPossibleChain

	sort.SliceStable(h.unpaired, func(i, j int) bool {
		return bucketKey(h.unpaired[i]) < bucketKey(h.unpaired[j])
	})

	for _, bucket := range h.unpaired {
		h.Error = true
		h.install(topo, slot, bucket.nodes, true, true)
		slot++
	}
}

func bucketKey(b unpairedBucket) string {
	if b.head != nil {
		return b.head.Serial
	}
	// Buckets from abandoned groups sort after head-keyed ones.
	return "\xff"
}

// resolveHeads applies the recovery policy for the known firmware
// indexing defect. With exactly one head the group passes through
// untouched. Otherwise every head candidate reporting a non-zero
// position has its authoritative members pulled into an unpaired
// bucket, with positions shifted so the candidate lands on zero. The
// caller re-checks the head count on what remains.
func (h *Hub) resolveHeads(ctx context.Context, chainID int, members []*device.Device) ([]*device.Device, bool) {
	heads := headsOf(members)
	if len(heads) == 1 {
		return members, true
	}

	logger := zerolog.Ctx(ctx)
	logger.Warn().Int("chain", chainID).Str("hub", h.Dev.Serial).Int("heads", len(heads)).
		Msg("chain does not have exactly one head")

	for _, head := range heads {
		if head.Position == 0 {
			continue
		}

		offset := -head.Position
		listed := make(map[string]struct{}, len(head.HeadConfig.Chain))

		for _, serial := range head.HeadConfig.Chain {
			listed[serial] = struct{}{}
		}

		bucket := unpairedBucket{head: head}
		kept := members[:0:0]

		for _, node := range members {
			if _, ok := listed[node.Serial]; ok {
				node.Position += offset
				bucket.nodes = append(bucket.nodes, node)
			} else {
				kept = append(kept, node)
			}
		}

		members = kept

		if len(bucket.nodes) > 0 {
			h.unpaired = append(h.unpaired, bucket)
		}
	}

	return members, false
}

// install emits one chain group into the hub's slot mapping, mirroring
// it onto the member records. Empty groups are silently skipped.
func (h *Hub) install(topo *Topology, slot int, nodes []*device.Device, errFlag, forceFlat bool) {
	if len(nodes) == 0 {
		return
	}

	var group Group

	if !forceFlat && exactlyOneHead(nodes) {
		group = h.newValidatedChain(topo, nodes, errFlag)
	} else {
		group = h.newFlatGroup(topo, nodes, errFlag)
	}

	h.Slots[slot] = append(h.Slots[slot], group)

	if group.GroupError() {
		h.Error = true
	}
}

func (h *Hub) newValidatedChain(topo *Topology, nodes []*device.Device, errFlag bool) *ValidatedChain {
	head := headsOf(nodes)[0]

	chain := &ValidatedChain{
		HubSerial: h.Dev.Serial,
		ChainID:   head.ChainID,
		Head:      head,
		Config:    head.HeadConfig,
		Nodes:     nodes,
		Err:       errFlag,
		handle:    topo.nextHandle(),
	}

	// Pair sorted-by-position observed serials against the
	// authoritative list positionally. Missing tail entries do not
	// falsify the invariant; a mismatch at any position does.
	chain.ConfigCorrect = true

	for i, node := range nodes {
		if i >= len(chain.Config.Chain) {
			break
		}

		if node.Serial != chain.Config.Chain[i] {
			chain.ConfigCorrect = false

			break
		}
	}

	for _, node := range nodes {
		node.RRHMember = true
		node.GroupHandle = chain.handle
	}

	return chain
}

func (h *Hub) newFlatGroup(topo *Topology, nodes []*device.Device, errFlag bool) *FlatGroup {
	group := &FlatGroup{
		HubSerial:  h.Dev.Serial,
		ChainID:    nodes[0].ChainID,
		ByPosition: make(map[int]*device.Device, len(nodes)),
		Err:        errFlag,
		handle:     topo.nextHandle(),
	}

	for _, node := range nodes {
		group.ByPosition[node.Position] = node
		node.GroupHandle = group.handle
	}

	return group
}

func headsOf(nodes []*device.Device) []*device.Device {
	var heads []*device.Device

	for _, node := range nodes {
		if node.IsHead {
			heads = append(heads, node)
		}
	}

	return heads
}

func exactlyOneHead(nodes []*device.Device) bool {
	return len(headsOf(nodes)) == 1
}

func sortedKeys(m map[int][]*device.Device) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Ints(keys)

	return keys
}
