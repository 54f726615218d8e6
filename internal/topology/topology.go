// Package topology reconstructs the physical hub - chain - node
// hierarchy from enumerated devices and their fetched metadata. It is
// the aggregate result every downstream consumer (rendering, firmware
// update selection, reboot sequencing) works against.
package topology

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/bavix/faros/internal/device"
	"github.com/bavix/faros/internal/metrics"
)

// Item is one addressable element of the topology: *Hub,
// *ValidatedChain, *FlatGroup or *device.Device.
type Item interface {
	// Ident returns the stable identity used for selection and logging.
	Ident() string
}

// RefetchFunc re-fetches metadata for the given devices. The hub-scoped
// wave runs through it after claiming, because node address visibility
// can depend on hub-side port state.
type RefetchFunc func(ctx context.Context, devs []*device.Device)

// Options tunes Build.
type Options struct {
	Refetch RefetchFunc
}

// Topology owns the reconciled object graph for one discovery run. The
// derived collections are views, recomputed per run and never mutated
// independently.
type Topology struct {
	Time time.Time

	Hubs   []*Hub
	Chains []*ValidatedChain

	Irises []*device.Device
	CPEs   []*device.Device
	Vgers  []*device.Device

	Standalone        []*device.Device
	PartiallyAttached []*device.Device
	ChainMembers      []*device.Device

	handles int
}

func (t *Topology) nextHandle() int {
	t.handles++

	return t.handles
}

// Build maps nodes to hubs and reconciles every hub's chains. The only
// hard failure is the cross-hub double-claim invariant; all other
// defects degrade into error flags on the affected structures.
func Build(ctx context.Context, devs []*device.Device, opts Options) (*Topology, error) {
	logger := zerolog.Ctx(ctx)
	started := time.Now()

	topo := &Topology{Time: started}

	var hubDevs []*device.Device

	for _, dev := range devs {
		switch dev.Kind {
		case device.KindHub:
			hubDevs = append(hubDevs, dev)
		case device.KindIris:
			topo.Irises = append(topo.Irises, dev)
		case device.KindCPE:
			topo.CPEs = append(topo.CPEs, dev)
		case device.KindVger:
			topo.Vgers = append(topo.Vgers, dev)
		}
	}

	for _, dev := range hubDevs {
		if !dev.Fetched() {
			logger.Warn().Str("serial", dev.Serial).Msg("hub metadata unavailable, hub not part of topology")

			continue
		}

		topo.Hubs = append(topo.Hubs, newHub(dev))
	}

	if err := claimNodes(ctx, topo.Hubs, topo.Irises); err != nil {
		return nil, err
	}

	for _, hub := range topo.Hubs {
		if opts.Refetch != nil && len(hub.claimed) > 0 {
			opts.Refetch(ctx, hub.claimed)
		}

		hub.reconcile(ctx, topo)
	}

	topo.deriveViews()
	topo.report(started)

	return topo, nil
}

func (t *Topology) deriveViews() {
	for _, hub := range t.Hubs {
		for _, slot := range hub.SlotOrder() {
			for _, group := range hub.Slots[slot] {
				if chain, ok := group.(*ValidatedChain); ok {
					t.Chains = append(t.Chains, chain)
				}
			}
		}
	}

	for _, iris := range t.Irises {
		switch {
		case iris.RRHMember && iris.OwningHub != "":
			t.ChainMembers = append(t.ChainMembers, iris)
		case iris.OwningHub != "":
			t.PartiallyAttached = append(t.PartiallyAttached, iris)
		default:
			t.Standalone = append(t.Standalone, iris)
		}
	}
}

func (t *Topology) report(started time.Time) {
	metrics.DevicesEnumerated.WithLabelValues(string(device.KindHub)).Set(float64(len(t.Hubs)))
	metrics.DevicesEnumerated.WithLabelValues(string(device.KindIris)).Set(float64(len(t.Irises)))
	metrics.DevicesEnumerated.WithLabelValues(string(device.KindCPE)).Set(float64(len(t.CPEs)))
	metrics.DevicesEnumerated.WithLabelValues(string(device.KindVger)).Set(float64(len(t.Vgers)))
	metrics.ValidatedChains.Set(float64(len(t.Chains)))

	degraded := 0

	for _, hub := range t.Hubs {
		for _, groups := range hub.Slots {
			for _, group := range groups {
				if group.GroupError() {
					degraded++
				}
			}
		}
	}

	metrics.DegradedGroups.Set(float64(degraded))
	metrics.ReconcileDuration.Observe(time.Since(started).Seconds())
}

// SlotOrder returns the hub's occupied chain-slot indices in order.
func (h *Hub) SlotOrder() []int {
	slots := make([]int, 0, len(h.Slots))
	for slot := range h.Slots {
		slots = append(slots, slot)
	}

	sort.Ints(slots)

	return slots
}

// All returns the whole tree in hub, slot, position order followed by
// the standalone and auxiliary nodes.
func (t *Topology) All() []Item {
	var items []Item

	for _, hub := range t.Hubs {
		items = append(items, hub)

		for _, slot := range hub.SlotOrder() {
			for _, group := range hub.Slots[slot] {
				if chain, ok := group.(*ValidatedChain); ok {
					items = append(items, chain)
				}

				for _, member := range group.Members() {
					items = append(items, member)
				}
			}
		}
	}

	for _, dev := range t.Standalone {
		items = append(items, dev)
	}

	for _, dev := range t.CPEs {
		items = append(items, dev)
	}

	for _, dev := range t.Vgers {
		items = append(items, dev)
	}

	return items
}

// Find resolves a serial against the topology.
func (t *Topology) Find(serial string) (Item, bool) {
	for _, item := range t.All() {
		if item.Ident() == serial {
			return item, true
		}
	}

	return nil, false
}

// HubOf returns the hub owning the given device, if any.
func (t *Topology) HubOf(dev *device.Device) (*Hub, bool) {
	if dev.OwningHub == "" {
		return nil, false
	}

	for _, hub := range t.Hubs {
		if hub.Dev.Serial == dev.OwningHub {
			return hub, true
		}
	}

	return nil, false
}

// Walk traverses item depth-first, children before self, so sequenced
// operations naturally run leaf-first. depth bounds the descent:
// 0 = the item itself, 1 = immediate children and self, negative =
// unbounded.
func Walk(item Item, depth int) []Item {
	var out []Item

	switch v := item.(type) {
	case *Hub:
		if depth != 0 {
			for _, slot := range v.SlotOrder() {
				for _, group := range v.Slots[slot] {
					out = append(out, Walk(group, depth-1)...)
				}
			}
		}

		out = append(out, v)

	case *ValidatedChain:
		if depth != 0 {
			for _, member := range v.Nodes {
				out = append(out, member)
			}
		}

		out = append(out, v)

	case *FlatGroup:
		for _, member := range v.Members() {
			out = append(out, member)
		}

	case *device.Device:
		out = append(out, v)
	}

	return out
}
