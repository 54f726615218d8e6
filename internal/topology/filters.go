package topology

import (
	"github.com/bavix/faros/internal/device"
)

// Classification predicates over topology items. They are the building
// blocks downstream selection logic composes.

// IsHub reports whether the item is a hub.
func IsHub(item Item) bool {
	_, ok := item.(*Hub)

	return ok
}

// IsValidatedChain reports whether the item is a validated chain.
func IsValidatedChain(item Item) bool {
	_, ok := item.(*ValidatedChain)

	return ok
}

// IsIris reports whether the item is a chain-capable node.
func IsIris(item Item) bool {
	dev, ok := item.(*device.Device)

	return ok && dev.Kind == device.KindIris
}

// IsStandalone reports whether the item is a chain-capable node that
// belongs to no hub.
func IsStandalone(item Item) bool {
	dev, ok := item.(*device.Device)

	return ok && dev.Kind == device.KindIris && !dev.RRHMember && dev.OwningHub == ""
}

// IsChainMember reports whether the item is a node inside a validated
// chain.
func IsChainMember(item Item) bool {
	dev, ok := item.(*device.Device)

	return ok && dev.Kind == device.KindIris && dev.RRHMember && dev.OwningHub != ""
}

// IsPartiallyAttached reports whether the item is a node claimed by a
// hub but not part of any validated chain.
func IsPartiallyAttached(item Item) bool {
	dev, ok := item.(*device.Device)

	return ok && dev.Kind == device.KindIris && !dev.RRHMember && dev.OwningHub != ""
}

// SameChain reports whether two items are nodes of the same reconciled
// chain group.
func SameChain(a, b Item) bool {
	da, okA := a.(*device.Device)
	db, okB := b.(*device.Device)

	if !okA || !okB {
		return false
	}

	return da.GroupHandle >= 0 && da.GroupHandle == db.GroupHandle
}

// RelatedTo reports whether two items are physically related: the same
// item, nodes of one chain, or a hub paired with its member or chain.
func RelatedTo(a, b Item) bool {
	if a == b {
		return true
	}

	if SameChain(a, b) {
		return true
	}

	return hubOwns(a, b) || hubOwns(b, a)
}

func hubOwns(a, b Item) bool {
	hub, ok := a.(*Hub)
	if !ok {
		return false
	}

	switch v := b.(type) {
	case *device.Device:
		return v.OwningHub == hub.Dev.Serial
	case *ValidatedChain:
		return v.HubSerial == hub.Dev.Serial
	}

	return false
}

// PowerDependencyLess orders items so that no item depends on a later
// one for power or connectivity: deeper chain members sort before
// shallower ones and before their owning hub, nodes before hubs, hubs
// before everything else. Sorting a fleet operation with this key lets
// it run leaf-first.
func PowerDependencyLess(a, b Item) bool {
	ca, chainA, posA := powerKey(a)
	cb, chainB, posB := powerKey(b)

	if ca != cb {
		return ca < cb
	}

	if chainA != chainB {
		return chainA < chainB
	}

	return posA < posB
}

func powerKey(item Item) (class, chain, pos int) {
	switch v := item.(type) {
	case *device.Device:
		if v.Kind == device.KindIris {
			return 0, -v.ChainID, -v.Position
		}

		return 2, 0, 0
	case *Hub:
		return 1, 0, 0
	default:
		return 2, 0, 0
	}
}
