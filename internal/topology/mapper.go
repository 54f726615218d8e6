package topology

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/bavix/faros/internal/device"
	"github.com/bavix/faros/internal/faroserrors"
)

// Hub wraps a hub device together with its claimed nodes and the
// reconciled chain-slot mapping. Slot indices 0..LastPossibleChain-1
// are physical chain ports (ReferenceChain among them is reserved for
// calibration hardware); indices from LastPossibleChain up hold groups
// that could not be diagnosed.
type Hub struct {
	Dev *device.Device

	// Slots maps a chain-slot index to one or more chain groups.
	// Multiple groups legitimately share a slot when a validated chain
	// and leftover degraded nodes report the same identifier.
	Slots map[int][]Group

	// Error is set by any structural defect found under this hub.
	Error bool

	fingerprints map[uint32]struct{}
	claimed      []*device.Device
	bySerial     map[string]*device.Device
	unpaired     []unpairedBucket
}

func newHub(dev *device.Device) *Hub {
	fps := make(map[uint32]struct{}, len(dev.Fingerprints))
	for _, fp := range dev.Fingerprints {
		fps[fp] = struct{}{}
	}

	return &Hub{
		Dev:          dev,
		Slots:        make(map[int][]Group),
		fingerprints: fps,
		bySerial:     make(map[string]*device.Device),
	}
}

// Matches reports whether the hub claims the given address fingerprint.
func (h *Hub) Matches(fp uint32) bool {
	_, ok := h.fingerprints[fp]

	return ok
}

// Claimed returns the nodes mapped to this hub.
func (h *Hub) Claimed() []*device.Device {
	return h.claimed
}

// Ident implements Item.
func (h *Hub) Ident() string { return h.Dev.Serial }

// claimNodes establishes the bidirectional hub-node relation by
// address fingerprint. A node matched by more than one hub violates
// the single-parent invariant and aborts the run; a node matched by no
// hub stays standalone.
func claimNodes(ctx context.Context, hubs []*Hub, nodes []*device.Device) error {
	logger := zerolog.Ctx(ctx)

	for _, node := range nodes {
		if !node.Fetched() {
			continue
		}

		var owner *Hub

		for _, hub := range hubs {
			if !hub.Matches(node.Fingerprint) {
				continue
			}

			if owner != nil {
				return &faroserrors.DoubleClaimError{
					NodeSerial:  node.Serial,
					FirstHub:    owner.Dev.Serial,
					SecondHub:   hub.Dev.Serial,
					Fingerprint: node.Fingerprint,
				}
			}

			owner = hub
		}

		if owner == nil {
			continue
		}

		node.OwningHub = owner.Dev.Serial
		owner.claimed = append(owner.claimed, node)
		owner.bySerial[node.Serial] = node

		logger.Debug().Str("serial", node.Serial).Str("hub", owner.Dev.Serial).
			Uint32("fingerprint", node.Fingerprint).Msg("node claimed by hub")
	}

	return nil
}
