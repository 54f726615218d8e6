// Package update issues fleet-wide sequenced operations against the
// reconciled topology: firmware updates and reboots. Operations run
// leaf-first so no device loses power or connectivity before its own
// operation was issued, and each device fails independently without
// aborting its siblings.
package update

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/bavix/faros/internal/device"
	"github.com/bavix/faros/internal/remote"
	"github.com/bavix/faros/internal/topology"
)

const rebootCmd = "sudo -n reboot"

// Rebooter sequences reboots over the topology.
type Rebooter struct {
	mgr  *remote.Manager
	topo *topology.Topology
}

// NewRebooter creates a Rebooter.
func NewRebooter(mgr *remote.Manager, topo *topology.Topology) *Rebooter {
	return &Rebooter{mgr: mgr, topo: topo}
}

// Reboot reboots the selected items, optionally recursing into their
// children, in leaf-first power-dependency order. Per-device failures
// are logged and do not stop the sequence.
func (r *Rebooter) Reboot(ctx context.Context, items []topology.Item, recursive bool) error {
	logger := zerolog.Ctx(ctx)

	depth := 0
	if recursive {
		depth = -1
	}

	expanded := expand(items, depth)
	sort.SliceStable(expanded, func(i, j int) bool {
		return topology.PowerDependencyLess(expanded[i], expanded[j])
	})

	for _, item := range expanded {
		if err := r.rebootOne(ctx, item); err != nil {
			logger.Error().Err(err).Str("target", item.Ident()).Msg("reboot failed")
		}
	}

	return nil
}

func (r *Rebooter) rebootOne(ctx context.Context, item topology.Item) error {
	switch v := item.(type) {
	case *device.Device:
		return r.rebootDevice(ctx, v)
	case *topology.ValidatedChain:
		return r.rebootChain(ctx, v)
	case *topology.Hub:
		return r.rebootDevice(ctx, v.Dev)
	}

	return nil
}

func (r *Rebooter) rebootDevice(ctx context.Context, dev *device.Device) error {
	session, release, err := r.mgr.Connect(ctx, dev)
	if err != nil {
		return err
	}
	defer release()

	_, err = session.Run(ctx, rebootCmd)

	return err
}

// rebootChain power-cycles a whole validated chain through its owning
// hub instead of touching the members individually.
func (r *Rebooter) rebootChain(ctx context.Context, chain *topology.ValidatedChain) error {
	hub, ok := r.topo.HubOf(chain.Head)
	if !ok {
		return fmt.Errorf("chain %s: owning hub not in topology", chain.Ident())
	}

	session, release, err := r.mgr.Connect(ctx, hub.Dev)
	if err != nil {
		return err
	}
	defer release()

	_, err = session.Run(ctx, fmt.Sprintf("sudo -n chain_power reboot %d", chain.ChainID+1))

	return err
}

// ForceReboot power-cycles every physical chain port of a hub, reboots
// the reference hardware individually, then reboots the hub itself.
func (r *Rebooter) ForceReboot(ctx context.Context, hub *topology.Hub) error {
	logger := zerolog.Ctx(ctx)

	session, release, err := r.mgr.Connect(ctx, hub.Dev)
	if err != nil {
		return err
	}
	defer release()

	for slot := 0; slot < topology.LastPossibleChain; slot++ {
		if topology.IsReferenceChain(slot) {
			for _, group := range hub.Slots[slot] {
				for _, member := range group.Members() {
					if err := r.rebootDevice(ctx, member); err != nil {
						logger.Error().Err(err).Str("serial", member.Serial).Msg("reference node reboot failed")
					}
				}
			}

			continue
		}

		if _, err := session.Run(ctx, fmt.Sprintf("sudo -n chain_power reboot %d", slot+1)); err != nil {
			logger.Error().Err(err).Int("slot", slot).Str("hub", hub.Dev.Serial).Msg("chain power cycle failed")
		}
	}

	_, err = session.Run(ctx, rebootCmd)

	return err
}

// expand walks every selected item to the requested depth and
// deduplicates the result by identity.
func expand(items []topology.Item, depth int) []topology.Item {
	var out []topology.Item

	seen := make(map[topology.Item]struct{})

	for _, item := range items {
		for _, walked := range topology.Walk(item, depth) {
			if _, dup := seen[walked]; dup {
				continue
			}

			seen[walked] = struct{}{}
			out = append(out, walked)
		}
	}

	return out
}
