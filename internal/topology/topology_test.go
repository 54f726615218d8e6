package topology_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bavix/faros/internal/device"
	"github.com/bavix/faros/internal/faroserrors"
	"github.com/bavix/faros/internal/status"
	"github.com/bavix/faros/internal/topology"
)

// classify builds one device record the same way a live run would.
func classify(t *testing.T, desc map[string]string) *device.Device {
	t.Helper()

	devs := device.Classify(context.Background(), []map[string]string{desc})
	require.Len(t, devs, 1)

	return devs[0]
}

func hubDev(t *testing.T, serial string, macs ...string) *device.Device {
	t.Helper()

	dev := classify(t, map[string]string{
		"serial": serial, "remote:type": "faros", "remote": "faros://10.0.0.1",
	})

	network := make(map[string]any, len(macs))
	for i, mac := range macs {
		network[fmt.Sprintf("eth%d", i)] = mac
	}

	require.NoError(t, dev.AttachStatus(status.Document{
		"jtagblob": map[string]any{"config": map[string]any{"network": network}},
	}))

	return dev
}

// irisDev builds a fetched node. head is nil for plain members; a
// negative msgIdx models the firmware indexing defect. msgIdx is the
// 1-based wire value.
func irisDev(t *testing.T, serial, gateway string, chainID, msgIdx int, head *status.RRHConfig) *device.Device {
	t.Helper()

	dev := classify(t, map[string]string{
		"serial": serial, "remote:type": "iris", "remote": "iris://192.168.1.101/status",
	})

	doc := status.Document{
		"extra": map[string]any{"gateway_addr": gateway},
		"global": map[string]any{
			"message_index": float64(msgIdx),
			"chain_index":   float64(chainID),
		},
	}

	if head != nil {
		chain := make([]any, 0, len(head.Chain))
		for _, s := range head.Chain {
			chain = append(chain, s)
		}

		doc["sfp"] = map[string]any{"config": map[string]any{"rrh": map[string]any{
			"serial": head.Serial,
			"chain":  chain,
		}}}
	}

	require.NoError(t, dev.AttachStatus(doc))

	return dev
}

func unfetchedIris(t *testing.T, serial string) *device.Device {
	t.Helper()

	return classify(t, map[string]string{
		"serial": serial, "remote:type": "iris", "remote": "iris://192.168.1.101/status",
	})
}

func build(t *testing.T, devs ...*device.Device) *topology.Topology {
	t.Helper()

	topo, err := topology.Build(context.Background(), devs, topology.Options{})
	require.NoError(t, err)

	return topo
}

// Hub eth0 is 00:11:22:33:44:01, so nodes behind chain port one report
// this gateway address.
const (
	hubMAC0     = "00:11:22:33:44:01"
	hubMAC1     = "00:11:22:33:44:02"
	gatewayHex0 = "001122334401"
	gatewayHex1 = "001122334402"
)

func TestBuildNominalChain(t *testing.T) {
	t.Parallel()

	cfg := &status.RRHConfig{Serial: "RRH-A1", Chain: []string{"RF3E000040", "RF3E000041", "RF3E000042"}}

	hub := hubDev(t, "FH4B000021", hubMAC0, hubMAC1)
	head := irisDev(t, "RF3E000040", gatewayHex0, 0, 1, cfg)
	mid := irisDev(t, "RF3E000041", gatewayHex0, 0, 2, nil)
	tail := irisDev(t, "RF3E000042", gatewayHex0, 0, 3, nil)
	lone := irisDev(t, "RF3E000099", "00aabbccddee", 0, 1, nil)

	topo := build(t, hub, head, mid, tail, lone)

	require.Len(t, topo.Hubs, 1)
	require.Len(t, topo.Chains, 1)

	chain := topo.Chains[0]
	assert.Equal(t, "RRH-A1", chain.Ident())
	assert.Equal(t, 0, chain.ChainID)
	assert.True(t, chain.ConfigCorrect)
	assert.False(t, chain.Err)
	assert.Same(t, head, chain.Head)
	assert.Same(t, tail, chain.Tail())
	assert.Equal(t, []*device.Device{head, mid, tail}, chain.Nodes)

	assert.False(t, topo.Hubs[0].Error)
	assert.Equal(t, []int{0}, topo.Hubs[0].SlotOrder())

	assert.Len(t, topo.ChainMembers, 3)
	assert.Equal(t, []*device.Device{lone}, topo.Standalone)
	assert.Empty(t, topo.PartiallyAttached)

	assert.Equal(t, "FH4B000021", head.OwningHub)
	assert.True(t, head.RRHMember)
	assert.Empty(t, lone.OwningHub)
}

func TestBuildConfigMismatch(t *testing.T) {
	t.Parallel()

	// The head's authoritative list disagrees with the observed order.
	cfg := &status.RRHConfig{Serial: "RRH-A1", Chain: []string{"RF3E000040", "RF3E000099", "RF3E000042"}}

	hub := hubDev(t, "FH4B000021", hubMAC0)
	head := irisDev(t, "RF3E000040", gatewayHex0, 0, 1, cfg)
	mid := irisDev(t, "RF3E000041", gatewayHex0, 0, 2, nil)

	topo := build(t, hub, head, mid)

	require.Len(t, topo.Chains, 1)
	assert.False(t, topo.Chains[0].ConfigCorrect)
	// A configuration mismatch is reported, not an error state.
	assert.False(t, topo.Chains[0].Err)
	assert.False(t, topo.Hubs[0].Error)
}

func TestBuildConfigLongerThanObserved(t *testing.T) {
	t.Parallel()

	// Authoritative entries past the observed members do not falsify.
	cfg := &status.RRHConfig{Serial: "RRH-A1", Chain: []string{"RF3E000040", "RF3E000041", "RF3E000077"}}

	hub := hubDev(t, "FH4B000021", hubMAC0)
	head := irisDev(t, "RF3E000040", gatewayHex0, 0, 1, cfg)
	mid := irisDev(t, "RF3E000041", gatewayHex0, 0, 2, nil)

	topo := build(t, hub, head, mid)

	require.Len(t, topo.Chains, 1)
	assert.True(t, topo.Chains[0].ConfigCorrect)
}

func TestBuildNegativePosition(t *testing.T) {
	t.Parallel()

	cfg := &status.RRHConfig{Serial: "RRH-A1", Chain: []string{"RF3E000041", "RF3E000040"}}

	hub := hubDev(t, "FH4B000021", hubMAC0)
	// The wire value 0 decodes to position -1.
	broken := irisDev(t, "RF3E000041", gatewayHex0, 0, 0, nil)
	head := irisDev(t, "RF3E000040", gatewayHex0, 0, 1, cfg)

	topo := build(t, hub, head, broken)

	require.Len(t, topo.Chains, 1)
	assert.True(t, topo.Chains[0].Err)
	assert.True(t, topo.Hubs[0].Error)
	// The broken node sorts first and stays in the group.
	assert.Equal(t, []*device.Device{broken, head}, topo.Chains[0].Nodes)
}

func TestBuildShiftedHeadRecovery(t *testing.T) {
	t.Parallel()

	// Two heads report the same chain identifier; the second sits at a
	// non-zero position, the signature of the indexing defect. Its
	// authoritative members are pulled out and re-emitted at a synthetic
	// slot with positions rebased onto the head.
	cfgA := &status.RRHConfig{Serial: "RRH-A1", Chain: []string{"RF3E000040", "RF3E000041"}}
	cfgB := &status.RRHConfig{Serial: "RRH-B1", Chain: []string{"RF3E000050", "RF3E000051"}}

	hub := hubDev(t, "FH4B000021", hubMAC0)
	headA := irisDev(t, "RF3E000040", gatewayHex0, 0, 1, cfgA)
	memberA := irisDev(t, "RF3E000041", gatewayHex0, 0, 2, nil)
	headB := irisDev(t, "RF3E000050", gatewayHex0, 0, 3, cfgB)
	memberB := irisDev(t, "RF3E000051", gatewayHex0, 0, 4, nil)

	topo := build(t, hub, headA, memberA, headB, memberB)

	hubObj := topo.Hubs[0]
	assert.True(t, hubObj.Error)
	assert.Equal(t, []int{0, topology.LastPossibleChain}, hubObj.SlotOrder())

	// The surviving group validates around the zero-position head.
	require.Len(t, topo.Chains, 1)
	chain := topo.Chains[0]
	assert.Equal(t, "RRH-A1", chain.Ident())
	assert.Equal(t, []*device.Device{headA, memberA}, chain.Nodes)
	assert.True(t, chain.Err)

	// The pulled-out pair lands in a flat group, rebased to zero.
	groups := hubObj.Slots[topology.LastPossibleChain]
	require.Len(t, groups, 1)

	flat, ok := groups[0].(*topology.FlatGroup)
	require.True(t, ok)
	assert.True(t, flat.GroupError())
	assert.Equal(t, []*device.Device{headB, memberB}, flat.Members())
	assert.Equal(t, 0, headB.Position)
	assert.Equal(t, 1, memberB.Position)
}

func TestBuildDuplicateZeroPositionHeads(t *testing.T) {
	t.Parallel()

	// Two heads both claim position zero on the same chain. Neither can
	// be rebased onto the other, so the whole group degrades to a
	// synthetic slot instead of validating around either candidate.
	cfgA := &status.RRHConfig{Serial: "RRH-A1", Chain: []string{"RF3E000040"}}
	cfgB := &status.RRHConfig{Serial: "RRH-B1", Chain: []string{"RF3E000050"}}

	hub := hubDev(t, "FH4B000021", hubMAC0)
	headA := irisDev(t, "RF3E000040", gatewayHex0, 0, 1, cfgA)
	headB := irisDev(t, "RF3E000050", gatewayHex0, 0, 1, cfgB)

	topo := build(t, hub, headA, headB)

	require.Len(t, topo.Hubs, 1)
	hubObj := topo.Hubs[0]
	assert.True(t, hubObj.Error)
	assert.Empty(t, topo.Chains)
	assert.Equal(t, []int{topology.LastPossibleChain}, hubObj.SlotOrder())

	groups := hubObj.Slots[topology.LastPossibleChain]
	require.Len(t, groups, 1)

	flat, ok := groups[0].(*topology.FlatGroup)
	require.True(t, ok)
	assert.True(t, flat.GroupError())

	// The position collision means the flat group can only key one of
	// the two nodes at zero; the later one wins.
	assert.Equal(t, []*device.Device{headB}, flat.Members())

	// Both nodes stay reachable as claimed-but-unchained.
	assert.Equal(t, []*device.Device{headA, headB}, topo.PartiallyAttached)
	assert.Empty(t, topo.Standalone)
}

func TestBuildHeadlessGroupDegrades(t *testing.T) {
	t.Parallel()

	hub := hubDev(t, "FH4B000021", hubMAC0)
	nodeA := irisDev(t, "RF3E000040", gatewayHex0, 0, 1, nil)
	nodeB := irisDev(t, "RF3E000041", gatewayHex0, 0, 2, nil)

	topo := build(t, hub, nodeA, nodeB)

	hubObj := topo.Hubs[0]
	assert.True(t, hubObj.Error)
	assert.Empty(t, topo.Chains)

	// The whole group is re-emitted at the first synthetic slot.
	groups := hubObj.Slots[topology.LastPossibleChain]
	require.Len(t, groups, 1)
	assert.True(t, groups[0].GroupError())
	assert.Equal(t, []*device.Device{nodeA, nodeB}, groups[0].Members())

	// Claimed but outside any validated chain.
	assert.Equal(t, []*device.Device{nodeA, nodeB}, topo.PartiallyAttached)
	assert.Empty(t, topo.Standalone)
}

func TestBuildReferenceChain(t *testing.T) {
	t.Parallel()

	hub := hubDev(t, "FH4B000021", hubMAC0)
	ref := irisDev(t, "RF3E000060", gatewayHex0, topology.ReferenceChain, 1, nil)

	topo := build(t, hub, ref)

	hubObj := topo.Hubs[0]
	assert.False(t, hubObj.Error)

	groups := hubObj.Slots[topology.ReferenceChain]
	require.Len(t, groups, 1)

	_, isFlat := groups[0].(*topology.FlatGroup)
	assert.True(t, isFlat)
	assert.False(t, groups[0].GroupError())
	assert.Empty(t, topo.Chains)
}

func TestBuildDoubleClaim(t *testing.T) {
	t.Parallel()

	hubA := hubDev(t, "FH4B000021", hubMAC0)
	hubB := hubDev(t, "FH4B000022", hubMAC0)
	node := irisDev(t, "RF3E000040", gatewayHex0, 0, 1, nil)

	_, err := topology.Build(context.Background(), []*device.Device{hubA, hubB, node}, topology.Options{})

	var dce *faroserrors.DoubleClaimError

	require.ErrorAs(t, err, &dce)
	assert.Equal(t, "RF3E000040", dce.NodeSerial)
	assert.Equal(t, "FH4B000021", dce.FirstHub)
	assert.Equal(t, "FH4B000022", dce.SecondHub)
}

func TestBuildUnfetchedHubDropped(t *testing.T) {
	t.Parallel()

	hub := classify(t, map[string]string{
		"serial": "FH4B000021", "remote:type": "faros", "remote": "faros://10.0.0.1",
	})
	node := irisDev(t, "RF3E000040", gatewayHex0, 0, 1, nil)

	topo := build(t, hub, node)

	assert.Empty(t, topo.Hubs)
	assert.Equal(t, []*device.Device{node}, topo.Standalone)
}

func TestBuildUnfetchedNodeStaysStandalone(t *testing.T) {
	t.Parallel()

	hub := hubDev(t, "FH4B000021", hubMAC0)
	ghost := unfetchedIris(t, "RF3E000040")

	topo := build(t, hub, ghost)

	assert.Empty(t, topo.Hubs[0].Claimed())
	assert.Equal(t, []*device.Device{ghost}, topo.Standalone)
}

func TestBuildRefetchRunsPerHub(t *testing.T) {
	t.Parallel()

	hub := hubDev(t, "FH4B000021", hubMAC0)
	cfg := &status.RRHConfig{Serial: "RRH-A1", Chain: []string{"RF3E000040"}}
	node := irisDev(t, "RF3E000040", gatewayHex0, 0, 1, cfg)

	var refetched []*device.Device

	opts := topology.Options{Refetch: func(_ context.Context, devs []*device.Device) {
		refetched = append(refetched, devs...)
	}}

	_, err := topology.Build(context.Background(), []*device.Device{hub, node}, opts)
	require.NoError(t, err)

	assert.Equal(t, []*device.Device{node}, refetched)
}

func TestTwoChainsOnSeparatePorts(t *testing.T) {
	t.Parallel()

	cfgA := &status.RRHConfig{Serial: "RRH-A1", Chain: []string{"RF3E000040"}}
	cfgB := &status.RRHConfig{Serial: "RRH-B1", Chain: []string{"RF3E000050"}}

	hub := hubDev(t, "FH4B000021", hubMAC0, hubMAC1)
	headA := irisDev(t, "RF3E000040", gatewayHex0, 0, 1, cfgA)
	headB := irisDev(t, "RF3E000050", gatewayHex1, 1, 1, cfgB)

	topo := build(t, hub, headA, headB)

	require.Len(t, topo.Chains, 2)
	assert.Equal(t, []int{0, 1}, topo.Hubs[0].SlotOrder())
	assert.Equal(t, "RRH-A1", topo.Chains[0].Ident())
	assert.Equal(t, "RRH-B1", topo.Chains[1].Ident())
	assert.False(t, topo.Hubs[0].Error)
}

func TestFindAndHubOf(t *testing.T) {
	t.Parallel()

	cfg := &status.RRHConfig{Serial: "RRH-A1", Chain: []string{"RF3E000040"}}

	hub := hubDev(t, "FH4B000021", hubMAC0)
	head := irisDev(t, "RF3E000040", gatewayHex0, 0, 1, cfg)

	topo := build(t, hub, head)

	item, ok := topo.Find("FH4B000021")
	require.True(t, ok)
	assert.True(t, topology.IsHub(item))

	item, ok = topo.Find("RRH-A1")
	require.True(t, ok)
	assert.True(t, topology.IsValidatedChain(item))

	item, ok = topo.Find("RF3E000040")
	require.True(t, ok)
	assert.Same(t, head, item)

	_, ok = topo.Find("RF3E999999")
	assert.False(t, ok)

	owner, ok := topo.HubOf(head)
	require.True(t, ok)
	assert.Equal(t, "FH4B000021", owner.Ident())
}

func TestWalkLeafFirst(t *testing.T) {
	t.Parallel()

	cfg := &status.RRHConfig{Serial: "RRH-A1", Chain: []string{"RF3E000040", "RF3E000041"}}

	hub := hubDev(t, "FH4B000021", hubMAC0)
	head := irisDev(t, "RF3E000040", gatewayHex0, 0, 1, cfg)
	tail := irisDev(t, "RF3E000041", gatewayHex0, 0, 2, nil)

	topo := build(t, hub, head, tail)

	walked := topology.Walk(topo.Hubs[0], -1)

	idents := make([]string, 0, len(walked))
	for _, item := range walked {
		idents = append(idents, item.Ident())
	}

	// Members, then their chain, then the hub.
	assert.Equal(t, []string{"RF3E000040", "RF3E000041", "RRH-A1", "FH4B000021"}, idents)
}

func TestWalkDepthZero(t *testing.T) {
	t.Parallel()

	hub := hubDev(t, "FH4B000021", hubMAC0)
	node := irisDev(t, "RF3E000040", gatewayHex0, 0, 1, &status.RRHConfig{Serial: "RRH-A1"})

	topo := build(t, hub, node)

	walked := topology.Walk(topo.Hubs[0], 0)
	require.Len(t, walked, 1)
	assert.Same(t, topo.Hubs[0], walked[0])
}

func TestFilters(t *testing.T) {
	t.Parallel()

	cfg := &status.RRHConfig{Serial: "RRH-A1", Chain: []string{"RF3E000040", "RF3E000041"}}

	hub := hubDev(t, "FH4B000021", hubMAC0)
	head := irisDev(t, "RF3E000040", gatewayHex0, 0, 1, cfg)
	tail := irisDev(t, "RF3E000041", gatewayHex0, 0, 2, nil)
	lone := irisDev(t, "RF3E000099", "00aabbccddee", 0, 1, nil)

	topo := build(t, hub, head, tail, lone)

	hubItem := topo.Hubs[0]

	assert.True(t, topology.IsChainMember(head))
	assert.True(t, topology.IsStandalone(lone))
	assert.False(t, topology.IsStandalone(head))
	assert.True(t, topology.SameChain(head, tail))
	assert.False(t, topology.SameChain(head, lone))
	assert.True(t, topology.RelatedTo(hubItem, head))
	assert.True(t, topology.RelatedTo(head, hubItem))
	assert.True(t, topology.RelatedTo(hubItem, topo.Chains[0]))
	assert.False(t, topology.RelatedTo(lone, hubItem))
}

func TestPowerDependencyLess(t *testing.T) {
	t.Parallel()

	cfg := &status.RRHConfig{Serial: "RRH-A1", Chain: []string{"RF3E000040", "RF3E000041"}}

	hub := hubDev(t, "FH4B000021", hubMAC0)
	head := irisDev(t, "RF3E000040", gatewayHex0, 0, 1, cfg)
	tail := irisDev(t, "RF3E000041", gatewayHex0, 0, 2, nil)

	topo := build(t, hub, head, tail)
	hubItem := topo.Hubs[0]

	// Deeper members first, hubs after every node.
	assert.True(t, topology.PowerDependencyLess(tail, head))
	assert.False(t, topology.PowerDependencyLess(head, tail))
	assert.True(t, topology.PowerDependencyLess(tail, hubItem))
	assert.True(t, topology.PowerDependencyLess(head, hubItem))
}
