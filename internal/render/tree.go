package render

import (
	"fmt"
	"strings"

	"github.com/bavix/faros/internal/device"
	"github.com/bavix/faros/internal/topology"
)

// TreeOptions tunes the text tree output.
type TreeOptions struct {
	// Field switches member lines to a single joined field value.
	Field string
	// Delim joins field values; defaults to one space.
	Delim string
}

type treeNode struct {
	label    string
	children []*treeNode
}

func (n *treeNode) add(label string) *treeNode {
	child := &treeNode{label: label}
	n.children = append(n.children, child)

	return child
}

// Tree renders the topology as a hierarchical text tree.
func Tree(t *topology.Topology, opts TreeOptions) string {
	if opts.Delim == "" {
		opts.Delim = " "
	}

	root := &treeNode{label: fmt.Sprintf("Topology at %s", t.Time.Format("2006-01-02 15:04:05"))}

	for _, hub := range t.Hubs {
		hubNode := root.add(fmt.Sprintf("Hub: %s    %s - FW: %s FPGA: %s",
			hub.Dev.Serial, hub.Dev.HTTPHost(), hub.Dev.Firmware, hub.Dev.FPGA))

		for _, slot := range hub.SlotOrder() {
			for _, group := range hub.Slots[slot] {
				addGroup(hubNode, slot, group, opts)
			}
		}
	}

	clients := clientSections(t)
	if len(clients) > 0 {
		section := root.add("Standalone Clients")
		for _, c := range clients {
			addClients(section, c.kind, c.devs, opts)
		}
	}

	var b strings.Builder

	b.WriteString(root.label)
	b.WriteString("\n")
	renderChildren(&b, root, "")

	return b.String()
}

func slotLabel(slot int) string {
	if slot < topology.LastPossibleChain {
		return fmt.Sprintf("%d", slot+1)
	}

	return "UNKNOWN"
}

func addGroup(hubNode *treeNode, slot int, group topology.Group, opts TreeOptions) {
	members := group.Members()

	switch g := group.(type) {
	case *topology.ValidatedChain:
		marker := ""
		if !g.ConfigCorrect {
			marker = " (FIX SFP CONFIG)"
		}

		chainNode := hubNode.add(fmt.Sprintf("Chain %s  Serial %s  Count %d  FW %s FPGA %s%s",
			slotLabel(slot), g.Config.Serial, len(members),
			common(members, "firmware"), common(members, "fpga"), marker))
		addMembers(chainNode, members, opts)

	default:
		if len(members) == 0 {
			return
		}

		chainNode := hubNode.add(fmt.Sprintf("Chain %s  Count: %d FW %s FPGA %s",
			slotLabel(slot), len(members),
			common(members, "firmware"), common(members, "fpga")))
		addMembers(chainNode, members, opts)
	}
}

func addMembers(parent *treeNode, members []*device.Device, opts TreeOptions) {
	if opts.Field != "" {
		values := make([]string, 0, len(members))
		for _, m := range members {
			values = append(values, fieldValue(m, opts.Field))
		}

		parent.add(strings.Join(values, opts.Delim))

		return
	}

	for _, m := range members {
		index := ""
		if m.Position >= 0 {
			index = fmt.Sprintf("%d", m.Position+1)
		}

		parent.add(fmt.Sprintf("Iris %s:%s", index, m.Details()))
	}
}

type clientSection struct {
	kind device.Kind
	devs []*device.Device
}

func clientSections(t *topology.Topology) []clientSection {
	var sections []clientSection

	for _, s := range []clientSection{
		{device.KindIris, t.Standalone},
		{device.KindCPE, t.CPEs},
		{device.KindVger, t.Vgers},
	} {
		if len(s.devs) > 0 {
			sections = append(sections, s)
		}
	}

	return sections
}

func addClients(section *treeNode, kind device.Kind, devs []*device.Device, opts TreeOptions) {
	name := kindName(kind)
	group := section.add(fmt.Sprintf("%s Count: %d  FW %s FPGA %s",
		name, len(devs), common(devs, "firmware"), common(devs, "fpga")))

	if opts.Field != "" {
		values := make([]string, 0, len(devs))
		for _, d := range devs {
			values = append(values, fieldValue(d, opts.Field))
		}

		group.add(strings.Join(values, opts.Delim))

		return
	}

	for _, d := range devs {
		group.add(fmt.Sprintf("%s %s", name, d.Details()))
	}
}

func renderChildren(b *strings.Builder, n *treeNode, prefix string) {
	for i, child := range n.children {
		last := i == len(n.children)-1

		connector, childPrefix := "├── ", "│   "
		if last {
			connector, childPrefix = "└── ", "    "
		}

		b.WriteString(prefix + connector + child.label + "\n")
		renderChildren(b, child, prefix+childPrefix)
	}
}
