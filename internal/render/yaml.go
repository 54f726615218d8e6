package render

import (
	yaml "github.com/goccy/go-yaml"

	"github.com/bavix/faros/internal/topology"
)

// YAML renders the hub - chain - member serial nesting as a YAML
// document. Flat groups contribute their member serials directly under
// the hub; standalone and auxiliary nodes follow at top level.
func YAML(t *topology.Topology) (string, error) {
	config := make([]any, 0, len(t.Hubs))

	for _, hub := range t.Hubs {
		hubConfig := make([]any, 0)

		for _, slot := range hub.SlotOrder() {
			for _, group := range hub.Slots[slot] {
				switch g := group.(type) {
				case *topology.ValidatedChain:
					serials := make([]string, 0, len(g.Nodes))
					for _, node := range g.Nodes {
						serials = append(serials, node.Serial)
					}

					hubConfig = append(hubConfig, map[string][]string{g.Config.Serial: serials})
				default:
					for _, node := range group.Members() {
						hubConfig = append(hubConfig, node.Serial)
					}
				}
			}
		}

		config = append(config, map[string]any{hub.Dev.Serial: hubConfig})
	}

	for _, dev := range t.Standalone {
		config = append(config, dev.Serial)
	}

	for _, dev := range t.CPEs {
		config = append(config, dev.Serial)
	}

	for _, dev := range t.Vgers {
		config = append(config, dev.Serial)
	}

	out, err := yaml.Marshal(config)
	if err != nil {
		return "", err
	}

	return string(out), nil
}
