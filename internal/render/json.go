package render

import (
	"encoding/json"
	"fmt"

	"github.com/bavix/faros/internal/topology"
)

// Station is the JSON view of one hub: its validated chain serials,
// the chain member SDRs and the reference-slot calibration node.
type Station struct {
	Hub       string   `json:"hub"`
	RRH       []string `json:"rrh"`
	SDR       []string `json:"sdr"`
	Reference string   `json:"reference"`
}

// Document builds the JSON structure keyed by station index, with the
// standalone clients listed separately.
func Document(t *topology.Topology) map[string]any {
	stations := make(map[string]any, len(t.Hubs))

	for idx, hub := range t.Hubs {
		station := Station{Hub: hub.Dev.Serial, RRH: []string{}, SDR: []string{}}

		for _, slot := range hub.SlotOrder() {
			for _, group := range hub.Slots[slot] {
				switch g := group.(type) {
				case *topology.ValidatedChain:
					station.RRH = append(station.RRH, g.Config.Serial)

					for _, node := range g.Nodes {
						station.SDR = append(station.SDR, node.Serial)
					}
				default:
					if !topology.IsReferenceChain(slot) {
						continue
					}

					for _, node := range group.Members() {
						station.Reference = node.Serial
					}
				}
			}
		}

		stations[fmt.Sprintf("BS%d", idx)] = station
	}

	clients := make([]string, 0)

	for _, dev := range t.Standalone {
		clients = append(clients, dev.Serial)
	}

	for _, dev := range t.CPEs {
		clients = append(clients, dev.Serial)
	}

	for _, dev := range t.Vgers {
		clients = append(clients, dev.Serial)
	}

	doc := make(map[string]any)

	if len(stations) > 0 {
		doc["BaseStations"] = stations
	}

	if len(clients) > 0 {
		doc["Clients"] = map[string]any{"sdr": clients}
	}

	return doc
}

// JSON renders Document with indentation.
func JSON(t *topology.Topology) (string, error) {
	out, err := json.MarshalIndent(Document(t), "", "    ")
	if err != nil {
		return "", err
	}

	return string(out), nil
}
