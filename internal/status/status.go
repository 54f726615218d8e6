// Package status models the per-device status document fetched over
// HTTP. The document is a free-form nested JSON tree; a handful of
// well-known paths carry the fields topology reconciliation needs.
package status

import (
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strconv"
)

// Document is one parsed status document.
type Document map[string]any

var (
	errNotAnObject = errors.New("status document is not a JSON object")

	// gatewayPaths are the alternative locations of the hardware
	// gateway address, newest firmware first.
	gatewayPaths = [][]string{
		{"sklk_pl_eth", "extra", "gateway_addr"},
		{"extra", "gateway_addr"},
	}
)

// Parse reads a status document from r.
func Parse(r io.Reader) (Document, error) {
	var raw any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, err
	}

	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, errNotAnObject
	}

	return Document(doc), nil
}

// Lookup walks the nested document along path and returns the value at
// the end of it.
func (d Document) Lookup(path ...string) (any, bool) {
	var cur any = map[string]any(d)

	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}

		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}

	return cur, true
}

// first returns the value at the first of the given paths that exists.
func (d Document) first(paths [][]string) (any, bool) {
	for _, p := range paths {
		if v, ok := d.Lookup(p...); ok {
			return v, true
		}
	}

	return nil, false
}

// Int reads an integer at path, tolerating the float64 and string
// encodings different firmwares emit.
func (d Document) Int(path ...string) (int, bool) {
	v, ok := d.Lookup(path...)
	if !ok {
		return 0, false
	}

	return toInt(v)
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()

		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(n)

		return i, err == nil
	case int:
		return n, true
	}

	return 0, false
}

// GatewayMAC returns the hardware gateway address as an integer. The
// field is a hex string at one of two firmware-dependent paths.
func (d Document) GatewayMAC() (uint64, bool) {
	v, ok := d.first(gatewayPaths)
	if !ok {
		return 0, false
	}

	s, ok := v.(string)
	if !ok {
		return 0, false
	}

	mac, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, false
	}

	return mac, true
}

// MessageIndex returns the raw 1-based chain position.
func (d Document) MessageIndex() (int, bool) {
	return d.Int("global", "message_index")
}

// ChainIndex returns the chain identifier the node reports.
func (d Document) ChainIndex() (int, bool) {
	return d.Int("global", "chain_index")
}

// RRHConfig is the authoritative chain configuration carried by a
// chain head: its own serial for the chain and the ordered member
// serials.
type RRHConfig struct {
	Serial string
	Chain  []string
}

// RRHConfig decodes sfp.config.rrh. A present but unreadable block is
// reported as absent; the caller treats that as "no head".
func (d Document) RRHConfig() (*RRHConfig, bool) {
	v, ok := d.Lookup("sfp", "config", "rrh")
	if !ok {
		return nil, false
	}

	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}

	serial, ok := m["serial"].(string)
	if !ok || serial == "" {
		return nil, false
	}

	cfg := &RRHConfig{Serial: serial}

	if rawChain, ok := m["chain"].([]any); ok {
		for _, entry := range rawChain {
			s, ok := entry.(string)
			if !ok {
				return nil, false
			}

			cfg.Chain = append(cfg.Chain, s)
		}
	}

	return cfg, true
}

// NetworkMACs returns the per-interface hardware addresses from
// jtagblob.config.network, ordered by interface name for determinism.
func (d Document) NetworkMACs() ([]string, bool) {
	v, ok := d.Lookup("jtagblob", "config", "network")
	if !ok {
		return nil, false
	}

	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}

	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}

	sort.Strings(names)

	macs := make([]string, 0, len(names))

	for _, name := range names {
		s, ok := m[name].(string)
		if !ok {
			return nil, false
		}

		macs = append(macs, s)
	}

	return macs, true
}
