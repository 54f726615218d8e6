// Package render turns a topology into its presentation forms: a
// hierarchical text tree, a YAML document and a JSON document. The
// renderers are read-only consumers; no reconciliation logic lives
// here.
package render

import (
	"github.com/bavix/faros/internal/device"
)

// fieldValue extracts a single display field from a device for the
// condensed one-field output mode.
func fieldValue(d *device.Device, field string) string {
	switch field {
	case "serial":
		return d.Serial
	case "address":
		return d.HTTPHost()
	case "firmware":
		return d.Firmware
	case "fpga":
		return d.FPGA
	case "label":
		return d.Label
	case "revision":
		return d.Revision
	case "frontend":
		return d.Frontend
	default:
		return ""
	}
}

// common summarizes one field across a set of devices: the shared
// value, "unknown" when unset, "mismatch" when they disagree.
func common(devs []*device.Device, field string) string {
	if len(devs) == 0 {
		return "no device"
	}

	values := make(map[string]struct{}, 1)
	for _, d := range devs {
		values[fieldValue(d, field)] = struct{}{}
	}

	if len(values) > 1 {
		return "mismatch"
	}

	v := fieldValue(devs[0], field)
	if v == "" {
		return "unknown"
	}

	return v
}

func kindName(kind device.Kind) string {
	switch kind {
	case device.KindIris:
		return "Iris"
	case device.KindCPE:
		return "CPE"
	case device.KindVger:
		return "VGER"
	case device.KindHub:
		return "Hub"
	default:
		return string(kind)
	}
}
