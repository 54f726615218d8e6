package device

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Classification rules, first match wins. The serial-prefix checks
// compensate for firmwares that report a generic remote:type for
// client hardware.
const (
	irisTypeMarker = "iris"
	cpeTypeMarker  = "cpe"
	hubTypeMarker  = "faros"

	cpeSerialMarker  = "CP"
	vgerSerialMarker = "VG"
)

// Classify converts raw enumeration descriptors into device records.
// Descriptors without a serial are discarded. Duplicate serials across
// enumeration passes are expected (lossy broadcast discovery runs
// several passes); the first record seen for a serial wins.
func Classify(ctx context.Context, descriptors []map[string]string) []*Device {
	logger := zerolog.Ctx(ctx)
	seen := make(map[string]struct{}, len(descriptors))
	devices := make([]*Device, 0, len(descriptors))

	for _, desc := range descriptors {
		serial, ok := desc["serial"]
		if !ok || serial == "" {
			logger.Debug().Str("driver", desc["driver"]).Msg("descriptor without serial discarded")

			continue
		}

		if _, dup := seen[serial]; dup {
			continue
		}

		kind, ok := kindOf(desc)
		if !ok {
			logger.Debug().Str("serial", serial).Str("remote_type", desc["remote:type"]).
				Msg("descriptor kind not recognized")

			continue
		}

		dev, err := newFromDescriptor(kind, desc)
		if err != nil {
			logger.Warn().Err(err).Str("serial", serial).Msg("descriptor rejected")

			continue
		}

		seen[serial] = struct{}{}
		devices = append(devices, dev)
	}

	return devices
}

func kindOf(desc map[string]string) (Kind, bool) {
	remoteType := desc["remote:type"]
	serial := desc["serial"]

	switch {
	case strings.Contains(remoteType, irisTypeMarker) && !strings.Contains(serial, cpeSerialMarker):
		return KindIris, true
	case strings.Contains(remoteType, cpeTypeMarker) && strings.Contains(serial, cpeSerialMarker):
		return KindCPE, true
	case strings.Contains(remoteType, cpeTypeMarker) && strings.Contains(serial, vgerSerialMarker):
		return KindVger, true
	case strings.Contains(remoteType, hubTypeMarker):
		return KindHub, true
	}

	return "", false
}
