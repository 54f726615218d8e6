package update

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/bavix/faros/internal/device"
	"github.com/bavix/faros/internal/faroserrors"
	"github.com/bavix/faros/internal/remote"
	"github.com/bavix/faros/internal/topology"
)

// Artifact names the firmware files flashed for one variant.
type Artifact struct {
	BootBin string
	BootBit string
	ImageUB string
}

// Environment holds the variant-to-artifact mapping for one update
// run. Remaps rewrite entries before planning.
type Environment struct {
	Mapping map[device.Variant]Artifact
}

// Remap treats devices currently on the From image as To targets.
type Remap struct {
	Kind device.Kind
	From device.Variant
	To   device.Variant
}

// AllowedRemaps is the static table of supported variant overrides.
// It is configuration data handed to the CLI, not process state.
func AllowedRemaps() []Remap {
	return []Remap{
		{device.KindHub, device.VariantHub, device.VariantSOM6},
		{device.KindHub, device.VariantHub, device.VariantSOM9},
		{device.KindIris, device.VariantIrisRRH, device.VariantIrisUE},
		{device.KindIris, device.VariantIrisRRH, device.VariantIrisSDR},
		{device.KindIris, device.VariantIrisUE, device.VariantIrisRRH},
		{device.KindIris, device.VariantIrisUE, device.VariantIrisSDR},
		{device.KindIris, device.VariantIrisSDR, device.VariantIrisRRH},
		{device.KindIris, device.VariantIrisSDR, device.VariantIrisUE},
	}
}

// ApplyRemap rewires the environment so From devices receive the To
// artifacts. Unknown remaps are rejected.
func (e *Environment) ApplyRemap(from, to device.Variant) error {
	for _, allowed := range AllowedRemaps() {
		if allowed.From == from && allowed.To == to {
			e.Mapping[from] = e.Mapping[to]

			return nil
		}
	}

	return faroserrors.ErrRemapNotSupported
}

// Selection picks the update targets out of a topology.
type Selection struct {
	// Serials restricts the plan to the named devices.
	Serials []string
	// Recursive additionally pulls in every child of a named device.
	Recursive bool
	// Standalone selects all standalone chain-capable nodes.
	Standalone bool
	// PatchAll selects everything on the network.
	PatchAll bool
}

// Plan is an ordered list of devices to flash, deepest first.
type Plan struct {
	Devices []*device.Device
}

// BuildPlan resolves a selection against the topology into a
// leaf-first ordered plan.
func BuildPlan(topo *topology.Topology, sel Selection) (*Plan, error) {
	wanted := make(map[string]struct{}, len(sel.Serials))
	for _, serial := range sel.Serials {
		wanted[serial] = struct{}{}
	}

	if sel.Recursive {
		for _, serial := range sel.Serials {
			item, ok := topo.Find(serial)
			if !ok {
				return nil, faroserrors.ErrUnknownSerial
			}

			for _, child := range topology.Walk(item, -1) {
				if child.Ident() != "" {
					wanted[child.Ident()] = struct{}{}
				}
			}
		}
	}

	var devs []*device.Device

	for _, item := range topo.All() {
		dev, ok := item.(*device.Device)
		if !ok {
			if hub, isHub := item.(*topology.Hub); isHub {
				dev = hub.Dev
			} else {
				continue
			}
		}

		switch {
		case sel.Standalone:
			if !topology.IsStandalone(dev) {
				continue
			}
		case sel.PatchAll:
		default:
			if _, ok := wanted[dev.Serial]; !ok {
				continue
			}
		}

		devs = append(devs, dev)
	}

	if len(devs) == 0 {
		return nil, faroserrors.ErrNothingSelected
	}

	sort.SliceStable(devs, func(i, j int) bool {
		return topology.PowerDependencyLess(devs[i], devs[j])
	})

	return &Plan{Devices: devs}, nil
}

// Flasher applies one artifact set to a device over a live session.
// The packaging and flashing mechanics live behind this boundary.
type Flasher interface {
	Flash(ctx context.Context, session *remote.Session, dev *device.Device, artifact Artifact) error
}

// Updater runs an update plan.
type Updater struct {
	mgr     *remote.Manager
	env     *Environment
	flasher Flasher
	dryRun  bool
}

// NewUpdater creates an Updater.
func NewUpdater(mgr *remote.Manager, env *Environment, flasher Flasher, dryRun bool) *Updater {
	return &Updater{mgr: mgr, env: env, flasher: flasher, dryRun: dryRun}
}

// Run flashes every planned device in order. Devices without artifacts
// for their variant are skipped; flash failures are logged and the run
// continues with the remaining devices.
func (u *Updater) Run(ctx context.Context, plan *Plan) error {
	logger := zerolog.Ctx(ctx)

	for _, dev := range plan.Devices {
		artifact, ok := u.env.Mapping[dev.Variant]
		if !ok {
			logger.Warn().Str("serial", dev.Serial).Str("variant", string(dev.Variant)).
				Msg("no artifacts for variant, device skipped")

			continue
		}

		logger.Info().Str("serial", dev.Serial).Str("address", dev.HTTPHost()).
			Str("variant", string(dev.Variant)).Str("imageub", artifact.ImageUB).Msg("flashing device")

		if u.dryRun {
			continue
		}

		if err := u.flashOne(ctx, dev, artifact); err != nil {
			logger.Error().Err(err).Str("serial", dev.Serial).Msg("flash failed")
		}
	}

	return nil
}

func (u *Updater) flashOne(ctx context.Context, dev *device.Device, artifact Artifact) error {
	session, release, err := u.mgr.Connect(ctx, dev)
	if err != nil {
		return err
	}
	defer release()

	return u.flasher.Flash(ctx, session, dev, artifact)
}
