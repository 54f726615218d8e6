package update

import (
	"context"
	"fmt"

	"github.com/bavix/faros/internal/device"
	"github.com/bavix/faros/internal/remote"
)

// NewEnvironment maps every known variant to the artifact layout under
// base. Artifacts are pulled by the devices themselves, so base must be
// a URL reachable from the fleet network.
func NewEnvironment(base string) *Environment {
	variants := []device.Variant{
		device.VariantHub,
		device.VariantSOM6,
		device.VariantSOM9,
		device.VariantIrisRRH,
		device.VariantIrisUE,
		device.VariantIrisSDR,
		device.VariantCPE,
		device.VariantVger,
	}

	mapping := make(map[device.Variant]Artifact, len(variants))
	for _, v := range variants {
		mapping[v] = Artifact{
			BootBin: fmt.Sprintf("%s/%s/boot.bin", base, v),
			BootBit: fmt.Sprintf("%s/%s/boot.bit", base, v),
			ImageUB: fmt.Sprintf("%s/%s/image.ub", base, v),
		}
	}

	return &Environment{Mapping: mapping}
}

// BootMediaFlasher writes artifacts straight onto the device's boot
// partition and syncs. A reboot afterwards picks up the new image.
type BootMediaFlasher struct{}

// Flash implements Flasher.
func (BootMediaFlasher) Flash(ctx context.Context, session *remote.Session, dev *device.Device, artifact Artifact) error {
	steps := []struct {
		src string
		dst string
	}{
		{artifact.BootBin, "boot.bin"},
		{artifact.BootBit, "boot.bit"},
		{artifact.ImageUB, "image.ub"},
	}

	for _, step := range steps {
		if step.src == "" {
			continue
		}

		cmd := fmt.Sprintf("sudo -n curl -fsS -o /mnt/boot/%s %s", step.dst, step.src)
		if _, err := session.Run(ctx, cmd); err != nil {
			return fmt.Errorf("%s: fetch %s: %w", dev.Serial, step.dst, err)
		}
	}

	_, err := session.Run(ctx, "sudo -n sync")

	return err
}
