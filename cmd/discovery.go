package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/bavix/faros/internal/config"
	"github.com/bavix/faros/internal/device"
	"github.com/bavix/faros/internal/enumerate"
	"github.com/bavix/faros/internal/fetch"
	"github.com/bavix/faros/internal/status"
	"github.com/bavix/faros/internal/topology"
)

const statusClientTimeout = 10 * time.Second

// discoveryFlags are the per-command overrides for a discovery run.
type discoveryFlags struct {
	fixture   string
	passes    int
	timeoutMS int
	ipv6      bool
}

func (f *discoveryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.fixture, "fixture", "", "Replay a recorded discovery snapshot instead of probing the network")
	cmd.Flags().IntVar(&f.passes, "passes", 0, "Enumeration passes (0 uses the config value)")
	cmd.Flags().IntVar(&f.timeoutMS, "timeout-ms", 0, "Per-pass discovery timeout in milliseconds (0 uses the config value)")
	cmd.Flags().BoolVar(&f.ipv6, "ipv6", false, "Discover over IPv6")
}

// discoveryResult is everything a command may need after one run.
type discoveryResult struct {
	Topology    *topology.Topology
	Devices     []*device.Device
	Descriptors []enumerate.Descriptor
}

// Documents returns the status document of every fetched device, keyed
// by serial. Used when dumping a replayable snapshot.
func (r *discoveryResult) Documents() map[string]status.Document {
	docs := make(map[string]status.Document)

	for _, dev := range r.Devices {
		if dev.Fetched() {
			docs[dev.Serial] = dev.Status
		}
	}

	return docs
}

// runDiscovery performs a full discovery run: enumerate, classify,
// fetch, reconcile. With a fixture it replays the snapshot; otherwise
// it drives the configured enumeration helper and live HTTP fetches.
func runDiscovery(ctx context.Context, cfg *config.Config, flags discoveryFlags) (*discoveryResult, error) {
	opts := enumerate.Options{
		Timeout: cfg.Discover.Timeout(),
		IPv6:    cfg.Discover.IPv6 || flags.ipv6,
		Passes:  cfg.Discover.Passes,
	}

	if flags.passes > 0 {
		opts.Passes = flags.passes
	}

	if flags.timeoutMS > 0 {
		opts.Timeout = time.Duration(flags.timeoutMS) * time.Millisecond
	}

	var (
		enumerator enumerate.Enumerator
		source     fetch.Source
	)

	if flags.fixture != "" {
		fx, err := enumerate.LoadFixture(flags.fixture)
		if err != nil {
			return nil, err
		}

		enumerator, source = fx, fx
		// Replay is deterministic, one pass sees everything.
		opts.Passes = 1
	} else {
		enumerator = &enumerate.ExecEnumerator{Command: cfg.Discover.EnumerateCommand}
	}

	descriptors, err := enumerate.Gather(ctx, enumerator, opts)
	if err != nil {
		return nil, err
	}

	raw := make([]map[string]string, len(descriptors))
	for i, desc := range descriptors {
		raw[i] = desc
	}

	devs := device.Classify(ctx, raw)

	if source == nil {
		limit := rate.Limit(cfg.Discover.FetchRate)
		source = fetch.NewHTTPSource(
			&http.Client{Timeout: statusClientTimeout},
			rate.NewLimiter(limit, cfg.Discover.FetchRate),
			devs,
		)
	}

	fetcher := fetch.New(source)
	fetcher.Wave(ctx, devs)

	topo, err := topology.Build(ctx, devs, topology.Options{Refetch: fetcher.Refetch})
	if err != nil {
		return nil, err
	}

	return &discoveryResult{Topology: topo, Devices: devs, Descriptors: descriptors}, nil
}
