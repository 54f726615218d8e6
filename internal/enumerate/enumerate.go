// Package enumerate defines the boundary to the hardware enumeration
// mechanism. The protocol itself lives outside this repository; an
// Enumerator only hands back raw key/value descriptors.
package enumerate

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Descriptor is one raw device descriptor from an enumeration pass.
type Descriptor map[string]string

// Options tunes a single enumeration pass.
type Options struct {
	// Timeout is the discovery timeout, forwarded to the backend in
	// microseconds.
	Timeout time.Duration
	// IPv6 selects the IPv6 address family instead of IPv4.
	IPv6 bool
	// Passes is how many enumeration passes Gather runs. Broadcast
	// discovery is lossy, so several passes build a better picture.
	Passes int
}

const (
	// DefaultTimeout matches the behaviour of the stock tooling.
	DefaultTimeout = 800 * time.Millisecond
	// DefaultPasses compensates for dropped discovery broadcasts.
	DefaultPasses = 3

	passPause = time.Second
)

// Enumerator performs one discovery pass.
type Enumerator interface {
	Enumerate(ctx context.Context, opts Options) ([]Descriptor, error)
}

// Gather runs the configured number of passes and deduplicates the
// results by serial, first seen wins. Descriptors without a serial are
// dropped here; they cannot be deduplicated or addressed.
func Gather(ctx context.Context, e Enumerator, opts Options) ([]Descriptor, error) {
	logger := zerolog.Ctx(ctx)

	passes := opts.Passes
	if passes <= 0 {
		passes = DefaultPasses
	}

	seen := make(map[string]struct{})

	var out []Descriptor

	for pass := 0; pass < passes; pass++ {
		found, err := e.Enumerate(ctx, opts)
		if err != nil {
			return nil, err
		}

		fresh := 0

		for _, desc := range found {
			serial := desc["serial"]
			if serial == "" {
				continue
			}

			if _, dup := seen[serial]; dup {
				continue
			}

			seen[serial] = struct{}{}
			out = append(out, desc)
			fresh++
		}

		logger.Debug().Int("pass", pass+1).Int("found", len(found)).Int("new", fresh).
			Msg("enumeration pass complete")

		if pass < passes-1 {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(passPause):
			}
		}
	}

	return out, nil
}
