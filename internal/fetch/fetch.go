// Package fetch issues the per-device metadata requests. Every
// classified device gets exactly one request per wave; failures are
// local and only exclude that device from structural reasoning.
package fetch

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/bavix/faros/internal/device"
	"github.com/bavix/faros/internal/faroserrors"
	"github.com/bavix/faros/internal/metrics"
	"github.com/bavix/faros/internal/status"
)

// Source retrieves the raw status document for one device.
type Source interface {
	Document(ctx context.Context, serial string) (status.Document, error)
}

// HTTPSource fetches status documents from the device's own HTTP
// endpoint. Timeouts belong to the injected client, not this layer.
type HTTPSource struct {
	Client  *http.Client
	Limiter *rate.Limiter

	urls map[string]string
}

// NewHTTPSource builds a source for the given devices. The limiter
// paces request bursts so a large fleet does not flood the uplink.
func NewHTTPSource(client *http.Client, limiter *rate.Limiter, devs []*device.Device) *HTTPSource {
	urls := make(map[string]string, len(devs))
	for _, d := range devs {
		urls[d.Serial] = d.StatusURL
	}

	return &HTTPSource{Client: client, Limiter: limiter, urls: urls}
}

// Document implements Source.
func (s *HTTPSource) Document(ctx context.Context, serial string) (status.Document, error) {
	url := s.urls[serial]
	if url == "" {
		return nil, faroserrors.ErrNoStatusURL
	}

	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", faroserrors.ErrStatusUnavailable, url, resp.StatusCode)
	}

	return status.Parse(resp.Body)
}

// Fetcher runs fetch waves against a source.
type Fetcher struct {
	src Source
}

// New creates a Fetcher.
func New(src Source) *Fetcher {
	return &Fetcher{src: src}
}

// Wave fetches metadata for every given device concurrently and joins
// before returning. A failed fetch is logged and leaves the device
// unfetched; it never fails the wave. The devices that did fetch are
// returned.
func (f *Fetcher) Wave(ctx context.Context, devs []*device.Device) []*device.Device {
	logger := zerolog.Ctx(ctx)

	g, gctx := errgroup.WithContext(ctx)

	for _, dev := range devs {
		dev := dev

		g.Go(func() error {
			metrics.FetchesTotal.Inc()

			doc, err := f.src.Document(gctx, dev.Serial)
			if err == nil {
				err = dev.AttachStatus(doc)
			}

			if err != nil {
				metrics.FetchFailuresTotal.Inc()
				logger.Debug().Err(err).Str("serial", dev.Serial).Msg("status fetch failed, device excluded")
			}

			// Fetches are independent; absorb the failure here.
			return nil
		})
	}

	_ = g.Wait()

	fetched := make([]*device.Device, 0, len(devs))

	for _, dev := range devs {
		if dev.Fetched() {
			fetched = append(fetched, dev)
		}
	}

	return fetched
}

// Refetch re-runs the fetch for devices that already fetched once.
// Used for the hub-scoped wave: node address visibility can depend on
// hub-side port state, so claimed nodes are read again.
func (f *Fetcher) Refetch(ctx context.Context, devs []*device.Device) {
	f.Wave(ctx, devs)
}
