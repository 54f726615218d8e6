package enumerate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/bavix/faros/internal/faroserrors"
	"github.com/bavix/faros/internal/status"
)

// Fixture is a persisted snapshot of a discovery run: the raw
// enumeration descriptors plus the reduced status document per serial.
// It is sufficient to replay reconciliation without live hardware.
type Fixture struct {
	Descriptors []Descriptor               `json:"enumerate"`
	Status      map[string]status.Document `json:"status"`
}

// LoadFixture reads a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, err
	}

	var f Fixture
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", faroserrors.ErrFixtureMalformed, err)
	}

	return &f, nil
}

// Enumerate implements Enumerator by replaying the recorded
// descriptors. Every pass returns the full set; Gather deduplicates.
func (f *Fixture) Enumerate(_ context.Context, _ Options) ([]Descriptor, error) {
	out := make([]Descriptor, len(f.Descriptors))
	copy(out, f.Descriptors)

	return out, nil
}

// Document returns the recorded status document for a serial. It
// implements the fetch source contract for fixture replay.
func (f *Fixture) Document(_ context.Context, serial string) (status.Document, error) {
	doc, ok := f.Status[serial]
	if !ok {
		return nil, fmt.Errorf("%w: serial %s", faroserrors.ErrStatusUnavailable, serial)
	}

	return doc, nil
}

// WriteFixture dumps a replayable snapshot: the raw descriptors and
// the reduced status document of every fetched device.
func WriteFixture(path string, descriptors []Descriptor, docs map[string]status.Document) error {
	reduced := make(map[string]status.Document, len(docs))
	for serial, doc := range docs {
		reduced[serial] = doc.Reduce()
	}

	f := Fixture{Descriptors: descriptors, Status: reduced}

	raw, err := json.MarshalIndent(&f, "", "    ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, raw, 0o600)
}
