package enumerate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/bavix/faros/internal/faroserrors"
)

// ExecEnumerator shells out to an external discovery helper that
// prints a JSON array of descriptors on stdout. The helper receives
// the pass tunables as trailing key=value arguments, mirroring the
// driver's enumeration options.
type ExecEnumerator struct {
	Command []string
}

// Enumerate runs one discovery pass via the helper command.
func (e *ExecEnumerator) Enumerate(ctx context.Context, opts Options) ([]Descriptor, error) {
	if len(e.Command) == 0 {
		return nil, faroserrors.ErrNoEnumerator
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	args := append([]string{}, e.Command[1:]...)
	args = append(args, "remote:timeout="+strconv.FormatInt(timeout.Microseconds(), 10))

	if opts.IPv6 {
		args = append(args, "remote:ipver=6")
	}

	cmd := exec.CommandContext(ctx, e.Command[0], args...) //nolint:gosec

	var stdout bytes.Buffer

	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("enumeration helper: %w", err)
	}

	var found []Descriptor
	if err := json.Unmarshal(stdout.Bytes(), &found); err != nil {
		return nil, fmt.Errorf("enumeration helper output: %w", err)
	}

	return found, nil
}
