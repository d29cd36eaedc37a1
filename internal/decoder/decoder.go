// Package decoder runs the external replay decoder that turns a binary
// replay into the generic JSON tree.
package decoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	InputPlaceholder  = "{input}"
	OutputPlaceholder = "{output}"
)

type Decoder struct {
	Command string
	// Args may reference {input} and {output}.
	Args    []string
	Timeout time.Duration
}

func Default() Decoder {
	return Decoder{
		Command: "rattletrap",
		Args:    []string{"--compact", "--input", InputPlaceholder, "--output", OutputPlaceholder},
		Timeout: 2 * time.Minute,
	}
}

// RunError carries the decoder's stderr.
type RunError struct {
	Command string
	Input   string
	Stderr  string
	Err     error
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("decode %s with %s: %v", e.Input, e.Command, e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *RunError) Unwrap() error { return e.Err }

func (d Decoder) args(input, output string) []string {
	out := make([]string, len(d.Args))
	r := strings.NewReplacer(InputPlaceholder, input, OutputPlaceholder, output)
	for i, a := range d.Args {
		out[i] = r.Replace(a)
	}
	return out
}

// Run decodes input into output. The output directory is created first.
func (d Decoder) Run(ctx context.Context, input, output string) error {
	if d.Command == "" {
		return errors.New("decoder: empty command")
	}
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("decoder input: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return err
	}
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.Command, d.args(input, output)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return &RunError{Command: d.Command, Input: input, Stderr: stderr.String(), Err: err}
	}
	if _, err := os.Stat(output); err != nil {
		return &RunError{Command: d.Command, Input: input, Stderr: stderr.String(), Err: fmt.Errorf("no output: %w", err)}
	}
	return nil
}

// OutputPath names the decoded tree for a replay file inside dir.
func OutputPath(dir, input string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(dir, base+".json")
}
