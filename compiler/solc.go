package compiler

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// SolcRunner runs a solc binary with --standard-json.
type SolcRunner struct {
	Path string
}

func (s SolcRunner) Run(ctx context.Context, input []byte) ([]byte, error) {
	bin := s.Path
	if bin == "" {
		bin = "solc"
	}
	cmd := exec.CommandContext(ctx, bin, "--standard-json")
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", bin, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", bin, err)
	}
	return stdout.Bytes(), nil
}
