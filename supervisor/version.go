package supervisor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var ErrNoVersion = errors.New("unable to determine ddrescue version")

// DetectVersion runs "<binary> --version" and returns the last word of the
// first line, e.g. "1.25" from "GNU ddrescue 1.25".
func DetectVersion(ctx context.Context, binary string) (string, error) {
	out, err := exec.CommandContext(ctx, binary, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("%w: running %s --version: %w", ErrNoVersion, binary, err)
	}
	return versionFromOutput(out)
}

func versionFromOutput(out []byte) (string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	if !scanner.Scan() {
		return "", fmt.Errorf("%w: empty output", ErrNoVersion)
	}
	fields := strings.Fields(scanner.Text())
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: empty first line", ErrNoVersion)
	}
	return fields[len(fields)-1], nil
}
