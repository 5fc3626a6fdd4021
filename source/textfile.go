package source

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// TextFile reads one endpoint per line. Blank lines and lines starting with
// '#' are ignored.
type TextFile struct {
	Path string
}

// Endpoints reads the file.
func (t TextFile) Endpoints(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(t.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read endpoint file: %w", err)
	}
	defer f.Close()

	var endpoints []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		endpoints = append(endpoints, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read endpoint file: %w", err)
	}
	return endpoints, nil
}
