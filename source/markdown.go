package source

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"slices"
)

// headerLines is the number of lines before the first table row: the header
// and the separator.
const headerLines = 2

// DefaultStatuses are the status cells that mark a usable mirror.
var DefaultStatuses = []string{"正常", "新增"}

// rowPattern captures the backtick-quoted endpoint (group 1) and the first
// token of the following cell (group 2).
var rowPattern = regexp.MustCompile("`([\\w.\\-]+)`.*?\\|.*?(\\S+)\\s*\\|")

// Markdown reads endpoints from a Markdown table whose first column holds
// the endpoint in backticks and whose second column holds its status:
//
//	| Mirror                   | Status |
//	|--------------------------|--------|
//	| `docker.m.daocloud.io`   | 正常   |
//	| `dockerproxy.com`        | 失效   |
//
// Rows whose status is not in Statuses, and rows that do not match at all,
// are skipped.
type Markdown struct {
	// Path is the Markdown file to read.
	Path string

	// Statuses lists the accepted status values. Defaults to [DefaultStatuses].
	Statuses []string
}

// Endpoints parses the table. A file shorter than the header yields no
// endpoints.
func (m Markdown) Endpoints(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(m.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read markdown file: %w", err)
	}
	defer f.Close()

	statuses := m.Statuses
	if len(statuses) == 0 {
		statuses = DefaultStatuses
	}

	var endpoints []string
	scanner := bufio.NewScanner(f)
	for line := 0; scanner.Scan(); line++ {
		if line < headerLines {
			continue
		}
		match := rowPattern.FindStringSubmatch(scanner.Text())
		if match == nil || !slices.Contains(statuses, match[2]) {
			continue
		}
		endpoints = append(endpoints, match[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read markdown file: %w", err)
	}
	return endpoints, nil
}
