// Package store provides transaction snapshot stores for the analytics
// engine: an in-memory implementation of the panel.Scanner capability and
// loaders for CSV and XLSX panel files.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"panelpulse/internal/panel"
)

// MemoryStore is an immutable in-memory transaction snapshot. Scans are
// read-only, so a single store serves concurrent requests without locking.
type MemoryStore struct {
	lines  []panel.TransactionLine
	logger *slog.Logger
}

// NewMemoryStore creates a store over the given lines. The slice is retained;
// callers must not mutate it afterwards.
func NewMemoryStore(lines []panel.TransactionLine, logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{lines: lines, logger: logger}
}

// Len returns the number of lines in the snapshot.
func (s *MemoryStore) Len() int {
	return len(s.lines)
}

// Scan returns the lines matching the filter. Honors context cancellation so
// the engine's scan timeout applies.
func (s *MemoryStore) Scan(ctx context.Context, f panel.ScanFilter) ([]panel.TransactionLine, error) {
	if err := f.Window.Validate(); err != nil {
		return nil, err
	}

	var out []panel.TransactionLine
	for i, line := range s.lines {
		// Check cancellation periodically rather than per line.
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("scan cancelled: %w", err)
			}
		}
		if f.Matches(line) {
			out = append(out, line)
		}
	}

	s.logger.DebugContext(ctx, "memory store scan",
		"total_lines", len(s.lines),
		"matched", len(out),
	)
	return out, nil
}
