// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package audit

import (
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/xdg"
)

// FilePattern names one audit file per calendar day.
const FilePattern = "login-%Y-%m-%d.txt"

// DefaultMaxAge is how long rotated audit files are kept.
const DefaultMaxAge = 90 * 24 * time.Hour

// Clock supplies the time used to pick the current file.
type Clock = rotatelogs.Clock

// DailyOptions configures OpenDaily.
type DailyOptions struct {
	MaxAge time.Duration
	Clock  Clock
}

// OpenDaily opens a date-partitioned append-only writer under dir, creating
// dir if needed.
func OpenDaily(dir string, opts DailyOptions) (*rotatelogs.RotateLogs, error) {
	if dir == "" {
		return nil, oops.Code("AUDIT_DIR_REQUIRED").Errorf("audit directory is required")
	}
	if err := xdg.EnsureDir(dir); err != nil {
		return nil, oops.Code("AUDIT_DIR_CREATE_FAILED").With("dir", dir).Wrap(err)
	}

	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	clock := opts.Clock
	if clock == nil {
		clock = rotatelogs.Local
	}

	w, err := rotatelogs.New(
		filepath.Join(dir, FilePattern),
		rotatelogs.WithClock(clock),
		rotatelogs.WithMaxAge(maxAge),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		return nil, oops.Code("AUDIT_OPEN_FAILED").With("dir", dir).Wrap(err)
	}
	return w, nil
}

// DefaultDir returns the audit directory under the XDG state directory.
func DefaultDir() (string, error) {
	state, err := xdg.StateDir()
	if err != nil {
		return "", oops.Code("AUDIT_DIR_RESOLVE_FAILED").Wrap(err)
	}
	return filepath.Join(state, "log"), nil
}
