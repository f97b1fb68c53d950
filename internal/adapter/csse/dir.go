package csse

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/covid-timeseries-etl/internal/domain"
)

// DirSource serves reports from a local directory laid out like the feed,
// e.g. one written by cmd/genmock.
type DirSource struct {
	root string
}

// NewDirSource creates a source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{root: dir}
}

// NewSource picks a DirSource for file:// base URLs and a Client otherwise.
func NewSource(opts Options) Source {
	if dir, ok := strings.CutPrefix(opts.BaseURL, "file://"); ok {
		return NewDirSource(dir)
	}
	return NewClient(opts)
}

func (d *DirSource) path(date time.Time) string {
	return filepath.Join(d.root, domain.ReportName(date)+".csv")
}

func (d *DirSource) Exists(_ context.Context, date time.Time) (bool, error) {
	info, err := os.Stat(d.path(date))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", domain.ReportName(date), err)
	}
	return info.Mode().IsRegular(), nil
}

func (d *DirSource) Fetch(_ context.Context, date time.Time) ([]byte, error) {
	body, err := os.ReadFile(d.path(date))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", domain.ReportName(date), domain.ErrDateUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", domain.ReportName(date), err)
	}
	return body, nil
}
