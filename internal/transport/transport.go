// Package transport pushes normalized output to downstream object storage.
package transport

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JonMunkholm/sheetflow/internal/core"
	"github.com/JonMunkholm/sheetflow/internal/logging"
)

// Uploader sends every file of a local directory downstream.
type Uploader interface {
	Upload(ctx context.Context, dir string) (Result, error)
}

// Failure is one file that could not be sent.
type Failure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Result lists what an upload did.
type Result struct {
	Uploaded []string  `json:"uploaded"`
	Failed   []Failure `json:"failed,omitempty"`
	DryRun   bool      `json:"dryRun,omitempty"`
}

// OK reports whether every file was sent.
func (r Result) OK() bool {
	return len(r.Failed) == 0
}

// localFiles lists the regular, non-hidden files of dir by name.
func localFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &core.IOError{Op: "list", Path: dir, Err: err}
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// DryRunUploader logs what would be sent and sends nothing. Used when no
// storage is configured or uploads are skipped.
type DryRunUploader struct{}

func (DryRunUploader) Upload(ctx context.Context, dir string) (Result, error) {
	names, err := localFiles(dir)
	if err != nil {
		return Result{}, err
	}

	logger := logging.FromContext(ctx)
	for _, name := range names {
		logger.Info("upload skipped", "file", filepath.Join(dir, name))
	}
	logger.Info("upload disabled, nothing sent", "files", len(names))
	return Result{Uploaded: []string{}, DryRun: true}, nil
}
