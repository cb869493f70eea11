package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/sheetflow/internal/core"
	"github.com/JonMunkholm/sheetflow/internal/logging"
)

// lockPrefix marks the owner files spreadsheet applications leave next to
// an open workbook.
const lockPrefix = "~$"

// Extension returns the input extension scanned in mode.
func Extension(mode core.InputMode) string {
	if mode == core.ModeXLSX {
		return ".xlsx"
	}
	return ".csv"
}

// List returns the input files of dir for mode, sorted by name. Lock files,
// hidden files and subdirectories are ignored. A missing directory has no
// inputs.
func List(dir string, mode core.InputMode) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &core.IOError{Op: "list", Path: dir, Err: err}
	}

	ext := Extension(mode)
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, lockPrefix) || strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), ext) {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	return paths, nil
}

// GridInputs wraps spreadsheet or csv paths as lazily opened batch inputs.
func GridInputs(paths []string, mode core.InputMode, sep rune) []core.Input {
	inputs := make([]core.Input, 0, len(paths))
	for _, p := range paths {
		path := p
		inputs = append(inputs, core.Input{
			Name: filepath.Base(path),
			Open: func(ctx context.Context) (core.Grid, error) {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				if mode == core.ModeXLSX {
					return ReadXLSX(path)
				}
				grid, enc, err := ReadCSV(path, sep)
				if enc != EncodingUTF8 && err == nil {
					logging.FromContext(ctx).Info("decoded with fallback encoding", "file", filepath.Base(path), "encoding", enc)
				}
				return grid, err
			},
		})
	}
	return inputs
}

// TextInputs wraps delimited paths as lazily read text inputs.
func TextInputs(paths []string) []core.TextInput {
	inputs := make([]core.TextInput, 0, len(paths))
	for _, p := range paths {
		path := p
		inputs = append(inputs, core.TextInput{
			Name: filepath.Base(path),
			Read: func(ctx context.Context) (string, error) {
				if err := ctx.Err(); err != nil {
					return "", err
				}
				text, enc, err := ReadText(path)
				if enc != EncodingUTF8 && err == nil {
					logging.FromContext(ctx).Info("decoded with fallback encoding", "file", filepath.Base(path), "encoding", enc)
				}
				return text, err
			},
		})
	}
	return inputs
}

// RemoveProcessed deletes the inputs of every succeeded file in report.
// Rejected inputs stay where they are for the operator to fix.
func RemoveProcessed(dir string, report core.RunReport) error {
	var errs []error
	for _, res := range report.Succeeded {
		err := os.Remove(filepath.Join(dir, res.File))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OutputDir stores normalized files in a local directory. It implements
// core.Sink.
type OutputDir struct {
	dir string
}

// NewOutputDir creates dir if needed.
func NewOutputDir(dir string) (*OutputDir, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &core.IOError{Op: "mkdir", Path: dir, Err: err}
	}
	return &OutputDir{dir: dir}, nil
}

// Dir returns the directory path.
func (o *OutputDir) Dir() string {
	return o.dir
}

// Write stores content as name, replacing any previous file atomically.
func (o *OutputDir) Write(ctx context.Context, name string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return "", &core.IOError{Op: "write", Path: name, Err: fmt.Errorf("invalid output name")}
	}

	tmp, err := os.CreateTemp(o.dir, "."+name+".*")
	if err != nil {
		return "", &core.IOError{Op: "write", Path: name, Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return "", &core.IOError{Op: "write", Path: name, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return "", &core.IOError{Op: "write", Path: name, Err: err}
	}

	path := filepath.Join(o.dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", &core.IOError{Op: "write", Path: name, Err: err}
	}
	return path, nil
}

// Clean removes every file in the directory. Subdirectories are left alone.
func (o *OutputDir) Clean() error {
	entries, err := os.ReadDir(o.dir)
	if err != nil {
		return &core.IOError{Op: "clean", Path: o.dir, Err: err}
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(o.dir, e.Name())); err != nil {
			return &core.IOError{Op: "clean", Path: o.dir, Err: err}
		}
	}
	return nil
}
