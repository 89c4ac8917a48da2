// Package compile turns text catalogs (.po) into binary catalogs (.mo).
package compile

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/minios-linux/potkit/atomic"
	"github.com/minios-linux/potkit/mofile"
	"github.com/minios-linux/potkit/pofile"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Stats summarizes one compiled catalog.
type Stats struct {
	// Total counts live entries, excluding the header and obsolete ones.
	Total int
	Fuzzy int
	// Untranslated counts entries with an empty translation, fuzzy or not.
	Untranslated int
	// Compiled counts entries written to the binary catalog.
	Compiled int
}

// Result describes one compiled catalog.
type Result struct {
	Source string
	Target string
	Stats  Stats
	// Size is the length of the binary catalog in bytes.
	Size int
}

// FileError ties a compile failure to the catalog that caused it.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Batch is the outcome of compiling a directory.
type Batch struct {
	Results []*Result
	// Failures holds one *FileError per catalog that could not be compiled.
	Failures *multierror.Error
}

// Err returns the collected failures, or nil.
func (b *Batch) Err() error {
	return b.Failures.ErrorOrNil()
}

// Compiler compiles catalogs found on Fs.
type Compiler struct {
	Fs afero.Fs
	// Verify reloads every written catalog through the runtime lookup.
	Verify bool
	Log    logrus.FieldLogger
}

// MOPath returns the binary catalog path for a text catalog path.
func MOPath(poPath string) string {
	return strings.TrimSuffix(poPath, filepath.Ext(poPath)) + ".mo"
}

// File compiles poPath and writes the sibling .mo file. A malformed
// catalog aborts this file only and leaves any existing .mo untouched.
func (c *Compiler) File(poPath string) (*Result, error) {
	f, err := pofile.ParseFile(c.Fs, poPath)
	if err != nil {
		return nil, &FileError{Path: poPath, Err: err}
	}

	total, translated, fuzzy, untranslated := f.Stats()
	data := mofile.Encode(f)

	if c.Verify {
		if err := mofile.Verify(data, f); err != nil {
			return nil, &FileError{Path: poPath, Err: fmt.Errorf("verifying compiled catalog: %w", err)}
		}
	}

	target := MOPath(poPath)
	if err := atomic.WriteFile(c.Fs, target, data, 0o644); err != nil {
		return nil, &FileError{Path: poPath, Err: err}
	}

	res := &Result{
		Source: poPath,
		Target: target,
		Stats: Stats{
			Total:        total,
			Fuzzy:        fuzzy,
			Untranslated: untranslated,
			Compiled:     translated,
		},
		Size: len(data),
	}
	c.logger().WithFields(logrus.Fields{
		"catalog":  filepath.Base(poPath),
		"compiled": translated,
		"bytes":    len(data),
	}).Debug("compiled")
	return res, nil
}

// Dir compiles every *.po file directly inside dir, in name order.
// Per-file failures are collected in the batch; only an unreadable
// directory is returned as an error.
func (c *Compiler) Dir(dir string) (*Batch, error) {
	infos, err := afero.ReadDir(c.Fs, dir)
	if err != nil {
		return nil, fmt.Errorf("reading catalog directory: %w", err)
	}

	batch := &Batch{}
	for _, info := range infos {
		if info.IsDir() || filepath.Ext(info.Name()) != ".po" {
			continue
		}
		res, err := c.File(filepath.Join(dir, info.Name()))
		if err != nil {
			batch.Failures = multierror.Append(batch.Failures, err)
			continue
		}
		batch.Results = append(batch.Results, res)
	}
	return batch, nil
}

// Bytes compiles a catalog read from r without touching the filesystem.
func Bytes(r io.Reader) ([]byte, Stats, error) {
	f, err := pofile.Parse(r)
	if err != nil {
		return nil, Stats{}, err
	}
	total, translated, fuzzy, untranslated := f.Stats()
	return mofile.Encode(f), Stats{Total: total, Fuzzy: fuzzy, Untranslated: untranslated, Compiled: translated}, nil
}

func (c *Compiler) logger() logrus.FieldLogger {
	if c.Log != nil {
		return c.Log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
