package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/go-multierror"
	"github.com/minios-linux/potkit/pofile"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// DefaultExtensions maps file extensions to the dialect they are scanned as.
var DefaultExtensions = map[string]Dialect{
	".php": PHP,
	".js":  JavaScript,
}

// DefaultExclude contains directory names skipped during scanning.
var DefaultExclude = []string{"vendor", "node_modules", ".git"}

// ErrInvalidUTF8 is reported for source files that are not valid UTF-8.
var ErrInvalidUTF8 = errors.New("file is not valid UTF-8")

var utf8BOM = []byte("\xef\xbb\xbf")

// Scanner walks a source tree and extracts translation calls from every
// file whose extension maps to a dialect.
type Scanner struct {
	// Fs is the filesystem the tree is read from.
	Fs afero.Fs
	// Matcher recognizes the calls in each file.
	Matcher Matcher
	// Extensions maps lower-case extensions (with dot) to dialects.
	Extensions map[string]Dialect
	// Exclude lists directory names that are pruned wherever they occur.
	Exclude []string
	// ExcludePaths lists directories pruned by path, such as the catalog
	// output directory.
	ExcludePaths []string
	// Workers > 1 matches files concurrently.
	Workers int
	// References records "file:line" locations on the entries.
	References bool
	// Log receives per-file tracing. Nil discards it.
	Log logrus.FieldLogger
}

// Result is the outcome of a scan.
type Result struct {
	// Entries is the deduplicated template set, sorted by message id.
	Entries []*pofile.Entry
	// Files are the scanned source files, relative to the root.
	Files []string
	// Calls counts recognized calls per shape, before deduplication.
	Calls map[Shape]int
	// Diagnostics collects per-file read and decode failures.
	Diagnostics *multierror.Error
}

// TotalCalls returns the number of recognized calls of every shape.
func (r *Result) TotalCalls() int {
	n := 0
	for _, c := range r.Calls {
		n += c
	}
	return n
}

// Err returns the per-file diagnostics as a single error, or nil.
func (r *Result) Err() error {
	return r.Diagnostics.ErrorOrNil()
}

type sourceFile struct {
	path    string
	rel     string
	dialect Dialect
}

// Scan walks root depth-first and builds the template set. Per-file
// failures end up in Result.Diagnostics; only an inaccessible root or a
// cancelled context make Scan fail.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	log := s.logger()

	info, err := s.Fs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scanning %s: not a directory", root)
	}

	res := &Result{Calls: make(map[Shape]int)}
	files, err := s.collect(ctx, root, res)
	if err != nil {
		return nil, err
	}

	matches := make([][]Match, len(files))
	errs := make([]error, len(files))

	if s.Workers > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.Workers)
		for i, f := range files {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				matches[i], errs[i] = s.scanFile(f)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, f := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			matches[i], errs[i] = s.scanFile(f)
		}
	}

	// Merge in path order so the result does not depend on scheduling.
	byKey := make(map[pofile.Key]*pofile.Entry)
	for i, f := range files {
		if errs[i] != nil {
			log.WithField("file", f.rel).Debugf("skipped: %v", errs[i])
			res.Diagnostics = multierror.Append(res.Diagnostics, fmt.Errorf("%s: %w", f.path, errs[i]))
			continue
		}
		res.Files = append(res.Files, f.rel)
		log.WithFields(logrus.Fields{"file": f.rel, "calls": len(matches[i])}).Debug("scanned")

		for _, m := range matches[i] {
			res.Calls[m.Shape]++
			key := pofile.Key{Context: m.Context, MsgID: m.Message}
			e, ok := byKey[key]
			if !ok {
				e = &pofile.Entry{MsgCtxt: m.Context, MsgID: m.Message}
				byKey[key] = e
			}
			// The first plural form seen for a key wins.
			if e.MsgIDPlural == "" && m.Plural != "" {
				e.MsgIDPlural = m.Plural
			}
			if s.References {
				e.References = append(e.References, fmt.Sprintf("%s:%d", f.rel, m.Line))
			}
		}
	}

	res.Entries = make([]*pofile.Entry, 0, len(byKey))
	for _, e := range byKey {
		res.Entries = append(res.Entries, e)
	}
	pofile.SortEntries(res.Entries)

	return res, nil
}

// collect lists the source files under root, pruning excluded directories.
func (s *Scanner) collect(ctx context.Context, root string, res *Result) ([]sourceFile, error) {
	exclude := make(map[string]bool, len(s.Exclude))
	for _, name := range s.Exclude {
		exclude[name] = true
	}
	excludePaths := make(map[string]bool, len(s.ExcludePaths))
	for _, p := range s.ExcludePaths {
		excludePaths[filepath.Clean(p)] = true
	}
	extensions := s.Extensions
	if extensions == nil {
		extensions = DefaultExtensions
	}

	var files []sourceFile
	err := afero.Walk(s.Fs, root, func(path string, info os.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			res.Diagnostics = multierror.Append(res.Diagnostics, fmt.Errorf("%s: %w", path, err))
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			if path != root && (exclude[info.Name()] || excludePaths[filepath.Clean(path)]) {
				return filepath.SkipDir
			}
			return nil
		}
		d, ok := extensions[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		files = append(files, sourceFile{path: path, rel: filepath.ToSlash(rel), dialect: d})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, nil
}

// scanFile reads one file fully and runs the matcher over it.
func (s *Scanner) scanFile(f sourceFile) ([]Match, error) {
	data, err := afero.ReadFile(s.Fs, f.path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, ErrInvalidUTF8
	}
	return s.Matcher.Match(string(data), f.dialect), nil
}

func (s *Scanner) logger() logrus.FieldLogger {
	if s.Log != nil {
		return s.Log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
