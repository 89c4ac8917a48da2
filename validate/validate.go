// Package validate cross-checks a catalog directory against naming,
// header and pairing rules, and against the messages the source tree
// actually uses. Validation never writes anything.
package validate

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/minios-linux/potkit/compile"
	"github.com/minios-linux/potkit/extract"
	"github.com/minios-linux/potkit/langmeta"
	"github.com/minios-linux/potkit/pofile"
	"github.com/samber/lo"
	"github.com/spf13/afero"
)

// ErrNoCatalogDir is returned when the catalog directory is missing.
var ErrNoCatalogDir = errors.New("catalog directory not found")

// Severity ranks an issue.
type Severity int

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// Check names the rule that produced an issue.
type Check string

const (
	CheckPairing  Check = "pairing"
	CheckNaming   Check = "naming"
	CheckHeader   Check = "header"
	CheckUsage    Check = "usage"
	CheckCoverage Check = "coverage"
)

// Checks lists the checks in report order.
var Checks = []Check{CheckPairing, CheckNaming, CheckHeader, CheckUsage, CheckCoverage}

// Issue is one finding.
type Issue struct {
	Severity Severity
	Check    Check
	// File is the catalog file name, empty for tree-wide findings.
	File string
	Msg  string
}

func (i Issue) String() string {
	if i.File == "" {
		return fmt.Sprintf("%s: %s", i.Check, i.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", i.Check, i.File, i.Msg)
}

// RequiredHeaders must be declared by every text catalog.
var RequiredHeaders = []string{"Project-Id-Version", "Language", "Content-Type"}

// Report is the outcome of a validation run.
type Report struct {
	// POFiles, MOFiles and POTFiles are file names in the catalog
	// directory, sorted.
	POFiles  []string
	MOFiles  []string
	POTFiles []string
	// Locales maps conforming catalog names to their recognized locale.
	Locales map[string]langmeta.Meta
	// Usage is the scan of the source tree, nil when no scanner is set.
	Usage  *extract.Result
	Issues []Issue
}

func (r *Report) add(sev Severity, check Check, file, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Severity: sev, Check: check, File: file, Msg: fmt.Sprintf(format, args...)})
}

// Errors returns the issues of error severity.
func (r *Report) Errors() []Issue {
	return lo.Filter(r.Issues, func(i Issue, _ int) bool { return i.Severity == Error })
}

// Warnings returns the issues of warning severity.
func (r *Report) Warnings() []Issue {
	return lo.Filter(r.Issues, func(i Issue, _ int) bool { return i.Severity == Warning })
}

// ByCheck returns the issues produced by check.
func (r *Report) ByCheck(check Check) []Issue {
	return lo.Filter(r.Issues, func(i Issue, _ int) bool { return i.Check == check })
}

// Clean reports whether the run found nothing at all.
func (r *Report) Clean() bool {
	return len(r.Issues) == 0
}

// Validator checks the catalogs in Dir.
type Validator struct {
	Fs afero.Fs
	// Dir is the catalog directory.
	Dir string
	// Domain is the product slug catalog names start with and the text
	// domain the sources must use.
	Domain   string
	Registry *langmeta.Registry
	// Scanner and SourceRoot drive the usage and coverage checks. A nil
	// Scanner skips both.
	Scanner    *extract.Scanner
	SourceRoot string
	// PluginDomain is the Text Domain declared by the plugin header, if
	// one was found.
	PluginDomain string
}

// Validate runs every check. It only fails when the catalog directory
// or the source root cannot be read at all; everything else is an Issue.
func (v *Validator) Validate(ctx context.Context) (*Report, error) {
	infos, err := afero.ReadDir(v.Fs, v.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoCatalogDir, v.Dir, err)
	}

	r := &Report{Locales: make(map[string]langmeta.Meta)}
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		switch filepath.Ext(info.Name()) {
		case ".po":
			r.POFiles = append(r.POFiles, info.Name())
		case ".mo":
			r.MOFiles = append(r.MOFiles, info.Name())
		case ".pot":
			r.POTFiles = append(r.POTFiles, info.Name())
		}
	}

	v.checkPairing(r)
	v.checkNaming(r)
	catalogs := v.checkHeaders(r)

	if v.Scanner != nil {
		usage, err := v.Scanner.Scan(ctx, v.SourceRoot)
		if err != nil {
			return nil, err
		}
		r.Usage = usage
		v.checkUsage(r)
		v.checkCoverage(r, catalogs)
	}
	return r, nil
}

func (v *Validator) checkPairing(r *Report) {
	mos := make(map[string]bool, len(r.MOFiles))
	for _, name := range r.MOFiles {
		mos[name] = true
	}
	for _, name := range r.POFiles {
		mo := compile.MOPath(name)
		if !mos[mo] {
			r.add(Error, CheckPairing, name, "missing binary catalog %s", mo)
			continue
		}
		poInfo, err1 := v.Fs.Stat(filepath.Join(v.Dir, name))
		moInfo, err2 := v.Fs.Stat(filepath.Join(v.Dir, mo))
		if err1 == nil && err2 == nil && moInfo.ModTime().Before(poInfo.ModTime()) {
			r.add(Warning, CheckPairing, name, "%s is older than its source catalog", mo)
		}
	}
}

func (v *Validator) namePattern() *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(v.Domain) + `-([A-Za-z_]+)\.po$`)
}

func (v *Validator) checkNaming(r *Report) {
	re := v.namePattern()
	for _, name := range r.POFiles {
		m := re.FindStringSubmatch(name)
		if m == nil || !langmeta.IsLocaleShape(m[1]) {
			r.add(Error, CheckNaming, name, "invalid name, expected %s-<ll_RR>.po (e.g. %s-en_US.po)", v.Domain, v.Domain)
			continue
		}
		meta, ok := v.registry().Recognize(m[1])
		if !ok {
			r.add(Warning, CheckNaming, name, "unknown locale %s", m[1])
			continue
		}
		r.Locales[name] = meta
	}
}

// checkHeaders parses every text catalog and returns the ones that
// parsed, keyed by file name.
func (v *Validator) checkHeaders(r *Report) map[string]*pofile.File {
	catalogs := make(map[string]*pofile.File, len(r.POFiles))
	for _, name := range r.POFiles {
		f, err := pofile.ParseFile(v.Fs, filepath.Join(v.Dir, name))
		if err != nil {
			r.add(Error, CheckHeader, name, "cannot parse: %v", err)
			continue
		}
		catalogs[name] = f

		for _, field := range RequiredHeaders {
			if value, ok := f.LookupHeaderField(field); !ok || value == "" {
				r.add(Error, CheckHeader, name, "missing %s", field)
			}
		}

		if ct, ok := f.LookupHeaderField("Content-Type"); ok && ct != "" {
			charset := ""
			if _, params, err := mime.ParseMediaType(ct); err == nil {
				charset = params["charset"]
			}
			if !strings.EqualFold(charset, "UTF-8") {
				r.add(Warning, CheckHeader, name, "charset %q is not UTF-8", charset)
			}
		}

		if meta, ok := r.Locales[name]; ok {
			if lang := langmeta.Canonicalize(f.Locale()); lang != "" && lang != meta.Tag {
				r.add(Warning, CheckHeader, name, "Language %q does not match file name locale %s", f.Locale(), meta.Tag)
			}
		}
	}
	return catalogs
}

func (v *Validator) checkUsage(r *Report) {
	for _, err := range r.Usage.Diagnostics.WrappedErrors() {
		r.add(Warning, CheckUsage, "", "%v", err)
	}
	if v.PluginDomain != "" && v.PluginDomain != v.Domain {
		r.add(Warning, CheckUsage, "", "plugin header declares text domain %q, but %q is configured", v.PluginDomain, v.Domain)
	}
	if r.Usage.TotalCalls() == 0 {
		r.add(Warning, CheckUsage, "", "no translation calls with text domain %q found", v.Domain)
	}
}

// checkCoverage compares the in-use keys with each catalog and template.
func (v *Validator) checkCoverage(r *Report, catalogs map[string]*pofile.File) {
	inUse := lo.Map(r.Usage.Entries, func(e *pofile.Entry, _ int) pofile.Key { return e.Key() })

	compare := func(name string, f *pofile.File) {
		missing, stale := lo.Difference(inUse, f.Keys())
		if len(missing) > 0 {
			r.add(Warning, CheckCoverage, name, "%d used messages missing, e.g. %s", len(missing), sample(missing))
		}
		if len(stale) > 0 {
			r.add(Warning, CheckCoverage, name, "%d messages no longer used, e.g. %s", len(stale), sample(stale))
		}
	}

	for _, name := range r.POFiles {
		if f, ok := catalogs[name]; ok {
			compare(name, f)
		}
	}
	for _, name := range r.POTFiles {
		f, err := pofile.ParseFile(v.Fs, filepath.Join(v.Dir, name))
		if err != nil {
			r.add(Error, CheckCoverage, name, "cannot parse template: %v", err)
			continue
		}
		filled := lo.Filter(f.Entries, func(e *pofile.Entry, _ int) bool { return !e.Obsolete && !e.IsTemplate() })
		if len(filled) > 0 {
			keys := lo.Map(filled, func(e *pofile.Entry, _ int) pofile.Key { return e.Key() })
			r.add(Warning, CheckCoverage, name, "%d template messages carry translations or flags, e.g. %s", len(filled), sample(keys))
		}
		compare(name, f)
	}
}

func sample(keys []pofile.Key) string {
	ids := lo.Map(keys, func(k pofile.Key, _ int) string {
		if k.Context != "" {
			return fmt.Sprintf("%q (%s)", k.MsgID, k.Context)
		}
		return fmt.Sprintf("%q", k.MsgID)
	})
	sort.Strings(ids)
	if len(ids) > 3 {
		ids = append(ids[:3], "...")
	}
	return strings.Join(ids, ", ")
}

func (v *Validator) registry() *langmeta.Registry {
	if v.Registry == nil {
		v.Registry = langmeta.NewRegistry(nil)
	}
	return v.Registry
}
