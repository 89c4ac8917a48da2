package validate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/minios-linux/potkit/extract"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const domain = "wp-clean-admin"

func catalog(lang string, headers []string, entries string) string {
	var b strings.Builder
	b.WriteString("msgid \"\"\nmsgstr \"\"\n")
	for _, h := range headers {
		b.WriteString(`"` + h + `\n"` + "\n")
	}
	if lang != "" {
		b.WriteString(`"Language: ` + lang + `\n"` + "\n")
	}
	b.WriteString("\n")
	b.WriteString(entries)
	return b.String()
}

var fullHeaders = []string{
	"Project-Id-Version: WP Clean Admin 1.8.0",
	"Content-Type: text/plain; charset=UTF-8",
}

func newFs(t *testing.T, files map[string]string, order ...string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/p/wpcleanadmin/languages", 0o755))
	for _, name := range order {
		require.NoError(t, afero.WriteFile(fs, name, []byte(files[name]), 0o644))
	}
	for name, content := range files {
		if exists, _ := afero.Exists(fs, name); exists {
			continue
		}
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
	return fs
}

func newValidator(fs afero.Fs, scan bool) *Validator {
	v := &Validator{
		Fs:         fs,
		Dir:        "/p/wpcleanadmin/languages",
		Domain:     domain,
		SourceRoot: "/p/wpcleanadmin",
	}
	if scan {
		v.Scanner = &extract.Scanner{
			Fs:           fs,
			Matcher:      extract.NewPatternMatcher(domain),
			Extensions:   extract.DefaultExtensions,
			Exclude:      extract.DefaultExclude,
			ExcludePaths: []string{v.Dir},
		}
	}
	return v
}

func files(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.File
	}
	return out
}

func TestPairingReportsMissingBinary(t *testing.T) {
	dir := "/p/wpcleanadmin/languages/"
	fs := newFs(t, map[string]string{
		dir + "a.po": catalog("en_US", fullHeaders, ""),
		dir + "b.po": catalog("en_US", fullHeaders, ""),
		dir + "a.mo": "binary",
	}, dir+"a.po", dir+"b.po")

	r, err := newValidator(fs, false).Validate(context.Background())
	require.NoError(t, err)

	pairing := r.ByCheck(CheckPairing)
	require.Len(t, pairing, 1)
	require.Equal(t, "b.po", pairing[0].File)
	require.Equal(t, Error, pairing[0].Severity)
	require.Equal(t, []string{"a.po", "b.po"}, r.POFiles)
	require.Equal(t, []string{"a.mo"}, r.MOFiles)
}

func TestPairingWarnsAboutOutdatedBinary(t *testing.T) {
	dir := "/p/wpcleanadmin/languages/"
	fs := newFs(t, map[string]string{
		dir + "wp-clean-admin-de_DE.po": catalog("de_DE", fullHeaders, ""),
		dir + "wp-clean-admin-de_DE.mo": "binary",
	})
	old := time.Now().Add(-time.Hour)
	require.NoError(t, fs.Chtimes(dir+"wp-clean-admin-de_DE.mo", old, old))

	r, err := newValidator(fs, false).Validate(context.Background())
	require.NoError(t, err)
	pairing := r.ByCheck(CheckPairing)
	require.Len(t, pairing, 1)
	require.Equal(t, Warning, pairing[0].Severity)
	require.Contains(t, pairing[0].Msg, "older")
}

func TestNaming(t *testing.T) {
	dir := "/p/wpcleanadmin/languages/"
	fs := newFs(t, map[string]string{
		dir + "wp-clean-admin-en_US.po": catalog("en_US", fullHeaders, ""),
		dir + "admin-en.po":             catalog("en", fullHeaders, ""),
		dir + "wp-clean-admin-xx_YY.po": catalog("xx_YY", fullHeaders, ""),
		dir + "wp-clean-admin-fr.po":    catalog("fr", fullHeaders, ""),
	})

	r, err := newValidator(fs, false).Validate(context.Background())
	require.NoError(t, err)

	var errs, warns []string
	for _, is := range r.ByCheck(CheckNaming) {
		if is.Severity == Error {
			errs = append(errs, is.File)
		} else {
			warns = append(warns, is.File)
		}
	}
	require.ElementsMatch(t, []string{"admin-en.po", "wp-clean-admin-fr.po"}, errs)
	require.Equal(t, []string{"wp-clean-admin-xx_YY.po"}, warns)

	meta, ok := r.Locales["wp-clean-admin-en_US.po"]
	require.True(t, ok)
	require.Equal(t, "English (United States)", meta.Name)
}

func TestHeaders(t *testing.T) {
	dir := "/p/wpcleanadmin/languages/"
	fs := newFs(t, map[string]string{
		dir + "wp-clean-admin-en_US.po": catalog("en_US", []string{"Project-Id-Version: x"}, ""),
		dir + "wp-clean-admin-de_DE.po": catalog("de_DE", []string{"Project-Id-Version: x", "Content-Type: text/plain; charset=ISO-8859-1"}, ""),
		dir + "wp-clean-admin-zh_CN.po": catalog("zh_TW", fullHeaders, ""),
		dir + "wp-clean-admin-ja_JP.po": "msgid \"a\"\nmsgstr \"b\"\n\nbroken\n",
	})

	r, err := newValidator(fs, false).Validate(context.Background())
	require.NoError(t, err)

	byFile := make(map[string][]Issue)
	for _, is := range r.ByCheck(CheckHeader) {
		byFile[is.File] = append(byFile[is.File], is)
	}

	enUS := byFile["wp-clean-admin-en_US.po"]
	require.Len(t, enUS, 1, "missing Content-Type must not also fail the charset check")
	require.Equal(t, Error, enUS[0].Severity)
	require.Equal(t, "missing Content-Type", enUS[0].Msg)

	deDE := byFile["wp-clean-admin-de_DE.po"]
	require.Len(t, deDE, 1)
	require.Equal(t, Warning, deDE[0].Severity)
	require.Contains(t, deDE[0].Msg, "ISO-8859-1")

	zhCN := byFile["wp-clean-admin-zh_CN.po"]
	require.Len(t, zhCN, 1)
	require.Contains(t, zhCN[0].Msg, "does not match")

	jaJP := byFile["wp-clean-admin-ja_JP.po"]
	require.Len(t, jaJP, 1)
	require.Equal(t, Error, jaJP[0].Severity)
	require.Contains(t, jaJP[0].Msg, "cannot parse")
}

func TestUsageAndCoverage(t *testing.T) {
	dir := "/p/wpcleanadmin/languages/"
	fs := newFs(t, map[string]string{
		"/p/wpcleanadmin/wp-clean-admin.php": "<?php\n__('Hello', 'wp-clean-admin');\n_n('%d item', '%d items', $count, 'wp-clean-admin');\n",
		"/p/wpcleanadmin/js/menu.js":         `_x("Menu", "nav", "wp-clean-admin");`,
		dir + "ignored.php":                  `<?php __('Inside catalog dir', 'wp-clean-admin');`,
		dir + "wp-clean-admin-zh_CN.po": catalog("zh_CN", fullHeaders,
			"msgid \"Hello\"\nmsgstr \"你好\"\n\nmsgid \"Removed\"\nmsgstr \"已删除\"\n"),
		dir + "wp-clean-admin.pot": catalog("", fullHeaders,
			"msgid \"Hello\"\nmsgstr \"\"\n\nmsgid \"%d item\"\nmsgid_plural \"%d items\"\nmsgstr \"\"\n\nmsgctxt \"nav\"\nmsgid \"Menu\"\nmsgstr \"\"\n"),
		dir + "wp-clean-admin-zh_CN.mo": "binary",
	}, dir+"wp-clean-admin-zh_CN.po")

	v := newValidator(fs, true)
	v.PluginDomain = "wpca"
	r, err := v.Validate(context.Background())
	require.NoError(t, err)

	require.Equal(t, 3, r.Usage.TotalCalls())
	require.Equal(t, 1, r.Usage.Calls[extract.ShapeContext])

	usage := r.ByCheck(CheckUsage)
	require.Len(t, usage, 1)
	require.Contains(t, usage[0].Msg, `"wpca"`)

	coverage := r.ByCheck(CheckCoverage)
	require.Equal(t, []string{"wp-clean-admin-zh_CN.po", "wp-clean-admin-zh_CN.po"}, files(coverage))
	require.Contains(t, coverage[0].Msg, "2 used messages missing")
	require.Contains(t, coverage[0].Msg, `"Menu" (nav)`)
	require.Contains(t, coverage[1].Msg, `1 messages no longer used, e.g. "Removed"`)

	require.Empty(t, r.Errors())
}

func TestUsageWarnsWithoutCalls(t *testing.T) {
	fs := newFs(t, map[string]string{
		"/p/wpcleanadmin/wp-clean-admin.php": "<?php __('Hello', 'other-domain');",
	})
	r, err := newValidator(fs, true).Validate(context.Background())
	require.NoError(t, err)

	usage := r.ByCheck(CheckUsage)
	require.Len(t, usage, 1)
	require.Equal(t, Warning, usage[0].Severity)
	require.Empty(t, r.Errors(), "zero usage is not an error")
	require.Len(t, r.Warnings(), 1)
	require.False(t, r.Clean())
}

func TestMissingCatalogDirIsFatal(t *testing.T) {
	v := newValidator(afero.NewMemMapFs(), false)
	_, err := v.Validate(context.Background())
	require.True(t, errors.Is(err, ErrNoCatalogDir))
}

func TestValidateDoesNotWrite(t *testing.T) {
	dir := "/p/wpcleanadmin/languages/"
	base := newFs(t, map[string]string{
		dir + "wp-clean-admin-en_US.po":      catalog("en_US", fullHeaders, ""),
		"/p/wpcleanadmin/wp-clean-admin.php": "<?php __('Hello', 'wp-clean-admin');",
	})
	v := newValidator(afero.NewReadOnlyFs(base), true)
	v.Scanner.Fs = v.Fs
	r, err := v.Validate(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"wp-clean-admin-en_US.po"}, files(r.ByCheck(CheckPairing)))
}

func TestCoverageFlagsFilledTemplate(t *testing.T) {
	dir := "/p/wpcleanadmin/languages/"
	fs := newFs(t, map[string]string{
		"/p/wpcleanadmin/wp-clean-admin.php": "<?php __('Hello', 'wp-clean-admin'); __('Bye', 'wp-clean-admin');",
		dir + "wp-clean-admin.pot": catalog("", fullHeaders,
			"msgid \"Hello\"\nmsgstr \"Hallo\"\n\n#, fuzzy\nmsgid \"Bye\"\nmsgstr \"\"\n"),
	})

	r, err := newValidator(fs, true).Validate(context.Background())
	require.NoError(t, err)

	coverage := r.ByCheck(CheckCoverage)
	require.Len(t, coverage, 1)
	require.Equal(t, "wp-clean-admin.pot", coverage[0].File)
	require.Contains(t, coverage[0].Msg, `2 template messages carry translations or flags, e.g. "Bye", "Hello"`)
}
