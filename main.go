// potkit is a translation catalog toolkit for WordPress plugins: template
// extraction, .mo compilation and catalog checks.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/minios-linux/potkit/atomic"
	"github.com/minios-linux/potkit/compile"
	"github.com/minios-linux/potkit/config"
	"github.com/minios-linux/potkit/extract"
	"github.com/minios-linux/potkit/langmeta"
	"github.com/minios-linux/potkit/pofile"
	"github.com/minios-linux/potkit/validate"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Exit codes
const (
	exitOK      = 0
	exitIssues  = 1
	exitAborted = 2
)

// errIssues marks a run that finished but found problems.
var errIssues = errors.New("completed with errors or warnings")

var (
	infoTag    = color.New(color.FgBlue).Sprint("[INFO]")
	successTag = color.New(color.FgGreen).Sprint("[OK]")
	warningTag = color.New(color.FgYellow, color.Bold).Sprint("[WARN]")
	errorTag   = color.New(color.FgRed).Sprint("[ERROR]")
	heading    = color.New(color.Bold)
)

// logOut receives the log helpers' output.
var logOut io.Writer = os.Stderr

func logInfo(format string, args ...any) {
	fmt.Fprintf(logOut, infoTag+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(logOut, successTag+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(logOut, warningTag+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(logOut, errorTag+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir    string
	configPath string
	verbose    bool
)

// appFs is the filesystem every command works on.
var appFs afero.Fs = afero.NewOsFs()

// now is the clock used for POT-Creation-Date.
var now = time.Now

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "potkit",
		Short: "Translation catalog toolkit for WordPress plugins",
		Long: `potkit: translation catalog toolkit for WordPress plugins.

Scans PHP and JavaScript sources for __(), _e(), _x(), _n() and _nx()
calls carrying the plugin's text domain, writes the .pot template,
compiles .po catalogs to .mo and checks the catalog directory.

Commands:
  pot       Extract strings and write the template
  compile   Compile every .po catalog to .mo
  check     Validate catalog naming, headers, pairing and usage
  version   Show version information

Settings are read from .potkit.yaml in the project root when present.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flags, inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")
	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default <root>/"+config.FileName+")")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Trace every scanned and compiled file")
	config.BindFlags(root.PersistentFlags())

	root.AddCommand(
		newPotCmd(),
		newCompileCmd(),
		newCheckCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run executes the command line and maps the outcome to an exit code.
func run(args []string, stdout io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)

	err := cmd.Execute()
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errIssues):
		return exitIssues
	default:
		logError("%v", err)
		return exitAborted
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configPath
	if path == "" {
		path = filepath.Join(rootDir, config.FileName)
	}
	cfg, err := config.Load(appFs, path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func newLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(logOut)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	l.SetLevel(logrus.WarnLevel)
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "potkit version %s\n", version)
			fmt.Fprintf(out, "  commit:    %s\n", commit)
			fmt.Fprintf(out, "  built:     %s\n", date)
		},
	}

	return cmd
}

// ---------------------------------------------------------------------------
// pot (scan sources, write the template)
// ---------------------------------------------------------------------------

func newPotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pot",
		Short: "Extract strings and write the template",
		Long: `Scan the plugin sources for translation calls with the configured text
domain and rewrite the .pot template in the catalog directory.

Files that cannot be read or are not valid UTF-8 are reported and skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPot(cmd)
		},
	}

	return cmd
}

func runPot(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	pluginDir := cfg.PluginPath(rootDir)
	scanner, err := cfg.Scanner(appFs, rootDir, newLogger())
	if err != nil {
		return err
	}

	logInfo("Scanning %s for translatable strings...", pluginDir)
	res, err := scanner.Scan(cmd.Context(), pluginDir)
	if err != nil {
		return err
	}
	for _, diag := range res.Diagnostics.WrappedErrors() {
		logWarning("Skipped %v", diag)
	}
	logInfo("Found %d calls in %d files (%s)", res.TotalCalls(), len(res.Files), describeCalls(res.Calls))

	project, _ := cfg.ResolveProject(appFs, rootDir)
	meta := pofile.Metadata{
		ProjectName:    project.Name,
		ProjectVersion: project.Version,
		BugsAddress:    project.Bugs,
		CreationDate:   now(),
		Generator:      "potkit " + version,
		Keywords:       extract.Keywords(),
	}

	var buf bytes.Buffer
	if err := pofile.WriteTemplate(&buf, res.Entries, meta); err != nil {
		return err
	}
	langDir := cfg.LanguagesPath(rootDir)
	if err := appFs.MkdirAll(langDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", langDir, err)
	}
	potPath := cfg.TemplatePath(rootDir)
	if err := atomic.WriteFile(appFs, potPath, buf.Bytes(), 0o644); err != nil {
		return err
	}
	logSuccess("Wrote %d strings to %s (%s)", len(res.Entries), potPath, humanize.Bytes(uint64(buf.Len())))

	if res.Err() != nil {
		logWarning("%d files could not be scanned", len(res.Diagnostics.WrappedErrors()))
		return errIssues
	}
	return nil
}

// describeCalls renders per-shape counts like "__: 3, _n: 1".
func describeCalls(calls map[extract.Shape]int) string {
	var parts []string
	for _, s := range extract.Shapes {
		if n := calls[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", s, n))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// ---------------------------------------------------------------------------
// compile (.po -> .mo)
// ---------------------------------------------------------------------------

func newCompileCmd() *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "compile [file.po...]",
		Short: "Compile .po catalogs to .mo",
		Long: `Compile every .po catalog in the catalog directory, or only the given
files, into the binary .mo format loaded by WordPress. Each .mo is
written next to its .po. A malformed catalog is reported and skipped;
the rest are still compiled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, args, verify)
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", true, "Reload each .mo with the runtime lookup and compare")

	return cmd
}

func runCompile(cmd *cobra.Command, args []string, verify bool) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	c := &compile.Compiler{Fs: appFs, Verify: verify, Log: newLogger()}

	batch := &compile.Batch{}
	if len(args) > 0 {
		for _, path := range args {
			res, err := c.File(path)
			if err != nil {
				batch.Failures = multierror.Append(batch.Failures, err)
				continue
			}
			batch.Results = append(batch.Results, res)
		}
	} else {
		dir := cfg.LanguagesPath(rootDir)
		logInfo("Scanning %s for PO files...", dir)
		batch, err = c.Dir(dir)
		if err != nil {
			return err
		}
	}

	for _, res := range batch.Results {
		logSuccess("Compiled %s -> %s (%s)", filepath.Base(res.Source), filepath.Base(res.Target), humanize.Bytes(uint64(res.Size)))
		fmt.Fprintf(cmd.OutOrStdout(), "  - Messages: %d\n  - Fuzzy: %d\n  - Untranslated: %d\n",
			res.Stats.Total, res.Stats.Fuzzy, res.Stats.Untranslated)
	}
	for _, ferr := range batch.Failures.WrappedErrors() {
		logError("%v", ferr)
	}

	if len(batch.Results) == 0 && batch.Err() == nil {
		logWarning("No PO files found.")
		return errIssues
	}
	if batch.Err() != nil {
		return errIssues
	}
	return nil
}

// ---------------------------------------------------------------------------
// check (read-only validation)
// ---------------------------------------------------------------------------

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate catalog naming, headers, pairing and usage",
		Long: `Check the catalog directory without modifying anything:

  pairing    every .po has an up to date .mo
  naming     catalogs are named <domain>-<ll_RR>.po with a known locale
  header     Project-Id-Version, Language and Content-Type (UTF-8) are set
  usage      the sources contain calls with the configured text domain
  coverage   catalogs and template match the messages in use`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd)
		},
	}

	return cmd
}

func runCheck(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	scanner, err := cfg.Scanner(appFs, rootDir, newLogger())
	if err != nil {
		return err
	}

	v := &validate.Validator{
		Fs:         appFs,
		Dir:        cfg.LanguagesPath(rootDir),
		Domain:     cfg.Domain,
		Registry:   langmeta.NewRegistry(cfg.Locales),
		Scanner:    scanner,
		SourceRoot: cfg.PluginPath(rootDir),
	}
	if _, h := cfg.ResolveProject(appFs, rootDir); h != nil {
		v.PluginDomain = h.TextDomain
	}

	logInfo("Checking %s...", v.Dir)
	report, err := v.Validate(cmd.Context())
	if err != nil {
		return err
	}

	printReport(cmd.OutOrStdout(), report)

	if !report.Clean() {
		return errIssues
	}
	return nil
}

func printReport(out io.Writer, r *validate.Report) {
	fmt.Fprintln(out, heading.Sprint("Files found:"))
	for _, group := range []struct {
		label string
		names []string
	}{
		{"PO files", r.POFiles},
		{"MO files", r.MOFiles},
		{"POT files", r.POTFiles},
	} {
		fmt.Fprintf(out, "- %s: %d\n", group.label, len(group.names))
		for _, name := range group.names {
			fmt.Fprintf(out, "    %s\n", name)
		}
	}

	for _, check := range validate.Checks {
		fmt.Fprintln(out)
		fmt.Fprintln(out, heading.Sprintf("=== %s ===", strings.ToUpper(string(check))))
		issues := r.ByCheck(check)
		if check == validate.CheckNaming {
			names := make([]string, 0, len(r.Locales))
			for name := range r.Locales {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "  %s %s - locale: %s\n", color.GreenString("✓"), name, r.Locales[name].Name)
			}
		}
		if check == validate.CheckUsage && r.Usage != nil {
			fmt.Fprintf(out, "  %d translation calls in %d files (%s)\n", r.Usage.TotalCalls(), len(r.Usage.Files), describeCalls(r.Usage.Calls))
		}
		if len(issues) == 0 {
			fmt.Fprintf(out, "  %s no issues\n", color.GreenString("✓"))
			continue
		}
		for _, is := range issues {
			mark := color.YellowString("⚠")
			if is.Severity == validate.Error {
				mark = color.RedString("✗")
			}
			if is.File != "" {
				fmt.Fprintf(out, "  %s %s - %s\n", mark, is.File, is.Msg)
			} else {
				fmt.Fprintf(out, "  %s %s\n", mark, is.Msg)
			}
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, heading.Sprint("=== SUMMARY ==="))
	fmt.Fprintf(out, "  %d PO, %d MO, %d POT files\n", len(r.POFiles), len(r.MOFiles), len(r.POTFiles))
	fmt.Fprintf(out, "  %d errors, %d warnings\n", len(r.Errors()), len(r.Warnings()))
}
