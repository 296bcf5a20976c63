package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"strictparent/internal/diag"
	"strictparent/internal/diagfmt"
	"strictparent/internal/driver"
	"strictparent/internal/observ"
	"strictparent/internal/project"
	"strictparent/internal/source"
)

const stdinName = "<stdin>"

type checkOptions struct {
	format           string
	shadow           string
	jobs             int
	diskCache        bool
	fullPath         bool
	withNotes        bool
	suggest          bool
	preview          bool
	ui               string
	noWarnings       bool
	warningsAsErrors bool
	configPath       string
}

func newCheckCmd() *cobra.Command {
	var opts checkOptions
	cmd := &cobra.Command{
		Use:   "check [flags] <file.classes.toml|directory|->",
		Short: "Check class manifests for override discipline",
		Long: `Check derives every class of the given manifest (or of every manifest below
a directory) and reports members that shadow inherited ones without being
declared, declared overrides that shadow nothing, and replaced final members.
Use "-" to read a single manifest from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args[0], opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.format, "format", "pretty", "output format (pretty|short|json)")
	f.StringVar(&opts.shadow, "shadow", "", "undeclared-shadow scope (direct|ancestry); overrides strictparent.toml")
	f.IntVar(&opts.jobs, "jobs", 0, "max parallel workers for directory checks (0=auto)")
	f.BoolVar(&opts.diskCache, "disk-cache", false, "reuse verdicts of unchanged manifests from the user cache directory")
	f.BoolVar(&opts.fullPath, "fullpath", false, "emit absolute file paths in output")
	f.BoolVar(&opts.withNotes, "with-notes", false, "include diagnostic notes in output")
	f.BoolVar(&opts.suggest, "suggest", false, "include fix suggestions in output")
	f.BoolVar(&opts.preview, "preview", false, "show fix suggestions with a before/after preview")
	f.StringVar(&opts.ui, "ui", "auto", "progress UI for directory checks (auto|on|off)")
	f.BoolVar(&opts.noWarnings, "no-warnings", false, "hide warnings")
	f.BoolVar(&opts.warningsAsErrors, "warnings-as-errors", false, "treat warnings as errors")
	f.StringVar(&opts.configPath, "config", "", "path to strictparent.toml (default: search upwards from the target)")
	return cmd
}

func runCheck(cmd *cobra.Command, target string, opts checkOptions) error {
	switch opts.format {
	case "pretty", "short", "json":
	default:
		return fmt.Errorf("unknown format: %s", opts.format)
	}
	if opts.noWarnings && opts.warningsAsErrors {
		return fmt.Errorf("--no-warnings and --warnings-as-errors cannot be used together")
	}
	mode, err := readUIMode(opts.ui)
	if err != nil {
		return err
	}
	rootFlags := cmd.Root().PersistentFlags()
	maxDiagnostics, err := rootFlags.GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	quiet, err := rootFlags.GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	showTimings, err := rootFlags.GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	useColor, err := colorEnabled(cmd)
	if err != nil {
		return err
	}

	var timer *observ.Timer
	if showTimings {
		timer = observ.NewTimer()
	}

	isDir := false
	if target != "-" {
		st, statErr := os.Stat(target)
		if statErr != nil {
			return fmt.Errorf("failed to stat path: %w", statErr)
		}
		isDir = st.IsDir()
	}

	done := timer.Track("config")
	proj, cfgPath, err := loadProject(target, isDir, opts.configPath)
	done("")
	if err != nil {
		if cfgPath == "" || errors.Is(err, fs.ErrNotExist) {
			return err
		}
		// config errors render as ordinary diagnostics
		res := configFailure(cfgPath, err, proj.Root)
		return render(cmd, res, opts, useColor, quiet, timer)
	}
	cfg := &proj.Config
	if opts.shadow != "" {
		cfg.Check.Shadow = opts.shadow
	}
	if opts.warningsAsErrors {
		cfg.Check.WarningsAsErrors = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dopts := driver.Options{
		Config:         *cfg,
		MaxDiagnostics: maxDiagnostics,
		Jobs:           opts.jobs,
		BaseDir:        proj.Root,
		Timer:          timer,
	}
	if opts.diskCache {
		cache, cacheErr := driver.OpenDiskCache(cacheApp)
		if cacheErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: disk cache disabled: %v\n", cacheErr)
		} else {
			dopts.Cache = cache
		}
	}

	ctx := cmd.Context()
	var res *driver.Result
	switch {
	case target == "-":
		content, readErr := io.ReadAll(cmd.InOrStdin())
		if readErr != nil {
			return fmt.Errorf("failed to read stdin: %w", readErr)
		}
		res, err = driver.CheckSource(ctx, stdinName, content, dopts)
	case isDir && opts.format == "pretty" && !quiet && shouldUseTUI(mode, cmd.OutOrStdout()):
		files, discoverErr := driver.Discover(target, *cfg, proj.Root)
		if discoverErr != nil {
			return discoverErr
		}
		if len(files) == 0 {
			return fmt.Errorf("%s: %w", target, driver.ErrNoManifests)
		}
		res, err = runCheckWithUI(ctx, cmd.OutOrStdout(), "checking "+target, target, files, dopts)
	default:
		res, err = driver.Check(ctx, target, dopts)
	}
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}
	if isDir && len(res.Files) == 0 {
		return fmt.Errorf("%s: %w", target, driver.ErrNoManifests)
	}
	return render(cmd, res, opts, useColor, quiet, timer)
}

// loadProject finds strictparent.toml for target, or returns defaults rooted
// at the target directory. The second result is the config path, if any.
func loadProject(target string, isDir bool, explicit string) (*project.Project, string, error) {
	start := target
	if target == "-" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, "", err
		}
		start = wd
	} else if !isDir {
		start = filepath.Dir(target)
	}
	fallback := &project.Project{Root: start, Config: project.Default()}

	if explicit != "" {
		cfg, err := project.LoadConfig(explicit)
		if err != nil {
			fallback.Root = filepath.Dir(explicit)
			return fallback, explicit, err
		}
		return &project.Project{Path: explicit, Root: filepath.Dir(explicit), Config: cfg}, explicit, nil
	}
	proj, ok, err := project.Load(start)
	if err != nil {
		path, _, _ := project.FindConfig(start)
		if path != "" {
			fallback.Root = filepath.Dir(path)
		}
		return fallback, path, err
	}
	if !ok {
		return fallback, "", nil
	}
	return proj, proj.Path, nil
}

func configFailure(path string, err error, baseDir string) *driver.Result {
	fileSet := source.NewFileSetWithBase(baseDir)
	id, loadErr := fileSet.Load(path)
	if loadErr != nil {
		id = fileSet.AddVirtual(path, nil)
	}
	bag := diag.NewBag(0)
	diag.ReportError(diag.BagReporter{Bag: bag}, diag.ProjInvalidConfig, source.Span{File: id}, err.Error()).Emit()
	return &driver.Result{FileSet: fileSet, Files: []driver.FileResult{{Path: path, FileID: id, Bag: bag}}}
}

type fileReport struct {
	Path    string                `json:"path"`
	Cached  bool                  `json:"cached,omitempty"`
	Classes []driver.ClassVerdict `json:"classes"`
}

type checkReport struct {
	diagfmt.DiagnosticsOutput
	Files   []fileReport   `json:"files"`
	Timings *observ.Report `json:"timings,omitempty"`
}

func render(cmd *cobra.Command, res *driver.Result, opts checkOptions, useColor, quiet bool, timer *observ.Timer) error {
	out := cmd.OutOrStdout()
	bag := res.Diagnostics()
	if opts.noWarnings {
		bag.Filter(diag.SevError)
	}
	pathMode := diagfmt.PathModeRelative
	if opts.fullPath {
		pathMode = diagfmt.PathModeAbsolute
	}
	showFixes := opts.suggest || opts.preview

	switch opts.format {
	case "pretty":
		err := diagfmt.Pretty(out, bag, res.FileSet, diagfmt.PrettyOpts{
			Color:       useColor,
			Context:     0,
			PathMode:    pathMode,
			ShowNotes:   opts.withNotes,
			ShowFixes:   showFixes,
			ShowPreview: opts.preview,
		})
		if err != nil {
			return fmt.Errorf("failed to format diagnostics: %w", err)
		}
		if !quiet {
			printSummary(out, res, bag)
		}
	case "short":
		if output := diag.FormatShortDiagnostics(bag.Items(), res.FileSet, opts.withNotes); output != "" {
			fmt.Fprintln(out, output)
		}
	case "json":
		report := checkReport{
			DiagnosticsOutput: diagfmt.BuildDiagnosticsOutput(bag, res.FileSet, diagfmt.JSONOpts{
				IncludePositions: true,
				PathMode:         pathMode,
				IncludeNotes:     opts.withNotes,
				IncludeFixes:     showFixes,
				IncludePreviews:  opts.preview,
			}),
			Files: make([]fileReport, 0, len(res.Files)),
		}
		for _, f := range res.Files {
			path := f.Path
			if file := res.FileSet.Get(f.FileID); file != nil {
				path = file.FormatPath(pathModeName(pathMode), res.FileSet.BaseDir())
			}
			classes := f.Verdicts
			if classes == nil {
				classes = []driver.ClassVerdict{}
			}
			report.Files = append(report.Files, fileReport{Path: path, Cached: f.Cached, Classes: classes})
		}
		if timer != nil {
			r := timer.Report()
			report.Timings = &r
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
	}

	if timer != nil && opts.format != "json" && !quiet {
		printTimings(cmd.ErrOrStderr(), timer)
	}
	if bag.HasErrors() || res.HasErrors() {
		return exitCodeError{code: 1}
	}
	return nil
}

func pathModeName(m diagfmt.PathMode) string {
	if m == diagfmt.PathModeAbsolute {
		return "absolute"
	}
	return "relative"
}

func printSummary(out io.Writer, res *driver.Result, bag *diag.Bag) {
	valid, rejected := res.Counts()
	cached := 0
	for _, f := range res.Files {
		if f.Cached {
			cached++
		}
	}
	line := fmt.Sprintf("checked %d file(s): %d class(es) valid, %d rejected; %d error(s), %d warning(s)",
		len(res.Files), valid, rejected, bag.Count(diag.SevError), bag.Count(diag.SevWarning))
	if cached > 0 {
		line += fmt.Sprintf(" (%d from cache)", cached)
	}
	fmt.Fprintln(out, line)
}
