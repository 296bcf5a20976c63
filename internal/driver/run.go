package driver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"strictparent/internal/diag"
	"strictparent/internal/hier"
	"strictparent/internal/observ"
	"strictparent/internal/project"
	"strictparent/internal/source"
	"strictparent/internal/trace"
)

// Options configures a check run.
type Options struct {
	Config project.Config
	// MaxDiagnostics overrides Config.Check.MaxDiagnostics when positive.
	MaxDiagnostics int
	// Jobs overrides Config.Check.Jobs when positive.
	Jobs int
	// BaseDir is used for relative paths and exclusion globs.
	BaseDir string
	Cache   *DiskCache
	Sink    ProgressSink
	Timer   *observ.Timer
}

func (o Options) maxDiagnostics() int {
	if o.MaxDiagnostics > 0 {
		return o.MaxDiagnostics
	}
	return o.Config.Check.MaxDiagnostics
}

func (o Options) jobs(files int) int {
	jobs := o.Jobs
	if jobs <= 0 {
		jobs = o.Config.Check.Jobs
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	return max(1, min(jobs, files))
}

// Result aggregates per-file results of one run.
type Result struct {
	FileSet *source.FileSet
	Files   []FileResult
}

// HasErrors reports whether any file produced an error diagnostic or a
// rejected class. Verdicts are consulted too, since the diagnostic limit
// may have cut the error that explains a rejection.
func (r *Result) HasErrors() bool {
	for i := range r.Files {
		if r.Files[i].Bag != nil && r.Files[i].Bag.HasErrors() {
			return true
		}
	}
	_, rejected := r.Counts()
	return rejected > 0
}

// Diagnostics merges all bags into one sorted bag.
func (r *Result) Diagnostics() *diag.Bag {
	out := diag.NewBag(0)
	for i := range r.Files {
		out.Merge(r.Files[i].Bag)
	}
	out.Sort()
	return out
}

// Counts returns the number of valid and rejected classes.
func (r *Result) Counts() (valid, rejected int) {
	for i := range r.Files {
		v := r.Files[i].Valid()
		valid += v
		rejected += len(r.Files[i].Verdicts) - v
	}
	return valid, rejected
}

// Check checks path, which is either a manifest or a directory of manifests.
func Check(ctx context.Context, path string, opts Options) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %q: %w", path, err)
	}
	if info.IsDir() {
		return CheckDir(ctx, path, opts)
	}
	return CheckFile(ctx, path, opts)
}

// CheckFile checks a single manifest file.
func CheckFile(ctx context.Context, path string, opts Options) (*Result, error) {
	baseDir := opts.BaseDir
	if baseDir == "" {
		baseDir = filepath.Dir(path)
	}
	fileSet := source.NewFileSetWithBase(baseDir)
	return run(ctx, fileSet, []string{path}, opts)
}

// CheckSource checks in-memory manifest content (stdin, tests).
func CheckSource(ctx context.Context, name string, content []byte, opts Options) (*Result, error) {
	hierOpts, err := opts.Config.Options()
	if err != nil {
		return nil, err
	}
	fileSet := source.NewFileSetWithBase(opts.BaseDir)
	id := fileSet.AddVirtual(name, content)
	res := &Result{FileSet: fileSet, Files: make([]FileResult, 1)}
	res.Files[0] = checkOne(ctx, fileSet.Get(id), hierOpts, opts)
	return res, nil
}

// CheckDir checks every manifest below dir in parallel.
func CheckDir(ctx context.Context, dir string, opts Options) (*Result, error) {
	if opts.BaseDir == "" {
		opts.BaseDir = dir
	}
	done := opts.Timer.Track(string(StageDiscover))
	files, err := Discover(dir, opts.Config, opts.BaseDir)
	done(fmt.Sprintf("%d files", len(files)))
	if err != nil {
		return nil, err
	}
	fileSet := source.NewFileSetWithBase(opts.BaseDir)
	return run(ctx, fileSet, files, opts)
}

// Discover lists manifests below dir, sorted, honoring [files] settings.
func Discover(dir string, cfg project.Config, baseDir string) ([]string, error) {
	suffix := cfg.Files.Suffix
	if suffix == "" {
		suffix = project.Default().Files.Suffix
	}
	if baseDir == "" {
		baseDir = dir
	}
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(baseDir, path)
		if relErr != nil {
			rel = path
		}
		if d.IsDir() {
			if path != dir && (strings.HasPrefix(d.Name(), ".") || cfg.Excluded(rel)) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, suffix) && !cfg.Excluded(rel) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Сортируем для детерминированного порядка
	sort.Strings(files)
	return files, nil
}

func run(ctx context.Context, fileSet *source.FileSet, paths []string, opts Options) (*Result, error) {
	hierOpts, err := opts.Config.Options()
	if err != nil {
		return nil, err
	}
	ctx, span := trace.Start(ctx, trace.ScopeDriver, "check")
	defer span.End("")
	span.WithExtra("files", fmt.Sprint(len(paths)))

	res := &Result{FileSet: fileSet, Files: make([]FileResult, len(paths))}
	if len(paths) == 0 {
		return res, nil
	}

	// FileSet не потокобезопасен: загружаем всё заранее
	done := opts.Timer.Track(string(StageLoad))
	ids := make([]source.FileID, len(paths))
	loadErrs := make([]error, len(paths))
	for i, path := range paths {
		emit(opts.Sink, Event{File: path, Stage: StageLoad, Status: StatusQueued})
		ids[i], loadErrs[i] = fileSet.Load(path)
		if loadErrs[i] != nil {
			// пустой виртуальный файл, чтобы диагностика имела путь
			ids[i] = fileSet.AddVirtual(path, nil)
		}
	}
	done(fmt.Sprintf("%d files", len(paths)))

	done = opts.Timer.Track("check")
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.jobs(len(paths)))
	for i := range paths {
		g.Go(func() error {
			// Проверка отмены
			if err := gctx.Err(); err != nil {
				return err
			}
			file := fileSet.Get(ids[i])
			if loadErrs[i] != nil {
				res.Files[i] = loadFailure(file, loadErrs[i], opts)
				return nil
			}
			res.Files[i] = checkOne(gctx, file, hierOpts, opts)
			return nil
		})
	}
	err = g.Wait()
	valid, rejected := res.Counts()
	done(fmt.Sprintf("%d valid, %d rejected", valid, rejected))
	if err != nil {
		return res, err
	}
	return res, nil
}

func loadFailure(file *source.File, err error, opts Options) FileResult {
	bag := diag.NewBag(opts.maxDiagnostics())
	diag.ReportError(diag.BagReporter{Bag: bag}, diag.IOLoadFileError, source.Span{File: file.ID},
		"failed to load file: "+err.Error()).Emit()
	emit(opts.Sink, Event{File: file.Path, Stage: StageLoad, Status: StatusError, Err: err})
	return FileResult{Path: file.Path, FileID: file.ID, Bag: bag}
}

// checkOne checks one loaded file, consulting the disk cache first.
func checkOne(ctx context.Context, file *source.File, hierOpts hier.Options, opts Options) FileResult {
	started := time.Now()
	ctx, span := trace.StartFile(ctx, file.Path)
	defer span.End("")

	bag := diag.NewBag(opts.maxDiagnostics())
	result := FileResult{Path: file.Path, FileID: file.ID, Bag: bag}

	key := cacheKey(file, opts.Config.Fingerprint(), opts.maxDiagnostics())
	cacheOK := opts.Cache != nil
	if cacheOK {
		var payload DiskPayload
		hit, err := opts.Cache.Get(key, &payload)
		switch {
		case err != nil:
			cacheOK = false
			diag.ReportWarning(diag.BagReporter{Bag: bag}, diag.IOCacheError, source.Span{File: file.ID},
				"ignoring unreadable cache entry: "+err.Error()).Emit()
		case hit && payload.ContentHash == project.Digest(file.Hash):
			payload.restore(file.ID, bag)
			result.Verdicts = payload.Verdicts
			result.Cached = true
			trace.Point(ctx, trace.ScopeFile, "cache hit", file.Path)
			finish(&result, opts, StageCache, started)
			return result
		}
	}

	emit(opts.Sink, Event{File: file.Path, Stage: StageParse, Status: StatusWorking})
	result.Verdicts = checkFile(ctx, file, hierOpts, bag, func(classes int) {
		emit(opts.Sink, Event{File: file.Path, Stage: StageDerive, Status: StatusWorking, Classes: classes})
	})
	if opts.Config.Check.WarningsAsErrors {
		bag.PromoteWarnings()
	}
	bag.Dedup()
	bag.Sort()

	if cacheOK && ctx.Err() == nil {
		if err := opts.Cache.Put(key, toDiskPayload(file, bag, result.Verdicts)); err != nil {
			trace.Point(ctx, trace.ScopeFile, "cache write failed", err.Error())
		}
	}
	finish(&result, opts, StageDerive, started)
	return result
}

func finish(result *FileResult, opts Options, stage Stage, started time.Time) {
	status := StatusDone
	var err error
	if result.Bag.HasErrors() {
		status = StatusError
		err = fmt.Errorf("%d error(s)", result.Bag.Count(diag.SevError))
	}
	emit(opts.Sink, Event{
		File:    result.Path,
		Stage:   stage,
		Status:  status,
		Err:     err,
		Elapsed: time.Since(started),
		Classes: len(result.Verdicts),
	})
}

// ErrNoManifests is returned by callers that require at least one manifest.
var ErrNoManifests = errors.New("no class manifests found")
