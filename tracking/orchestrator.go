// Package tracking keeps generated wrappers synchronized with the Fortran
// sources they wrap.
//
// Each shim carries a generation record (see Record) listing the wrapped
// sources with their fingerprints, the exclusion set and the head revision
// of the commit that produced the artifacts. The Orchestrator moves an
// artifact through its lifecycle: Create wraps new sources, Status compares
// fingerprints, Update regenerates stale artifacts on a disposable branch,
// Merge reconciles a hand-edited pyf signature file and FinalizeHead
// records the head revision.
package tracking

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/migueldvb/fwrap/codegen"
	"github.com/migueldvb/fwrap/model"
)

// DefaultBranchPrefix names the disposable update branches.
const DefaultBranchPrefix = "fwrap-update-"

// Parser turns source files into procedures.
type Parser interface {
	Parse(paths []string) ([]*model.Procedure, error)
}

// VCS is the version control capability the orchestrator needs. Paths are
// relative to the repository root, which is the project root.
type VCS interface {
	IsClean() (bool, error)
	IsTracked(path string) (bool, error)
	Add(paths ...string) error
	Commit(message string) error
	CurrentRevision() (string, error)
	// CreateBranch creates a branch at revision from, named prefix plus a
	// unique suffix, and returns its name.
	CreateBranch(from, prefix string) (string, error)
	Checkout(branch string) error
	CurrentBranch() (string, error)
	DeleteBranch(branch string) error
}

// Options configure an Orchestrator.
type Options struct {
	// Root is the project root. Source and artifact paths in records are
	// relative to it.
	Root string
	// OutputDir is where artifacts are written, relative to Root.
	OutputDir string
	// Versioned enables commits, branches and head tracking.
	Versioned bool
	// BranchPrefix names update branches; DefaultBranchPrefix if empty.
	BranchPrefix string
	// TempDir holds regeneration workspaces; os.TempDir() if empty.
	TempDir string
}

// Orchestrator runs the create, status, update and merge workflows for
// artifacts under one project root. It is not safe for concurrent use on
// the same artifact.
type Orchestrator struct {
	opts   Options
	parser Parser
	vcs    VCS
	log    *zap.SugaredLogger
}

// New returns an Orchestrator. vcs may be nil when opts.Versioned is false.
func New(opts Options, parser Parser, vcs VCS, logger *zap.SugaredLogger) *Orchestrator {
	if opts.BranchPrefix == "" {
		opts.BranchPrefix = DefaultBranchPrefix
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Orchestrator{opts: opts, parser: parser, vcs: vcs, log: logger}
}

// Skipped is a routine that was not wrapped.
type Skipped struct {
	Name   string `json:"name" yaml:"name"`
	Reason string `json:"reason" yaml:"reason"`
}

// CreateOptions tune a Create.
type CreateOptions struct {
	// Message is the subject of the artifacts commit; a default naming the
	// wrapped sources is used when empty. The body always lists them.
	Message string
}

// CreateResult describes a successful Create.
type CreateResult struct {
	Artifact string    `json:"artifact" yaml:"artifact"`
	Files    []string  `json:"files" yaml:"files"`
	Head     string    `json:"head" yaml:"head"`
	Skipped  []Skipped `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// FileStatus compares one wrapped source with its record entry.
type FileStatus struct {
	Path     string `json:"path" yaml:"path"`
	Recorded string `json:"recorded" yaml:"recorded"`
	Current  string `json:"current,omitempty" yaml:"current,omitempty"`
	Missing  bool   `json:"missing,omitempty" yaml:"missing,omitempty"`
}

// UpToDate reports whether the source still has the recorded content.
func (f FileStatus) UpToDate() bool { return !f.Missing && f.Current == f.Recorded }

// Status is the result of a status query. While an update branch is
// checked out the working tree holds the sources of the old head, so
// Pending names that branch and NeedsUpdate stays false until it is merged.
type Status struct {
	Artifact    string       `json:"artifact" yaml:"artifact"`
	Head        string       `json:"head" yaml:"head"`
	Files       []FileStatus `json:"files" yaml:"files"`
	Excluded    []string     `json:"excluded,omitempty" yaml:"excluded,omitempty"`
	NeedsUpdate bool         `json:"needs_update" yaml:"needs_update"`
	Pending     string       `json:"pending,omitempty" yaml:"pending,omitempty"`
}

// UpdateOptions tune an Update.
type UpdateOptions struct {
	// Message is the commit message; a default is used when empty.
	Message string
	// Exclude adds routines to the exclusion set.
	Exclude []string
	// Force regenerates even when every source is up to date.
	Force bool
	// SkipFinalize leaves the head placeholder in place; the caller
	// finishes with FinalizeHead.
	SkipFinalize bool
}

// UpdateResult describes an Update. Updated is false when the artifact was
// already up to date.
type UpdateResult struct {
	Updated bool      `json:"updated" yaml:"updated"`
	Branch  string    `json:"branch,omitempty" yaml:"branch,omitempty"`
	Head    string    `json:"head,omitempty" yaml:"head,omitempty"`
	Skipped []Skipped `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// MergeResult describes a Merge.
type MergeResult struct {
	Excluded []string      `json:"excluded" yaml:"excluded"`
	Update   *UpdateResult `json:"update,omitempty" yaml:"update,omitempty"`
}

func (o *Orchestrator) abs(rel string) string {
	return filepath.Join(o.opts.Root, filepath.FromSlash(rel))
}

// rel converts a user supplied path to the slash separated form stored in
// records.
func (o *Orchestrator) rel(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(o.opts.Root, path)
	}
	r, err := filepath.Rel(o.opts.Root, path)
	if err != nil || strings.HasPrefix(r, "..") {
		return "", errors.Newf("%s is outside the project root %s", path, o.opts.Root)
	}
	return filepath.ToSlash(r), nil
}

// artifactPaths returns the root relative paths of name's artifacts, shim
// first.
func (o *Orchestrator) artifactPaths(name string) []string {
	var paths []string
	for _, f := range []string{codegen.ShimFile(name), codegen.HeaderFile(name), codegen.PxdFile(name)} {
		paths = append(paths, filepath.ToSlash(filepath.Join(o.opts.OutputDir, f)))
	}
	return paths
}

// sourcePaths returns the absolute paths of rec's wrapped sources.
func (o *Orchestrator) sourcePaths(rec *Record) []string {
	paths := rec.Paths()
	for i, p := range paths {
		paths[i] = o.abs(p)
	}
	return paths
}

func (o *Orchestrator) shimPath(name string) string {
	return o.abs(o.artifactPaths(name)[0])
}

// generate parses the record's sources and renders the artifacts with rec
// embedded. Excluded routines are dropped and unsupported ones skipped.
func (o *Orchestrator) generate(name string, rec *Record) (*codegen.Artifacts, []Skipped, error) {
	procs, err := o.parser.Parse(o.sourcePaths(rec))
	if err != nil {
		return nil, nil, errors.Wrap(err, "parsing sources")
	}

	wrappers, blocked, err := model.WrapAll(procs, rec.Excluded)
	if err != nil {
		return nil, nil, err
	}
	var skipped []Skipped
	for _, b := range blocked {
		o.log.Warnw("Skipping routine", "routine", b.Proc, "reason", b.Error())
		skipped = append(skipped, Skipped{Name: b.Proc, Reason: b.Error()})
	}

	art, err := codegen.Generate(name, model.NewCollection(wrappers), codegen.Options{Record: rec.Render()})
	if err != nil {
		return nil, nil, err
	}
	return art, skipped, nil
}

// stage writes art into a fresh temporary workspace. The returned cleanup
// removes it and must always be called.
func (o *Orchestrator) stage(art *codegen.Artifacts) (string, func(), error) {
	dir, err := os.MkdirTemp(o.opts.TempDir, "fwrap-")
	if err != nil {
		return "", func() {}, errors.Wrap(err, "creating workspace")
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			o.log.Warnw("Removing workspace failed", "dir", dir, "error", err)
		}
	}
	if _, err := art.WriteTo(dir); err != nil {
		return "", cleanup, errors.Wrap(err, "staging artifacts")
	}
	return dir, cleanup, nil
}

// install copies staged artifacts into the output directory.
func (o *Orchestrator) install(staged, name string) error {
	if err := os.MkdirAll(o.abs(o.opts.OutputDir), 0o755); err != nil {
		return errors.Wrap(err, "creating output directory")
	}
	for _, rel := range o.artifactPaths(name) {
		data, err := os.ReadFile(filepath.Join(staged, filepath.Base(rel)))
		if err != nil {
			return errors.Wrap(err, "reading staged artifact")
		}
		if err := writeFileAtomic(o.abs(rel), data); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) requireClean() error {
	clean, err := o.vcs.IsClean()
	if err != nil {
		return errors.Wrap(err, "checking working state")
	}
	if !clean {
		return dirtyError()
	}
	return nil
}

// pendingBranch returns the update branch checked out in the working tree,
// or "" when the current branch is not one (or HEAD is detached).
func (o *Orchestrator) pendingBranch() string {
	if !o.opts.Versioned {
		return ""
	}
	branch, err := o.vcs.CurrentBranch()
	if err != nil || !strings.HasPrefix(branch, o.opts.BranchPrefix) {
		return ""
	}
	return branch
}

func pendingError(branch string) error {
	return errors.WithHint(errors.Wrapf(ErrPendingUpdate, "%s", branch),
		fmt.Sprintf("merge %s into your branch and check that branch out before updating again", branch))
}

func (o *Orchestrator) sourceRevision() (string, error) {
	if !o.opts.Versioned {
		return HeadNone, nil
	}
	rev, err := o.vcs.CurrentRevision()
	return rev, errors.Wrap(err, "reading current revision")
}

// Create wraps files into the artifact name. Files already recorded in the
// artifact are rejected with ErrAlreadyWrapped. An existing artifact is
// extended, provided its own sources are unchanged. In versioned mode the
// working state must be clean; the artifacts are committed and the commit
// is recorded as head in a second commit.
func (o *Orchestrator) Create(ctx context.Context, name string, files []string, opts CreateOptions) (*CreateResult, error) {
	if len(files) == 0 {
		return nil, errors.New("no source files to wrap")
	}
	shim := o.shimPath(name)

	rec := NewRecord()
	if _, err := os.Stat(shim); err == nil {
		if rec, err = ReadRecord(shim); err != nil {
			return nil, err
		}
	}
	rels := make([]string, 0, len(files))
	for _, f := range files {
		r, err := o.rel(f)
		if err != nil {
			return nil, err
		}
		if rec.Lookup(r) != nil {
			return nil, errors.WithHint(errors.Wrapf(ErrAlreadyWrapped, "%s", r),
				"use fwrap update to regenerate an existing wrapper")
		}
		if _, err := os.Stat(o.abs(r)); err != nil {
			return nil, errors.Wrapf(err, "source %s", r)
		}
		rels = append(rels, r)
	}
	if len(rec.Wraps) > 0 {
		st := o.compare(name, rec)
		if st.NeedsUpdate {
			return nil, errors.WithHint(errors.Wrapf(ErrStale, "%s", name),
				"run fwrap update before wrapping more sources into this artifact")
		}
	}
	if o.opts.Versioned {
		if err := o.requireClean(); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rev, err := o.sourceRevision()
	if err != nil {
		return nil, err
	}
	rec = rec.Clone()
	if o.opts.Versioned {
		rec.Head = HeadUncommitted
	}
	for _, r := range rels {
		fp, err := FingerprintFile(o.abs(r))
		if err != nil {
			return nil, errors.Wrapf(err, "fingerprinting %s", r)
		}
		rec.Set(r, fp, rev)
	}

	art, skipped, err := o.generate(name, rec)
	if err != nil {
		return nil, err
	}
	staged, cleanup, err := o.stage(art)
	defer cleanup()
	if err != nil {
		return nil, err
	}
	if err := o.install(staged, name); err != nil {
		return nil, err
	}
	o.log.Infow("Generated wrappers", "artifact", name, "sources", rels, "skipped", len(skipped))

	res := &CreateResult{Artifact: name, Files: o.artifactPaths(name), Head: rec.Head, Skipped: skipped}
	if !o.opts.Versioned {
		return res, nil
	}
	if err := o.vcs.Add(res.Files...); err != nil {
		return nil, errors.Wrap(err, "staging artifacts")
	}
	msg := opts.Message
	if msg == "" {
		msg = fmt.Sprintf("fwrap: wrap %s", strings.Join(rels, ", "))
	}
	msg += "\n\nFiles wrapped:\n" + strings.Join(rels, "\n")
	if err := o.vcs.Commit(msg); err != nil {
		return nil, errors.Wrap(err, "committing artifacts")
	}
	if res.Head, err = o.finalize(name, HeadUncommitted); err != nil {
		return nil, err
	}
	return res, nil
}

// compare fingerprints every recorded source without touching anything.
func (o *Orchestrator) compare(name string, rec *Record) *Status {
	st := &Status{Artifact: name, Head: rec.Head}
	for _, e := range rec.Wraps {
		fs := FileStatus{Path: e.Path, Recorded: e.Fingerprint}
		fp, err := FingerprintFile(o.abs(e.Path))
		if err != nil {
			fs.Missing = true
		} else {
			fs.Current = fp
		}
		st.NeedsUpdate = st.NeedsUpdate || !fs.UpToDate()
		st.Files = append(st.Files, fs)
	}
	for _, x := range rec.Exclude {
		st.Excluded = append(st.Excluded, x.Name)
	}
	return st
}

// Status reports, per wrapped source, whether it still matches the record.
// It never mutates anything.
func (o *Orchestrator) Status(ctx context.Context, name string) (*Status, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := ReadRecord(o.shimPath(name))
	if err != nil {
		return nil, err
	}
	st := o.compare(name, rec)
	if st.Pending = o.pendingBranch(); st.Pending != "" {
		st.NeedsUpdate = false
	}
	return st, nil
}

// Update regenerates a stale artifact. The new artifacts are committed on
// a disposable branch created at the recorded head, which is left checked
// out for the caller to merge. On failure the previous branch is restored
// and the disposable branch deleted. An up to date artifact is reported
// with Updated false unless opts.Force or opts.Exclude ask for a rebuild.
func (o *Orchestrator) Update(ctx context.Context, name string, opts UpdateOptions) (*UpdateResult, error) {
	shim := o.shimPath(name)
	rec, err := ReadRecord(shim)
	if err != nil {
		return nil, err
	}
	if branch := o.pendingBranch(); branch != "" {
		return nil, pendingError(branch)
	}
	st := o.compare(name, rec)
	if !st.NeedsUpdate && !opts.Force && len(opts.Exclude) == 0 {
		o.log.Infow("Artifact is up to date", "artifact", name)
		return &UpdateResult{Head: rec.Head}, nil
	}

	shimRel := o.artifactPaths(name)[0]
	if !o.opts.Versioned {
		return nil, notTrackedError(shimRel, "updates need version control; enable it in the [vcs] section of fwrap.toml")
	}
	tracked, err := o.vcs.IsTracked(shimRel)
	if err != nil {
		return nil, errors.Wrap(err, "checking tracked files")
	}
	if !tracked {
		return nil, notTrackedError(shimRel, "commit the artifact before updating it")
	}
	if err := o.requireClean(); err != nil {
		return nil, err
	}
	if rec.Head == HeadNone || rec.Head == HeadUncommitted {
		return nil, errors.WithHint(errors.Newf("%s: record has no head revision (%s)", shimRel, rec.Head),
			"run fwrap finalize to record the head of the last generation")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rev, err := o.sourceRevision()
	if err != nil {
		return nil, err
	}
	next := rec.Clone()
	next.Head = HeadUncommitted
	for _, fs := range st.Files {
		if fs.Missing {
			return nil, errors.WithHint(errors.Newf("%s: wrapped source is missing", fs.Path),
				"restore the file or recreate the wrapper without it")
		}
		next.Set(fs.Path, fs.Current, rev)
	}
	for _, x := range opts.Exclude {
		next.AddExclusion(x, nil)
	}

	// Regenerate from the current sources before switching branches.
	art, skipped, err := o.generate(name, next)
	if err != nil {
		return nil, err
	}
	staged, cleanup, err := o.stage(art)
	defer cleanup()
	if err != nil {
		return nil, err
	}

	prev, err := o.vcs.CurrentBranch()
	if err != nil {
		return nil, errors.Wrap(err, "reading current branch")
	}
	branch, err := o.vcs.CreateBranch(rec.Head, o.opts.BranchPrefix)
	if err != nil {
		return nil, errors.Wrapf(err, "creating update branch at %s", rec.Head)
	}
	if err := o.vcs.Checkout(branch); err != nil {
		o.abandon(prev, branch, false)
		return nil, errors.Wrapf(err, "checking out %s", branch)
	}

	msg := opts.Message
	if msg == "" {
		msg = fmt.Sprintf("fwrap: update %s", name)
	}
	res := &UpdateResult{Updated: true, Branch: branch, Head: HeadUncommitted, Skipped: skipped}
	err = func() error {
		if err := o.install(staged, name); err != nil {
			return err
		}
		if err := o.vcs.Add(o.artifactPaths(name)...); err != nil {
			return errors.Wrap(err, "staging artifacts")
		}
		if err := o.vcs.Commit(msg); err != nil {
			return errors.Wrap(err, "committing artifacts")
		}
		if opts.SkipFinalize {
			return nil
		}
		head, err := o.finalize(name, HeadUncommitted)
		res.Head = head
		return err
	}()
	if err != nil {
		o.abandon(prev, branch, true)
		return nil, err
	}
	o.log.Infow("Updated wrappers", "artifact", name, "branch", branch, "head", res.Head)
	return res, nil
}

// abandon returns to prev and deletes the disposable branch. Failures are
// logged; the original error is what the caller reports.
func (o *Orchestrator) abandon(prev, branch string, checkedOut bool) {
	if checkedOut {
		if err := o.vcs.Checkout(prev); err != nil {
			o.log.Errorw("Restoring branch failed", "branch", prev, "error", err)
			return
		}
	}
	if err := o.vcs.DeleteBranch(branch); err != nil {
		o.log.Errorw("Deleting update branch failed", "branch", branch, "error", err)
	}
}

// Merge reconciles the artifact with a hand-edited pyf signature file.
// Routines found in the wrapped sources but absent from the pyf are added
// to the exclusion set and the artifact is regenerated through Update
// without finalizing; the caller completes the transaction with
// FinalizeHead.
func (o *Orchestrator) Merge(ctx context.Context, name, pyf string) (*MergeResult, error) {
	rec, err := ReadRecord(o.shimPath(name))
	if err != nil {
		return nil, err
	}
	pyfRel, err := o.rel(pyf)
	if err != nil {
		return nil, err
	}

	described, err := o.parser.Parse([]string{o.abs(pyfRel)})
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", pyfRel)
	}
	keep := make(map[string]bool, len(described))
	for _, p := range described {
		keep[strings.ToLower(p.Name)] = true
	}

	procs, err := o.parser.Parse(o.sourcePaths(rec))
	if err != nil {
		return nil, errors.Wrap(err, "parsing sources")
	}

	res := &MergeResult{}
	seen := make(map[string]bool)
	for _, p := range procs {
		n := strings.ToLower(p.Name)
		if keep[n] || seen[n] || rec.Excluded(n) {
			continue
		}
		seen[n] = true
		res.Excluded = append(res.Excluded, n)
	}
	if len(res.Excluded) == 0 {
		o.log.Infow("Signature file names every routine", "artifact", name, "pyf", pyfRel)
		return res, nil
	}

	o.log.Infow("Excluding routines absent from signature file", "pyf", pyfRel, "routines", res.Excluded)
	res.Update, err = o.Update(ctx, name, UpdateOptions{
		Message:      fmt.Sprintf("Removed routines absent from %s: %s", pyfRel, strings.Join(res.Excluded, ", ")),
		Exclude:      res.Excluded,
		Force:        true,
		SkipFinalize: true,
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// FinalizeHead records the current revision as the artifact's head and
// commits the change. It is a no-op returning the recorded head when the
// artifact is already finalized, so an interrupted merge or update can be
// resumed by running it again. An artifact generated without version
// control (head none) is adopted once it has been committed.
func (o *Orchestrator) FinalizeHead(ctx context.Context, name string) (string, error) {
	if !o.opts.Versioned {
		return "", notTrackedError(o.artifactPaths(name)[0], "finalizing needs version control")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rec, err := ReadRecord(o.shimPath(name))
	if err != nil {
		return "", err
	}
	switch rec.Head {
	case HeadUncommitted:
		return o.finalize(name, HeadUncommitted)
	case HeadNone:
		return o.adopt(name)
	}
	o.log.Infow("Head already recorded", "artifact", name, "head", rec.Head)
	return rec.Head, nil
}

// adopt records a head for an artifact generated without version control
// and committed afterwards. The current revision must hold the artifact
// as it is on disk.
func (o *Orchestrator) adopt(name string) (string, error) {
	shimRel := o.artifactPaths(name)[0]
	tracked, err := o.vcs.IsTracked(shimRel)
	if err != nil {
		return "", errors.Wrap(err, "checking tracked files")
	}
	if !tracked {
		return "", notTrackedError(shimRel, "commit the generated artifacts, then run fwrap finalize")
	}
	if err := o.requireClean(); err != nil {
		return "", err
	}
	o.log.Infow("Adopting committed artifact", "artifact", name)
	return o.finalize(name, HeadNone)
}

// finalize substitutes the head placeholder from with the current
// revision, the commit that holds the generated artifacts, and commits
// the result.
func (o *Orchestrator) finalize(name, from string) (string, error) {
	rev, err := o.vcs.CurrentRevision()
	if err != nil {
		return "", errors.Wrap(err, "reading current revision")
	}
	shimRel := o.artifactPaths(name)[0]
	if err := ReplaceToken(o.abs(shimRel), HeadLine(from), HeadLine(rev)); err != nil {
		return "", err
	}
	if err := o.vcs.Add(shimRel); err != nil {
		return "", errors.Wrap(err, "staging head")
	}
	if err := o.vcs.Commit(fmt.Sprintf("fwrap: record head %s", shortRev(rev))); err != nil {
		return "", errors.Wrap(err, "committing head")
	}
	o.log.Debugw("Recorded head", "artifact", name, "head", rev)
	return rev, nil
}

func shortRev(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
