package tracking

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/migueldvb/fwrap/fparser"
)

const libSource = `module lib
  implicit none
contains
  subroutine a(x)
    real(8), intent(inout) :: x
  end subroutine a
  subroutine b(n)
    integer, intent(in) :: n
  end subroutine b
  function c(y) result(r)
    real(8), intent(in) :: y
    real(8) :: r
  end function c
end module lib
`

const libSignature = `python module lib
  interface
    module lib
      subroutine a(x)
        real(8), intent(inout) :: x
      end subroutine a
      function c(y) result(r)
        real(8), intent(in) :: y
        real(8) :: r
      end function c
    end module lib
  end interface
end python module lib
`

type fakeCommit struct {
	msg   string
	paths []string
}

// fakeVCS is an in-memory VCS. Revisions are "rev<N>" after N commits.
type fakeVCS struct {
	dirty      bool
	tracked    map[string]bool
	staged     []string
	commits    []fakeCommit
	branches   map[string]string
	branch     string
	deleted    []string
	failCommit func(msg string) error
}

func newFakeVCS() *fakeVCS {
	return &fakeVCS{tracked: make(map[string]bool), branches: make(map[string]string), branch: "main"}
}

func (f *fakeVCS) IsClean() (bool, error)              { return !f.dirty, nil }
func (f *fakeVCS) IsTracked(path string) (bool, error) { return f.tracked[path], nil }

func (f *fakeVCS) Add(paths ...string) error {
	f.staged = append(f.staged, paths...)
	return nil
}

func (f *fakeVCS) Commit(msg string) error {
	if f.failCommit != nil {
		if err := f.failCommit(msg); err != nil {
			return err
		}
	}
	for _, p := range f.staged {
		f.tracked[p] = true
	}
	f.commits = append(f.commits, fakeCommit{msg: msg, paths: f.staged})
	f.staged = nil
	return nil
}

func (f *fakeVCS) CurrentRevision() (string, error) {
	return fmt.Sprintf("rev%d", len(f.commits)), nil
}

func (f *fakeVCS) CreateBranch(from, prefix string) (string, error) {
	name := fmt.Sprintf("%s%d", prefix, len(f.branches))
	f.branches[name] = from
	return name, nil
}

func (f *fakeVCS) Checkout(branch string) error {
	f.branch = branch
	return nil
}

func (f *fakeVCS) CurrentBranch() (string, error) { return f.branch, nil }

func (f *fakeVCS) DeleteBranch(branch string) error {
	delete(f.branches, branch)
	f.deleted = append(f.deleted, branch)
	return nil
}

// messages returns the subject line of every commit.
func (f *fakeVCS) messages() []string {
	var msgs []string
	for _, c := range f.commits {
		subject, _, _ := strings.Cut(c.msg, "\n")
		msgs = append(msgs, subject)
	}
	return msgs
}

type fixture struct {
	root string
	tmp  string
	vcs  *fakeVCS
	orch *Orchestrator
}

func newFixture(t *testing.T, versioned bool) *fixture {
	t.Helper()
	fx := &fixture{root: t.TempDir(), tmp: t.TempDir(), vcs: newFakeVCS()}
	fx.write(t, "src/lib.f90", libSource)
	fx.write(t, "lib.pyf", libSignature)
	opts := Options{Root: fx.root, OutputDir: "wrap", Versioned: versioned, TempDir: fx.tmp}
	fx.orch = New(opts, fparser.New(), fx.vcs, zaptest.NewLogger(t).Sugar())
	return fx
}

func (fx *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(fx.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func (fx *fixture) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(fx.root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func (fx *fixture) assertNoWorkspaces(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(fx.tmp)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary workspaces must be removed")
}

func TestCreateUnversioned(t *testing.T) {
	fx := newFixture(t, false)
	ctx := context.Background()

	res, err := fx.orch.Create(ctx, "lib", []string{"src/lib.f90"}, CreateOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"wrap/lib_fc.f90", "wrap/lib_fc.h", "wrap/lib_fc.pxd"}, res.Files)
	assert.Equal(t, HeadNone, res.Head)
	assert.Empty(t, fx.vcs.commits)

	shim := fx.read(t, "wrap/lib_fc.f90")
	assert.Contains(t, shim, HeadLine(HeadNone))
	assert.Contains(t, shim, "! fwrap: wraps src/lib.f90 "+Fingerprint([]byte(libSource))+" none\n")
	assert.Contains(t, fx.read(t, "wrap/lib_fc.h"), "void a(double *x);")
	fx.assertNoWorkspaces(t)
}

func TestCreateVersionedCommitsTwice(t *testing.T) {
	fx := newFixture(t, true)

	res, err := fx.orch.Create(context.Background(), "lib", []string{filepath.Join(fx.root, "src", "lib.f90")}, CreateOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"fwrap: wrap src/lib.f90", "fwrap: record head rev1"}, fx.vcs.messages())
	assert.Equal(t, []string{"wrap/lib_fc.f90", "wrap/lib_fc.h", "wrap/lib_fc.pxd"}, fx.vcs.commits[0].paths)
	assert.Equal(t, []string{"wrap/lib_fc.f90"}, fx.vcs.commits[1].paths)
	assert.Equal(t, "rev1", res.Head)

	rec, err := ReadRecord(filepath.Join(fx.root, "wrap", "lib_fc.f90"))
	require.NoError(t, err)
	assert.Equal(t, "rev1", rec.Head, "head is the commit holding the artifacts")
	assert.Equal(t, "rev0", rec.Lookup("src/lib.f90").Revision)
	assert.Equal(t, "fwrap: wrap src/lib.f90\n\nFiles wrapped:\nsrc/lib.f90", fx.vcs.commits[0].msg)
	fx.assertNoWorkspaces(t)
}

func TestCreateCommitMessage(t *testing.T) {
	fx := newFixture(t, true)
	fx.write(t, "src/extra.f90", "subroutine e(x)\n  real :: x\nend subroutine e\n")

	_, err := fx.orch.Create(context.Background(), "lib", []string{"src/lib.f90", "src/extra.f90"},
		CreateOptions{Message: "Wrap the solver"})
	require.NoError(t, err)
	assert.Equal(t, "Wrap the solver\n\nFiles wrapped:\nsrc/lib.f90\nsrc/extra.f90", fx.vcs.commits[0].msg)
	assert.Equal(t, "fwrap: record head rev1", fx.vcs.commits[1].msg)
}

func TestCreateThenStatusIsUpToDate(t *testing.T) {
	fx := newFixture(t, true)
	ctx := context.Background()
	_, err := fx.orch.Create(ctx, "lib", []string{"src/lib.f90"}, CreateOptions{})
	require.NoError(t, err)

	before := fx.read(t, "wrap/lib_fc.f90")
	commits := len(fx.vcs.commits)

	first, err := fx.orch.Status(ctx, "lib")
	require.NoError(t, err)
	second, err := fx.orch.Status(ctx, "lib")
	require.NoError(t, err)

	assert.False(t, first.NeedsUpdate)
	assert.Equal(t, first, second)
	require.Len(t, first.Files, 1)
	assert.True(t, first.Files[0].UpToDate())
	assert.Equal(t, before, fx.read(t, "wrap/lib_fc.f90"), "status must not mutate")
	assert.Len(t, fx.vcs.commits, commits)
}

func TestStatusDetectsChangesAndMissingFiles(t *testing.T) {
	fx := newFixture(t, false)
	ctx := context.Background()
	_, err := fx.orch.Create(ctx, "lib", []string{"src/lib.f90"}, CreateOptions{})
	require.NoError(t, err)

	fx.write(t, "src/lib.f90", libSource+"\n")
	st, err := fx.orch.Status(ctx, "lib")
	require.NoError(t, err)
	assert.True(t, st.NeedsUpdate)
	assert.NotEqual(t, st.Files[0].Recorded, st.Files[0].Current)

	require.NoError(t, os.Remove(filepath.Join(fx.root, "src", "lib.f90")))
	st, err = fx.orch.Status(ctx, "lib")
	require.NoError(t, err)
	assert.True(t, st.NeedsUpdate)
	assert.True(t, st.Files[0].Missing)
}

func TestStatusUntracked(t *testing.T) {
	fx := newFixture(t, false)
	_, err := fx.orch.Status(context.Background(), "nothing")
	assert.True(t, errors.Is(err, ErrNotTracked))
}

func TestCreateAlreadyWrapped(t *testing.T) {
	fx := newFixture(t, true)
	ctx := context.Background()
	_, err := fx.orch.Create(ctx, "lib", []string{"src/lib.f90"}, CreateOptions{})
	require.NoError(t, err)

	_, err = fx.orch.Create(ctx, "lib", []string{"src/lib.f90"}, CreateOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyWrapped))
	assert.Contains(t, errors.FlattenHints(err), "fwrap update")
	assert.Len(t, fx.vcs.commits, 2)
}

func TestCreateExtendsArtifact(t *testing.T) {
	fx := newFixture(t, false)
	ctx := context.Background()
	_, err := fx.orch.Create(ctx, "lib", []string{"src/lib.f90"}, CreateOptions{})
	require.NoError(t, err)

	fx.write(t, "src/extra.f90", "subroutine d(k)\n  integer :: k\nend subroutine d\n")
	_, err = fx.orch.Create(ctx, "lib", []string{"src/extra.f90"}, CreateOptions{})
	require.NoError(t, err)

	rec, err := ReadRecord(filepath.Join(fx.root, "wrap", "lib_fc.f90"))
	require.NoError(t, err)
	assert.Equal(t, []string{"src/lib.f90", "src/extra.f90"}, rec.Paths())
	assert.Contains(t, fx.read(t, "wrap/lib_fc.h"), "void d(int *k);")

	fx.write(t, "src/lib.f90", libSource+"\n")
	fx.write(t, "src/more.f90", "subroutine e()\nend subroutine e\n")
	_, err = fx.orch.Create(ctx, "lib", []string{"src/more.f90"}, CreateOptions{})
	assert.True(t, errors.Is(err, ErrStale))
}

func TestCreateDirtyWorkingState(t *testing.T) {
	fx := newFixture(t, true)
	fx.vcs.dirty = true

	_, err := fx.orch.Create(context.Background(), "lib", []string{"src/lib.f90"}, CreateOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDirtyWorkingState))

	_, statErr := os.Stat(filepath.Join(fx.root, "wrap"))
	assert.True(t, os.IsNotExist(statErr), "no artifact may be written")
	assert.Empty(t, fx.vcs.commits)
	fx.assertNoWorkspaces(t)
}

func TestCreateSkipsUnsupportedRoutines(t *testing.T) {
	fx := newFixture(t, false)
	fx.write(t, "src/geo.f90", `module geo
  type :: point
    real :: x
  end type point
contains
  subroutine move(p)
    type(point), intent(inout) :: p
  end subroutine move
  subroutine ok(x)
    real :: x
  end subroutine ok
end module geo
`)
	res, err := fx.orch.Create(context.Background(), "geo", []string{"src/geo.f90"}, CreateOptions{})
	require.NoError(t, err)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "move", res.Skipped[0].Name)
	assert.Contains(t, res.Skipped[0].Reason, "derived type point")

	shim := fx.read(t, "wrap/geo_fc.f90")
	assert.Contains(t, shim, `bind(c, name="ok")`)
	assert.NotContains(t, shim, `name="move"`)
}

func TestUpdateUpToDateIsNoop(t *testing.T) {
	fx := newFixture(t, true)
	ctx := context.Background()
	_, err := fx.orch.Create(ctx, "lib", []string{"src/lib.f90"}, CreateOptions{})
	require.NoError(t, err)

	res, err := fx.orch.Update(ctx, "lib", UpdateOptions{})
	require.NoError(t, err)
	assert.False(t, res.Updated)
	assert.Len(t, fx.vcs.commits, 2)
	assert.Empty(t, fx.vcs.branches)
}

func TestUpdateStale(t *testing.T) {
	fx := newFixture(t, true)
	ctx := context.Background()
	_, err := fx.orch.Create(ctx, "lib", []string{"src/lib.f90"}, CreateOptions{})
	require.NoError(t, err)

	changed := strings.Replace(libSource, "end module lib", "  subroutine d(k)\n    integer :: k\n  end subroutine d\nend module lib", 1)
	fx.write(t, "src/lib.f90", changed)

	res, err := fx.orch.Update(ctx, "lib", UpdateOptions{})
	require.NoError(t, err)
	assert.True(t, res.Updated)
	assert.Equal(t, "fwrap-update-0", res.Branch)
	assert.Equal(t, "rev1", fx.vcs.branches[res.Branch], "branch is rooted at the recorded head")
	assert.Equal(t, res.Branch, fx.vcs.branch, "update branch stays checked out")
	assert.Equal(t, []string{
		"fwrap: wrap src/lib.f90",
		"fwrap: record head rev1",
		"fwrap: update lib",
		"fwrap: record head rev3",
	}, fx.vcs.messages())
	assert.Equal(t, "rev3", res.Head)

	shim := fx.read(t, "wrap/lib_fc.f90")
	assert.Contains(t, shim, `bind(c, name="d")`)
	assert.Contains(t, shim, HeadLine("rev3"))

	rec, err := ReadRecord(filepath.Join(fx.root, "wrap", "lib_fc.f90"))
	require.NoError(t, err)
	assert.Equal(t, Fingerprint([]byte(changed)), rec.Lookup("src/lib.f90").Fingerprint)
	assert.Equal(t, "rev2", rec.Lookup("src/lib.f90").Revision)
	fx.assertNoWorkspaces(t)
}

func TestUpdateBranchIsPendingUntilMerged(t *testing.T) {
	fx := newFixture(t, true)
	ctx := context.Background()
	_, err := fx.orch.Create(ctx, "lib", []string{"src/lib.f90"}, CreateOptions{})
	require.NoError(t, err)
	fx.write(t, "src/lib.f90", libSource+"\n")

	res, err := fx.orch.Update(ctx, "lib", UpdateOptions{})
	require.NoError(t, err)
	require.True(t, res.Updated)

	// Checking out the branch restores the sources of the old head.
	fx.write(t, "src/lib.f90", libSource)
	st, err := fx.orch.Status(ctx, "lib")
	require.NoError(t, err)
	assert.Equal(t, res.Branch, st.Pending)
	assert.False(t, st.NeedsUpdate)

	commits := len(fx.vcs.commits)
	_, err = fx.orch.Update(ctx, "lib", UpdateOptions{Force: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPendingUpdate))
	assert.Contains(t, errors.FlattenHints(err), "merge "+res.Branch)
	assert.Len(t, fx.vcs.commits, commits)
	assert.Len(t, fx.vcs.branches, 1)

	_, err = fx.orch.Merge(ctx, "lib", "lib.pyf")
	assert.True(t, errors.Is(err, ErrPendingUpdate))

	fx.vcs.branch = "main"
	st, err = fx.orch.Status(ctx, "lib")
	require.NoError(t, err)
	assert.Empty(t, st.Pending)
}

func TestFinalizeAdoptsUnversionedArtifact(t *testing.T) {
	fx := newFixture(t, false)
	ctx := context.Background()
	_, err := fx.orch.Create(ctx, "lib", []string{"src/lib.f90"}, CreateOptions{})
	require.NoError(t, err)

	versioned := New(Options{Root: fx.root, OutputDir: "wrap", Versioned: true, TempDir: fx.tmp},
		fparser.New(), fx.vcs, zaptest.NewLogger(t).Sugar())
	_, err = versioned.FinalizeHead(ctx, "lib")
	assert.True(t, errors.Is(err, ErrNotTracked), "the artifact must be committed first")

	require.NoError(t, fx.vcs.Add("wrap/lib_fc.f90", "wrap/lib_fc.h", "wrap/lib_fc.pxd"))
	require.NoError(t, fx.vcs.Commit("add wrappers"))

	fx.write(t, "src/lib.f90", libSource+"\n")
	_, err = versioned.Update(ctx, "lib", UpdateOptions{})
	require.Error(t, err)
	assert.Contains(t, errors.FlattenHints(err), "fwrap finalize")

	head, err := versioned.FinalizeHead(ctx, "lib")
	require.NoError(t, err)
	assert.Equal(t, "rev1", head)
	assert.Contains(t, fx.read(t, "wrap/lib_fc.f90"), HeadLine("rev1"))
	assert.Equal(t, "fwrap: record head rev1", fx.vcs.messages()[1])

	res, err := versioned.Update(ctx, "lib", UpdateOptions{})
	require.NoError(t, err)
	assert.True(t, res.Updated)
	assert.Equal(t, "rev1", fx.vcs.branches[res.Branch])
}

func TestUpdateDirtyWorkingState(t *testing.T) {
	fx := newFixture(t, true)
	ctx := context.Background()
	_, err := fx.orch.Create(ctx, "lib", []string{"src/lib.f90"}, CreateOptions{})
	require.NoError(t, err)
	before := fx.read(t, "wrap/lib_fc.f90")

	fx.write(t, "src/lib.f90", libSource+"\n")
	fx.vcs.dirty = true
	_, err = fx.orch.Update(ctx, "lib", UpdateOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDirtyWorkingState))
	assert.Equal(t, before, fx.read(t, "wrap/lib_fc.f90"))
	assert.Empty(t, fx.vcs.branches)
	assert.Len(t, fx.vcs.commits, 2)
}

func TestUpdateNotTracked(t *testing.T) {
	t.Run("unversioned", func(t *testing.T) {
		fx := newFixture(t, false)
		ctx := context.Background()
		_, err := fx.orch.Create(ctx, "lib", []string{"src/lib.f90"}, CreateOptions{})
		require.NoError(t, err)
		fx.write(t, "src/lib.f90", libSource+"\n")

		_, err = fx.orch.Update(ctx, "lib", UpdateOptions{})
		assert.True(t, errors.Is(err, ErrNotTracked))
	})
	t.Run("artifact not committed", func(t *testing.T) {
		fx := newFixture(t, true)
		ctx := context.Background()
		_, err := fx.orch.Create(ctx, "lib", []string{"src/lib.f90"}, CreateOptions{})
		require.NoError(t, err)
		fx.vcs.tracked = make(map[string]bool)
		fx.write(t, "src/lib.f90", libSource+"\n")

		_, err = fx.orch.Update(ctx, "lib", UpdateOptions{})
		assert.True(t, errors.Is(err, ErrNotTracked))
		assert.Empty(t, fx.vcs.branches)
	})
}

func TestUpdateFailureAbandonsBranch(t *testing.T) {
	fx := newFixture(t, true)
	ctx := context.Background()
	_, err := fx.orch.Create(ctx, "lib", []string{"src/lib.f90"}, CreateOptions{})
	require.NoError(t, err)
	fx.write(t, "src/lib.f90", libSource+"\n")

	fx.vcs.failCommit = func(msg string) error {
		if strings.HasPrefix(msg, "fwrap: update") {
			return errors.New("disk full")
		}
		return nil
	}
	_, err = fx.orch.Update(ctx, "lib", UpdateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, "main", fx.vcs.branch)
	assert.Empty(t, fx.vcs.branches)
	assert.Equal(t, []string{"fwrap-update-0"}, fx.vcs.deleted)
	fx.assertNoWorkspaces(t)
}

func TestUpdateRequiresFinalizedHead(t *testing.T) {
	fx := newFixture(t, true)
	ctx := context.Background()
	_, err := fx.orch.Create(ctx, "lib", []string{"src/lib.f90"}, CreateOptions{})
	require.NoError(t, err)

	_, err = fx.orch.Update(ctx, "lib", UpdateOptions{Exclude: []string{"b"}, SkipFinalize: true})
	require.NoError(t, err)

	fx.vcs.branch = "main"
	_, err = fx.orch.Update(ctx, "lib", UpdateOptions{Force: true})
	require.Error(t, err)
	assert.Contains(t, errors.FlattenHints(err), "fwrap finalize")
}

func TestMergeExcludesRoutinesAbsentFromSignature(t *testing.T) {
	fx := newFixture(t, true)
	ctx := context.Background()
	_, err := fx.orch.Create(ctx, "lib", []string{"src/lib.f90"}, CreateOptions{})
	require.NoError(t, err)

	res, err := fx.orch.Merge(ctx, "lib", "lib.pyf")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, res.Excluded)
	require.NotNil(t, res.Update)
	assert.True(t, res.Update.Updated)
	assert.Equal(t, HeadUncommitted, res.Update.Head)

	msgs := fx.vcs.messages()
	assert.Equal(t, "Removed routines absent from lib.pyf: b", msgs[len(msgs)-1])

	shim := fx.read(t, "wrap/lib_fc.f90")
	header := fx.read(t, "wrap/lib_fc.h")
	pxd := fx.read(t, "wrap/lib_fc.pxd")
	assert.Contains(t, shim, HeadLine(HeadUncommitted), "merge leaves finalization to the caller")
	assert.Contains(t, shim, "! fwrap: exclude b\n")
	for _, text := range []string{shim, header, pxd} {
		assert.Contains(t, text, " a(")
		assert.Contains(t, text, " c(")
		assert.NotContains(t, text, " b(")
	}

	head, err := fx.orch.FinalizeHead(ctx, "lib")
	require.NoError(t, err)
	assert.Equal(t, "rev3", head)
	assert.Contains(t, fx.read(t, "wrap/lib_fc.f90"), HeadLine("rev3"))

	commits := len(fx.vcs.commits)
	again, err := fx.orch.FinalizeHead(ctx, "lib")
	require.NoError(t, err)
	assert.Equal(t, head, again)
	assert.Len(t, fx.vcs.commits, commits, "finalize is idempotent")

	st, err := fx.orch.Status(ctx, "lib")
	require.NoError(t, err)
	assert.False(t, st.NeedsUpdate)
	assert.Equal(t, []string{"b"}, st.Excluded)
}

func TestMergeWithCompleteSignatureDoesNothing(t *testing.T) {
	fx := newFixture(t, true)
	ctx := context.Background()
	_, err := fx.orch.Create(ctx, "lib", []string{"src/lib.f90"}, CreateOptions{})
	require.NoError(t, err)
	fx.write(t, "full.pyf", strings.Replace(libSource, "module lib", "python module full\ninterface\nmodule lib", 1)+"end interface\nend python module full\n")

	res, err := fx.orch.Merge(ctx, "lib", "full.pyf")
	require.NoError(t, err)
	assert.Empty(t, res.Excluded)
	assert.Nil(t, res.Update)
	assert.Len(t, fx.vcs.commits, 2)
}

func TestFinalizeHeadDetectsTamperedRecord(t *testing.T) {
	fx := newFixture(t, true)
	ctx := context.Background()
	_, err := fx.orch.Create(ctx, "lib", []string{"src/lib.f90"}, CreateOptions{})
	require.NoError(t, err)
	_, err = fx.orch.Update(ctx, "lib", UpdateOptions{Force: true, SkipFinalize: true})
	require.NoError(t, err)

	shimPath := filepath.Join(fx.root, "wrap", "lib_fc.f90")
	tampered := fx.read(t, "wrap/lib_fc.f90") + "\n" + HeadLine(HeadUncommitted)
	require.NoError(t, os.WriteFile(shimPath, []byte(tampered), 0o644))

	_, err = fx.orch.FinalizeHead(ctx, "lib")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTokenSubstitution))
	assert.Equal(t, tampered, fx.read(t, "wrap/lib_fc.f90"))
}

func TestCanceledContext(t *testing.T) {
	fx := newFixture(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.orch.Create(ctx, "lib", []string{"src/lib.f90"}, CreateOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(filepath.Join(fx.root, "wrap"))
	assert.True(t, os.IsNotExist(statErr))
}
