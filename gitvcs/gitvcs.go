// Package gitvcs implements the change tracker's version control
// operations on a git repository with go-git. No git binary is needed.
package gitvcs

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/uuid"
)

// Default commit identity when none is configured.
const (
	DefaultAuthor = "fwrap"
	DefaultEmail  = "fwrap@localhost"
)

// Repo is a git working tree.
type Repo struct {
	repo   *git.Repository
	wt     *git.Worktree
	author string
	email  string
}

// Open opens the repository whose working tree root is dir. Commits are
// authored as author <email>; empty values fall back to the defaults.
func Open(dir, author, email string) (*Repo, error) {
	r, err := git.PlainOpen(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "opening git repository %s", dir)
	}
	wt, err := r.Worktree()
	if err != nil {
		return nil, errors.Wrap(err, "opening worktree")
	}
	if author == "" {
		author = DefaultAuthor
	}
	if email == "" {
		email = DefaultEmail
	}
	return &Repo{repo: r, wt: wt, author: author, email: email}, nil
}

// IsClean reports whether the working tree has no modified, staged or
// untracked files.
func (r *Repo) IsClean() (bool, error) {
	st, err := r.wt.Status()
	if err != nil {
		return false, errors.Wrap(err, "reading worktree status")
	}
	return st.IsClean(), nil
}

// IsTracked reports whether path is in the index.
func (r *Repo) IsTracked(path string) (bool, error) {
	idx, err := r.repo.Storer.Index()
	if err != nil {
		return false, errors.Wrap(err, "reading index")
	}
	_, err = idx.Entry(path)
	if errors.Is(err, index.ErrEntryNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Add stages paths.
func (r *Repo) Add(paths ...string) error {
	for _, p := range paths {
		if _, err := r.wt.Add(p); err != nil {
			return errors.Wrapf(err, "adding %s", p)
		}
	}
	return nil
}

// Commit records the staged changes.
func (r *Repo) Commit(message string) error {
	_, err := r.wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: r.author, Email: r.email, When: time.Now()},
	})
	return errors.Wrap(err, "committing")
}

// CurrentRevision returns the commit id HEAD points at.
func (r *Repo) CurrentRevision() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", errors.Wrap(err, "resolving HEAD")
	}
	return ref.Hash().String(), nil
}

// CreateBranch creates prefix plus a random suffix at revision from.
func (r *Repo) CreateBranch(from, prefix string) (string, error) {
	hash := plumbing.NewHash(from)
	if _, err := r.repo.CommitObject(hash); err != nil {
		return "", errors.Wrapf(err, "resolving revision %s", from)
	}
	name := prefix + uuid.NewString()[:8]
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), hash)
	if err := r.repo.Storer.SetReference(ref); err != nil {
		return "", errors.Wrapf(err, "creating branch %s", name)
	}
	return name, nil
}

// Checkout switches the working tree to branch. Local modifications are
// discarded; callers check IsClean first.
func (r *Repo) Checkout(branch string) error {
	err := r.wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Force:  true,
	})
	return errors.Wrapf(err, "checking out %s", branch)
}

// CurrentBranch returns the short name of the checked out branch.
func (r *Repo) CurrentBranch() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", errors.Wrap(err, "resolving HEAD")
	}
	if !ref.Name().IsBranch() {
		return "", errors.WithHint(errors.New("HEAD is detached"), "check out a branch before updating wrappers")
	}
	return ref.Name().Short(), nil
}

// DeleteBranch removes a local branch.
func (r *Repo) DeleteBranch(branch string) error {
	err := r.repo.Storer.RemoveReference(plumbing.NewBranchReferenceName(branch))
	return errors.Wrapf(err, "deleting branch %s", branch)
}
