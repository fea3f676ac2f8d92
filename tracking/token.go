package tracking

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-git/go-git/v5/plumbing"
)

// Fingerprint is the git blob id of data. It matches what git itself
// records for the same content.
func Fingerprint(data []byte) string {
	return plumbing.ComputeHash(plumbing.BlobObject, data).String()
}

// FingerprintFile fingerprints the file at path.
func FingerprintFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return Fingerprint(data), nil
}

// ReplaceToken replaces the single occurrence of old in the file at path
// with repl. Zero or several occurrences yield a *TokenSubstitutionError
// and the file is not modified.
func ReplaceToken(path, old, repl string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "token substitution")
	}
	src := string(data)
	if n := strings.Count(src, old); n != 1 {
		return errors.WithHint(&TokenSubstitutionError{Path: path, Token: old, Count: n},
			"the record region of the artifact was edited by hand; restore it from version control")
	}
	return writeFileAtomic(path, []byte(strings.Replace(src, old, repl, 1)))
}

// writeFileAtomic replaces path through a temporary file in the same
// directory so readers never see a partial write.
func writeFileAtomic(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "creating temporary file")
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "writing %s", path)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "writing %s", path)
	}
	if err := os.Chmod(tmp, mode); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "writing %s", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}
