package tracking

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"
)

const (
	// RecordPrefix starts every record line in a shim.
	RecordPrefix = "! fwrap: "
	// FormatVersion is written into new records.
	FormatVersion = "1.0.0"
	// HeadUncommitted is the head placeholder of an artifact whose
	// generating commit has not been recorded yet.
	HeadUncommitted = "uncommitted"
	// HeadNone marks artifacts generated without version control.
	HeadNone = "none"
)

// supportedFormats are the record versions this build reads.
var supportedFormats = mustConstraint("^1.0.0")

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// WrapEntry records one wrapped source file.
type WrapEntry struct {
	// Path is the source path relative to the project root, slash separated.
	Path string
	// Fingerprint is the git blob id of the content that was wrapped.
	Fingerprint string
	// Revision is the revision the content was read at, or "none".
	Revision string
}

// Exclusion is a routine left out of generation.
type Exclusion struct {
	Name string
	Meta map[string]string
}

// Record is the generation record embedded in a shim. It maps wrapped
// sources to fingerprints and holds the exclusion set.
type Record struct {
	Version string
	Head    string
	Wraps   []*WrapEntry
	Exclude []*Exclusion
	index   map[string]*WrapEntry
}

// NewRecord creates an empty record at the current format version.
func NewRecord() *Record {
	return &Record{Version: FormatVersion, Head: HeadNone, index: make(map[string]*WrapEntry)}
}

// Lookup finds the entry for a source path. Returns nil if not found.
func (r *Record) Lookup(path string) *WrapEntry {
	if r.index == nil {
		return nil
	}
	return r.index[path]
}

// Set adds or updates the entry for a source path.
func (r *Record) Set(path, fingerprint, revision string) {
	if r.index == nil {
		r.index = make(map[string]*WrapEntry)
	}
	if e, ok := r.index[path]; ok {
		e.Fingerprint, e.Revision = fingerprint, revision
		return
	}
	e := &WrapEntry{Path: path, Fingerprint: fingerprint, Revision: revision}
	r.Wraps = append(r.Wraps, e)
	r.index[path] = e
}

// Paths returns the wrapped source paths in record order.
func (r *Record) Paths() []string {
	paths := make([]string, len(r.Wraps))
	for i, e := range r.Wraps {
		paths[i] = e.Path
	}
	return paths
}

// Excluded reports whether the routine is in the exclusion set. Names
// compare case-insensitively, as Fortran does.
func (r *Record) Excluded(name string) bool {
	for _, x := range r.Exclude {
		if strings.EqualFold(x.Name, name) {
			return true
		}
	}
	return false
}

// AddExclusion appends a routine to the exclusion set. It reports false if
// the routine was already excluded.
func (r *Record) AddExclusion(name string, meta map[string]string) bool {
	if r.Excluded(name) {
		return false
	}
	r.Exclude = append(r.Exclude, &Exclusion{Name: strings.ToLower(name), Meta: meta})
	return true
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	c := &Record{Version: r.Version, Head: r.Head, index: make(map[string]*WrapEntry)}
	for _, e := range r.Wraps {
		c.Set(e.Path, e.Fingerprint, e.Revision)
	}
	for _, x := range r.Exclude {
		meta := make(map[string]string, len(x.Meta))
		for k, v := range x.Meta {
			meta[k] = v
		}
		c.Exclude = append(c.Exclude, &Exclusion{Name: x.Name, Meta: meta})
	}
	return c
}

// HeadLine is the record line holding the head revision.
func HeadLine(rev string) string {
	return RecordPrefix + "head " + rev + "\n"
}

// Render returns the record as shim comment lines.
func (r *Record) Render() string {
	var sb strings.Builder
	sb.WriteString(RecordPrefix + "version " + r.Version + "\n")
	sb.WriteString(HeadLine(r.Head))
	for _, e := range r.Wraps {
		fmt.Fprintf(&sb, "%swraps %s %s %s\n", RecordPrefix, e.Path, e.Fingerprint, e.Revision)
	}
	for _, x := range r.Exclude {
		sb.WriteString(RecordPrefix + "exclude " + x.Name)
		keys := make([]string, 0, len(x.Meta))
		for k := range x.Meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(" " + k + "=" + x.Meta[k])
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// ParseRecord extracts the record from shim text. name is used in error
// messages.
func ParseRecord(name, src string) (*Record, error) {
	r := &Record{index: make(map[string]*WrapEntry)}

	scanner := bufio.NewScanner(strings.NewReader(src))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), " \r")
		if !strings.HasPrefix(line, RecordPrefix) {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, RecordPrefix))
		if len(fields) == 0 {
			continue
		}
		switch key, args := fields[0], fields[1:]; key {
		case "version", "head":
			if len(args) != 1 {
				return nil, errors.Newf("%s:%d: expected 1 field after %s, got %d", name, lineNum, key, len(args))
			}
			if key == "version" {
				r.Version = args[0]
			} else {
				r.Head = args[0]
			}
		case "wraps":
			if len(args) != 3 {
				return nil, errors.Newf("%s:%d: expected 3 fields (path fingerprint revision), got %d", name, lineNum, len(args))
			}
			r.Set(args[0], args[1], args[2])
		case "exclude":
			if len(args) == 0 {
				return nil, errors.Newf("%s:%d: exclude without a routine name", name, lineNum)
			}
			meta := make(map[string]string)
			for _, kv := range args[1:] {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return nil, errors.Newf("%s:%d: malformed exclude metadata %q", name, lineNum, kv)
				}
				meta[k] = v
			}
			r.AddExclusion(args[0], meta)
		default:
			return nil, errors.Newf("%s:%d: unknown record entry %q", name, lineNum, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading record of %s", name)
	}

	if r.Version == "" {
		return nil, notTrackedError(name, "the file has no fwrap record; wrap the sources with fwrap create")
	}
	v, err := semver.NewVersion(r.Version)
	if err != nil || !supportedFormats.Check(v) {
		return nil, errors.WithHint(
			errors.Wrapf(ErrUnsupportedRecord, "%s: record version %s", name, r.Version),
			"the artifact was written by an incompatible fwrap release")
	}
	if r.Head == "" {
		return nil, errors.Newf("%s: record has no head entry", name)
	}
	return r, nil
}

// ReadRecord reads the record of the shim at path. A missing file is
// reported as ErrNotTracked.
func ReadRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, notTrackedError(path, "no artifact exists yet; wrap the sources with fwrap create")
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading record")
	}
	return ParseRecord(path, string(data))
}
