package joint

import (
	"fmt"
	"sort"

	"github.com/cuemby/warren-sync/pkg/directory"
	"github.com/cuemby/warren-sync/pkg/types"
)

// VersionedEntry is one writer's contribution to a name in the joint
// view: its entry data plus the branch it came from.
type VersionedEntry struct {
	WriterID types.WriterID
	Entry    directory.EntryData
}

// JointDirectory is the read-only union of "the same" directory across
// every branch the repository knows about (§4.4 User view). Concurrent
// versions of a name are kept as siblings rather than collapsed.
type JointDirectory struct {
	// byName maps a logical name to the concurrent, non-dominated
	// versions of it across all branches.
	byName map[string][]VersionedEntry
}

// Build assembles a JointDirectory from one open Directory per branch
// that has "the same" logical directory (the same position in the tree,
// located by the caller via matching blob ids or path, which is a
// pkg/repository concern).
func Build(perBranch map[types.WriterID]*directory.Directory) *JointDirectory {
	jd := &JointDirectory{byName: map[string][]VersionedEntry{}}

	writers := sortedWriters(perBranch)
	for _, w := range writers {
		dir := perBranch[w]
		for name, e := range dir.Entries() {
			jd.add(name, VersionedEntry{WriterID: w, Entry: e})
		}
	}
	return jd
}

// add inserts a candidate version of name, keeping only versions not
// causally dominated by another candidate already present, and dropping
// any existing candidate the new one dominates.
func (jd *JointDirectory) add(name string, v VersionedEntry) {
	existing := jd.byName[name]
	kept := existing[:0:0]
	dominated := false
	for _, e := range existing {
		switch v.Entry.Version.Compare(e.Entry.Version) {
		case types.Less:
			dominated = true
			kept = append(kept, e)
		case types.Greater:
			// e is superseded by v; drop it.
		default:
			kept = append(kept, e)
		}
	}
	if !dominated {
		kept = append(kept, v)
	}
	jd.byName[name] = kept
}

// Lookup returns the single version of name if unambiguous, or
// ErrAmbiguousEntry if more than one concurrent version exists — callers
// should fall back to LookupUnique with a writer-disambiguated name
// (§8 scenario 5).
func (jd *JointDirectory) Lookup(name string) (VersionedEntry, error) {
	versions := jd.byName[name]
	if len(versions) == 0 {
		return VersionedEntry{}, directory.ErrEntryNotFound
	}
	if len(versions) > 1 {
		return VersionedEntry{}, directory.ErrAmbiguousEntry
	}
	return versions[0], nil
}

// LookupUnique resolves a disambiguated name of the form "name@writerid"
// to the specific writer's version.
func (jd *JointDirectory) LookupUnique(uniqueName string) (VersionedEntry, error) {
	name, writerHex, ok := splitUniqueName(uniqueName)
	if !ok {
		return jd.Lookup(uniqueName)
	}
	for _, v := range jd.byName[name] {
		if v.WriterID.String() == writerHex {
			return v, nil
		}
	}
	return VersionedEntry{}, directory.ErrEntryNotFound
}

// UniqueNames returns every name this joint view exposes, disambiguating
// concurrent versions by appending "@<writer-id>" (§4.4 "Disambiguation
// for duplicates produces unique names keyed by writer id").
func (jd *JointDirectory) UniqueNames() []string {
	var out []string
	for name, versions := range jd.byName {
		if len(versions) == 1 {
			out = append(out, name)
			continue
		}
		for _, v := range versions {
			out = append(out, fmt.Sprintf("%s@%s", name, v.WriterID))
		}
	}
	sort.Strings(out)
	return out
}

func splitUniqueName(s string) (name, writerHex string, ok bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '@' {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

func sortedWriters(m map[types.WriterID]*directory.Directory) []types.WriterID {
	out := make([]types.WriterID, 0, len(m))
	for w := range m {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
