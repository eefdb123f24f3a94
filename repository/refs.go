package repository

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
)

// virtualRefPrefix holds engine-managed snapshot branches that are not
// ordinary local branches but still need mirroring.
const virtualRefPrefix = "refs/virtual/"

// RefKind classifies a named reference.
type RefKind int

const (
	// KindLocal is a local branch (refs/heads/*).
	KindLocal RefKind = iota

	// KindRemote is a remote-tracking branch (refs/remotes/*).
	KindRemote

	// KindVirtual is an engine-managed snapshot branch (refs/virtual/*).
	KindVirtual

	// KindTag is a tag (refs/tags/*).
	KindTag

	// KindOther is any other reference (notes, stash, ...).
	KindOther
)

func (k RefKind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindRemote:
		return "remote"
	case KindVirtual:
		return "virtual"
	case KindTag:
		return "tag"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

// Mirrored reports whether references of this kind participate in the
// mirror push. Tags and other non-branch kinds are excluded.
func (k RefKind) Mirrored() bool {
	switch k {
	case KindLocal, KindRemote, KindVirtual:
		return true
	default:
		return false
	}
}

// Reference is a named pointer into the commit graph.
type Reference struct {
	Name string
	Kind RefKind
	Hash Oid
}

func classifyRefName(name plumbing.ReferenceName) RefKind {
	switch {
	case strings.HasPrefix(name.String(), virtualRefPrefix):
		return KindVirtual
	case name.IsBranch():
		return KindLocal
	case name.IsRemote():
		return KindRemote
	case name.IsTag():
		return KindTag
	default:
		return KindOther
	}
}

// References lists all direct references whose full name matches pattern.
// The pattern is a git-style glob where a trailing '*' matches any
// suffix including '/', eg "refs/*" matches every reference. Symbolic
// references (HEAD) are skipped. Results are sorted by name.
func (r *Repo) References(pattern string) ([]Reference, error) {
	iter, err := r.repo.References()
	if err != nil {
		return nil, fmt.Errorf("unable to list references err:%w", err)
	}

	var refs []Reference
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		if !matchRefPattern(ref.Name().String(), pattern) {
			return nil
		}
		refs = append(refs, Reference{
			Name: ref.Name().String(),
			Kind: classifyRefName(ref.Name()),
			Hash: ref.Hash(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to iterate references err:%w", err)
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

// matchRefPattern matches full reference names against a glob pattern.
// Only the trailing-star form is needed here; unlike path globs the star
// matches across '/' like fnmatch without FNM_PATHNAME.
func matchRefPattern(name, pattern string) bool {
	if pattern == "" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(name, prefix)
	}
	return name == pattern
}
