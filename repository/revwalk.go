package repository

import (
	"github.com/go-git/go-git/v5/plumbing/object"
)

// revWalk adapts go-git's commit iterator to the CommitWalker surface the
// sync engine consumes. Only the current position is retained, so the
// walk stays bounded for arbitrarily large histories.
type revWalk struct {
	iter object.CommitIter
}

func newPreorderIter(from *object.Commit, exclude []Oid) object.CommitIter {
	// the excluded commits seed the iterator's seen set, so anything
	// reachable only through them is never visited
	return object.NewCommitPreorderIter(from, nil, exclude)
}

// Next returns the next commit id, or io.EOF once the walk is exhausted.
func (w *revWalk) Next() (Oid, error) {
	commit, err := w.iter.Next()
	if err != nil {
		return ZeroOid, err
	}
	return commit.Hash, nil
}

func (w *revWalk) Close() {
	w.iter.Close()
}
