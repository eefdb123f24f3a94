package syncer

import (
	"errors"
	"fmt"
	"io"

	"github.com/uplinkd/git-uplink/repository"
)

// checkpoints consumes the walk and returns the newest-first checkpoint
// list for the batch push: target at index 0, then one boundary per full
// window of batchSize commits traversed. A boundary equal to target is
// dropped so a short history yields just [target]. A trailing partial
// window adds no boundary; the commits behind the deepest boundary travel
// with its push, which still transmits at most batchSize commits. Only
// the boundaries are retained, never the full traversal.
func checkpoints(walk repository.CommitWalker, target repository.Oid, batchSize int) ([]repository.Oid, error) {
	ids := []repository.Oid{target}

	count := 0
	for {
		oid, err := walk.Next()
		if errors.Is(err, io.EOF) {
			return ids, nil
		}
		if err != nil {
			return nil, fmt.Errorf("unable to advance commit walk err:%w", err)
		}

		count++
		if count%batchSize == 0 && oid != target {
			ids = append(ids, oid)
		}
	}
}
