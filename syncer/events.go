package syncer

import (
	"github.com/uplinkd/git-uplink/project"
)

// Event is a sync outcome event surfaced to the caller of Handle. The
// list is currently always empty on success; the type is reserved for
// future per-phase status reporting.
type Event struct {
	Project project.ID
	Message string
}
