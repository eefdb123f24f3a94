package syncer

import (
	"context"
	"fmt"

	"github.com/uplinkd/git-uplink/auth"
	"github.com/uplinkd/git-uplink/project"
	"github.com/uplinkd/git-uplink/repository"
)

// tempRefPrefix holds the remote-side scratch references used to stage
// intermediate history. The uplink server garbage-collects them; the
// daemon never deletes them.
const tempRefPrefix = "refs/push-tmp/"

func tempRef(id project.ID) string {
	return tempRefPrefix + id.String()
}

func targetRef(id project.ID) string {
	return "refs/" + id.String()
}

// pushCheckpoints pushes the newest-first checkpoint list oldest-first,
// force-updating the project's temporary reference and persisting
// progress after each checkpoint. Once the whole chain is staged, one
// final force-push publishes target on the project's real reference.
func (s *Syncer) pushCheckpoints(ctx context.Context, repo Repo, p *project.Project, creds *auth.Credentials, ids []repository.Oid) error {
	for i := len(ids) - 1; i >= 0; i-- {
		oid := ids[i]

		spec := fmt.Sprintf("+%s:%s", oid, tempRef(p.ID))
		if _, err := repo.PushRefspecs(ctx, creds, []string{spec}); err != nil {
			return fmt.Errorf("unable to push batch err:%w", err)
		}

		if err := s.recordProgress(p.ID, oid); err != nil {
			return fmt.Errorf("unable to update push state err:%w", err)
		}

		recordBatchPushed(p.ID.String())
		s.log.Debug("pushed batch", "project", p.ID, "commit", oid, "batches_left", i)
	}

	spec := fmt.Sprintf("+%s:%s", ids[0], targetRef(p.ID))
	if _, err := repo.PushRefspecs(ctx, creds, []string{spec}); err != nil {
		return fmt.Errorf("unable to push target ref err:%w", err)
	}
	return nil
}

// mirrorRefs force-pushes every local, remote-tracking and virtual
// reference to its identically-named reference on the uplink server in
// one batched request. Tags and other reference kinds stay local.
func (s *Syncer) mirrorRefs(ctx context.Context, repo Repo, p *project.Project, creds *auth.Credentials) error {
	refs, err := repo.References("refs/*")
	if err != nil {
		return fmt.Errorf("unable to list references err:%w", err)
	}

	var specs []string
	for _, ref := range refs {
		if !ref.Kind.Mirrored() {
			continue
		}
		specs = append(specs, fmt.Sprintf("+%s:%s", ref.Name, ref.Name))
	}
	if len(specs) == 0 {
		return nil
	}

	changed, err := repo.PushRefspecs(ctx, creds, specs)
	if err != nil {
		return fmt.Errorf("unable to mirror references err:%w", err)
	}
	if changed {
		s.log.Info("mirrored references", "project", p.ID, "refs", len(specs))
	}
	return nil
}
