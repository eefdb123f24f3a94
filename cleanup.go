package main

import (
	"github.com/uplinkd/git-uplink/id"
	"github.com/uplinkd/git-uplink/project"
)

// cleanupOrphanedProjects deletes store records of projects which are no
// longer referenced in config and were removed while the app was down.
// Removal while the app is running is already handled by ensureProjects()
// hence this function should be called once. Deleting a record also drops
// its push state, so a re-added project starts from a full first sync.
func cleanupOrphanedProjects(store project.Store, conf *Config) {
	declared := map[project.ID]bool{}
	for _, pc := range conf.Projects {
		pid, err := id.Parse[project.Project](pc.ID)
		if err != nil {
			continue
		}
		declared[pid] = true
	}

	stored, err := store.List()
	if err != nil {
		logger.Error("unable to list projects for clean up", "err", err)
		return
	}

	for _, p := range stored {
		if declared[p.ID] {
			continue
		}

		// disabled records are kept so a temporarily removed project
		// resumes from its last checkpoint when re-added
		if !p.SyncEnabled {
			continue
		}

		logger.Info("removing orphaned project record...", "project", p.ID)
		if err := store.Delete(p.ID); err != nil {
			logger.Error("unable to remove orphaned project record", "project", p.ID, "err", err)
			continue
		}
	}
}
