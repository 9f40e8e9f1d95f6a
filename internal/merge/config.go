package merge

import "github.com/starford/lectern/internal/models"

// Config merges remote into local and returns local.
//
// ts becomes the later of the two; lastProgress comes from local only when
// local is strictly newer. Notes and bookmarks are merged with one shared
// tombstone map, seeded from remote and folded with local's persisted copy,
// which is stored on the result. Both documents' lists are sorted in place
// first. The bookshelf follows its own timestamp and
// local wins ties. Current progress is never taken from remote.
func Config(local, remote *models.BookConfig, now int64) *models.BookConfig {
	if local.TS == 0 {
		local.TS = now
	}
	if remote.TS == 0 {
		remote.TS = now
	}
	if remote.RemovedTS == nil {
		remote.RemovedTS = models.Tombstones{}
	}
	if local.LastProgress == 0 {
		local.LastProgress = local.Progress
	}
	if remote.LastProgress == 0 {
		remote.LastProgress = remote.Progress
	}

	localNewer := local.TS > remote.TS
	local.TS = max(local.TS, remote.TS)
	if !localNewer {
		local.LastProgress = remote.LastProgress
	}

	tombs := remote.RemovedTS.Clone()
	for cfi, ts := range local.RemovedTS {
		tombs.Record(cfi, ts)
	}
	for _, list := range [][]models.Note{local.Notes, local.Bookmarks, remote.Notes, remote.Bookmarks} {
		Sort(list)
	}
	local.Notes = Notes(local.Notes, remote.Notes, tombs)
	local.Bookmarks = Notes(local.Bookmarks, remote.Bookmarks, tombs)

	if shelfTS(remote.Bookshelf) > shelfTS(local.Bookshelf) {
		local.Bookshelf = remote.Bookshelf
	}

	local.RemovedTS = tombs
	return local
}

func shelfTS(s *models.Bookshelf) int64 {
	if s == nil {
		return 0
	}
	return s.TS
}

// Local prepares a config that has no remote counterpart yet: missing
// defaults are filled in and tombstoned entries move into RemovedTS.
func Local(cfg *models.BookConfig, now int64) *models.BookConfig {
	if cfg.TS == 0 {
		cfg.TS = now
	}
	if cfg.LastProgress == 0 {
		cfg.LastProgress = cfg.Progress
	}
	tombs := cfg.RemovedTS.Clone()
	Sort(cfg.Notes)
	Sort(cfg.Bookmarks)
	cfg.Notes = Notes(cfg.Notes, nil, tombs)
	cfg.Bookmarks = Notes(cfg.Bookmarks, nil, tombs)
	cfg.RemovedTS = tombs
	return cfg
}
