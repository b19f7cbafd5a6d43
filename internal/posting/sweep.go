package posting

import (
	"context"
	"path"
	"strconv"
	"strings"
	"time"
)

// DefaultSweepGrace protects objects written by requests that have not
// committed yet.
const DefaultSweepGrace = time.Hour

// SweepOptions configures SweepOrphans.
type SweepOptions struct {
	// DryRun reports orphans without deleting them.
	DryRun bool
	// Grace skips objects whose key timestamp is newer than now minus Grace.
	Grace time.Duration
	Now   func() time.Time
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Scanned int      `json:"scanned"`
	Orphans []string `json:"orphans"`
	Deleted int      `json:"deleted"`
	DryRun  bool     `json:"dry_run"`
}

// SweepOrphans compares the keys under images/ with the paths referenced by
// image rows and removes (or, on a dry run, reports) unreferenced objects.
// It is run out of band and never from a request.
func (s *Service) SweepOrphans(ctx context.Context, opts SweepOptions) (*SweepResult, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	cutoff := opts.Now().Add(-opts.Grace)

	keys, err := s.objects.List(ctx, s.disk, imageDirectory+"/")
	if err != nil {
		return nil, err
	}
	paths, err := s.store.ImagePaths(ctx)
	if err != nil {
		return nil, err
	}
	referenced := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		referenced[p] = struct{}{}
	}

	res := &SweepResult{Scanned: len(keys), Orphans: []string{}, DryRun: opts.DryRun}
	for _, key := range keys {
		if _, ok := referenced[key]; ok {
			continue
		}
		if ts, ok := keyTime(key); ok && ts.After(cutoff) {
			continue
		}
		res.Orphans = append(res.Orphans, key)
	}

	if opts.DryRun || len(res.Orphans) == 0 {
		s.log.Info("orphan sweep finished", "scanned", res.Scanned, "orphans", len(res.Orphans), "dry_run", opts.DryRun)
		return res, nil
	}

	if err := s.objects.DeleteMany(ctx, s.disk, res.Orphans); err != nil {
		s.log.Error("orphan sweep failed", "error", err, "orphans", res.Orphans)
		return nil, err
	}
	res.Deleted = len(res.Orphans)
	s.log.Info("orphan sweep finished", "scanned", res.Scanned, "deleted", res.Deleted)
	return res, nil
}

// keyTime extracts the upload time from a key of the form
// <dir>/.../<unix-seconds>_<name>.
func keyTime(key string) (time.Time, bool) {
	prefix, _, ok := strings.Cut(path.Base(key), "_")
	if !ok {
		return time.Time{}, false
	}
	sec, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(sec, 0), true
}
