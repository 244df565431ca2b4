package repository

import (
	"time"

	"github.com/cuemby/warren-sync/pkg/branch"
	"github.com/cuemby/warren-sync/pkg/directory"
	"github.com/cuemby/warren-sync/pkg/joint"
	"github.com/cuemby/warren-sync/pkg/metrics"
	"github.com/cuemby/warren-sync/pkg/storage"
	"github.com/cuemby/warren-sync/pkg/types"
)

// Worker intervals. Separate from pkg/config's network/protocol timing
// since these are purely local housekeeping cadences, not anything
// negotiated with a peer.
const (
	mergeInterval = 5 * time.Second
	gcInterval    = time.Minute
	pruneInterval = time.Minute
	trashInterval = 5 * time.Minute
)

// StartWorkers launches the four background workers of §9 (merger,
// garbage collector, pruner, trash cleaner), each its own goroutine on
// its own ticker plus an event-triggered wakeup, grounded on the
// teacher's reconciler.Start()/run() ticker-loop shape. All four are
// idempotent: running a cycle with nothing to do is always a no-op
// (P2), so a missed wakeup is made up by the next tick rather than
// needing special crash-recovery logic.
func (r *Repository) StartWorkers() {
	r.events.Start()

	r.workersWG.Add(4)
	go r.runWorker("merger", mergeInterval, EventBranchApproved, r.mergeCycle)
	go r.runWorker("gc", gcInterval, EventBlockReceived, r.gcCycle)
	go r.runWorker("pruner", pruneInterval, EventMergeCompleted, r.pruneCycle)
	go r.runWorker("trash", trashInterval, EventMergeCompleted, r.trashCycle)
}

// StopWorkers signals every running background worker to exit and waits
// for them to finish. Safe to call more than once.
func (r *Repository) StopWorkers() {
	r.mu.Lock()
	select {
	case <-r.stopWorkers:
		r.mu.Unlock()
		return
	default:
		close(r.stopWorkers)
	}
	r.mu.Unlock()

	r.workersWG.Wait()
	r.events.Stop()
}

// runWorker drives one background worker's ticker + event-subscription
// loop until StopWorkers is called, logging but not dying on cycle
// errors (§9 "must be idempotent and safely re-entrant after crash" —
// the next tick just tries again).
func (r *Repository) runWorker(name string, interval time.Duration, wakeOn EventType, cycle func() error) {
	defer r.workersWG.Done()

	log := r.log.With().Str("worker", name).Logger()
	sub := r.events.Subscribe()
	defer r.events.Unsubscribe(sub)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	run := func() {
		if err := cycle(); err != nil {
			log.Error().Err(err).Msg("cycle failed")
		}
	}

	run()
	for {
		select {
		case <-r.stopWorkers:
			return
		case <-ticker.C:
			run()
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if ev.Type == wakeOn {
				run()
			}
		}
	}
}

// mergeCycle runs one pass of the merge algorithm (§4.4) over this
// replica's root directory against every other known writer's approved
// branch. It merges only the root directory level; recursion into
// sub-directories is left to a future iteration (the same simplification
// pkg/joint.Merger's own doc comment calls out as the caller's
// responsibility), recorded in DESIGN.md.
func (r *Repository) mergeCycle() error {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.MergeDuration)
		metrics.MergeCyclesTotal.Inc()
	}()

	if !r.Writable() {
		return nil
	}

	localBranch := r.LocalBranch()
	local, err := r.localDirectory()
	if err != nil {
		return err
	}

	writers, err := r.KnownWriters()
	if err != nil {
		return err
	}

	merger := joint.NewMerger(r.store, r.blockCipher, r.locCipher, localBranch)
	changed := false

	for _, w := range writers {
		if w == r.localWriterID {
			continue
		}
		remoteBranch := r.RemoteBranch(w)
		if _, err := remoteBranch.CurrentRoot(); err == storage.ErrEntryNotFound {
			continue
		} else if err != nil {
			return err
		}

		remoteDir, err := directory.Open(r.store, r.blockCipher, r.locCipher, remoteBranch, directory.RootBlobID)
		if err == directory.ErrEntryNotFound {
			continue
		}
		if err != nil {
			return err
		}

		ch, err := merger.MergeInto(local, remoteDir, w)
		if err != nil {
			return err
		}
		changed = changed || ch
	}

	if !changed {
		return nil
	}
	if err := local.Flush(); err != nil {
		return err
	}
	r.events.Publish(&Event{Type: EventMergeCompleted, Message: "merge cycle applied remote changes"})
	r.refreshStats()
	return nil
}

// gcCycle sweeps for blocks that survived a crash with no referencing
// leaf ever committed (§6.1 deletion trigger's crash-recovery backstop;
// the common case — a leaf replaced or removed — is already handled
// inline by decrementBlockRef at commit time).
func (r *Repository) gcCycle() error {
	metrics.GCCyclesTotal.Inc()

	reader, err := r.store.AcquireRead()
	if err != nil {
		return err
	}
	orphans, err := reader.OrphanBlocks()
	reader.Close()
	if err != nil {
		return err
	}
	if len(orphans) == 0 {
		return nil
	}

	tx, err := r.store.BeginWrite()
	if err != nil {
		return err
	}
	for _, id := range orphans {
		if err := tx.RemoveOrphanBlock(id); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	metrics.GCBlocksRemovedTotal.Add(float64(len(orphans)))
	r.refreshStats()
	return nil
}

// pruneCycle removes superseded root node records for every known writer,
// keeping only the causally newest one (§9 "pruner (of stale
// snapshots)", the "Accepted limitation" noted in pkg/storage's
// grounding entry).
func (r *Repository) pruneCycle() error {
	metrics.PrunerCyclesTotal.Inc()

	writers, err := r.KnownWriters()
	if err != nil {
		return err
	}

	tx, err := r.store.BeginWrite()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	reader := tx.Reader()
	removed := 0
	for _, w := range writers {
		best, err := reader.LoadRootNode(w, storage.FilterAny)
		if err == storage.ErrEntryNotFound {
			continue
		}
		if err != nil {
			return err
		}
		n, err := tx.PruneStaleRoots(w, best.Proof.Hash)
		if err != nil {
			return err
		}
		removed += n
	}

	if removed == 0 {
		return nil
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	metrics.PrunerRootsRemovedTotal.Add(float64(removed))
	return nil
}

// trashCycle removes tombstone entries from the local root directory
// once their version vector is dominated by every known writer's current
// version vector — at that point every branch has causally observed the
// removal, so the tombstone can never again be needed to resolve a
// concurrent restore (spec.md §9's open design item: "whether tombstones
// are ever garbage collected"). Like mergeCycle, this only walks the
// root directory level.
func (r *Repository) trashCycle() error {
	metrics.TrashCyclesTotal.Inc()

	if !r.Writable() {
		return nil
	}

	writers, err := r.KnownWriters()
	if err != nil {
		return err
	}

	var observed []types.VersionVector
	for _, w := range writers {
		vv, err := branch.Remote(r.store, w).VersionVector()
		if err != nil {
			return err
		}
		observed = append(observed, vv)
	}

	local, err := r.localDirectory()
	if err != nil {
		return err
	}

	removed := 0
	for name, e := range local.RawEntries() {
		if !e.IsTombstone() {
			continue
		}
		dominated := true
		for _, vv := range observed {
			if c := e.Version.Compare(vv); c != types.Less && c != types.Equal {
				dominated = false
			}
		}
		if !dominated {
			continue
		}
		if err := local.PurgeTombstone(name); err != nil {
			return err
		}
		removed++
	}

	if removed == 0 {
		return nil
	}
	if err := local.Flush(); err != nil {
		return err
	}
	metrics.TrashTombstonesRemovedTotal.Add(float64(removed))
	return nil
}

// RefreshMetrics updates every repository-wide Prometheus gauge that
// isn't naturally driven by an event: store bytes, branch counts by
// state, and the tracker's missing-block backlog. A pkg/metrics.Collector
// can poll it; the merge and GC cycles themselves call refreshStats,
// which updates the store and branch gauges but not the tracker backlog.
func (r *Repository) RefreshMetrics() {
	r.refreshStats()
	metrics.TrackerMissingBlocks.Set(float64(r.tracker.MissingCount()))
}

// refreshStats updates the store/branch Prometheus gauges, the role the
// teacher's pkg/metrics.Collector played against pkg/manager — here
// folded into the workers that already hold a store handle rather than
// kept as a separate polling goroutine (see DESIGN.md).
func (r *Repository) refreshStats() {
	reader, err := r.store.AcquireRead()
	if err != nil {
		return
	}
	total, err := reader.TotalBytes()
	reader.Close()
	if err == nil {
		metrics.StoreBytesTotal.Set(float64(total))
	}

	counts, err := r.branchStateCounts()
	if err != nil {
		return
	}
	for _, state := range []types.NodeState{types.StateIncomplete, types.StateComplete, types.StateApproved, types.StateRejected} {
		metrics.BranchesTotal.WithLabelValues(state.String()).Set(float64(counts[state]))
	}
}
