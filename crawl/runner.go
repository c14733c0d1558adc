// Package crawl implements the incremental crawl scheduler: one guarded
// multi-domain pass per tick, refreshing known IDs and probing for new ones,
// merging results into the persistent snapshots and reporting what changed.
package crawl

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/use-agent/dossier/config"
	"github.com/use-agent/dossier/models"
	"github.com/use-agent/dossier/store"
)

// State is the scheduler's run-guard state. It is owned by the Runner and
// transitioned only through its methods.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateTimedOut:
		return "timed_out"
	default:
		return "idle"
	}
}

// Notifier receives every pass report, success, failure or skipped. Report
// delivery must never block or fail a pass.
type Notifier interface {
	Notify(ctx context.Context, report models.Report)
}

// Runner executes guarded crawl passes over a set of domains.
type Runner struct {
	cfg      config.CrawlConfig
	store    *store.Store
	fetcher  Fetcher
	domains  []Domain
	notifier Notifier // optional

	mu          sync.Mutex
	state       State
	startedAt   time.Time
	generation  uint64
	lastReports map[string]models.Report
}

// defaultMissLimit bounds discovery on domains configured with no stop
// condition at all, so a probe can never walk the ID space forever.
const defaultMissLimit = 15

// NewRunner creates a Runner. The concurrency cap is clamped strictly below
// the batch size so every batch completes in more than one wave, bounding
// simultaneous connections without serializing entirely. A domain whose
// bounds disable every stop condition gets the default miss limit.
func NewRunner(cfg config.CrawlConfig, st *store.Store, fetcher Fetcher, domains []Domain, notifier Notifier) *Runner {
	if cfg.BatchSize < 2 {
		cfg.BatchSize = 2
	}
	if cfg.Concurrency >= cfg.BatchSize {
		cfg.Concurrency = cfg.BatchSize - 1
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	for i := range domains {
		b := domains[i].Bounds
		if b.MaxID <= 0 && b.MaxNewPerPass <= 0 && b.ConsecutiveMissLimit <= 0 {
			domains[i].Bounds.ConsecutiveMissLimit = defaultMissLimit
			slog.Warn("crawl: domain has no discovery bound, applying default miss limit",
				"domain", domains[i].Name, "missLimit", defaultMissLimit)
		}
	}
	return &Runner{
		cfg:         cfg,
		store:       st,
		fetcher:     fetcher,
		domains:     domains,
		notifier:    notifier,
		lastReports: make(map[string]models.Report),
	}
}

// State returns the current run-guard state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// LastReports returns the most recent report per domain, sorted by domain.
func (r *Runner) LastReports() []models.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Report, 0, len(r.lastReports))
	for _, rep := range r.lastReports {
		out = append(out, rep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}

// RunDaemon ticks the runner on the configured interval until the context
// finishes.
func (r *Runner) RunDaemon(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one guarded multi-domain pass. A tick that finds a pass already
// running skips itself entirely and reports that it skipped; it never
// queues. The pass wall-clock timeout frees the guard so a stuck pass cannot
// wedge future ticks, but it does not cancel in-flight navigations: they run
// to their own deadlines and their results are discarded.
func (r *Runner) Tick(ctx context.Context) []models.Report {
	gen, ok := r.begin()
	if !ok {
		rep := models.Report{
			Domain:    "scheduler",
			StartedAt: time.Now(),
			Changed:   []string{},
			Skipped:   true,
		}
		slog.Info("crawl: tick skipped, pass already running")
		r.notify(ctx, rep)
		return []models.Report{rep}
	}

	done := make(chan []models.Report, 1)
	go func() {
		done <- r.runAll(ctx)
	}()

	timer := time.NewTimer(r.cfg.PassTimeout)
	defer timer.Stop()

	select {
	case reports := <-done:
		r.complete(gen, reports)
		for _, rep := range reports {
			r.notify(ctx, rep)
		}
		return reports
	case <-timer.C:
		r.timeout(gen)
		slog.Error("crawl: pass exceeded wall-clock timeout, freeing scheduler",
			"timeout", r.cfg.PassTimeout)
		rep := models.Report{
			Domain:    "scheduler",
			StartedAt: time.Now(),
			Changed:   []string{},
			Error:     "pass exceeded wall-clock timeout",
		}
		r.notify(ctx, rep)
		return []models.Report{rep}
	}
}

func (r *Runner) begin() (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateRunning {
		return 0, false
	}
	r.state = StateRunning
	r.startedAt = time.Now()
	r.generation++
	return r.generation, true
}

func (r *Runner) complete(gen uint64, reports []models.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.generation || r.state != StateRunning {
		// A timed-out pass finally returned; its results are discarded.
		slog.Warn("crawl: discarding results of a stale pass", "generation", gen)
		return
	}
	r.state = StateIdle
	for _, rep := range reports {
		r.lastReports[rep.Domain] = rep
	}
}

func (r *Runner) timeout(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen == r.generation && r.state == StateRunning {
		r.state = StateTimedOut
	}
}

func (r *Runner) notify(ctx context.Context, rep models.Report) {
	if r.notifier == nil {
		return
	}
	r.notifier.Notify(ctx, rep)
}

// runAll executes the domain passes strictly sequentially. A fatal failure
// aborts only its own domain; later domains still run.
func (r *Runner) runAll(ctx context.Context) []models.Report {
	reports := make([]models.Report, 0, len(r.domains))
	for _, d := range r.domains {
		rep := r.runDomain(ctx, d)
		if rep.Error != "" {
			slog.Error("crawl: domain pass failed", "domain", d.Name, "error", rep.Error)
		} else {
			slog.Info("crawl: domain pass complete",
				"domain", d.Name,
				"checked", rep.Checked,
				"found", rep.Found,
				"changed", len(rep.Changed),
				"elapsed", rep.ElapsedSeconds)
		}
		reports = append(reports, rep)
	}
	return reports
}

// runDomain runs one full pass over a single domain: refresh, discovery,
// merge, diff, persist, report.
func (r *Runner) runDomain(ctx context.Context, d Domain) models.Report {
	started := time.Now()
	report := models.Report{Domain: d.Name, StartedAt: started, Changed: []string{}}

	snap, err := r.store.Load(d.Name)
	if err != nil {
		report.Error = err.Error()
		report.ElapsedSeconds = time.Since(started).Seconds()
		return report
	}
	before := snap.Clone()

	fatal := r.refresh(ctx, d, snap, &report)
	if fatal == nil {
		fatal = r.discover(ctx, d, snap, &report)
	}
	if fatal != nil {
		report.Error = fatal.Error()
	}

	// Persist whatever the pass actually fetched, even after a fatal abort:
	// merge only adds or replaces entries, so a partial pass can never
	// corrupt the snapshot.
	snap.UpdatedAt = time.Now()
	if err := r.store.Save(d.Name, snap); err != nil {
		slog.Error("crawl: snapshot save failed", "domain", d.Name, "error", err)
		if report.Error == "" {
			report.Error = err.Error()
		}
	} else if err := r.store.Backup(d.Name); err != nil {
		// Backups are best-effort.
		slog.Warn("crawl: snapshot backup failed", "domain", d.Name, "error", err)
	}

	report.Changed = Diff(before, snap, d.WatchFields)
	report.ElapsedSeconds = time.Since(started).Seconds()
	return report
}

// refresh re-fetches every known ID in batches. A successful fetch replaces
// the stored record wholesale; a miss leaves the prior record untouched,
// because stale-but-present beats deleting on a transient blip.
func (r *Runner) refresh(ctx context.Context, d Domain, snap *models.Snapshot, report *models.Report) error {
	known := snap.KnownIDs()
	for start := 0; start < len(known); start += r.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + r.cfg.BatchSize
		if end > len(known) {
			end = len(known)
		}
		batch := known[start:end]
		outcomes := r.fetchBatch(ctx, d, batch)
		for _, id := range batch {
			report.Checked++
			oc := outcomes[id]
			if oc.err != nil && passFatal(oc.err) {
				return oc.err
			}
			if oc.ok {
				snap.Put(oc.rec)
			}
		}
	}
	return nil
}

// discover probes sequential candidate IDs above the highest known ID until
// the new-discoveries cap or the ID ceiling is reached, or the running
// consecutive-miss counter trips. The counter resets on every hit and spans
// batch boundaries. When the limit trips mid-batch, the rest of the batch
// has already been fetched, so those IDs are still counted and their hits
// merged before discovery ends.
func (r *Runner) discover(ctx context.Context, d Domain, snap *models.Snapshot, report *models.Report) error {
	bounds := d.Bounds
	next := snap.MaxID() + 1
	if next < bounds.StartID {
		next = bounds.StartID
	}
	misses := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if bounds.MaxNewPerPass > 0 && report.Found >= bounds.MaxNewPerPass {
			return nil
		}
		if bounds.ConsecutiveMissLimit > 0 && misses >= bounds.ConsecutiveMissLimit {
			return nil
		}

		var ids []int
		for len(ids) < r.cfg.BatchSize {
			if bounds.MaxID > 0 && next > bounds.MaxID {
				break
			}
			ids = append(ids, next)
			next++
		}
		if len(ids) == 0 {
			return nil
		}

		outcomes := r.fetchBatch(ctx, d, ids)
		tripped := false
		for _, id := range ids {
			report.Checked++
			oc := outcomes[id]
			if oc.err != nil && passFatal(oc.err) {
				return oc.err
			}
			if oc.ok {
				snap.Put(oc.rec)
				report.Found++
				if !tripped {
					misses = 0
				}
				continue
			}
			misses++
			if bounds.ConsecutiveMissLimit > 0 && misses >= bounds.ConsecutiveMissLimit {
				tripped = true
			}
		}
		if tripped {
			return nil
		}
	}
}

type outcome struct {
	rec models.Record
	ok  bool
	err error
}

// fetchBatch runs the batch's fetches with the configured concurrency cap.
// Items within a batch may complete in any order; merge is commutative
// per-ID, so outcomes are applied by the caller in ID order regardless.
func (r *Runner) fetchBatch(ctx context.Context, d Domain, ids []int) map[int]outcome {
	sem := make(chan struct{}, r.cfg.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	out := make(map[int]outcome, len(ids))

	for _, id := range ids {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			rec, ok, err := r.fetcher.Fetch(ctx, d, id)
			if err != nil && !passFatal(err) {
				slog.Debug("crawl: fetch miss", "domain", d.Name, "id", id, "error", err)
			}
			mu.Lock()
			out[id] = outcome{rec: rec, ok: ok, err: err}
			mu.Unlock()
		}(id)
	}
	wg.Wait()
	return out
}
