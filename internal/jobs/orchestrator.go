package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"shelfpair/internal/config"
	"shelfpair/internal/insight"
	"shelfpair/internal/logging"
	"shelfpair/internal/pairing"
)

// chunkParallelism bounds how many claimed chunks one invocation works on
// concurrently. Classification throughput is further capped by the
// classifier's own in-flight gate.
const chunkParallelism = 3

// Classifier produces insights for a batch of source images.
type Classifier interface {
	Classify(ctx context.Context, images []insight.SourceImage) ([]insight.ImageInsight, error)
}

// Fetcher resolves an image identifier to a data URL, using the job's
// credential for remote sources.
type Fetcher interface {
	Fetch(ctx context.Context, identifier, credential string) (string, error)
}

// Orchestrator drives pairing jobs to completion across repeated bounded
// invocations.
type Orchestrator struct {
	cfg        *config.Config
	store      *Store
	classifier Classifier
	fetcher    Fetcher
	engine     *pairing.Engine
	logger     *slog.Logger

	// mergeMu serializes the insight read-modify-write between overlapping
	// invocations in this process; the store file lock keeps other
	// processes out.
	mergeMu sync.Mutex
}

func NewOrchestrator(cfg *config.Config, store *Store, classifier Classifier, fetcher Fetcher, engine *pairing.Engine, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		cfg:        cfg,
		store:      store,
		classifier: classifier,
		fetcher:    fetcher,
		engine:     engine,
		logger:     logging.NewComponentLogger(logger, "orchestrator"),
	}
}

// Submit creates a new pending job for the given image identifiers.
func (o *Orchestrator) Submit(ctx context.Context, owner string, images []string, credential string) (*Job, error) {
	ttl := time.Duration(o.cfg.Jobs.JobTTLHours) * time.Hour
	job, err := o.store.Create(ctx, owner, images, credential, ttl)
	if err != nil {
		return nil, err
	}
	o.logger.Info("job submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.Int("total_images", job.TotalImages))
	return job, nil
}

type chunkResult struct {
	start    int
	insights []insight.ImageInsight
	err      error
}

// ProcessInvocation performs one bounded slice of work on a job: claim up
// to the configured number of unclassified chunks, classify them in
// parallel, fold the results into the job record, and finalize once every
// image is processed. It returns true when the job still needs another
// invocation.
func (o *Orchestrator) ProcessInvocation(ctx context.Context, jobID string) (bool, error) {
	if _, err := o.store.PurgeExpired(ctx); err != nil {
		o.logger.Warn("purge expired state", logging.Error(err))
	}

	job, err := o.store.Get(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, fmt.Errorf("job %s not found", jobID)
	}
	if job.State.Terminal() {
		return false, nil
	}

	if job.State == StatePending {
		job.State = StateProcessing
		if err := o.store.Update(ctx, job); err != nil {
			return false, err
		}
	}

	if !job.Done() {
		if err := o.processChunks(ctx, job); err != nil {
			return true, err
		}
		job, err = o.store.Get(ctx, jobID)
		if err != nil {
			return true, err
		}
		if job == nil {
			return false, fmt.Errorf("job %s disappeared mid-invocation", jobID)
		}
	}

	if !job.Done() {
		return true, nil
	}
	if err := o.finalize(ctx, job); err != nil {
		return false, err
	}
	return false, nil
}

// processChunks claims and classifies up to MaxChunksPerInvocation chunks.
// A failed chunk leaves processedCount untouched and surfaces its error;
// other chunks continue.
func (o *Orchestrator) processChunks(ctx context.Context, job *Job) error {
	classified := make(map[string]struct{}, len(job.Insights))
	for _, ins := range job.Insights {
		classified[ins.Key] = struct{}{}
	}

	chunkSize := o.cfg.Jobs.ChunkSize
	lockTTL := time.Duration(o.cfg.Jobs.ChunkLockTTLSeconds) * time.Second

	// Locks stay held until the merged progress is persisted, so a chunk is
	// never reclaimable while its insights are still in flight. TTL expiry
	// remains the crash backstop.
	var claimed []int
	defer func() {
		for _, start := range claimed {
			if err := o.store.ReleaseChunkLock(context.WithoutCancel(ctx), job.ID, start); err != nil {
				o.logger.Warn("release chunk lock",
					logging.String(logging.FieldJobID, job.ID),
					logging.Int("chunk_start", start),
					logging.Error(err))
			}
		}
	}()
	for start := 0; start < len(job.Images); start += chunkSize {
		if len(claimed) >= o.cfg.Jobs.MaxChunksPerInvocation {
			break
		}
		if o.chunkDone(job, start, chunkSize, classified) {
			continue
		}
		ok, err := o.store.AcquireChunkLock(ctx, job.ID, start, lockTTL)
		if err != nil {
			return err
		}
		if !ok {
			// Another invocation holds this chunk; skip it.
			continue
		}
		claimed = append(claimed, start)
	}
	if len(claimed) == 0 {
		return nil
	}

	results := make([]chunkResult, len(claimed))
	var wg sync.WaitGroup
	gate := make(chan struct{}, chunkParallelism)
	for i, start := range claimed {
		wg.Add(1)
		go func(slot, start int) {
			defer wg.Done()
			gate <- struct{}{}
			defer func() { <-gate }()
			insights, err := o.classifyChunk(ctx, job, start, chunkSize)
			results[slot] = chunkResult{start: start, insights: insights, err: err}
		}(i, start)
	}
	wg.Wait()

	var firstErr error
	var fresh []insight.ImageInsight
	for _, res := range results {
		if res.err != nil {
			o.logger.Error("chunk classification failed",
				logging.String(logging.FieldJobID, job.ID),
				logging.Int("chunk_start", res.start),
				logging.Error(res.err))
			if firstErr == nil {
				firstErr = fmt.Errorf("chunk at %d: %w", res.start, res.err)
			}
			continue
		}
		fresh = append(fresh, res.insights...)
	}

	if len(fresh) > 0 {
		if err := o.accumulate(ctx, job.ID, fresh); err != nil {
			return err
		}
	}
	return firstErr
}

func (o *Orchestrator) chunkDone(job *Job, start, chunkSize int, classified map[string]struct{}) bool {
	end := start + chunkSize
	if end > len(job.Images) {
		end = len(job.Images)
	}
	for _, key := range job.Images[start:end] {
		if _, ok := classified[key]; !ok {
			return false
		}
	}
	return true
}

func (o *Orchestrator) classifyChunk(ctx context.Context, job *Job, start, chunkSize int) ([]insight.ImageInsight, error) {
	end := start + chunkSize
	if end > len(job.Images) {
		end = len(job.Images)
	}

	sources := make([]insight.SourceImage, 0, end-start)
	for _, key := range job.Images[start:end] {
		dataURL, err := o.fetcher.Fetch(ctx, key, job.AccessCredential)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", key, err)
		}
		sources = append(sources, insight.SourceImage{Key: key, DataURL: dataURL})
	}
	return o.classifier.Classify(ctx, sources)
}

// accumulate folds freshly classified insights into the job record with a
// read-modify-write. Insights are deduplicated by image key and the
// processed count only ever moves forward.
func (o *Orchestrator) accumulate(ctx context.Context, jobID string, fresh []insight.ImageInsight) error {
	o.mergeMu.Lock()
	defer o.mergeMu.Unlock()

	job, err := o.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %s not found during accumulate", jobID)
	}

	byKey := make(map[string]insight.ImageInsight, len(job.Insights)+len(fresh))
	for _, ins := range job.Insights {
		byKey[ins.Key] = ins
	}
	for _, ins := range fresh {
		if _, exists := byKey[ins.Key]; !exists {
			byKey[ins.Key] = ins
		}
	}

	merged := make([]insight.ImageInsight, 0, len(byKey))
	for _, ins := range byKey {
		merged = append(merged, ins)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Key < merged[j].Key })

	job.Insights = merged
	if count := len(merged); count > job.ProcessedCount {
		job.ProcessedCount = count
	}
	if job.ProcessedCount > job.TotalImages {
		job.ProcessedCount = job.TotalImages
	}

	if err := o.store.Update(ctx, job); err != nil {
		return err
	}
	o.logger.Info("chunk progress persisted",
		logging.String(logging.FieldJobID, job.ID),
		logging.Int("processed", job.ProcessedCount),
		logging.Int("total", job.TotalImages))
	return nil
}

// finalize runs the pairing engine over the complete classification set,
// persists the result, clears the access credential, and marks the job
// completed.
func (o *Orchestrator) finalize(ctx context.Context, job *Job) error {
	result := o.engine.Build(ctx, job.Insights)

	payload, err := json.Marshal(result)
	if err != nil {
		return o.fail(ctx, job, fmt.Errorf("marshal result: %w", err))
	}

	job.ResultJSON = string(payload)
	job.State = StateCompleted
	job.ErrorMessage = ""
	job.AccessCredential = ""
	if err := o.store.Update(ctx, job); err != nil {
		return err
	}

	o.logger.Info("job completed",
		logging.String(logging.FieldJobID, job.ID),
		logging.Int("pairs", len(result.Pairs)),
		logging.Int("singletons", len(result.Singletons)))
	return nil
}

// fail marks the job failed with the given error. The credential is always
// cleared, and the error message never includes it.
func (o *Orchestrator) fail(ctx context.Context, job *Job, cause error) error {
	job.State = StateFailed
	job.ErrorMessage = cause.Error()
	job.AccessCredential = ""
	if err := o.store.Update(ctx, job); err != nil {
		return fmt.Errorf("mark failed: %w (original: %v)", err, cause)
	}
	o.logger.Error("job failed",
		logging.String(logging.FieldJobID, job.ID),
		logging.Error(cause))
	return cause
}

// Fail transitions a job to failed from outside the invocation path, for
// operator intervention. Terminal jobs are left untouched.
func (o *Orchestrator) Fail(ctx context.Context, jobID string, reason string) error {
	job, err := o.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %s not found", jobID)
	}
	if job.State.Terminal() {
		return nil
	}
	job.State = StateFailed
	job.ErrorMessage = reason
	job.AccessCredential = ""
	if err := o.store.Update(ctx, job); err != nil {
		return err
	}
	o.logger.Warn("job failed by operator",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("reason", reason))
	return nil
}
