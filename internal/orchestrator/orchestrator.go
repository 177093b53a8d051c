package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-insight/internal/model"
)

// Errors recognizable by the transport layer.
var (
	ErrNoActiveRecord = errors.New("orchestrator: no active record")
	ErrNoPreview      = errors.New("orchestrator: active record has no preview")
)

// cleanPrefix tags the filename of a sanitized download.
const cleanPrefix = "clean_"

// metadataExtractor pulls container metadata out of an asset. A nil result
// means the asset carries none; the call never fails.
type metadataExtractor interface {
	Extract(asset model.Asset) *model.MetadataRecord
}

// payloadEncoder converts an asset into the transport payload for the
// analysis service. Its error is the only fault that degrades a record.
type payloadEncoder interface {
	Encode(ctx context.Context, asset model.Asset) (model.Payload, error)
}

// analysisClient submits a payload for analysis. The returned record is
// always usable; a non-nil error is a failure signal worth logging, not a
// fault to escalate.
type analysisClient interface {
	Analyze(ctx context.Context, p model.Payload) (model.AnalysisRecord, error)
}

// imageSanitizer produces a metadata-free re-encoded copy of image bytes.
type imageSanitizer interface {
	Strip(ctx context.Context, data []byte, targetFormat string) ([]byte, error)
}

// previewStore holds the revocable preview object derived from each asset.
type previewStore interface {
	Create(ctx context.Context, id uuid.UUID, asset model.Asset) (string, error)
	Open(ctx context.Context, objectName string) (io.ReadCloser, error)
	Remove(ctx context.Context, objectName string) error
}

// eventProducer publishes record lifecycle events.
type eventProducer interface {
	Produce(ctx context.Context, ev model.RecordEvent) error
}

// Orchestrator owns at most one active image record and is its only
// writer. It sequences the pipeline stages over the record: metadata
// extraction is merged before analysis starts, an encode fault degrades the
// record, an analysis fault is absorbed by the client's fallback. Fields
// merge at most once; terminal states are final. Starting a new record
// retires the previous one and releases its preview exactly once.
type Orchestrator struct {
	extractor metadataExtractor
	encoder   payloadEncoder
	analyzer  analysisClient
	sanitizer imageSanitizer
	previews  previewStore
	events    eventProducer

	mu     sync.Mutex
	active *model.ImageRecord
}

// New creates an Orchestrator with the given collaborators.
func New(
	extractor metadataExtractor,
	encoder payloadEncoder,
	analyzer analysisClient,
	sanitizer imageSanitizer,
	previews previewStore,
	events eventProducer,
) *Orchestrator {
	return &Orchestrator{
		extractor: extractor,
		encoder:   encoder,
		analyzer:  analyzer,
		sanitizer: sanitizer,
		previews:  previews,
		events:    events,
	}
}

// StartNew retires the currently active record, installs a fresh one for
// the asset and launches its pipeline. It returns the initial snapshot; the
// record then advances in the background and is observable through Current.
func (o *Orchestrator) StartNew(ctx context.Context, asset model.Asset) (model.ImageRecord, error) {
	if len(asset.Bytes) == 0 {
		return model.ImageRecord{}, fmt.Errorf("orchestrator: asset has no bytes")
	}

	rec := &model.ImageRecord{
		ID:        uuid.New(),
		Asset:     asset,
		State:     model.StateExtractingMetadata,
		CreatedAt: time.Now().UTC(),
	}

	// A record without a preview is still fully processable, so preview
	// creation failures are logged and absorbed.
	if objectName, err := o.previews.Create(ctx, rec.ID, asset); err != nil {
		zlog.Logger.Warn().Err(err).
			Str("record_id", rec.ID.String()).
			Msg("failed to create preview object")
	} else {
		rec.PreviewPath = objectName
	}

	o.mu.Lock()
	retired := o.takeActiveLocked()
	o.active = rec
	snapshot := *rec
	o.mu.Unlock()

	o.releasePreview(retired)

	go o.run(rec.ID, asset)

	return snapshot, nil
}

// Current returns a snapshot of the active record.
func (o *Orchestrator) Current() (model.ImageRecord, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.active == nil {
		return model.ImageRecord{}, false
	}
	return *o.active, true
}

// Discard retires the active record and reports whether one existed. Any
// pipeline work still in flight for it finishes in the background and its
// results are discarded at merge time.
func (o *Orchestrator) Discard() bool {
	o.mu.Lock()
	existed := o.active != nil
	retired := o.takeActiveLocked()
	o.mu.Unlock()

	o.releasePreview(retired)

	return existed
}

// CleanCopy sanitizes the active record's asset into a metadata-free JPEG
// download. Without an active record it returns ErrNoActiveRecord and does
// nothing else.
func (o *Orchestrator) CleanCopy(ctx context.Context) (string, []byte, error) {
	o.mu.Lock()
	if o.active == nil {
		o.mu.Unlock()
		return "", nil, ErrNoActiveRecord
	}
	asset := o.active.Asset
	o.mu.Unlock()

	data, err := o.sanitizer.Strip(ctx, asset.Bytes, "jpeg")
	if err != nil {
		return "", nil, fmt.Errorf("clean copy: %w", err)
	}

	return cleanFilename(asset.Filename), data, nil
}

// OpenPreview streams the active record's preview object.
func (o *Orchestrator) OpenPreview(ctx context.Context) (io.ReadCloser, error) {
	o.mu.Lock()
	if o.active == nil {
		o.mu.Unlock()
		return nil, ErrNoActiveRecord
	}
	objectName := o.active.PreviewPath
	o.mu.Unlock()

	if objectName == "" {
		return nil, ErrNoPreview
	}
	return o.previews.Open(ctx, objectName)
}

// run executes the pipeline stages for one record. The goroutine is never
// canceled when the record is superseded; stale results are discarded at
// merge time instead.
func (o *Orchestrator) run(id uuid.UUID, asset model.Asset) {
	ctx := context.Background()

	meta := o.extractor.Extract(asset)
	if meta == nil {
		zlog.Logger.Info().
			Str("record_id", id.String()).
			Str("filename", asset.Filename).
			Msg("no container metadata found")
	}
	if !o.mergeMetadata(id, meta) {
		return
	}

	p, err := o.encoder.Encode(ctx, asset)
	if err != nil {
		o.degrade(id, fmt.Errorf("encode asset: %w", err))
		return
	}

	result, err := o.analyzer.Analyze(ctx, p)
	if err != nil {
		// The returned record is the fallback and still completes the
		// pipeline; the error is a signal for operators only.
		zlog.Logger.Warn().Err(err).
			Str("record_id", id.String()).
			Msg("analysis fell back")
	}

	o.mergeAnalysis(id, result)
}

// mergeMetadata installs the extraction result and advances the record to
// the analyzing state. It reports false when the record was superseded.
func (o *Orchestrator) mergeMetadata(id uuid.UUID, meta *model.MetadataRecord) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.active == nil || o.active.ID != id {
		return false
	}
	if o.active.Metadata == nil {
		o.active.Metadata = meta
	}
	o.active.State = model.StateAnalyzing
	return true
}

// mergeAnalysis installs the analysis result and completes the record.
// Results for superseded records are dropped.
func (o *Orchestrator) mergeAnalysis(id uuid.UUID, result model.AnalysisRecord) {
	o.mu.Lock()
	if o.active == nil || o.active.ID != id {
		o.mu.Unlock()
		zlog.Logger.Info().
			Str("record_id", id.String()).
			Msg("discarding analysis result for superseded record")
		return
	}

	if o.active.Analysis == nil {
		res := result
		o.active.Analysis = &res
	}
	now := time.Now().UTC()
	o.active.State = model.StateComplete
	o.active.FinishedAt = &now
	ev := terminalEvent(o.active)
	o.mu.Unlock()

	o.emit(ev)
}

// degrade marks the record as terminally failed with the given cause.
func (o *Orchestrator) degrade(id uuid.UUID, cause error) {
	o.mu.Lock()
	if o.active == nil || o.active.ID != id {
		o.mu.Unlock()
		zlog.Logger.Info().
			Str("record_id", id.String()).
			Msg("discarding failure for superseded record")
		return
	}

	now := time.Now().UTC()
	o.active.State = model.StateDegraded
	o.active.ErrorDetail = cause.Error()
	o.active.FinishedAt = &now
	ev := terminalEvent(o.active)
	o.mu.Unlock()

	zlog.Logger.Error().Err(cause).
		Str("record_id", id.String()).
		Msg("record degraded")

	o.emit(ev)
}

// takeActiveLocked detaches the active record and hands back its preview
// path. Clearing the path under the lock is what makes the later release
// happen exactly once. Callers hold mu.
func (o *Orchestrator) takeActiveLocked() string {
	if o.active == nil {
		return ""
	}
	objectName := o.active.PreviewPath
	o.active.PreviewPath = ""
	o.active = nil
	return objectName
}

// releasePreview removes a retired record's preview object. The removal
// uses a background context so a canceled request cannot leak the object.
func (o *Orchestrator) releasePreview(objectName string) {
	if objectName == "" {
		return
	}
	if err := o.previews.Remove(context.Background(), objectName); err != nil {
		zlog.Logger.Warn().Err(err).
			Str("preview", objectName).
			Msg("failed to release preview object")
	}
}

// emit publishes a terminal record event. Emission failures never affect
// the record itself.
func (o *Orchestrator) emit(ev model.RecordEvent) {
	if err := o.events.Produce(context.Background(), ev); err != nil {
		zlog.Logger.Warn().Err(err).
			Str("record_id", ev.RecordID.String()).
			Msg("failed to publish record event")
	}
}

// terminalEvent builds the lifecycle event for a record that just reached
// a terminal state. Callers hold mu.
func terminalEvent(rec *model.ImageRecord) model.RecordEvent {
	ev := model.RecordEvent{
		Event:      model.EventRecordComplete,
		RecordID:   rec.ID,
		Filename:   rec.Asset.Filename,
		Source:     rec.Asset.Source,
		State:      rec.State,
		FinishedAt: *rec.FinishedAt,
	}
	if rec.State == model.StateDegraded {
		ev.Event = model.EventRecordDegraded
		ev.ErrorDetail = rec.ErrorDetail
	}
	if rec.Analysis != nil {
		ev.SceneType = rec.Analysis.SceneType
		ev.PeopleCount = rec.Analysis.PeopleCount
		ev.IsSafe = rec.Analysis.IsSafe
	}
	return ev
}

// cleanFilename names the sanitized download after the original file.
func cleanFilename(original string) string {
	original = filepath.Base(original)
	if original == "" || original == "." {
		original = "image.jpg"
	}
	return cleanPrefix + original
}
