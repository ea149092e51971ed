package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Hyllesen/scamvenge-telegram-bot/internal/analyzer"
	apperrors "github.com/Hyllesen/scamvenge-telegram-bot/internal/errors"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/lock"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/logger"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/matcher"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/observer"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/ocr"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/repository"
	"github.com/Hyllesen/scamvenge-telegram-bot/internal/storage"
)

// DedupService turns screenshots into a store name and a duplicate verdict.
type DedupService interface {
	// Evaluate computes a verdict without writing anything
	Evaluate(ctx context.Context, set analyzer.OcrResultSet, ref string) (*Verdict, error)

	// Register computes a verdict and records the store when it is new
	Register(ctx context.Context, set analyzer.OcrResultSet, ref string) (*Verdict, error)

	// ProcessImage runs OCR on encoded image bytes, then Register
	ProcessImage(ctx context.Context, image []byte, ref string) (*Verdict, error)

	// FetchAndProcess loads the image at imageRef, then ProcessImage
	FetchAndProcess(ctx context.Context, imageRef, ref string) (*Verdict, error)

	// ListStores returns stored records, oldest first
	ListStores(ctx context.Context, limit, offset int) ([]repository.StoreRecord, error)

	// Stats returns store and pipeline counters
	Stats(ctx context.Context) (*Stats, error)
}

// Verdict is the outcome for one screenshot.
type Verdict struct {
	Reference   string                  `json:"reference,omitempty"`
	StoreName   string                  `json:"store_name"`
	IsDuplicate bool                    `json:"is_duplicate"`
	MatchedName string                  `json:"matched_name,omitempty"`
	Score       float64                 `json:"score"`
	Record      *repository.StoreRecord `json:"record,omitempty"`
	DryRun      bool                    `json:"dry_run,omitempty"`
}

// Stats combines store totals with pipeline counters.
type Stats struct {
	TotalStores int64                     `json:"total_stores"`
	Pipeline    *observer.PipelineMetrics `json:"pipeline,omitempty"`
}

// Options tunes the pipeline.
type Options struct {
	// DryRun computes verdicts but never writes to the store.
	DryRun bool
	// LockTimeout bounds the wait for the registration lock.
	LockTimeout time.Duration
	// LeaseTTL is how long a held registration lock stays valid. Work under
	// the lock must finish before it lapses; 0 means the lock never lapses.
	LeaseTTL time.Duration
	// OCRTimeout bounds preprocessing plus recognition of one image.
	OCRTimeout time.Duration
	Preprocess ocr.PreprocessOptions
}

// DefaultOptions returns default pipeline options
func DefaultOptions() Options {
	return Options{
		LockTimeout: 10 * time.Second,
		OCRTimeout:  60 * time.Second,
		Preprocess:  ocr.DefaultPreprocessOptions(),
	}
}

// Dependencies are the collaborators of the pipeline. Detector, Source,
// Events and Metrics are optional.
type Dependencies struct {
	Analyzer analyzer.ScreenshotAnalyzer
	Matcher  *matcher.Matcher
	Store    repository.StoreRepository
	Locker   lock.Locker
	Detector ocr.TextDetector
	Source   storage.ImageSource
	Events   observer.Subject
	Metrics  *observer.MetricsObserver
}

type dedupService struct {
	deps Dependencies
	opts Options
}

// NewDedupService creates the pipeline service
func NewDedupService(deps Dependencies, opts Options) (DedupService, error) {
	if deps.Analyzer == nil || deps.Matcher == nil || deps.Store == nil {
		return nil, fmt.Errorf("analyzer, matcher and store are required")
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewMutexLocker()
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultOptions().LockTimeout
	}
	if opts.OCRTimeout <= 0 {
		opts.OCRTimeout = DefaultOptions().OCRTimeout
	}
	return &dedupService{deps: deps, opts: opts}, nil
}

// extract gates the result set and picks the store name. Both steps are pure,
// so they run before any lock is taken.
func (s *dedupService) extract(set analyzer.OcrResultSet, ref string) (string, error) {
	if !s.deps.Analyzer.IsQualifyingScreenshot(set) {
		return "", apperrors.NewInvalidImageError(
			fmt.Sprintf("none of %d detections contains a qualifying keyword", len(set)), nil).WithContext("", ref)
	}

	name, err := s.deps.Analyzer.ExtractStoreName(set)
	if err != nil {
		if appErr, ok := apperrors.As(err); ok {
			return "", appErr.WithContext("", ref)
		}
		return "", apperrors.NewNoCandidateError("store name extraction failed", err).WithContext("", ref)
	}
	return name, nil
}

// Evaluate computes a verdict without writing anything
func (s *dedupService) Evaluate(ctx context.Context, set analyzer.OcrResultSet, ref string) (*Verdict, error) {
	start := time.Now()

	name, err := s.extract(set, ref)
	if err != nil {
		s.publishError(ctx, err, ref, start)
		return nil, err
	}

	names, err := s.deps.Store.ListNames(ctx)
	if err != nil {
		err = annotate(err, name, ref)
		s.publishError(ctx, err, ref, start)
		return nil, err
	}

	v := s.verdict(name, ref, s.deps.Matcher.Best(name, names))
	s.publish(ctx, observer.PipelineEvent{
		EventType:   observer.Evaluated,
		Reference:   ref,
		Candidate:   name,
		MatchedName: v.MatchedName,
		Score:       v.Score,
		Duration:    time.Since(start),
	})
	return v, nil
}

// Register holds one global lock across the name snapshot and the insert so
// that two near-identical candidates cannot both be judged new.
func (s *dedupService) Register(ctx context.Context, set analyzer.OcrResultSet, ref string) (*Verdict, error) {
	start := time.Now()

	name, err := s.extract(set, ref)
	if err != nil {
		s.publishError(ctx, err, ref, start)
		return nil, err
	}

	v, err := s.checkAndInsert(ctx, name, ref)
	if err != nil {
		s.publishError(ctx, err, ref, start)
		return nil, err
	}

	event := observer.PipelineEvent{
		EventType:   observer.StoreRegistered,
		Reference:   ref,
		Candidate:   name,
		MatchedName: v.MatchedName,
		Score:       v.Score,
		DryRun:      v.DryRun,
		Duration:    time.Since(start),
	}
	if v.IsDuplicate {
		event.EventType = observer.DuplicateFound
	}
	s.publish(ctx, event)

	if !v.IsDuplicate && !v.DryRun {
		s.logStoreTotal(ctx)
	}
	return v, nil
}

// errLeaseExpired is the cancel cause once the registration lease is about to lapse.
var errLeaseExpired = errors.New("store lock lease expired")

func (s *dedupService) checkAndInsert(ctx context.Context, name, ref string) (*Verdict, error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.opts.LockTimeout)
	release, err := s.deps.Locker.Acquire(lockCtx, lock.StoreNamesKey)
	cancel()
	if err != nil {
		return nil, lockFailure(err).WithContext(name, ref)
	}
	defer release()

	ctx, cancel = s.leaseContext(ctx, time.Now())
	defer cancel()

	names, err := s.deps.Store.ListNames(ctx)
	if err != nil {
		return nil, leaseFailure(ctx, err, name, ref)
	}

	v := s.verdict(name, ref, s.deps.Matcher.Best(name, names))
	if v.IsDuplicate || v.DryRun {
		return v, nil
	}

	// Once the lease lapses another registrant may hold the lock.
	if err := ctx.Err(); err != nil {
		return nil, leaseFailure(ctx, err, name, ref)
	}

	rec, err := s.deps.Store.AddStore(ctx, name, sourceID(ref))
	if err != nil {
		return nil, leaseFailure(ctx, err, name, ref)
	}
	v.Record = rec
	return v, nil
}

// leaseContext ends the critical section a fifth of the TTL before the lease lapses.
func (s *dedupService) leaseContext(ctx context.Context, acquired time.Time) (context.Context, context.CancelFunc) {
	if s.opts.LeaseTTL <= 0 {
		return context.WithCancel(ctx)
	}
	deadline := acquired.Add(s.opts.LeaseTTL - s.opts.LeaseTTL/5)
	return context.WithDeadlineCause(ctx, deadline, errLeaseExpired)
}

func lockFailure(err error) *apperrors.AppError {
	if errors.Is(err, lock.ErrNotAcquired) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.NewTimeoutError("timed out waiting for the store lock", err)
	}
	return apperrors.NewNetworkError("store lock backend failed", err)
}

func leaseFailure(ctx context.Context, err error, name, ref string) error {
	if errors.Is(context.Cause(ctx), errLeaseExpired) {
		return apperrors.NewTimeoutError("store lock lease expired before registration finished", err).WithContext(name, ref)
	}
	return annotate(err, name, ref)
}

// ProcessImage runs OCR on encoded image bytes, then Register
func (s *dedupService) ProcessImage(ctx context.Context, image []byte, ref string) (*Verdict, error) {
	start := time.Now()

	set, err := s.recognize(ctx, image)
	if err != nil {
		err = annotate(err, "", ref)
		s.publishError(ctx, err, ref, start)
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"reference":  ref,
		"detections": len(set),
	}).Debug("OCR completed")

	return s.Register(ctx, set, ref)
}

func (s *dedupService) recognize(ctx context.Context, image []byte) (analyzer.OcrResultSet, error) {
	if s.deps.Detector == nil {
		return nil, apperrors.NewInternalError("no OCR engine configured", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.OCRTimeout)
	defer cancel()

	prepared, err := ocr.Preprocess(image, s.opts.Preprocess)
	if err != nil {
		return nil, err
	}

	set, err := s.deps.Detector.Detect(ctx, prepared.PNG)
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		return nil, apperrors.NewOCRError(s.deps.Detector.Name()+" detection failed", err)
	}
	return set, nil
}

// FetchAndProcess loads the image at imageRef, then ProcessImage
func (s *dedupService) FetchAndProcess(ctx context.Context, imageRef, ref string) (*Verdict, error) {
	if ref == "" {
		ref = imageRef
	}
	if s.deps.Source == nil {
		return nil, apperrors.NewInternalError("no image source configured", nil).WithContext("", ref)
	}

	start := time.Now()
	data, err := s.deps.Source.Fetch(ctx, imageRef)
	if err != nil {
		err = annotate(err, "", ref)
		s.publishError(ctx, err, ref, start)
		return nil, err
	}
	return s.ProcessImage(ctx, data, ref)
}

// ListStores returns stored records, oldest first
func (s *dedupService) ListStores(ctx context.Context, limit, offset int) ([]repository.StoreRecord, error) {
	return s.deps.Store.ListStores(ctx, limit, offset)
}

// Stats returns store and pipeline counters
func (s *dedupService) Stats(ctx context.Context) (*Stats, error) {
	st, err := s.deps.Store.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	out := &Stats{TotalStores: st.TotalStores}
	if s.deps.Metrics != nil {
		snap := s.deps.Metrics.Snapshot()
		out.Pipeline = &snap
	}
	return out, nil
}

func (s *dedupService) verdict(name, ref string, m matcher.Match) *Verdict {
	return &Verdict{
		Reference:   ref,
		StoreName:   name,
		IsDuplicate: m.IsDuplicate,
		MatchedName: m.MatchedName,
		Score:       m.Score,
		DryRun:      s.opts.DryRun,
	}
}

func (s *dedupService) logStoreTotal(ctx context.Context) {
	st, err := s.deps.Store.GetStats(ctx)
	if err != nil {
		logger.WithError(err).Warn("Failed to read store stats")
		return
	}
	logger.WithField("total_stores", st.TotalStores).Info("Store stats")
}

func (s *dedupService) publish(ctx context.Context, event observer.PipelineEvent) {
	if s.deps.Events == nil {
		return
	}
	s.deps.Events.NotifyObservers(ctx, event)
}

func (s *dedupService) publishError(ctx context.Context, err error, ref string, start time.Time) {
	event := observer.PipelineEvent{
		EventType: observer.ProcessingFailed,
		Reference: ref,
		Duration:  time.Since(start),
		Error:     err.Error(),
	}
	if appErr, ok := apperrors.As(err); ok {
		event.ErrorType = string(appErr.Type)
		event.Candidate = appErr.Candidate
		event.Error = appErr.Message
		switch appErr.Type {
		case apperrors.ErrorTypeInvalidImage:
			event.EventType = observer.ScreenshotRejected
		case apperrors.ErrorTypeNoCandidate:
			event.EventType = observer.NoCandidate
		}
	}
	s.publish(ctx, event)
}

// annotate attaches the candidate and reference to err, wrapping plain errors as internal.
func annotate(err error, candidate, ref string) error {
	if appErr, ok := apperrors.As(err); ok {
		return appErr.WithContext(candidate, ref)
	}
	return apperrors.NewInternalError("unexpected failure", err).WithContext(candidate, ref)
}

func sourceID(ref string) *string {
	if ref == "" {
		return nil
	}
	return &ref
}
