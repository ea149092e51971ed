package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Hyllesen/scamvenge-telegram-bot/internal/logger"
)

// PipelineEvent describes the outcome of one screenshot passing through the pipeline.
type PipelineEvent struct {
	EventType   EventType     `json:"event_type"`
	Timestamp   time.Time     `json:"timestamp"`
	Reference   string        `json:"reference,omitempty"`
	Candidate   string        `json:"candidate,omitempty"`
	MatchedName string        `json:"matched_name,omitempty"`
	Score       float64       `json:"score,omitempty"`
	Duration    time.Duration `json:"duration"`
	DryRun      bool          `json:"dry_run,omitempty"`
	ErrorType   string        `json:"error_type,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// EventType represents the type of pipeline event
type EventType string

const (
	// ScreenshotRejected when no qualifying keyword was found
	ScreenshotRejected EventType = "screenshot_rejected"
	// NoCandidate when no detection could be a store name
	NoCandidate EventType = "no_candidate"
	// DuplicateFound when the candidate matched a stored name
	DuplicateFound EventType = "duplicate_found"
	// StoreRegistered when a new store was recorded (or would have been, in dry run)
	StoreRegistered EventType = "store_registered"
	// Evaluated when a read-only verdict was computed
	Evaluated EventType = "evaluated"
	// ProcessingFailed when OCR, fetch or persistence failed
	ProcessingFailed EventType = "processing_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event PipelineEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event PipelineEvent)
}

// LoggingObserver logs pipeline events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent logs the event at a level matching its outcome
func (o *LoggingObserver) OnEvent(ctx context.Context, event PipelineEvent) {
	fields := logrus.Fields{
		"event_type":  event.EventType,
		"reference":   event.Reference,
		"duration_ms": event.Duration.Milliseconds(),
	}
	if event.Candidate != "" {
		fields["candidate"] = event.Candidate
	}
	if event.MatchedName != "" {
		fields["matched_name"] = event.MatchedName
	}
	if event.Score > 0 {
		fields["score"] = event.Score
	}
	if event.DryRun {
		fields["dry_run"] = true
	}
	if event.ErrorType != "" {
		fields["error_type"] = event.ErrorType
	}
	if event.Error != "" {
		fields["error"] = event.Error
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case ScreenshotRejected:
		entry.Info("Not a store screenshot, skipping")
	case NoCandidate:
		entry.Warn("Could not extract a store name, skipping")
	case DuplicateFound:
		entry.Info("Duplicate store, not forwarding")
	case StoreRegistered:
		entry.Info("New store registered")
	case Evaluated:
		entry.Debug("Screenshot evaluated")
	case ProcessingFailed:
		entry.Error("Screenshot processing failed")
	default:
		entry.Info("Pipeline event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// PipelineMetrics is a snapshot of MetricsObserver counters.
type PipelineMetrics struct {
	Processed         int64         `json:"processed"`
	Rejected          int64         `json:"rejected"`
	NoCandidate       int64         `json:"no_candidate"`
	Duplicates        int64         `json:"duplicates"`
	Registered        int64         `json:"registered"`
	Evaluated         int64         `json:"evaluated"`
	Failed            int64         `json:"failed"`
	AvgProcessingTime time.Duration `json:"avg_processing_time_ns"`
}

// MetricsObserver counts pipeline outcomes
type MetricsObserver struct {
	mu                  sync.RWMutex
	counts              map[EventType]int64
	processed           int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{counts: make(map[EventType]int64)}
}

// OnEvent records the event
func (o *MetricsObserver) OnEvent(ctx context.Context, event PipelineEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.counts[event.EventType]++
	o.processed++
	o.totalProcessingTime += event.Duration
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// Snapshot returns current counters
func (o *MetricsObserver) Snapshot() PipelineMetrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	m := PipelineMetrics{
		Processed:   o.processed,
		Rejected:    o.counts[ScreenshotRejected],
		NoCandidate: o.counts[NoCandidate],
		Duplicates:  o.counts[DuplicateFound],
		Registered:  o.counts[StoreRegistered],
		Evaluated:   o.counts[Evaluated],
		Failed:      o.counts[ProcessingFailed],
	}
	if o.processed > 0 {
		m.AvgProcessingTime = o.totalProcessingTime / time.Duration(o.processed)
	}
	return m
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers the event to every observer in subscription order.
// Delivery is synchronous so counters are current when the pipeline call returns.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event PipelineEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, obs := range observers {
		notify(ctx, obs, event)
	}
}

func notify(ctx context.Context, obs Observer, event PipelineEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"observer": obs.GetObserverName(),
				"panic":    r,
			}).Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
