package crawler

import (
	"log/slog"

	"github.com/nao1215/hyperscrape/internal/model"
)

// Observer receives crawl progress. Calls are made from the goroutine
// running the crawl, except OnFailure, which may be called concurrently
// when file reads run in parallel.
type Observer interface {
	// OnStep is called after a key is drained, before its drive is opened.
	OnStep(key model.Key, m model.Metrics)
	// OnFailure is called for every recoverable failure.
	OnFailure(err *OpError)
	// OnFinish is called once with the final report.
	OnFinish(report *model.CrawlReport)
}

// Recorder receives counters for metrics export.
// Implementations must be safe for concurrent use.
type Recorder interface {
	DriveVisited(status string)
	FrontierSize(pending, visited int)
	FileRead(ok bool)
	KeysDiscovered(n int)
	DriveMounted()
	Failure(kind string)
}

// NopObserver ignores all events.
type NopObserver struct{}

// OnStep implements Observer.
func (NopObserver) OnStep(model.Key, model.Metrics) {}

// OnFailure implements Observer.
func (NopObserver) OnFailure(*OpError) {}

// OnFinish implements Observer.
func (NopObserver) OnFinish(*model.CrawlReport) {}

// nopRecorder is used when no Recorder is configured.
type nopRecorder struct{}

func (nopRecorder) DriveVisited(string)   {}
func (nopRecorder) FrontierSize(int, int) {}
func (nopRecorder) FileRead(bool)         {}
func (nopRecorder) KeysDiscovered(int)    {}
func (nopRecorder) DriveMounted()         {}
func (nopRecorder) Failure(string)        {}

// LogObserver reports progress as structured log lines.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates an Observer that logs to logger.
// Steps are logged at Info, failures at Warn.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger}
}

// OnStep implements Observer.
func (o *LogObserver) OnStep(key model.Key, m model.Metrics) {
	o.logger.Info("crawling drive",
		"key", key.String(),
		"pending", m.Pending,
		"visited", m.Visited,
	)
}

// OnFailure implements Observer.
func (o *LogObserver) OnFailure(err *OpError) {
	o.logger.Warn("crawl step failed",
		"kind", err.Kind.String(),
		"key", err.Key.String(),
		"path", err.Path,
		"error", err.Err,
	)
}

// OnFinish implements Observer.
func (o *LogObserver) OnFinish(report *model.CrawlReport) {
	attrs := []any{
		"visited", report.Metrics.Visited,
		"elapsed", report.Metrics.ElapsedHuman(),
	}
	if report.MountMode {
		attrs = append(attrs, "mounted", report.Metrics.Mounted)
	}
	o.logger.Info("crawl finished", attrs...)
}

// multiObserver fans events out to several observers.
type multiObserver []Observer

// MultiObserver returns an Observer that forwards every event to all of
// observers, in order. Nil observers are skipped.
func MultiObserver(observers ...Observer) Observer {
	out := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (m multiObserver) OnStep(key model.Key, metrics model.Metrics) {
	for _, o := range m {
		o.OnStep(key, metrics)
	}
}

func (m multiObserver) OnFailure(err *OpError) {
	for _, o := range m {
		o.OnFailure(err)
	}
}

func (m multiObserver) OnFinish(report *model.CrawlReport) {
	for _, o := range m {
		o.OnFinish(report)
	}
}
