package worker

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"

	"cadence/sequence"
)

// SequenceWorker drives the orchestration engine on a fixed interval.
type SequenceWorker struct {
	Engine   *sequence.Engine
	Interval time.Duration
	Logger   *logrus.Logger
}

func NewSequenceWorker(engine *sequence.Engine, interval time.Duration, logger *logrus.Logger) *SequenceWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SequenceWorker{
		Engine:   engine,
		Interval: interval,
		Logger:   logger,
	}
}

func (sw *SequenceWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	select {
	case <-ctx.Done():
		return
	case <-time.After(10 * time.Second):
	}

	sw.Logger.Info("Sequence worker started")

	ticker := time.NewTicker(sw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sw.Logger.Info("Sequence worker shutting down...")
			return
		case <-ticker.C:
			sw.runPass(ctx)
		}
	}
}

func (sw *SequenceWorker) runPass(ctx context.Context) {
	summary, err := sw.Engine.ProcessDueSequences(ctx)
	if err != nil {
		sw.Logger.WithField("error", err).Error("Orchestration pass failed")
		sentry.CaptureException(err)
		return
	}
	if summary.Errors > 0 {
		sw.Logger.WithFields(logrus.Fields{
			"errors": summary.Errors,
			"sent":   summary.Sent,
		}).Warn("Orchestration pass finished with record errors")
	}
}
