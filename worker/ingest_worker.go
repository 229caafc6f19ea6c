package worker

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"

	"cadence/ingest"
)

// IngestWorker polls the inbox for replies and bounces on a fixed interval.
type IngestWorker struct {
	Ingestor *ingest.Ingestor
	Interval time.Duration
	Logger   *logrus.Logger
}

func NewIngestWorker(ingestor *ingest.Ingestor, interval time.Duration, logger *logrus.Logger) *IngestWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &IngestWorker{
		Ingestor: ingestor,
		Interval: interval,
		Logger:   logger,
	}
}

func (iw *IngestWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	select {
	case <-ctx.Done():
		return
	case <-time.After(10 * time.Second):
	}

	iw.Logger.Info("Ingest worker started")

	// Run once immediately so suppressions are not delayed a full interval
	// after a restart.
	iw.runPass(ctx)

	ticker := time.NewTicker(iw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			iw.Logger.Info("Ingest worker shutting down...")
			return
		case <-ticker.C:
			iw.runPass(ctx)
		}
	}
}

func (iw *IngestWorker) runPass(ctx context.Context) {
	summary, err := iw.Ingestor.IngestReplies(ctx, nil)
	if err != nil {
		iw.Logger.WithField("error", err).Error("Ingestion pass failed")
		sentry.CaptureException(err)
		return
	}
	if summary.SuppressionsAdded > 0 {
		iw.Logger.WithFields(logrus.Fields{
			"suppressions": summary.SuppressionsAdded,
			"bounces":      summary.BouncesDetected,
			"complaints":   summary.ComplaintsDetected,
		}).Info("New suppressions recorded")
	}
}
