package worker

import (
	"context"
	"time"

	"clinicbook/internal/events"
	"clinicbook/internal/metrics"
	"clinicbook/internal/models"

	"github.com/rs/zerolog"
)

// CatalogSource is the slice of the platform client the worker needs.
type CatalogSource interface {
	RefreshClinics(ctx context.Context) ([]models.Clinic, error)
}

// CatalogWorker keeps the cached clinic catalog warm so the wizard's first
// screen does not pay the platform round trip. Each cycle retries with
// exponential backoff before giving up until the next tick.
type CatalogWorker struct {
	source      CatalogSource
	interval    time.Duration
	retryPolicy RetryPolicy
	bus         *events.EventBus
	logger      *zerolog.Logger
}

func NewCatalogWorker(source CatalogSource, interval time.Duration, retry RetryPolicy, bus *events.EventBus, logger *zerolog.Logger) *CatalogWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 3
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	return &CatalogWorker{
		source:      source,
		interval:    interval,
		retryPolicy: retry,
		bus:         bus,
		logger:      logger,
	}
}

// Start runs the refresh loop; stops when ctx is done. The first refresh
// happens immediately.
func (w *CatalogWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("interval", w.interval).Msg("Catalog worker started")
	defer w.logger.Info().Msg("Catalog worker stopped")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.refreshOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.refreshOnce(ctx)
		}
	}
}

func (w *CatalogWorker) refreshOnce(ctx context.Context) {
	started := time.Now()

	clinics, err := w.refreshWithRetry(ctx)
	if err != nil {
		metrics.IncCatalogFetch("clinics", "error")
		w.logger.Error().Err(err).Msg("Catalog refresh failed")
		_ = w.bus.PublishJSON(models.EventCatalogRefreshed, events.CatalogEventPayload{
			Duration: time.Since(started).String(),
			Error:    err.Error(),
		})
		return
	}

	metrics.IncCatalogFetch("clinics", "ok")
	w.logger.Info().Int("clinics", len(clinics)).Dur("took", time.Since(started)).Msg("Catalog refreshed")
	_ = w.bus.PublishJSON(models.EventCatalogRefreshed, events.CatalogEventPayload{
		Clinics:  len(clinics),
		Duration: time.Since(started).String(),
	})
}

func (w *CatalogWorker) refreshWithRetry(ctx context.Context) ([]models.Clinic, error) {
	var lastErr error
	for attempt := 1; attempt <= w.retryPolicy.MaxRetries; attempt++ {
		clinics, err := w.source.RefreshClinics(ctx)
		if err == nil {
			return clinics, nil
		}
		lastErr = err

		if attempt == w.retryPolicy.MaxRetries {
			break
		}

		delay := w.retryPolicy.NextDelay(attempt)
		w.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("Catalog refresh attempt failed")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}
