// Package worker persists run notifications published on the event bus.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/konsi/campaign-filter/internal/bus"
	"github.com/konsi/campaign-filter/internal/domain"
)

// RunStore persists run summaries.
type RunStore interface {
	SaveRun(ctx context.Context, run *domain.CampaignRun) error
}

// Topics the worker consumes.
var Topics = []string{domain.TopicRunCompleted, domain.TopicRunFailed}

// Worker records every published run in the repository.
type Worker struct {
	bus   domain.EventBus
	store RunStore

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc

	saved  atomic.Int64
	failed atomic.Int64
}

// NewWorker creates a worker reading from eventBus and writing to store.
func NewWorker(eventBus domain.EventBus, store RunStore) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    eventBus,
		store:  store,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the run topics. Subscriptions made before a failure
// are released.
func (w *Worker) Start() error {
	for _, topic := range Topics {
		sub, err := w.bus.Subscribe(w.ctx, topic, w.handleRun)
		if err != nil {
			w.unsubscribeAll()
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
		w.subscriptions = append(w.subscriptions, sub)
	}

	slog.Info("run worker started", "topics", Topics)
	return nil
}

func (w *Worker) handleRun(ctx context.Context, msg *domain.Message) error {
	run, err := bus.DecodeRun(msg)
	if err != nil {
		w.failed.Add(1)
		return err
	}
	if run.ID == "" {
		w.failed.Add(1)
		return errors.New("run notification without id")
	}

	if err := w.store.SaveRun(ctx, run); err != nil {
		w.failed.Add(1)
		slog.Error("failed to save run", "run_id", run.ID, "error", err)
		return err
	}

	w.saved.Add(1)
	slog.Debug("run recorded",
		"run_id", run.ID,
		"agreement", run.Agreement,
		"campaign", run.Campaign,
		"status", run.Status,
	)
	return nil
}

// Stop cancels the worker context and unsubscribes.
func (w *Worker) Stop() error {
	w.cancel()
	w.unsubscribeAll()
	slog.Info("run worker stopped")
	return nil
}

func (w *Worker) unsubscribeAll() {
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe", "topic", sub.Topic(), "error", err)
		}
	}
	w.subscriptions = nil
}

// Stats describes worker activity.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	Saved             int64    `json:"saved"`
	Failed            int64    `json:"failed"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		Saved:             w.saved.Load(),
		Failed:            w.failed.Load(),
	}
}
