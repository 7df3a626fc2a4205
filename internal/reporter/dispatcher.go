package reporter

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Dispatcher sends reports through a primary sender and keeps a copy in
// the fallback when delivery fails.
type Dispatcher struct {
	primary  Sender
	fallback Sender
	notifier Notifier
	logger   *zap.Logger
}

// NewDispatcher wires the senders. fallback and notifier may be nil.
func NewDispatcher(primary, fallback Sender, notifier Notifier, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		primary:  primary,
		fallback: fallback,
		notifier: notifier,
		logger:   logger,
	}
}

// Report returns true only when the primary sender confirmed delivery.
// Failures never propagate: the payload goes to the fallback instead.
func (d *Dispatcher) Report(ctx context.Context, p Payload) bool {
	result, err := d.primary.Send(ctx, p)
	if err == nil && result != nil && result.Success {
		d.notify(ctx, p)
		return true
	}

	if err == nil {
		err = fmt.Errorf("callback reported failure")
	}
	d.logger.Error("Report delivery failed",
		zap.String("session_id", p.SessionID),
		zap.Error(err))

	if d.fallback != nil {
		// The request context may already be spent on retries.
		if _, ferr := d.fallback.Send(context.WithoutCancel(ctx), p); ferr != nil {
			d.logger.Error("Failed to write report fallback",
				zap.String("session_id", p.SessionID),
				zap.Error(ferr))
		}
	}
	return false
}

func (d *Dispatcher) notify(ctx context.Context, p Payload) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.Notify(ctx, p); err != nil {
		d.logger.Warn("Failed to notify operator",
			zap.String("session_id", p.SessionID),
			zap.Error(err))
	}
}
