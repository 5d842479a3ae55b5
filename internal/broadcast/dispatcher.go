// Package broadcast fans one message out to every live chat of a group under
// a rate-limited delivery loop.
package broadcast

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"tg_notify_relay_bot/internal/domain"
	"tg_notify_relay_bot/internal/logging"
)

// RatePerSecond is the delivery ceiling imposed by the chat platform: a burst
// of 20 sends goes out immediately, then the limiter paces further sends so a
// run over 20 chats pauses before the 21st delivery.
const RatePerSecond = 20

type membershipLister interface {
	ActiveMemberships(ctx context.Context, groupTitle string) ([]domain.Membership, error)
}

// Deliverer sends one message to one chat.
type Deliverer interface {
	Deliver(ctx context.Context, chatID int64, text string) error
}

type waiter interface {
	Wait(ctx context.Context) error
}

// Result summarizes one broadcast run.
type Result struct {
	Total     int
	Delivered int
	Failed    int
}

// Dispatcher iterates the active memberships of a group and delivers a message
// to each. The membership snapshot is taken once at run start; chats attached
// afterwards are not included, and there is no cancellation short of the
// context expiring.
type Dispatcher struct {
	memberships membershipLister
	deliverer   Deliverer
	limiter     waiter
	logger      *logrus.Entry
}

// New constructs a Dispatcher with the platform rate ceiling.
func New(memberships membershipLister, deliverer Deliverer, logger *logrus.Entry) *Dispatcher {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Dispatcher{
		memberships: memberships,
		deliverer:   deliverer,
		limiter:     rate.NewLimiter(rate.Limit(RatePerSecond), RatePerSecond),
		logger:      logger,
	}
}

// Broadcast delivers text to every active membership of the named group.
// Individual delivery failures are observed, counted, and skipped; they never
// abort the run and are not retried. The error return covers run-level
// failures only (unknown group, canceled context).
func (d *Dispatcher) Broadcast(ctx context.Context, groupTitle, text string) (Result, error) {
	if d == nil || d.memberships == nil || d.deliverer == nil {
		return Result{}, errors.New("dispatcher is not initialized")
	}
	if ctx == nil {
		return Result{}, errors.New("context is required")
	}

	snapshot, err := d.memberships.ActiveMemberships(ctx, groupTitle)
	if err != nil {
		return Result{}, err
	}

	result := Result{Total: len(snapshot)}

	for _, membership := range snapshot {
		if err := d.limiter.Wait(ctx); err != nil {
			return result, fmt.Errorf("rate limit wait: %w", err)
		}

		if err := d.deliverer.Deliver(ctx, membership.ChatID, text); err != nil {
			result.Failed++
			d.logger.WithFields(logging.Fields{
				"event":   "broadcast_delivery_failed",
				"group":   groupTitle,
				"chat_id": membership.ChatID,
			}).WithError(err).Warn("skipping undeliverable chat")
			continue
		}

		result.Delivered++
	}

	d.logger.WithFields(logging.Fields{
		"event":     "broadcast_complete",
		"group":     groupTitle,
		"total":     result.Total,
		"delivered": result.Delivered,
		"failed":    result.Failed,
	}).Info("broadcast run finished")

	return result, nil
}
