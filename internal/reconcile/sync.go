package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
)

// SyncError records one failed item from a bulk sync run.
type SyncError struct {
	SubscriptionID string `json:"subscription_id"`
	Reason         string `json:"reason"`
}

// Result summarizes a bulk sync run.
type Result struct {
	Subscriptions int         `json:"subscriptions"`
	Products      int         `json:"products"`
	Errors        []SyncError `json:"errors"`
}

// Err returns all per-item failures as one combined error, nil if the run
// was clean.
func (r *Result) Err() error {
	var err error
	for _, e := range r.Errors {
		err = multierr.Append(err, fmt.Errorf("subscription %s: %s", e.SubscriptionID, e.Reason))
	}
	return err
}

// SyncAll reconciles every remote subscription. A failure listing
// subscriptions is fatal: nothing can be enumerated. A failure on an
// individual item is recorded and the run continues.
func (e *Engine) SyncAll(ctx context.Context) (*Result, error) {
	subs, err := e.provider.ListSubscriptions(ctx)
	if err != nil {
		return nil, err
	}
	e.logger.Info("starting subscription sync", "remote_count", len(subs))

	result := &Result{}
	for _, sub := range subs {
		outcome, err := e.ReconcileSubscription(ctx, sub.ID)
		if err != nil {
			e.logger.Warn("sync item failed", "stripe_subscription_id", sub.ID, "error", err)
			result.Errors = append(result.Errors, SyncError{
				SubscriptionID: sub.ID,
				Reason:         err.Error(),
			})
			continue
		}
		result.Subscriptions++
		if outcome.ProductCreated {
			result.Products++
		}
	}

	e.logger.Info("subscription sync finished",
		"reconciled", result.Subscriptions,
		"products_created", result.Products,
		"errors", len(result.Errors),
	)
	return result, nil
}

// Status compares local row counts against provider list counts without
// reconciling anything.
type Status struct {
	LocalSubscriptions    int `json:"local_subscriptions"`
	LocalProducts         int `json:"local_products"`
	ProviderSubscriptions int `json:"provider_subscriptions"`
	ProviderProducts      int `json:"provider_products"`
}

// InSync reports whether local and provider counts match.
func (s *Status) InSync() bool {
	return s.LocalSubscriptions == s.ProviderSubscriptions &&
		s.LocalProducts == s.ProviderProducts
}

func (e *Engine) Status(ctx context.Context) (*Status, error) {
	localSubs, err := e.subscriptions.Count()
	if err != nil {
		return nil, err
	}
	localProducts, err := e.products.Count()
	if err != nil {
		return nil, err
	}
	remoteSubs, err := e.provider.ListSubscriptions(ctx)
	if err != nil {
		return nil, err
	}
	remoteProducts, err := e.provider.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{
		LocalSubscriptions:    localSubs,
		LocalProducts:         localProducts,
		ProviderSubscriptions: len(remoteSubs),
		ProviderProducts:      len(remoteProducts),
	}, nil
}
