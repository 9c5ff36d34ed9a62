// Package app bundles one session's coordinators behind the operations the
// delivery surfaces (CLI, gRPC) call. It is transport-agnostic.
package app

import (
	"context"

	log "github.com/sirupsen/logrus"

	"jobmate/marketplace-client/internal/feed"
	"jobmate/marketplace-client/internal/model"
	"jobmate/marketplace-client/internal/payment"
	"jobmate/marketplace-client/internal/presenter"
	"jobmate/marketplace-client/internal/session"
	"jobmate/marketplace-client/internal/submission"
)

// ─── Client ──────────────────────────────────────────────────────────────────

// Client is the marketplace client for one session.
type Client struct {
	Feed       *feed.Coordinator
	Payment    *payment.Orchestrator
	Submission *submission.Coordinator

	session     session.Session
	amountLabel string
	feedOpts    presenter.FeedOptions
}

// New returns a Client. amountLabel is the fee as displayed ("0.001").
func New(f *feed.Coordinator, p *payment.Orchestrator, s *submission.Coordinator, sess session.Session, amountLabel string, feedOpts presenter.FeedOptions) *Client {
	return &Client{
		Feed:        f,
		Payment:     p,
		Submission:  s,
		session:     sess,
		amountLabel: amountLabel,
		feedOpts:    feedOpts,
	}
}

// ─── Views ───────────────────────────────────────────────────────────────────

// FeedView projects the current feed with the given panel toggles.
func (c *Client) FeedView(showRecommendations, showFilters bool) presenter.FeedView {
	opts := c.feedOpts
	opts.ShowRecommendations = showRecommendations
	opts.ShowFilters = showFilters
	return presenter.ProjectFeed(c.Feed.Snapshot(), c.session.Identity, opts)
}

// PostView projects the posting screen.
func (c *Client) PostView() presenter.PostView {
	return presenter.ProjectPost(c.Payment.Snapshot(), c.Submission.State(), c.amountLabel)
}

// ─── Actions ─────────────────────────────────────────────────────────────────

// Pay runs one payment attempt to completion.
func (c *Client) Pay(ctx context.Context) (payment.Receipt, error) {
	return c.Payment.InitiatePayment(ctx)
}

// Post parses the raw form and submits it with the current receipt. After a
// successful post the payment machine is reset for the next job.
func (c *Client) Post(ctx context.Context, form model.DraftForm) (model.JobPosting, error) {
	draft, err := model.ParseDraftForm(form)
	if err != nil {
		c.Submission.SetDraft(draft)
		return model.JobPosting{}, err
	}
	job, err := c.Submission.Submit(ctx, draft, c.Payment.Receipt())
	if err != nil {
		return model.JobPosting{}, err
	}
	if err := c.Payment.Reset(); err != nil {
		log.WithError(err).Warn("reset payment after post failed")
	}
	return job, nil
}
