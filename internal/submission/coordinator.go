// Package submission turns a draft plus a confirmed payment receipt into
// exactly one created job posting.
package submission

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"jobmate/marketplace-client/internal/apperr"
	"jobmate/marketplace-client/internal/events"
	"jobmate/marketplace-client/internal/model"
	"jobmate/marketplace-client/internal/payment"
	"jobmate/marketplace-client/internal/session"
)

// JobCreator performs the authenticated create call.
type JobCreator interface {
	CreateJob(ctx context.Context, req model.CreateJobRequest, token string) (model.JobPosting, error)
}

// Notifier receives EVENT_JOB_POSTED.
type Notifier interface {
	Publish(ctx context.Context, event events.Event, payload any)
}

// State is what the posting view renders.
type State struct {
	Draft          model.JobDraft
	Submitting     bool
	Message        string
	NavigateToFeed bool
	Posted         *model.JobPosting
}

// Coordinator owns the draft and the single in-flight create call.
type Coordinator struct {
	api      JobCreator
	session  session.Session
	journal  Journal
	spent    *MemoryJournal // hashes posted by this process, even if journal writes failed
	notifier Notifier

	mu    sync.Mutex
	state State
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithJournal replaces the in-memory receipt journal.
func WithJournal(j Journal) Option { return func(c *Coordinator) { c.journal = j } }

// WithNotifier attaches an event observer.
func WithNotifier(n Notifier) Option { return func(c *Coordinator) { c.notifier = n } }

// NewCoordinator returns a coordinator bound to one session.
func NewCoordinator(api JobCreator, sess session.Session, opts ...Option) *Coordinator {
	c := &Coordinator{api: api, session: sess, spent: NewMemoryJournal()}
	for _, opt := range opts {
		opt(c)
	}
	if c.journal == nil {
		c.journal = NewMemoryJournal()
	}
	return c
}

// SetDraft replaces the draft being edited.
func (c *Coordinator) SetDraft(d model.JobDraft) {
	c.mu.Lock()
	c.state.Draft = d
	c.state.Message = ""
	c.mu.Unlock()
}

// State returns a copy of the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AcknowledgeNavigation clears the NavigateToFeed signal once handled.
func (c *Coordinator) AcknowledgeNavigation() {
	c.mu.Lock()
	c.state.NavigateToFeed = false
	c.mu.Unlock()
}

// Submit posts draft authorised by receipt.
//
// Checks run in order: receipt (PaymentRequired), in-flight guard
// (SubmissionInProgress), journal (PaymentRequired), draft (ValidationFailed).
// Only then is the single create request sent. On failure the draft and the
// receipt stay usable for a retry.
func (c *Coordinator) Submit(ctx context.Context, draft model.JobDraft, receipt *payment.Receipt) (model.JobPosting, error) {
	c.mu.Lock()
	if !receipt.Confirmed() {
		if !c.state.Submitting {
			c.state.Draft = draft
		}
		return model.JobPosting{}, c.rejectLocked(apperr.ErrPaymentRequired)
	}
	if c.state.Submitting {
		c.mu.Unlock()
		return model.JobPosting{}, apperr.ErrSubmissionInProgress
	}
	c.state.Draft = draft
	c.state.Submitting = true
	c.state.Message = ""
	c.mu.Unlock()

	txHash := receipt.TxHash
	logger := log.WithField("tx", txHash)
	var err error

	used, _ := c.spent.Consumed(ctx, txHash)
	if !used {
		used, err = c.journal.Consumed(ctx, txHash)
	}
	if err != nil {
		return model.JobPosting{}, c.finish(errors.Wrap(err, "check receipt journal"))
	}
	if used {
		return model.JobPosting{}, c.finish(errors.Wrapf(apperr.ErrPaymentRequired, "receipt %s already used", txHash))
	}

	clean := draft.Sanitized()
	if err := ValidateDraft(clean); err != nil {
		return model.JobPosting{}, c.finish(err)
	}

	job, err := c.api.CreateJob(ctx, model.NewCreateJobRequest(clean, txHash), c.session.Token)
	if err != nil {
		logger.WithError(err).Warn("create job failed")
		return model.JobPosting{}, c.finish(err)
	}

	_ = c.spent.MarkConsumed(ctx, txHash, job.ID)
	st := State{NavigateToFeed: true, Posted: &job}
	if err := c.record(context.WithoutCancel(ctx), txHash, job.ID); err != nil {
		logger.WithError(err).Error("record consumed receipt failed")
		st.Message = journalWarning
	}

	c.mu.Lock()
	c.state = st
	c.mu.Unlock()

	logger.WithField("jobId", job.ID).Info("job posted")
	if c.notifier != nil {
		c.notifier.Publish(ctx, events.JobPosted, map[string]string{
			"jobId":         job.ID,
			"paymentTxHash": txHash,
			"title":         job.Title,
		})
	}
	return job, nil
}

const journalWarning = "Job posted, but its payment could not be recorded. Do not reuse this payment."

// record marks txHash consumed, retrying once.
func (c *Coordinator) record(ctx context.Context, txHash, jobID string) error {
	err := c.journal.MarkConsumed(ctx, txHash, jobID)
	if err == nil {
		return nil
	}
	log.WithError(err).WithField("tx", txHash).Warn("record consumed receipt failed, retrying")
	return c.journal.MarkConsumed(ctx, txHash, jobID)
}

// rejectLocked records err without starting a submission. Unlocks c.mu.
func (c *Coordinator) rejectLocked(err error) error {
	c.state.Message = apperr.UserMessage(err)
	c.mu.Unlock()
	return err
}

func (c *Coordinator) finish(err error) error {
	c.mu.Lock()
	c.state.Submitting = false
	c.state.Message = apperr.UserMessage(err)
	c.mu.Unlock()
	return err
}
