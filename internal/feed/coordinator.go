// Package feed coordinates the job feed: filter state, identity-tagged
// searches, debounced skill suggestions and the recommendation slice.
//
// Fetches are never cancelled. Each one is tagged with the filter revision
// and a dispatch sequence number, and a result is applied only if its
// revision is still current and no newer dispatch has been applied.
package feed

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"jobmate/marketplace-client/internal/apperr"
	"jobmate/marketplace-client/internal/model"
	"jobmate/marketplace-client/internal/session"
)

const suggestionTimeout = 10 * time.Second

// Searcher is the backend surface the feed needs.
type Searcher interface {
	SearchJobs(ctx context.Context, q model.JobQuery, token string) ([]model.JobPosting, error)
	SkillSuggestions(ctx context.Context, query string) ([]string, error)
}

// Options tunes the coordinator. Zero values select the defaults.
type Options struct {
	Debounce        time.Duration
	SuggestionLimit int
	Threshold       float64
	RecommendLimit  int
	CacheTTL        time.Duration
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = 300 * time.Millisecond
	}
	if o.SuggestionLimit <= 0 {
		o.SuggestionLimit = 5
	}
	if o.Threshold <= 0 {
		o.Threshold = 0.3
	}
	if o.RecommendLimit <= 0 {
		o.RecommendLimit = 3
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 5 * time.Minute
	}
	return o
}

// Snapshot is a consistent read of the feed state.
type Snapshot struct {
	Filters     Filters
	Applied     model.JobQuery
	Jobs        []model.JobPosting
	Loading     bool
	Error       string
	Suggestions []string
	Identity    *session.Identity
}

// Coordinator is safe for concurrent use; backend calls run outside the lock.
type Coordinator struct {
	api     Searcher
	session session.Session
	opts    Options
	cache   *cache.Cache

	mu          sync.Mutex
	filters     Filters
	applied     model.JobQuery
	jobs        []model.JobPosting
	errMsg      string
	dispatched  uint64
	appliedSeq  uint64
	inflight    int
	suggestions []string
	timer       *time.Timer
}

// NewCoordinator returns an empty feed bound to sess.
func NewCoordinator(api Searcher, sess session.Session, opts Options) *Coordinator {
	opts = opts.withDefaults()
	return &Coordinator{
		api:     api,
		session: sess,
		opts:    opts,
		cache:   cache.New(opts.CacheTTL, 2*opts.CacheTTL),
	}
}

// SetFilter updates one filter. It never fetches; call Refresh.
// Changing the free-text query re-arms the suggestion debounce.
func (c *Coordinator) SetFilter(field Field, value string) error {
	field, err := ParseField(string(field))
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.filters.set(field, value) {
		return nil
	}
	c.filters.Revision++
	if field == FieldQuery {
		c.armSuggestionsLocked(value)
	}
	return nil
}

// QueryChanged is the keystroke hook for the free-text search box.
func (c *Coordinator) QueryChanged(text string) {
	_ = c.SetFilter(FieldQuery, text)
}

// ClearFilters resets every filter and the suggestions.
func (c *Coordinator) ClearFilters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	rev := c.filters.Revision + 1
	c.filters = Filters{Revision: rev}
	c.stopTimerLocked()
	c.suggestions = nil
}

// Filters returns the current filter state.
func (c *Coordinator) Filters() Filters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters
}

// Refresh is FetchJobs under the name the UI uses for its explicit trigger.
func (c *Coordinator) Refresh(ctx context.Context) error { return c.FetchJobs(ctx) }

// FetchJobs searches with the full filter set. A stale result is dropped and
// reported as success; the caller has nothing to do about it.
// On a failure that is still current the list is cleared and the error shown.
func (c *Coordinator) FetchJobs(ctx context.Context) error {
	c.mu.Lock()
	c.dispatched++
	seq, rev := c.dispatched, c.filters.Revision
	q := c.filters.JobQuery()
	c.inflight++
	c.mu.Unlock()

	jobs, err := c.api.SearchJobs(ctx, q, c.session.Bearer())

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--

	if rev != c.filters.Revision || seq <= c.appliedSeq {
		log.WithField("seq", seq).WithField("revision", rev).Debug("discarding stale feed result")
		return nil
	}
	c.appliedSeq = seq
	c.applied = q
	if err != nil {
		c.jobs = nil
		c.errMsg = "Failed to load jobs: " + apperr.UserMessage(err)
		log.WithError(err).Warn("feed fetch failed")
		return errors.Wrap(err, "fetch jobs")
	}
	c.jobs = jobs
	c.errMsg = ""
	return nil
}

// FetchSuggestions asks the backend for skills matching q, caps the answer
// and stores it if q is still the current query. Errors are returned for the
// caller to log; state is left untouched.
func (c *Coordinator) FetchSuggestions(ctx context.Context, q string) ([]string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		c.mu.Lock()
		c.suggestions = nil
		c.mu.Unlock()
		return nil, nil
	}

	key := strings.ToLower(q)
	var skills []string
	if v, ok := c.cache.Get(key); ok {
		skills = v.([]string)
	} else {
		got, err := c.api.SkillSuggestions(ctx, q)
		if err != nil {
			return nil, errors.Wrapf(err, "skill suggestions for %q", q)
		}
		if len(got) > c.opts.SuggestionLimit {
			got = got[:c.opts.SuggestionLimit]
		}
		skills = append([]string(nil), got...)
		c.cache.SetDefault(key, skills)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if strings.TrimSpace(c.filters.Query) == q {
		c.suggestions = skills
	}
	return skills, nil
}

// Recommended returns the top scoring subset of jobs.
func (c *Coordinator) Recommended(jobs []model.JobPosting) []model.JobPosting {
	return Recommend(jobs, c.opts.Threshold, c.opts.RecommendLimit)
}

// Snapshot returns a copy of the feed state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Filters:     c.filters,
		Applied:     c.applied,
		Jobs:        append([]model.JobPosting(nil), c.jobs...),
		Loading:     c.inflight > 0,
		Error:       c.errMsg,
		Suggestions: append([]string(nil), c.suggestions...),
		Identity:    c.session.Identity,
	}
}

// Close stops the pending suggestion timer.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.stopTimerLocked()
	c.mu.Unlock()
}

// armSuggestionsLocked cancels the pending suggestion fetch and, for a
// non-empty query, schedules a new one after the debounce window.
// An empty query clears suggestions immediately.
func (c *Coordinator) armSuggestionsLocked(query string) {
	c.stopTimerLocked()
	q := strings.TrimSpace(query)
	if q == "" {
		c.suggestions = nil
		return
	}
	c.timer = time.AfterFunc(c.opts.Debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), suggestionTimeout)
		defer cancel()
		if _, err := c.FetchSuggestions(ctx, q); err != nil {
			log.WithError(err).Warn("failed to fetch skill suggestions")
		}
	})
}

func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
