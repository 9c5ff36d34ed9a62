package feed_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"jobmate/marketplace-client/internal/apperr"
	"jobmate/marketplace-client/internal/feed"
	"jobmate/marketplace-client/internal/model"
	"jobmate/marketplace-client/internal/session"
)

type outcome struct {
	jobs []model.JobPosting
	err  error
}

type pendingSearch struct {
	q     model.JobQuery
	token string
	reply chan outcome
}

// fakeSearcher answers immediately unless held is set, in which case every
// search is parked on held until the test replies.
type fakeSearcher struct {
	held chan *pendingSearch

	mu          sync.Mutex
	jobs        []model.JobPosting
	searchErr   error
	queries     []model.JobQuery
	tokens      []string
	skills      []string
	suggestErr  error
	suggestions []string
}

func (f *fakeSearcher) SearchJobs(ctx context.Context, q model.JobQuery, token string) ([]model.JobPosting, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.tokens = append(f.tokens, token)
	jobs, err := f.jobs, f.searchErr
	f.mu.Unlock()

	if f.held != nil {
		p := &pendingSearch{q: q, token: token, reply: make(chan outcome, 1)}
		f.held <- p
		o := <-p.reply
		return o.jobs, o.err
	}
	return jobs, err
}

func (f *fakeSearcher) SkillSuggestions(ctx context.Context, query string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suggestions = append(f.suggestions, query)
	if f.suggestErr != nil {
		return nil, f.suggestErr
	}
	return f.skills, nil
}

func (f *fakeSearcher) suggestCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.suggestions...)
}

func (f *fakeSearcher) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func job(id string, sim *float64) model.JobPosting {
	return model.JobPosting{ID: id, Title: id, Similarity: sim}
}

func score(v float64) *float64 { return &v }

func ids(jobs []model.JobPosting) []string {
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.ID)
	}
	return out
}

func anonymous(api feed.Searcher) *feed.Coordinator {
	return feed.NewCoordinator(api, session.Session{}, feed.Options{Debounce: 40 * time.Millisecond})
}

// ── Filters ────────────────────────────────────────────────────────────────

func TestSetFilter_NeverFetches(t *testing.T) {
	api := &fakeSearcher{}
	c := anonymous(api)
	defer c.Close()

	require.NoError(t, c.SetFilter(feed.FieldSkills, "React"))
	require.NoError(t, c.SetFilter(feed.FieldLocation, "Berlin"))
	require.Error(t, c.SetFilter("salary", "1"))

	require.Equal(t, 0, api.searchCount())
	f := c.Filters()
	require.Equal(t, "React", f.Skills)
	require.Equal(t, uint64(2), f.Revision)

	require.NoError(t, c.SetFilter(feed.FieldSkills, "React"))
	require.Equal(t, uint64(2), c.Filters().Revision, "unchanged value keeps the revision")
}

func TestFetchJobs_SendsComposedQuery(t *testing.T) {
	api := &fakeSearcher{jobs: []model.JobPosting{job("a", nil)}}
	c := anonymous(api)
	defer c.Close()

	require.NoError(t, c.SetFilter(feed.FieldSkills, " React "))
	require.NoError(t, c.SetFilter(feed.FieldTags, "Remote"))
	require.NoError(t, c.Refresh(context.Background()))

	require.Equal(t, []model.JobQuery{{Skills: "React", Tags: "Remote"}}, api.queries)
	snap := c.Snapshot()
	require.Equal(t, []string{"a"}, ids(snap.Jobs))
	require.Equal(t, model.JobQuery{Skills: "React", Tags: "Remote"}, snap.Applied)
	require.False(t, snap.Loading)
	require.Empty(t, snap.Error)
}

func TestClearFilters(t *testing.T) {
	api := &fakeSearcher{skills: []string{"React"}}
	c := anonymous(api)
	defer c.Close()

	require.NoError(t, c.SetFilter(feed.FieldSkills, "React"))
	require.NoError(t, c.SetFilter(feed.FieldLocation, "Paris"))
	c.QueryChanged("re")
	_, err := c.FetchSuggestions(context.Background(), "re")
	require.NoError(t, err)
	require.NotEmpty(t, c.Snapshot().Suggestions)

	c.ClearFilters()
	require.True(t, c.Filters().JobQuery().IsZero())
	require.Empty(t, c.Snapshot().Suggestions)

	require.NoError(t, c.Refresh(context.Background()))
	require.True(t, api.queries[len(api.queries)-1].IsZero())
}

// ── Identity ───────────────────────────────────────────────────────────────

func TestFetchJobs_TokenOnlyWithIdentity(t *testing.T) {
	api := &fakeSearcher{}

	anon := anonymous(api)
	defer anon.Close()
	require.NoError(t, anon.Refresh(context.Background()))

	authed := feed.NewCoordinator(api, session.New(session.Identity{ID: "u1"}, "tok"), feed.Options{})
	defer authed.Close()
	require.NoError(t, authed.Refresh(context.Background()))

	require.Equal(t, []string{"", "tok"}, api.tokens)
	require.NotNil(t, authed.Snapshot().Identity)
	require.Nil(t, anon.Snapshot().Identity)
}

// ── Stale results ──────────────────────────────────────────────────────────

func TestFetchJobs_ConvergesToLatestFilters(t *testing.T) {
	for _, bFirst := range []bool{true, false} {
		api := &fakeSearcher{held: make(chan *pendingSearch)}
		c := anonymous(api)

		require.NoError(t, c.SetFilter(feed.FieldSkills, "A"))
		doneA := make(chan error, 1)
		go func() { doneA <- c.FetchJobs(context.Background()) }()
		pA := <-api.held

		require.NoError(t, c.SetFilter(feed.FieldSkills, "B"))
		doneB := make(chan error, 1)
		go func() { doneB <- c.FetchJobs(context.Background()) }()
		pB := <-api.held

		require.Equal(t, "A", pA.q.Skills)
		require.Equal(t, "B", pB.q.Skills)
		require.True(t, c.Snapshot().Loading)

		if bFirst {
			pB.reply <- outcome{jobs: []model.JobPosting{job("b", nil)}}
			require.NoError(t, <-doneB)
			pA.reply <- outcome{jobs: []model.JobPosting{job("a", nil)}}
			require.NoError(t, <-doneA)
		} else {
			pA.reply <- outcome{jobs: []model.JobPosting{job("a", nil)}}
			require.NoError(t, <-doneA)
			pB.reply <- outcome{jobs: []model.JobPosting{job("b", nil)}}
			require.NoError(t, <-doneB)
		}

		snap := c.Snapshot()
		require.Equal(t, []string{"b"}, ids(snap.Jobs), "bFirst=%v", bFirst)
		require.Equal(t, "B", snap.Applied.Skills)
		require.False(t, snap.Loading)
		c.Close()
	}
}

func TestFetchJobs_OlderDispatchCannotOverwriteNewer(t *testing.T) {
	api := &fakeSearcher{held: make(chan *pendingSearch)}
	c := anonymous(api)
	defer c.Close()

	done1 := make(chan error, 1)
	go func() { done1 <- c.Refresh(context.Background()) }()
	p1 := <-api.held
	done2 := make(chan error, 1)
	go func() { done2 <- c.Refresh(context.Background()) }()
	p2 := <-api.held

	p2.reply <- outcome{jobs: []model.JobPosting{job("fresh", nil)}}
	require.NoError(t, <-done2)
	p1.reply <- outcome{err: errors.Wrap(apperr.ErrNetworkFailure, "timeout")}
	require.NoError(t, <-done1, "stale failure is dropped")

	snap := c.Snapshot()
	require.Equal(t, []string{"fresh"}, ids(snap.Jobs))
	require.Empty(t, snap.Error)
}

func TestFetchJobs_FailureClearsList(t *testing.T) {
	api := &fakeSearcher{jobs: []model.JobPosting{job("a", nil)}}
	c := anonymous(api)
	defer c.Close()
	require.NoError(t, c.Refresh(context.Background()))

	api.mu.Lock()
	api.searchErr = errors.Wrap(apperr.ErrNetworkFailure, "connection refused")
	api.mu.Unlock()

	err := c.Refresh(context.Background())
	require.ErrorIs(t, err, apperr.ErrNetworkFailure)
	snap := c.Snapshot()
	require.Empty(t, snap.Jobs)
	require.Contains(t, snap.Error, "Failed to load jobs")

	api.mu.Lock()
	api.searchErr = nil
	api.mu.Unlock()
	require.NoError(t, c.Refresh(context.Background()))
	require.Empty(t, c.Snapshot().Error)
}

// ── Suggestions ────────────────────────────────────────────────────────────

func TestSuggestions_DebouncedOncePerWindow(t *testing.T) {
	api := &fakeSearcher{skills: []string{"React", "React Native", "Redux", "Relay", "Remix", "Recoil", "RxJS"}}
	c := anonymous(api)
	defer c.Close()

	for _, q := range []string{"r", "re", "rea", "reac"} {
		c.QueryChanged(q)
	}

	require.Eventually(t, func() bool { return len(api.suggestCalls()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	require.Equal(t, []string{"reac"}, api.suggestCalls())

	require.Eventually(t, func() bool { return len(c.Snapshot().Suggestions) == 5 }, time.Second, 5*time.Millisecond)
	require.Equal(t, "React", c.Snapshot().Suggestions[0])
	require.Equal(t, 0, api.searchCount(), "typing never fetches jobs")
}

func TestSuggestions_EmptyQueryClearsSynchronously(t *testing.T) {
	api := &fakeSearcher{skills: []string{"React"}}
	c := anonymous(api)
	defer c.Close()

	c.QueryChanged("react")
	require.Eventually(t, func() bool { return len(c.Snapshot().Suggestions) == 1 }, time.Second, 5*time.Millisecond)

	c.QueryChanged("node")
	c.QueryChanged("")
	require.Empty(t, c.Snapshot().Suggestions)

	time.Sleep(150 * time.Millisecond)
	require.Equal(t, []string{"react"}, api.suggestCalls(), "pending timer was cancelled")
}

func TestSuggestions_FailureLeavesStateAlone(t *testing.T) {
	api := &fakeSearcher{suggestErr: errors.New("503")}
	c := anonymous(api)
	defer c.Close()

	require.NoError(t, c.SetFilter(feed.FieldQuery, "go"))
	_, err := c.FetchSuggestions(context.Background(), "go")
	require.Error(t, err)
	snap := c.Snapshot()
	require.Empty(t, snap.Suggestions)
	require.Empty(t, snap.Error)
}

func TestSuggestions_CachedAndDiscardedWhenQueryMoved(t *testing.T) {
	api := &fakeSearcher{skills: []string{"Go"}}
	c := feed.NewCoordinator(api, session.Session{}, feed.Options{Debounce: time.Hour})
	defer c.Close()

	require.NoError(t, c.SetFilter(feed.FieldQuery, "golang"))
	got, err := c.FetchSuggestions(context.Background(), "go")
	require.NoError(t, err)
	require.Equal(t, []string{"Go"}, got)
	require.Empty(t, c.Snapshot().Suggestions, "answer for an old query is not shown")

	require.NoError(t, c.SetFilter(feed.FieldQuery, "Go"))
	_, err = c.FetchSuggestions(context.Background(), "Go")
	require.NoError(t, err)
	require.Equal(t, []string{"Go"}, c.Snapshot().Suggestions)
	require.Equal(t, []string{"go"}, api.suggestCalls(), "second lookup served from cache")
}

// ── Recommendations ────────────────────────────────────────────────────────

func TestRecommended(t *testing.T) {
	c := anonymous(&fakeSearcher{})
	defer c.Close()

	jobs := []model.JobPosting{
		job("a", score(0.9)),
		job("b", score(0.2)),
		job("c", score(0.31)),
		job("d", score(0.3)),
		job("e", nil),
		job("f", score(0.5)),
		job("g", score(0.95)),
	}
	got := c.Recommended(jobs)
	require.Equal(t, []string{"g", "a", "f"}, ids(got))
	for _, j := range got {
		require.Greater(t, j.Score(), 0.3)
	}

	require.Equal(t, []string{"c"}, ids(c.Recommended(jobs[1:5])))
	require.Empty(t, c.Recommended(nil))
}

func TestRecommend_TiesKeepFeedOrder(t *testing.T) {
	jobs := []model.JobPosting{job("x", score(0.7)), job("y", score(0.7)), job("z", score(0.8))}
	require.Equal(t, []string{"z", "x", "y"}, ids(feed.Recommend(jobs, 0.3, 3)))
	require.Equal(t, []string{"z"}, ids(feed.Recommend(jobs, 0.3, 1)))
}
