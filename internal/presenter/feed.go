// Package presenter projects coordinator state into view data.
// Everything here is a pure function of its inputs.
package presenter

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"jobmate/marketplace-client/internal/feed"
	"jobmate/marketplace-client/internal/model"
	"jobmate/marketplace-client/internal/session"
)

// Status selects which of the four feed layouts to render.
type Status string

const (
	StatusLoading Status = "loading"
	StatusError   Status = "error"
	StatusEmpty   Status = "empty"
	StatusList    Status = "list"
)

const (
	DefaultExplorerTxURL = "https://sepolia.etherscan.io/tx/"
	recommendationHint   = "Complete your profile to get personalized job recommendations"
	recommendedSkills    = 3
)

// FeedOptions are the view toggles and display settings.
type FeedOptions struct {
	ShowRecommendations bool
	ShowFilters         bool
	ExplorerTxURL       string
	Threshold           float64
	RecommendLimit      int
	Now                 time.Time
}

// Card is one job in the main list.
type Card struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Budget        string   `json:"budget"`
	Skills        []string `json:"skills"`
	Tags          []string `json:"tags"`
	Location      string   `json:"location"`
	Salary        string   `json:"salary"`
	CreatorName   string   `json:"creatorName"`
	CreatorWallet string   `json:"creatorWallet"`
	PaymentURL    string   `json:"paymentUrl"`
	Posted        string   `json:"posted,omitempty"`
}

// RecommendedCard is one entry of the recommendation panel.
type RecommendedCard struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Match    string   `json:"match"`
	Skills   []string `json:"skills"`
	Location string   `json:"location"`
}

// FilterEcho repeats the active filters back to the view.
type FilterEcho struct {
	Query    string `json:"q"`
	Skills   string `json:"skills"`
	Location string `json:"location"`
	Tags     string `json:"tags"`
}

// FeedView is everything the feed screen renders.
type FeedView struct {
	Status              Status            `json:"status"`
	Error               string            `json:"error,omitempty"`
	Cards               []Card            `json:"cards"`
	ShowRecommendations bool              `json:"showRecommendations"`
	Recommended         []RecommendedCard `json:"recommended,omitempty"`
	RecommendationHint  string            `json:"recommendationHint,omitempty"`
	RecommendToggle     string            `json:"recommendToggle"`
	ShowFilters         bool              `json:"showFilters"`
	FiltersToggle       string            `json:"filtersToggle"`
	Filters             FilterEcho        `json:"filters"`
	Suggestions         []string          `json:"suggestions,omitempty"`
}

// ProjectFeed builds the feed view. The recommendation panel only exists for
// a signed-in viewer with the panel switched on.
func ProjectFeed(snap feed.Snapshot, viewer *session.Identity, opts FeedOptions) FeedView {
	v := FeedView{
		Status:          feedStatus(snap),
		Error:           snap.Error,
		Cards:           make([]Card, 0, len(snap.Jobs)),
		ShowFilters:     opts.ShowFilters,
		FiltersToggle:   toggle(opts.ShowFilters, "Hide Filters", "Show Filters"),
		RecommendToggle: toggle(opts.ShowRecommendations, "Hide", "Show"),
		Suggestions:     snap.Suggestions,
		Filters: FilterEcho{
			Query:    snap.Filters.Query,
			Skills:   snap.Filters.Skills,
			Location: snap.Filters.Location,
			Tags:     snap.Filters.Tags,
		},
	}
	for _, j := range snap.Jobs {
		v.Cards = append(v.Cards, projectCard(j, opts))
	}

	if viewer != nil && opts.ShowRecommendations {
		v.ShowRecommendations = true
		threshold, limit := opts.Threshold, opts.RecommendLimit
		if threshold <= 0 {
			threshold = 0.3
		}
		if limit <= 0 {
			limit = 3
		}
		for _, j := range feed.Recommend(snap.Jobs, threshold, limit) {
			v.Recommended = append(v.Recommended, RecommendedCard{
				ID:       j.ID,
				Title:    model.StripHTML(j.Title),
				Match:    MatchLabel(j.Score()),
				Skills:   firstN(j.Skills, recommendedSkills),
				Location: LocationLabel(j.Location),
			})
		}
		if len(v.Recommended) == 0 {
			v.RecommendationHint = recommendationHint
		}
	}
	return v
}

func feedStatus(snap feed.Snapshot) Status {
	switch {
	case snap.Loading && len(snap.Jobs) == 0:
		return StatusLoading
	case snap.Error != "":
		return StatusError
	case len(snap.Jobs) == 0:
		return StatusEmpty
	}
	return StatusList
}

func projectCard(j model.JobPosting, opts FeedOptions) Card {
	explorer := opts.ExplorerTxURL
	if explorer == "" {
		explorer = DefaultExplorerTxURL
	}
	c := Card{
		ID:            j.ID,
		Title:         model.StripHTML(j.Title),
		Description:   model.StripHTML(j.Description),
		Budget:        BudgetLabel(j.Budget),
		Skills:        j.Skills,
		Tags:          j.Tags,
		Location:      LocationLabel(j.Location),
		Salary:        SalaryLabel(j.Salary),
		CreatorName:   j.CreatedBy.Name,
		CreatorWallet: j.CreatedBy.WalletAddress,
	}
	if j.PaymentTxHash != "" {
		c.PaymentURL = explorer + j.PaymentTxHash
	}
	if !j.CreatedAt.IsZero() {
		if opts.Now.IsZero() {
			c.Posted = humanize.Time(j.CreatedAt)
		} else {
			c.Posted = humanize.RelTime(j.CreatedAt, opts.Now, "ago", "from now")
		}
	}
	return c
}

// BudgetLabel renders a budget in native currency, e.g. "0.5 ETH".
func BudgetLabel(budget float64) string {
	return strconv.FormatFloat(budget, 'f', -1, 64) + " ETH"
}

// LocationLabel falls back to "Remote" for an empty location.
func LocationLabel(loc string) string {
	if loc = model.StripHTML(loc); loc == "" {
		return "Remote"
	}
	return loc
}

// SalaryLabel renders "$120,000/year" or "Salary not specified".
func SalaryLabel(salary *int64) string {
	if salary == nil || *salary <= 0 {
		return "Salary not specified"
	}
	return "$" + humanize.Comma(*salary) + "/year"
}

// MatchLabel renders a similarity score as "87% match".
func MatchLabel(score float64) string {
	return fmt.Sprintf("%d%% match", int(math.Round(score*100)))
}

func toggle(on bool, onLabel, offLabel string) string {
	if on {
		return onLabel
	}
	return offLabel
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
