// Package model defines the data structures exchanged between the
// coordinators, the job backend and the presenter.
package model

import (
	"strings"
	"time"
)

// JobDraft is the unsaved, user-edited posting form.
type JobDraft struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	Skills      []string `json:"skills" validate:"required,min=1,dive,required"`
	Budget      float64  `json:"budget" validate:"finite,gt=0"`
	Salary      *int64   `json:"salary,omitempty" validate:"omitempty,gt=0"`
	Location    string   `json:"location"`
	Tags        []string `json:"tags"`
}

// IsRemote reports whether the draft has no location (displayed as "Remote").
func (d JobDraft) IsRemote() bool { return strings.TrimSpace(d.Location) == "" }

// Creator is the poster's public identity attached to a JobPosting.
type Creator struct {
	Name          string `json:"name"`
	WalletAddress string `json:"walletAddress"`
}

// JobPosting mirrors a server-owned job returned by /jobs/search and POST /jobs.
// Similarity is present only when the request carried a profile-backed token.
type JobPosting struct {
	ID            string    `json:"_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Skills        []string  `json:"skills"`
	Budget        float64   `json:"budget"`
	Salary        *int64    `json:"salary,omitempty"`
	Location      string    `json:"location"`
	Tags          []string  `json:"tags"`
	PaymentTxHash string    `json:"paymentTxHash"`
	CreatedAt     time.Time `json:"createdAt"`
	CreatedBy     Creator   `json:"createdBy"`
	Similarity    *float64  `json:"similarity,omitempty"`
}

// Score returns the similarity or 0 when absent.
func (j JobPosting) Score() float64 {
	if j.Similarity == nil {
		return 0
	}
	return *j.Similarity
}

// CreateJobRequest is the POST /jobs body.
type CreateJobRequest struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Skills        []string `json:"skills"`
	Budget        float64  `json:"budget"`
	Salary        *int64   `json:"salary,omitempty"`
	Location      string   `json:"location"`
	Tags          []string `json:"tags"`
	PaymentTxHash string   `json:"paymentTxHash"`
}

// NewCreateJobRequest joins a draft with the hash of the payment that authorises it.
func NewCreateJobRequest(d JobDraft, txHash string) CreateJobRequest {
	return CreateJobRequest{
		Title:         d.Title,
		Description:   d.Description,
		Skills:        d.Skills,
		Budget:        d.Budget,
		Salary:        d.Salary,
		Location:      d.Location,
		Tags:          d.Tags,
		PaymentTxHash: txHash,
	}
}

// JobQuery is the fully composed filter set sent to /jobs/search.
// Empty fields are omitted from the request; present ones combine with AND.
type JobQuery struct {
	Text     string
	Skills   string
	Location string
	Tags     string
}

// IsZero reports whether the query is equivalent to the unfiltered feed.
func (q JobQuery) IsZero() bool { return q == JobQuery{} }
