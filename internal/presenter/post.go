package presenter

import (
	"jobmate/marketplace-client/internal/payment"
	"jobmate/marketplace-client/internal/submission"
)

const hashPreview = 20

// PostView is everything the posting screen renders.
type PostView struct {
	FeeNotice     string `json:"feeNotice"`
	Wallet        string `json:"wallet,omitempty"`
	ShowPayButton bool   `json:"showPayButton"`
	PayLabel      string `json:"payLabel"`
	PayEnabled    bool   `json:"payEnabled"`
	PaymentBanner string `json:"paymentBanner,omitempty"`
	SubmitLabel   string `json:"submitLabel"`
	SubmitEnabled bool   `json:"submitEnabled"`
	Error         string `json:"error,omitempty"`
	Success       string `json:"success,omitempty"`
}

// ProjectPost builds the posting view. amountLabel is the fee as shown, e.g. "0.001".
func ProjectPost(p payment.Snapshot, s submission.State, amountLabel string) PostView {
	v := PostView{
		FeeNotice:     "To post a job, you need to pay a platform fee of " + amountLabel + " ETH.",
		Wallet:        p.Account,
		ShowPayButton: p.State != payment.StateConfirmed,
		PayEnabled:    payment.CanStart(p.State),
		PayLabel:      "Pay " + amountLabel + " ETH with MetaMask",
		SubmitLabel:   "Post Job",
		SubmitEnabled: p.State == payment.StateConfirmed && !s.Submitting,
	}
	if payment.InFlight(p.State) {
		v.PayLabel = "Processing Payment..."
	}
	if s.Submitting {
		v.SubmitLabel = "Posting Job..."
	}

	switch {
	case p.TxHash == "":
	case p.State == payment.StateConfirmed:
		v.PaymentBanner = "Payment confirmed! Transaction: " + ShortHash(p.TxHash)
	case p.State == payment.StatePendingConfirmation:
		v.PaymentBanner = "Waiting for confirmation. Transaction: " + ShortHash(p.TxHash)
	}

	switch {
	case s.Message != "":
		v.Error = s.Message
	case p.Message != "":
		v.Error = p.Message
	}

	switch {
	case s.Posted != nil:
		v.Success = "Job posted successfully!"
	case p.State == payment.StateConfirmed:
		v.Success = "Payment successful! You can now post your job"
	}
	return v
}

// ShortHash keeps the first 20 characters of a hash followed by "...".
func ShortHash(h string) string {
	if len(h) <= hashPreview {
		return h
	}
	return h[:hashPreview] + "..."
}
