// Package grpcserver implements the Marketplace gRPC service used by the UI
// glue.
//
// It delegates all behaviour to app.Client and handles only the gRPC
// transport concerns: argument extraction, error mapping, and conversion of
// view data into google.protobuf.Struct.
package grpcserver

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"jobmate/marketplace-client/internal/apperr"
	"jobmate/marketplace-client/internal/app"
	"jobmate/marketplace-client/internal/feed"
	"jobmate/marketplace-client/internal/model"
)

// Server implements MarketplaceServer.
type Server struct {
	app *app.Client
}

// NewServer constructs a gRPC Server backed by the given client.
func NewServer(a *app.Client) *Server {
	return &Server{app: a}
}

// ─── RPC implementations ──────────────────────────────────────────────────────

// GetFeed returns the projected feed. Toggles: showRecommendations (default
// true), showFilters (default false).
func (s *Server) GetFeed(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.feedView(req)
}

// SetFilter sets one filter: {field, value}. It does not fetch.
func (s *Server) SetFilter(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	field, err := feed.ParseField(str(req, "field"))
	if err != nil {
		return nil, toGRPCError(apperr.Invalid("field", err.Error()))
	}
	if err := s.app.Feed.SetFilter(field, str(req, "value")); err != nil {
		return nil, toGRPCError(apperr.Invalid("field", err.Error()))
	}
	return s.feedView(req)
}

// ClearFilters resets every filter and the suggestions.
func (s *Server) ClearFilters(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.app.Feed.ClearFilters()
	return s.feedView(req)
}

// Refresh fetches the feed. A failed fetch is part of the returned view.
func (s *Server) Refresh(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.app.Feed.Refresh(ctx); err != nil {
		log.WithError(err).Debug("refresh failed, error is in the view")
	}
	return s.feedView(req)
}

// UpdateQuery is the search-box keystroke: {q}.
func (s *Server) UpdateQuery(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.app.Feed.QueryChanged(str(req, "q"))
	return s.feedView(req)
}

// GetPost returns the posting screen.
func (s *Server) GetPost(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(s.app.PostView())
}

// Pay runs a payment attempt; it returns once the transfer is confirmed or
// failed. If the call is abandoned after the transfer was sent, confirmation
// continues and GetPost reports the outcome.
func (s *Server) Pay(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if _, err := s.app.Pay(ctx); err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(s.app.PostView())
}

// Submit posts the form {title, description, skills, budget, salary, location, tags}.
func (s *Server) Submit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	job, err := s.app.Post(ctx, model.DraftForm{
		Title:       str(req, "title"),
		Description: str(req, "description"),
		Skills:      str(req, "skills"),
		Budget:      str(req, "budget"),
		Salary:      str(req, "salary"),
		Location:    str(req, "location"),
		Tags:        str(req, "tags"),
	})
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(map[string]any{"job": job, "post": s.app.PostView()})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func (s *Server) feedView(req *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(s.app.FeedView(
		boolOr(req, "showRecommendations", true),
		boolOr(req, "showFilters", false),
	))
}

// str reads a field as text. Numbers are accepted so that budget and salary
// may be sent either way.
func str(req *structpb.Struct, key string) string {
	v, ok := req.GetFields()[key]
	if !ok {
		return ""
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_NumberValue:
		b, _ := json.Marshal(k.NumberValue)
		return string(b)
	}
	return ""
}

func boolOr(req *structpb.Struct, key string, def bool) bool {
	v, ok := req.GetFields()[key]
	if !ok {
		return def
	}
	if b, ok := v.GetKind().(*structpb.Value_BoolValue); ok {
		return b.BoolValue
	}
	return def
}

// toStruct converts a view into a Struct through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return out, nil
}

// toGRPCError maps domain errors to gRPC status errors carrying the user message.
func toGRPCError(err error) error {
	msg := apperr.UserMessage(err)
	var se *apperr.ServerError
	switch {
	case errors.Is(err, apperr.ErrValidationFailed):
		return status.Error(codes.InvalidArgument, msg)
	case errors.Is(err, apperr.ErrPaymentRequired), errors.Is(err, apperr.ErrWalletUnavailable):
		return status.Error(codes.FailedPrecondition, msg)
	case errors.Is(err, apperr.ErrPaymentAlreadyInProgress),
		errors.Is(err, apperr.ErrSubmissionInProgress),
		errors.Is(err, apperr.ErrPaymentRejected):
		return status.Error(codes.Aborted, msg)
	case errors.Is(err, apperr.ErrNetworkFailure):
		return status.Error(codes.Unavailable, msg)
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled; a sent payment keeps confirming")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded; a sent payment keeps confirming")
	case errors.As(err, &se):
		if se.Status >= http.StatusInternalServerError {
			return status.Error(codes.Unavailable, msg)
		}
		return status.Error(codes.InvalidArgument, msg)
	}
	log.WithError(err).Error("unmapped error")
	return status.Error(codes.Internal, "internal server error")
}
