package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"concord/internal/eventlog"
	id "concord/pkg/domain"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/platform/httputil"
	"concord/pkg/requestcontext"
)

const (
	defaultLimit = 500
	maxLimit     = 5000
)

// Service is the read side of the event log used by the handler.
type Service interface {
	List(ctx context.Context, f eventlog.Filter) ([]eventlog.Event, error)
	Subscribe(buffer int) (<-chan eventlog.Event, func())
}

// Handler exposes the contract event log.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts event log endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/events", h.HandleList)
	r.Get("/events/stream", h.HandleStream)
}

// ListResponse is the body of GET /events. NextAfterSeq is the cursor for the
// following page.
type ListResponse struct {
	Events       []eventlog.Event `json:"events"`
	NextAfterSeq int64            `json:"next_after_seq"`
}

// HandleList handles GET /events?since=RFC3339&after_seq=N&domain=D&limit=N.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.service.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list events",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	next := filter.AfterSeq
	if len(events) > 0 {
		next = events[len(events)-1].Seq
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Events: events, NextAfterSeq: next})
}

// HandleStream serves live events as server-sent events until the client
// disconnects.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "streaming unsupported"))
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, cancel := h.service.Subscribe(256)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case e, open := <-events:
			if !open {
				return
			}
			if filter.Domain != "" && e.Domain != filter.Domain {
				continue
			}
			payload, err := json.Marshal(e)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", e.Seq, e.Type, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func parseFilter(r *http.Request) (eventlog.Filter, error) {
	q := r.URL.Query()
	f := eventlog.Filter{Limit: defaultLimit}

	if v := q.Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return f, dErrors.New(dErrors.CodeValidation, "since must be an RFC3339 timestamp")
		}
		f.Since = ts
	}
	if v := q.Get("after_seq"); v != "" {
		seq, err := strconv.ParseInt(v, 10, 64)
		if err != nil || seq < 0 {
			return f, dErrors.New(dErrors.CodeValidation, "after_seq must be a non-negative integer")
		}
		f.AfterSeq = seq
	}
	if v := q.Get("domain"); v != "" {
		if v == string(id.System) {
			f.Domain = id.System
		} else {
			d, err := id.ParseDomainID(v)
			if err != nil {
				return f, err
			}
			f.Domain = d
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxLimit {
			return f, dErrors.Newf(dErrors.CodeValidation, "limit must be between 1 and %d", maxLimit)
		}
		f.Limit = n
	}
	return f, nil
}
