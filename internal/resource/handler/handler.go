package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"concord/internal/resource"
	id "concord/pkg/domain"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/platform/httputil"
	"concord/pkg/platform/middleware/auth"
	"concord/pkg/requestcontext"
)

// Service defines the resource ledger operations exposed over HTTP.
type Service interface {
	Deposit(ctx context.Context, domain id.DomainID, resourceType string, qty float64) (float64, error)
	List(ctx context.Context, domain id.DomainID) ([]resource.Stock, error)
	EvaluateScarcity(ctx context.Context, domain id.DomainID, resourceType string, claimed float64) (resource.ScarcityCheck, error)
}

// Handler handles resource ledger endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts resource routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/resources/deposit", h.HandleDeposit)
	r.Get("/resources/{domain}", h.HandleList)
	r.Get("/resources/{domain}/{type}/scarcity", h.HandleScarcity)
}

type DepositRequest struct {
	Domain       string  `json:"domain"`
	ResourceType string  `json:"resource_type"`
	Quantity     float64 `json:"quantity"`

	domain id.DomainID
}

func (r *DepositRequest) Validate() error {
	d, err := id.ParseDomainID(r.Domain)
	if err != nil {
		return err
	}
	r.domain = d
	r.ResourceType = strings.TrimSpace(r.ResourceType)
	if r.ResourceType == "" {
		return dErrors.New(dErrors.CodeValidation, "resource_type is required")
	}
	if r.Quantity <= 0 {
		return dErrors.New(dErrors.CodeValidation, "quantity must be positive")
	}
	return nil
}

type DepositResponse struct {
	Domain       id.DomainID `json:"domain"`
	ResourceType string      `json:"resource_type"`
	Available    float64     `json:"available"`
}

type ListResponse struct {
	Stock []resource.Stock `json:"stock"`
}

func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[DepositRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := auth.AuthorizeDomain(ctx, req.domain); err != nil {
		httputil.WriteError(w, err)
		return
	}
	available, err := h.service.Deposit(ctx, req.domain, req.ResourceType, req.Quantity)
	if err != nil {
		h.logFailure(ctx, "deposit failed", err, "domain", string(req.domain), "resource_type", req.ResourceType)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DepositResponse{Domain: req.domain, ResourceType: req.ResourceType, Available: available})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domain, err := id.ParseDomainID(chi.URLParam(r, "domain"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	stock, err := h.service.List(ctx, domain)
	if err != nil {
		h.logFailure(ctx, "failed to list stock", err, "domain", string(domain))
		httputil.WriteError(w, err)
		return
	}
	if stock == nil {
		stock = []resource.Stock{}
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Stock: stock})
}

// HandleScarcity reports whether ?claimed= would be flagged as artificial
// scarcity without recording anything.
func (h *Handler) HandleScarcity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domain, err := id.ParseDomainID(chi.URLParam(r, "domain"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	claimed, err := strconv.ParseFloat(r.URL.Query().Get("claimed"), 64)
	if err != nil || claimed < 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "claimed must be a non-negative number"))
		return
	}
	resourceType := chi.URLParam(r, "type")
	check, err := h.service.EvaluateScarcity(ctx, domain, resourceType, claimed)
	if err != nil {
		h.logFailure(ctx, "scarcity check failed", err, "domain", string(domain), "resource_type", resourceType)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, check)
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error, attrs ...any) {
	args := append([]any{"request_id", requestcontext.RequestID(ctx), "error", err}, attrs...)
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, args...)
		return
	}
	h.logger.WarnContext(ctx, msg, args...)
}
