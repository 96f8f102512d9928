package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/fjod/templateshop/internal/catalog"
	"github.com/fjod/templateshop/internal/download"
	"github.com/fjod/templateshop/internal/entitlement"
	"github.com/go-chi/chi/v5"
)

type DownloadGate interface {
	RequestDownload(ctx context.Context, userID, productID, licenseID string) (*download.Grant, error)
}

type EntitlementLister interface {
	List(ctx context.Context, userID string) ([]entitlement.View, error)
}

type AvailabilityChecker interface {
	Availability(ctx context.Context, productID string) (*catalog.Availability, error)
}

// LibraryHandler serves what a buyer owns and whether products can be bought.
type LibraryHandler struct {
	downloads    DownloadGate
	entitlements EntitlementLister
	catalog      AvailabilityChecker
	log          *slog.Logger
}

func NewLibraryHandler(downloads DownloadGate, entitlements EntitlementLister, catalog AvailabilityChecker, log *slog.Logger) *LibraryHandler {
	return &LibraryHandler{
		downloads:    downloads,
		entitlements: entitlements,
		catalog:      catalog,
		log:          log,
	}
}

type downloadRequest struct {
	ProductID string `json:"productId"`
	LicenseID string `json:"licenseId,omitempty"`
}

func (h *LibraryHandler) RequestDownload(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return
	}

	grant, err := h.downloads.RequestDownload(r.Context(), currentUser(r).ID, req.ProductID, req.LicenseID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondData(w, http.StatusOK, grant)
}

func (h *LibraryHandler) ListEntitlements(w http.ResponseWriter, r *http.Request) {
	views, err := h.entitlements.List(r.Context(), currentUser(r).ID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondData(w, http.StatusOK, views)
}

func (h *LibraryHandler) Availability(w http.ResponseWriter, r *http.Request) {
	a, err := h.catalog.Availability(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondData(w, http.StatusOK, a)
}
