// Package greenapi is the JSON HTTP surface: footprint estimation plus
// shipment reads and on-demand refreshes.
package greenapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ecofinds/greencore/internal/apperr"
	"github.com/ecofinds/greencore/internal/integrations/carrier"
	"github.com/ecofinds/greencore/internal/models"
	"github.com/ecofinds/greencore/internal/services/estimator"
	"github.com/ecofinds/greencore/internal/services/reconciler"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Estimator interface {
	Estimate(ctx context.Context, in estimator.Input) (*models.EstimationResult, error)
}

type ShipmentService interface {
	Reconcile(ctx context.Context, ident *models.Identity, trackingNumber string) (*reconciler.Result, error)
	GetShipment(ctx context.Context, ident *models.Identity, trackingNumber string) (*models.Shipment, []*models.TrackingEvent, error)
}

type UserDirectory interface {
	GetUserByToken(ctx context.Context, token string) (*models.User, error)
}

type API struct {
	estimator Estimator
	shipments ShipmentService
	users     UserDirectory
}

func New(est Estimator, shipments ShipmentService, users UserDirectory) *API {
	return &API{estimator: est, shipments: shipments, users: users}
}

func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/estimate", a.handleEstimate)

		r.Group(func(r chi.Router) {
			r.Use(a.authMiddleware)
			r.Get("/shipments/{trackingNumber}", a.handleGetShipment)
			r.Post("/shipments/{trackingNumber}/refresh", a.handleRefreshShipment)
		})
	})

	return r
}

// estimateRequest tolerates both string and numeric JSON for weight and
// price, so a malformed value surfaces as a validation error instead of
// a decode failure.
type estimateRequest struct {
	Name       string     `json:"name"`
	Category   string     `json:"category"`
	Weight     flexString `json:"weight"`
	Price      flexString `json:"price"`
	WeightUnit string     `json:"weightUnit"`
	Currency   string     `json:"currency"`
}

func (a *API) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Validation("invalid JSON body"))
		return
	}

	res, err := a.estimator.Estimate(r.Context(), estimator.Input{
		Name:       req.Name,
		Category:   req.Category,
		Weight:     string(req.Weight),
		Price:      string(req.Price),
		WeightUnit: req.WeightUnit,
		Currency:   req.Currency,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleGetShipment(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	trackingNumber := chi.URLParam(r, "trackingNumber")

	sh, events, err := a.shipments.GetShipment(r.Context(), ident, trackingNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shipmentResponse{Shipment: toShipmentView(sh, events)})
}

func (a *API) handleRefreshShipment(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	trackingNumber := chi.URLParam(r, "trackingNumber")

	res, err := a.shipments.Reconcile(r.Context(), ident, trackingNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shipmentResponse{
		Shipment:     toShipmentView(res.Shipment, res.Events),
		TrackingInfo: toTrackingInfoView(res.TrackingInfo),
	})
}

type shipmentResponse struct {
	Shipment     shipmentView      `json:"shipment"`
	TrackingInfo *trackingInfoView `json:"trackingInfo,omitempty"`
}

type shipmentView struct {
	ID                uint64              `json:"id"`
	OrderID           uint64              `json:"orderId"`
	TrackingNumber    string              `json:"trackingNumber"`
	Status            string              `json:"status"`
	StatusRaw         string              `json:"statusRaw,omitempty"`
	EstimatedDelivery *time.Time          `json:"estimatedDelivery,omitempty"`
	ActualDelivery    *time.Time          `json:"actualDelivery,omitempty"`
	LastCheckedAt     *time.Time          `json:"lastCheckedAt,omitempty"`
	TrackingEvents    []trackingEventView `json:"trackingEvents"`
}

type trackingEventView struct {
	Status      string    `json:"status"`
	Description *string   `json:"description,omitempty"`
	Location    *string   `json:"location,omitempty"`
	EventTime   time.Time `json:"eventTime"`
}

type trackingInfoView struct {
	Status            string     `json:"status"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty"`
	ActualDelivery    *time.Time `json:"actualDelivery,omitempty"`
}

func toShipmentView(sh *models.Shipment, events []*models.TrackingEvent) shipmentView {
	v := shipmentView{
		ID:                sh.ID,
		OrderID:           sh.OrderID,
		TrackingNumber:    sh.TrackingNumber,
		Status:            sh.Status,
		StatusRaw:         sh.StatusRaw,
		EstimatedDelivery: sh.EstimatedDelivery,
		ActualDelivery:    sh.ActualDelivery,
		LastCheckedAt:     sh.LastCheckedAt,
		TrackingEvents:    []trackingEventView{},
	}
	for _, e := range events {
		v.TrackingEvents = append(v.TrackingEvents, trackingEventView{
			Status:      e.Status,
			Description: e.Description,
			Location:    e.Location,
			EventTime:   e.EventTime,
		})
	}
	return v
}

func toTrackingInfoView(info carrier.TrackingInfo) *trackingInfoView {
	return &trackingInfoView{
		Status:            info.Status,
		EstimatedDelivery: info.EstimatedDelivery,
		ActualDelivery:    info.ActualDelivery,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err.Error())
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err.Error())
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
