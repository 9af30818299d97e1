// Package reconciler keeps a persisted shipment's status and event
// history synchronized with the upstream carrier's view, idempotently.
package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ecofinds/greencore/internal/apperr"
	"github.com/ecofinds/greencore/internal/broker/messages"
	"github.com/ecofinds/greencore/internal/integrations/carrier"
	"github.com/ecofinds/greencore/internal/models"
	"github.com/ecofinds/greencore/internal/storage/pgmarket"
	"github.com/pkg/errors"
)

// recheckDelay schedules the next background sweep after an on-demand
// reconciliation; the sweeper's planner takes over from there.
const recheckDelay = 30 * time.Minute

type Repository interface {
	GetShipmentByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error)
	GetShipmentByID(ctx context.Context, id uint64) (*models.Shipment, error)
	GetOrder(ctx context.Context, id uint64) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id uint64, status string) error
	ApplyShipmentUpdate(ctx context.Context, upd pgmarket.ShipmentUpdate) error
	ListTrackingEvents(ctx context.Context, shipmentID uint64, limit, offset int) ([]*models.TrackingEvent, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Result is the full post-reconciliation view handed back to the caller:
// the updated shipment, its event log newest-first, and the raw carrier
// response the merge was computed from.
type Result struct {
	Shipment     *models.Shipment
	Events       []*models.TrackingEvent
	TrackingInfo carrier.TrackingInfo
}

type Service struct {
	repo     Repository
	carrier  carrier.Client
	producer Producer
	topic    string
}

func New(repo Repository, c carrier.Client, producer Producer, topic string) *Service {
	return &Service{repo: repo, carrier: c, producer: producer, topic: topic}
}

// Reconcile fetches the carrier's current view for a tracking number and
// merges it into local state. Invoked per user-initiated refresh; no
// retries happen here — the caller refreshing the page is the retry.
func (s *Service) Reconcile(ctx context.Context, ident *models.Identity, trackingNumber string) (*Result, error) {
	if ident == nil {
		return nil, apperr.Unauthorized("authentication required")
	}
	if trackingNumber == "" {
		return nil, apperr.Validation("trackingNumber is required")
	}

	sh, err := s.repo.GetShipmentByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}
	if sh == nil {
		return nil, apperr.NotFound("shipment not found")
	}

	ord, err := s.repo.GetOrder(ctx, sh.OrderID)
	if err != nil {
		return nil, err
	}
	if ord == nil {
		return nil, errors.Errorf("shipment %d references missing order %d", sh.ID, sh.OrderID)
	}
	if !ident.IsAdmin() && ord.BuyerID != ident.UserID {
		return nil, apperr.Forbidden("shipment belongs to another buyer")
	}

	info, err := s.carrier.GetTracking(ctx, sh.TrackingNumber)
	if err != nil {
		return nil, apperr.Tracking("carrier fetch failed", err)
	}

	now := time.Now().UTC()
	upd := buildUpdate(sh, info, now, now.Add(recheckDelay))

	if err := s.repo.ApplyShipmentUpdate(ctx, upd); err != nil {
		return nil, err
	}

	if upd.Status == models.ShipmentStatusDelivered {
		s.markOrderDelivered(ctx, ord)
	}

	s.publishUpdate(ctx, upd)

	events, err := s.repo.ListTrackingEvents(ctx, sh.ID, 100, 0)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.GetShipmentByID(ctx, sh.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		updated = sh
	}

	return &Result{Shipment: updated, Events: events, TrackingInfo: info}, nil
}

// GetShipment is the read-only counterpart of Reconcile: same loading
// and authorization, no carrier call.
func (s *Service) GetShipment(ctx context.Context, ident *models.Identity, trackingNumber string) (*models.Shipment, []*models.TrackingEvent, error) {
	if ident == nil {
		return nil, nil, apperr.Unauthorized("authentication required")
	}

	sh, err := s.repo.GetShipmentByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, nil, err
	}
	if sh == nil {
		return nil, nil, apperr.NotFound("shipment not found")
	}

	ord, err := s.repo.GetOrder(ctx, sh.OrderID)
	if err != nil {
		return nil, nil, err
	}
	if ord == nil {
		return nil, nil, errors.Errorf("shipment %d references missing order %d", sh.ID, sh.OrderID)
	}
	if !ident.IsAdmin() && ord.BuyerID != ident.UserID {
		return nil, nil, apperr.Forbidden("shipment belongs to another buyer")
	}

	events, err := s.repo.ListTrackingEvents(ctx, sh.ID, 100, 0)
	if err != nil {
		return nil, nil, err
	}
	return sh, events, nil
}

// ApplyBrokerUpdate merges a ShipmentUpdated message produced by the
// background sweeper. Same merge semantics as the on-demand path,
// including the order side effect on delivery.
func (s *Service) ApplyBrokerUpdate(ctx context.Context, msg messages.ShipmentUpdated) error {
	if msg.ShipmentID == 0 {
		return errors.New("shipment_id is required")
	}
	if msg.CheckedAt.IsZero() {
		msg.CheckedAt = time.Now().UTC()
	}
	if msg.NextCheckAt.IsZero() {
		msg.NextCheckAt = msg.CheckedAt.Add(recheckDelay)
	}

	var events []*models.TrackingEvent
	for _, e := range msg.Events {
		events = append(events, &models.TrackingEvent{
			Status:      e.Status,
			Description: e.Description,
			Location:    e.Location,
			EventTime:   e.EventTime,
		})
	}

	err := s.repo.ApplyShipmentUpdate(ctx, pgmarket.ShipmentUpdate{
		ShipmentID:        msg.ShipmentID,
		CheckedAt:         msg.CheckedAt,
		Status:            msg.Status,
		StatusRaw:         msg.StatusRaw,
		EstimatedDelivery: msg.EstimatedDelivery,
		ActualDelivery:    msg.ActualDelivery,
		NextCheckAt:       msg.NextCheckAt,
		Events:            events,
		Error:             msg.Error,
	})
	if err != nil {
		return err
	}

	if msg.Status == models.ShipmentStatusDelivered {
		sh, err := s.repo.GetShipmentByID(ctx, msg.ShipmentID)
		if err != nil || sh == nil {
			slog.Error("load shipment for order side effect", "shipment_id", msg.ShipmentID, "error", err)
			return nil
		}
		ord, err := s.repo.GetOrder(ctx, sh.OrderID)
		if err != nil || ord == nil {
			slog.Error("load order for delivered side effect", "order_id", sh.OrderID, "error", err)
			return nil
		}
		s.markOrderDelivered(ctx, ord)
	}
	return nil
}

// buildUpdate maps the carrier response onto a storage update. An
// unrecognized carrier status keeps the shipment's previous internal
// status — we never downgrade to an "unknown" state.
func buildUpdate(sh *models.Shipment, info carrier.TrackingInfo, now, nextCheckAt time.Time) pgmarket.ShipmentUpdate {
	status := sh.Status
	if mapped, ok := models.MapCarrierStatus(info.Status); ok {
		status = mapped
	}

	upd := pgmarket.ShipmentUpdate{
		ShipmentID:        sh.ID,
		CheckedAt:         now,
		Status:            status,
		StatusRaw:         info.Status,
		EstimatedDelivery: info.EstimatedDelivery,
		ActualDelivery:    info.ActualDelivery,
		NextCheckAt:       nextCheckAt,
	}

	for _, e := range info.Events {
		evStatus := e.Status
		if mapped, ok := models.MapCarrierStatus(e.Status); ok {
			evStatus = mapped
		}
		upd.Events = append(upd.Events, &models.TrackingEvent{
			Status:      evStatus,
			Description: e.Description,
			Location:    e.Location,
			EventTime:   e.Timestamp,
		})
	}
	return upd
}

// markOrderDelivered is fire-and-forget relative to reconciliation:
// a failed order update is logged, never surfaced.
func (s *Service) markOrderDelivered(ctx context.Context, ord *models.Order) {
	if ord.Status == models.OrderStatusDelivered {
		return
	}
	if err := s.repo.UpdateOrderStatus(ctx, ord.ID, models.OrderStatusDelivered); err != nil {
		slog.Error("update order status to delivered", "order_id", ord.ID, "error", err.Error())
	}
}

func (s *Service) publishUpdate(ctx context.Context, upd pgmarket.ShipmentUpdate) {
	if s.producer == nil || s.topic == "" {
		return
	}

	msg := messages.ShipmentUpdated{
		ShipmentID:        upd.ShipmentID,
		CheckedAt:         upd.CheckedAt,
		Status:            upd.Status,
		StatusRaw:         upd.StatusRaw,
		EstimatedDelivery: upd.EstimatedDelivery,
		ActualDelivery:    upd.ActualDelivery,
		NextCheckAt:       upd.NextCheckAt,
	}
	for _, e := range upd.Events {
		msg.Events = append(msg.Events, messages.TrackingEvent{
			Status:      e.Status,
			Description: e.Description,
			Location:    e.Location,
			EventTime:   e.EventTime,
		})
	}

	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal shipment.updated", "error", err.Error())
		return
	}
	key := []byte(fmt.Sprintf("%d", upd.ShipmentID))
	if err := s.producer.Publish(ctx, s.topic, key, b); err != nil {
		slog.Warn("publish shipment.updated", "shipment_id", upd.ShipmentID, "error", err.Error())
	}
}
