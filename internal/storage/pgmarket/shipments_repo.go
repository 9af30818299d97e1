package pgmarket

import (
	"context"
	"time"

	"github.com/ecofinds/greencore/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// ShipmentUpdate is one reconciliation outcome to be merged into the
// shipment row and its event log. Either Status/Events are set (the
// carrier answered) or Error is set (the fetch failed and we only do
// failure bookkeeping).
type ShipmentUpdate struct {
	ShipmentID uint64

	CheckedAt time.Time

	Status    string
	StatusRaw string

	EstimatedDelivery *time.Time
	ActualDelivery    *time.Time

	NextCheckAt time.Time

	Events []*models.TrackingEvent

	Error *string
}

const shipmentColumns = `
  id, order_id, tracking_number,
  status, status_raw,
  estimated_delivery, actual_delivery,
  last_checked_at, next_check_at,
  check_fail_count, last_error,
  created_at, updated_at`

func scanShipment(row pgx.Row) (*models.Shipment, error) {
	var sh models.Shipment
	err := row.Scan(
		&sh.ID, &sh.OrderID, &sh.TrackingNumber,
		&sh.Status, &sh.StatusRaw,
		&sh.EstimatedDelivery, &sh.ActualDelivery,
		&sh.LastCheckedAt, &sh.NextCheckAt,
		&sh.CheckFailCount, &sh.LastError,
		&sh.CreatedAt, &sh.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

func (s *Storage) CreateShipment(ctx context.Context, orderID uint64, trackingNumber string) (*models.Shipment, error) {
	now := time.Now().UTC()
	row := s.db.QueryRow(ctx, `
INSERT INTO shipments (order_id, tracking_number, status, next_check_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$5)
ON CONFLICT (tracking_number) DO UPDATE SET updated_at = shipments.updated_at
RETURNING`+shipmentColumns, orderID, trackingNumber, models.ShipmentStatusPending, now, now)

	sh, err := scanShipment(row)
	if err != nil {
		return nil, errors.Wrap(err, "insert shipment")
	}
	return sh, nil
}

func (s *Storage) GetShipmentByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error) {
	row := s.db.QueryRow(ctx, `SELECT`+shipmentColumns+` FROM shipments WHERE tracking_number = $1`, trackingNumber)
	sh, err := scanShipment(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select shipment")
	}
	return sh, nil
}

func (s *Storage) GetShipmentByID(ctx context.Context, id uint64) (*models.Shipment, error) {
	row := s.db.QueryRow(ctx, `SELECT`+shipmentColumns+` FROM shipments WHERE id = $1`, id)
	sh, err := scanShipment(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select shipment by id")
	}
	return sh, nil
}

func (s *Storage) ListTrackingEvents(ctx context.Context, shipmentID uint64, limit, offset int) ([]*models.TrackingEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT id, shipment_id, status, description, location, event_time, created_at
FROM tracking_events
WHERE shipment_id = $1
ORDER BY event_time DESC
LIMIT $2 OFFSET $3
`, shipmentID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select events")
	}
	defer rows.Close()

	var out []*models.TrackingEvent
	for rows.Next() {
		var e models.TrackingEvent
		if err := rows.Scan(
			&e.ID, &e.ShipmentID, &e.Status, &e.Description, &e.Location, &e.EventTime, &e.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) ApplyShipmentUpdate(ctx context.Context, upd ShipmentUpdate) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if upd.Error != nil && *upd.Error != "" {
		_, err := tx.Exec(ctx, `
UPDATE shipments
SET
  last_checked_at = $2,
  check_fail_count = check_fail_count + 1,
  last_error = $3,
  next_check_at = $4,
  updated_at = now()
WHERE id = $1
`, upd.ShipmentID, upd.CheckedAt.UTC(), *upd.Error, upd.NextCheckAt.UTC())
		if err != nil {
			return errors.Wrap(err, "update shipment (error)")
		}
	} else {
		// Delivery timestamps only move forward from NULL or get replaced
		// by fresher carrier values; absent values leave them untouched.
		_, err := tx.Exec(ctx, `
UPDATE shipments
SET
  status = $3,
  status_raw = $4,
  estimated_delivery = COALESCE($5, estimated_delivery),
  actual_delivery = COALESCE($6, actual_delivery),
  last_checked_at = $2,
  check_fail_count = 0,
  last_error = NULL,
  next_check_at = $7,
  updated_at = now()
WHERE id = $1
`, upd.ShipmentID, upd.CheckedAt.UTC(), upd.Status, upd.StatusRaw,
			upd.EstimatedDelivery, upd.ActualDelivery, upd.NextCheckAt.UTC())
		if err != nil {
			return errors.Wrap(err, "update shipment (ok)")
		}

		for _, e := range upd.Events {
			_, err := tx.Exec(ctx, `
INSERT INTO tracking_events (shipment_id, status, description, location, event_time, created_at)
VALUES ($1,$2,$3,$4,$5, now())
ON CONFLICT (shipment_id, status, event_time) DO NOTHING
`, upd.ShipmentID, e.Status, e.Description, e.Location, e.EventTime.UTC())
			if err != nil {
				return errors.Wrap(err, "insert tracking event")
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

// ClaimDueShipments picks a batch of shipments due for a carrier check
// and leases them so concurrent workers do not re-pick them while the
// check is in flight. SELECT ... FOR UPDATE SKIP LOCKED.
func (s *Storage) ClaimDueShipments(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Shipment, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
SELECT`+shipmentColumns+`
FROM shipments
WHERE next_check_at <= $1
  AND status NOT IN ($2, $3, $4)
ORDER BY next_check_at ASC
LIMIT $5
FOR UPDATE SKIP LOCKED
`, now.UTC(),
		models.ShipmentStatusDelivered, models.ShipmentStatusReturned, models.ShipmentStatusFailedDelivery,
		limit)
	if err != nil {
		return nil, errors.Wrap(err, "select due shipments")
	}
	defer rows.Close()

	var picked []*models.Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan due shipment")
		}
		picked = append(picked, sh)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}

	leaseUntil := now.UTC().Add(lease)
	for _, sh := range picked {
		_, err := tx.Exec(ctx, `UPDATE shipments SET next_check_at = $2, updated_at = now() WHERE id = $1`, sh.ID, leaseUntil)
		if err != nil {
			return nil, errors.Wrap(err, "lease shipment")
		}
		sh.NextCheckAt = leaseUntil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return picked, nil
}
