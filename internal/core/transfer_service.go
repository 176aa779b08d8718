package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type transferService struct {
	pool         *pgxpool.Pool
	docs         DocumentService
	availability AvailabilityService
	logger       *zap.Logger
	now          func() time.Time
}

func NewTransferService(pool *pgxpool.Pool, docs DocumentService, availability AvailabilityService, logger *zap.Logger) TransferService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &transferService{pool: pool, docs: docs, availability: availability, logger: logger, now: time.Now}
}

func (s *transferService) CreateTransfer(ctx context.Context, in CreateTransferInput) (*Transfer, *AvailabilityReport, error) {
	if err := validateOrderLines(in.Lines); err != nil {
		return nil, nil, err
	}
	if in.SourceWarehouseID == in.DestinationWarehouseID {
		return nil, nil, Newf(ErrCodeInvalidRequest, "source and destination warehouse must differ")
	}
	if in.ExpectedDate.IsZero() {
		return nil, nil, Newf(ErrCodeInvalidRequest, "expected date is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := requireRow(ctx, tx, "warehouses", in.DestinationWarehouseID); err != nil {
		return nil, nil, err
	}

	report, err := s.availability.CheckAvailabilityTx(ctx, tx, in.SourceWarehouseID, in.ExpectedDate, availabilityLines(in.Lines))
	if err != nil {
		return nil, nil, err
	}
	if !report.Valid {
		s.logger.Warn("transfer rejected by availability check",
			zap.Int("sourceWarehouseId", in.SourceWarehouseID),
			zap.String("reason", report.Message))
		return nil, report, nil
	}

	priced, total, err := priceOrderLines(ctx, tx, in.Lines, "cost_price")
	if err != nil {
		return nil, nil, err
	}
	number, err := s.docs.NextNumberTx(ctx, tx, DocTypeTransfer, s.now().Year())
	if err != nil {
		return nil, nil, err
	}

	var transferID int
	if err := tx.QueryRow(ctx, `
		INSERT INTO transfers (transfer_number, source_warehouse_id, destination_warehouse_id, status,
		                       expected_date, total_amount, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		number, in.SourceWarehouseID, in.DestinationWarehouseID, string(TransferStatusPending),
		dateOnly(in.ExpectedDate), total, in.ActorID,
	).Scan(&transferID); err != nil {
		return nil, nil, dbError("insert transfer", err)
	}
	if err := insertOrderLines(ctx, tx, ParentTransfer, transferID, priced); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit transfer: %w", err)
	}

	s.logger.Info("transfer created",
		zap.Int("transferId", transferID),
		zap.String("transferNumber", number),
		zap.Int("sourceWarehouseId", in.SourceWarehouseID),
		zap.Int("destinationWarehouseId", in.DestinationWarehouseID),
		zap.Int("actorId", in.ActorID))

	t, err := s.GetTransfer(ctx, transferID)
	if err != nil {
		return nil, nil, err
	}
	return t, report, nil
}

const transferColumns = `
	SELECT id, transfer_number, source_warehouse_id, destination_warehouse_id, status,
	       expected_date::text, total_amount, created_by, created_at, cancelled_at
	FROM transfers`

func scanTransfer(row pgx.Row, t *Transfer) error {
	return row.Scan(&t.ID, &t.TransferNumber, &t.SourceWarehouseID, &t.DestinationWarehouseID, &t.Status,
		&t.ExpectedDate, &t.TotalAmount, &t.CreatedBy, &t.CreatedAt, &t.CancelledAt)
}

func (s *transferService) GetTransfer(ctx context.Context, id int) (*Transfer, error) {
	var t Transfer
	if err := scanTransfer(s.pool.QueryRow(ctx, transferColumns+" WHERE id = $1", id), &t); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Newf(ErrCodeNotFound, "transfer %d not found", id)
		}
		return nil, dbError("get transfer", err)
	}
	lines, err := loadOrderLines(ctx, s.pool, ParentTransfer, id)
	if err != nil {
		return nil, err
	}
	t.Lines = lines
	return &t, nil
}

func (s *transferService) ListTransfers(ctx context.Context, status TransferStatus) ([]Transfer, error) {
	if status != "" && !status.Valid() {
		return nil, Newf(ErrCodeInvalidRequest, "unknown transfer status %q", status)
	}
	query := transferColumns
	args := []any{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, dbError("list transfers", err)
	}
	defer rows.Close()

	var out []Transfer
	for rows.Next() {
		var t Transfer
		if err := scanTransfer(rows, &t); err != nil {
			return nil, dbError("scan transfer", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate transfers", err)
	}
	return out, nil
}

func (s *transferService) CancelTransfer(ctx context.Context, id, actorID int) (*Transfer, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status TransferStatus
	if err := tx.QueryRow(ctx, "SELECT status FROM transfers WHERE id = $1 FOR UPDATE", id).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Newf(ErrCodeNotFound, "transfer %d not found", id)
		}
		return nil, dbError("lock transfer", err)
	}
	if status == TransferStatusCancelled || !status.CanTransitionTo(TransferStatusCancelled) {
		s.logger.Warn("transfer cancellation rejected",
			zap.Int("transferId", id), zap.String("status", string(status)), zap.Int("actorId", actorID))
		return nil, Newf(ErrCodeIllegalStatusTransition, "transfer %d cannot be cancelled in status %s", id, status)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE transfers SET status = $1, cancelled_at = NOW() WHERE id = $2",
		string(TransferStatusCancelled), id,
	); err != nil {
		return nil, dbError("cancel transfer", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cancellation: %w", err)
	}

	s.logger.Info("transfer cancelled", zap.Int("transferId", id), zap.Int("actorId", actorID))
	return s.GetTransfer(ctx, id)
}
