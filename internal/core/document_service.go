package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Document type codes used as number prefixes.
const (
	DocTypePurchaseOrder = "PO"
	DocTypeSalesOrder    = "SO"
	DocTypeTransfer      = "TR"
	DocTypeGoodsReceipt  = "GR"
	DocTypeGoodsIssue    = "GI"
)

type DocumentService interface {
	// NextNumberTx allocates the next gapless number for typeCode in year using the caller's
	// transaction. A rolled-back transaction releases the number again.
	NextNumberTx(ctx context.Context, tx pgx.Tx, typeCode string, year int) (string, error)
	// LastNumber reports the last number issued for typeCode in year, 0 if none.
	LastNumber(ctx context.Context, typeCode string, year int) (int64, error)
}

type documentService struct {
	pool *pgxpool.Pool
}

func NewDocumentService(pool *pgxpool.Pool) DocumentService {
	return &documentService{pool: pool}
}

func (s *documentService) NextNumberTx(ctx context.Context, tx pgx.Tx, typeCode string, year int) (string, error) {
	switch typeCode {
	case DocTypePurchaseOrder, DocTypeSalesOrder, DocTypeTransfer, DocTypeGoodsReceipt, DocTypeGoodsIssue:
	default:
		return "", Newf(ErrCodeInvalidRequest, "unknown document type %q", typeCode)
	}

	// Concurrency-safe gapless sequence generation: the upsert row-locks the sequence
	// until the caller's transaction ends.
	var lastNumber int64
	err := tx.QueryRow(ctx, `
		INSERT INTO document_sequences (type_code, year, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (type_code, year)
		DO UPDATE SET last_number = document_sequences.last_number + 1
		RETURNING last_number`,
		typeCode, year,
	).Scan(&lastNumber)
	if err != nil {
		return "", dbError("generate gapless sequence number", err)
	}
	return FormatDocumentNumber(typeCode, year, lastNumber), nil
}

func (s *documentService) LastNumber(ctx context.Context, typeCode string, year int) (int64, error) {
	var last int64
	err := s.pool.QueryRow(ctx,
		"SELECT COALESCE(MAX(last_number), 0) FROM document_sequences WHERE type_code = $1 AND year = $2",
		typeCode, year,
	).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("read document sequence: %w", err)
	}
	return last, nil
}

// FormatDocumentNumber renders e.g. PO-2026-00001.
func FormatDocumentNumber(typeCode string, year int, n int64) string {
	return fmt.Sprintf("%s-%d-%05d", typeCode, year, n)
}
