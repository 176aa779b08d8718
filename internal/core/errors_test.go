package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestCodeOf_ThroughWrapping(t *testing.T) {
	base := Newf(ErrCodeCapacityExceeded, "location %d full", 3)
	wrapped := fmt.Errorf("stock-in: %w", base)

	assert.Equal(t, ErrCodeCapacityExceeded, CodeOf(wrapped))
	assert.True(t, IsCode(wrapped, ErrCodeCapacityExceeded))
	assert.False(t, IsCode(nil, ErrCodeCapacityExceeded))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "boom", Wrap(ErrCodeDatabaseError, "boom", nil).Error())
	assert.Equal(t, "boom: cause", Wrap(ErrCodeDatabaseError, "boom", errors.New("cause")).Error())
}

func TestIsBusinessError(t *testing.T) {
	assert.True(t, IsBusinessError(Newf(ErrCodeInsufficientStock, "x")))
	assert.True(t, IsBusinessError(Newf(ErrCodeIllegalStatusTransition, "x")))
	assert.False(t, IsBusinessError(Newf(ErrCodeNegativeStock, "x")))
	assert.False(t, IsBusinessError(Newf(ErrCodeDatabaseError, "x")))
	assert.False(t, IsBusinessError(errors.New("x")))
}

func TestDBError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"no rows", pgx.ErrNoRows, ErrCodeNotFound},
		{"unique", &pgconn.PgError{Code: "23505"}, ErrCodeInvalidRequest},
		{"foreign key", &pgconn.PgError{Code: "23503"}, ErrCodeNotFound},
		{"ledger check", &pgconn.PgError{Code: "23514", TableName: "inventory_records"}, ErrCodeNegativeStock},
		{"other check", &pgconn.PgError{Code: "23514", TableName: "locations"}, ErrCodeInvalidRequest},
		{"unknown", errors.New("connection reset"), ErrCodeDatabaseError},
		{"already coded", Newf(ErrCodeCapacityExceeded, "full"), ErrCodeCapacityExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(dbError("op", tt.err)))
		})
	}
	assert.NoError(t, dbError("op", nil))
}
