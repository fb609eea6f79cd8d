package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrier_SucceedsFirstTry(t *testing.T) {
	r := NewRetrier(zerolog.Nop())

	calls := 0
	err := r.Retry(context.Background(), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetrier_NonRetryableIsPermanent(t *testing.T) {
	r := NewRetrier(zerolog.Nop())

	boom := errors.New("constraint violation")
	calls := 0
	err := r.Retry(context.Background(), func() error {
		calls++
		return boom
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRetrier_RetriesSerializationFailure(t *testing.T) {
	r := NewRetrier(zerolog.Nop())

	serErr := &pgconn.PgError{Code: pgErrSerializationFailure}
	calls := 0
	err := r.Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return serErr
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrier_GivesUpAfterMaxRetries(t *testing.T) {
	r := NewRetrier(zerolog.Nop())

	deadlock := &pgconn.PgError{Code: pgErrDeadlock}
	calls := 0
	err := r.Retry(context.Background(), func() error {
		calls++
		return deadlock
	})

	require.Error(t, err)
	// initial attempt plus maxRetries
	assert.Equal(t, 4, calls)
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(&pgconn.PgError{Code: pgErrDeadlock}))
	assert.True(t, isRetryableError(&pgconn.PgError{Code: pgErrSerializationFailure}))
	assert.False(t, isRetryableError(&pgconn.PgError{Code: pgErrUniqueViolation}))
	assert.False(t, isRetryableError(errors.New("plain error")))
	assert.False(t, isRetryableError(nil))
}
