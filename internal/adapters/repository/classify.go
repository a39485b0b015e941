package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// SQLSTATE codes that mean the expected tables or columns are not there.
var schemaStates = map[string]bool{
	"42P01": true, // undefined_table
	"42703": true, // undefined_column
	"42804": true, // datatype_mismatch
	"42883": true, // undefined_function
}

// classify maps a driver error onto ErrSchemaMismatch or ErrUnavailable.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isSchemaError(err) {
		return fmt.Errorf("%w: %s: %v", ErrSchemaMismatch, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: timed out: %v", ErrUnavailable, op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

func isSchemaError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return schemaStates[pgErr.Code]
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return schemaStates[string(pqErr.Code)]
	}
	// SQLite reports these only through the message.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such table") || strings.Contains(msg, "no such column")
}
