// Package errors holds helpers for cleanup errors that would otherwise be
// dropped in defer statements.
package errors

import (
	"database/sql"
	"errors"
	"io"

	"github.com/rs/zerolog"
)

// DeferClose closes c and logs a failure at warn level with msg.
func DeferClose(logger zerolog.Logger, c io.Closer, msg string) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}

// DeferRollback rolls back tx. The sql.ErrTxDone returned after a commit is
// not logged.
func DeferRollback(logger zerolog.Logger, tx *sql.Tx) {
	if tx == nil {
		return
	}
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logger.Warn().Err(err).Msg("Transaction rollback failed")
	}
}
