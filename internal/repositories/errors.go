package repositories

import (
	"context"
	"database/sql/driver"
	stderrors "errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mroshb/catchup/pkg/errors"
	"gorm.io/gorm"
)

// translateError maps a gorm/pgx error onto an AppError code. AppErrors
// raised inside a transaction closure pass through unchanged.
func translateError(err error, message string) error {
	if err == nil {
		return nil
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}

	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrap(err, errors.ErrCodeNotFound, message)
	}
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Wrap(err, errors.ErrCodeTransactionConflict, message)
	}
	if stderrors.Is(err, gorm.ErrInvalidData) {
		return errors.Wrap(err, errors.ErrCodeValidation, message)
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "55P03", pgErr.Code == "23505":
			// serialization failure, deadlock, lock not available, racing insert
			return errors.Wrap(err, errors.ErrCodeTransactionConflict, message)
		case strings.HasPrefix(pgErr.Code, "08"), pgErr.Code == "57P01", pgErr.Code == "53300":
			return errors.Wrap(err, errors.ErrCodeStoreUnavailable, message)
		}
		return errors.Wrap(err, errors.ErrCodeInternalError, message)
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case pgconn.SafeToRetry(err),
		stderrors.As(err, &connErr),
		stderrors.As(err, &netErr),
		stderrors.Is(err, driver.ErrBadConn),
		stderrors.Is(err, context.DeadlineExceeded),
		stderrors.Is(err, context.Canceled):
		return errors.Wrap(err, errors.ErrCodeStoreUnavailable, message)
	}

	return errors.Wrap(err, errors.ErrCodeInternalError, message)
}
