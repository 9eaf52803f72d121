package docstore

import (
	"context"
	stderrors "errors"

	"github.com/mroshb/catchup/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// translateError maps Firestore's gRPC status codes onto AppError codes.
func translateError(err error, message string) error {
	if err == nil {
		return nil
	}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return errors.Wrap(err, errors.ErrCodeStoreUnavailable, message)
	}

	switch status.Code(err) {
	case codes.Aborted, codes.AlreadyExists:
		return errors.Wrap(err, errors.ErrCodeTransactionConflict, message)
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Canceled:
		return errors.Wrap(err, errors.ErrCodeStoreUnavailable, message)
	case codes.NotFound:
		return errors.Wrap(err, errors.ErrCodeNotFound, message)
	case codes.PermissionDenied, codes.Unauthenticated:
		return errors.Wrap(err, errors.ErrCodeForbidden, message)
	}
	return errors.Wrap(err, errors.ErrCodeInternalError, message)
}
