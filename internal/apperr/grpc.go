package apperr

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code := codes.Internal
	switch KindOf(err) {
	case KindValidation:
		code = codes.InvalidArgument
	case KindConflict:
		code = codes.Aborted
	case KindResource:
		code = codes.FailedPrecondition
	case KindExternal:
		code = codes.Unavailable
	case KindNotFound:
		code = codes.NotFound
	case KindForbidden:
		code = codes.PermissionDenied
	}
	return status.Error(code, err.Error())
}
