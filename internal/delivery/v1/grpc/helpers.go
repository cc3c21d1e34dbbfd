package grpc

import (
	"errors"

	"github.com/DRSN-tech/dscommerce-backend/pkg/e"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func GRPCErrorResponse(err error) error {
	var notFound *e.NotFoundError
	switch {
	case errors.As(err, &notFound):
		return status.Error(codes.NotFound, notFound.Error())
	case errors.Is(err, e.ErrResourceNotFound):
		return status.Error(codes.NotFound, e.ErrResourceNotFound.Error())
	case errors.Is(err, e.ErrValidation), errors.Is(err, e.ErrStatusBadRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, e.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, e.ErrUnauthenticated.Error())
	case errors.Is(err, e.ErrForbidden):
		return status.Error(codes.PermissionDenied, e.ErrForbidden.Error())
	default:
		return status.Error(codes.Internal, e.ErrInternalServerError.Error())
	}
}
