package controllers

import (
	"errors"
	"net/http"

	"panda-blog/apperror"
)

// messages of the generic cases
const (
	msgInternal      = "Internal server error"
	msgRecordChanged = "Record changed by another request, please retry"
)

// HandleError encodes the std error Response
func HandleError(err error) (httpStatus int, apiError Response) {
	if err == nil {
		return 0, apiError
	}

	var (
		notFound   *apperror.NotFoundError
		forbidden  *apperror.ForbiddenError
		validation *apperror.ValidationError
		balance    *apperror.BalanceError
	)

	switch {
	// authentication
	case errors.Is(err, apperror.ErrUnauthenticated),
		errors.Is(err, apperror.ErrInvalidCredential),
		errors.Is(err, apperror.ErrInvalidLogin):
		httpStatus = http.StatusUnauthorized
		apiError.Message = err.Error()
	// permissions
	case errors.As(err, &forbidden):
		httpStatus = http.StatusForbidden
		apiError.Message = forbidden.Message
	case errors.Is(err, apperror.ErrDenied):
		httpStatus = http.StatusForbidden
		apiError.Message = "Access denied"
	// data
	case errors.As(err, &notFound):
		httpStatus = http.StatusNotFound
		apiError.Message = notFound.Error()
	case errors.Is(err, apperror.ErrNoData):
		httpStatus = http.StatusNotFound
		apiError.Message = "Not found"
	case errors.As(err, &validation):
		httpStatus = http.StatusBadRequest
		apiError.Message = validation.Message
	case errors.As(err, &balance):
		httpStatus = http.StatusBadRequest
		apiError.Message = balance.Error()
	case errors.Is(err, apperror.ErrDuplicateUser):
		httpStatus = http.StatusBadRequest
		apiError.Message = err.Error()
	case errors.Is(err, apperror.ErrRecordChanged):
		httpStatus = http.StatusConflict
		apiError.Message = msgRecordChanged
	// system
	case errors.Is(err, apperror.ErrRateLimited):
		httpStatus = http.StatusTooManyRequests
		apiError.Message = err.Error()
	case errors.Is(err, apperror.ErrServiceUnavailable):
		httpStatus = http.StatusInternalServerError
		apiError.Message = err.Error()
	default:
		httpStatus = http.StatusInternalServerError
		apiError.Message = msgInternal
		apiError.Error = err.Error()
	}

	return httpStatus, apiError
}
