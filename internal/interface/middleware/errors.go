package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-account-identity/internal/domain/apperror"
	"github.com/oksasatya/go-account-identity/pkg/response"
)

var kindStatus = map[apperror.Kind]int{
	apperror.KindValidationFailed:   http.StatusBadRequest,
	apperror.KindDuplicateIdentity:  http.StatusConflict,
	apperror.KindNotFound:           http.StatusNotFound,
	apperror.KindInvalidCredentials: http.StatusUnauthorized,
	apperror.KindAlreadyConfirmed:   http.StatusConflict,
	apperror.KindUnauthenticated:    http.StatusUnauthorized,
	apperror.KindForbidden:          http.StatusForbidden,
}

// StatusFor maps an error kind to its HTTP status. Unclassified errors are 500.
func StatusFor(err error) int {
	if s, ok := kindStatus[apperror.KindOf(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// AbortWithError writes the error envelope for err. The message of an
// unexpected error is never echoed to the client.
func AbortWithError(c *gin.Context, err error) {
	var e *apperror.Error
	if !errors.As(err, &e) || e.Kind == apperror.KindUnexpected {
		response.Error[any](c, http.StatusInternalServerError, "internal server error", nil)
		return
	}
	var details any
	if len(e.Fields) > 0 {
		details = e.Fields
	}
	response.Error[any](c, StatusFor(err), e.Message, details)
}
