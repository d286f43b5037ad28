package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ahinestrog/onlinebookstore/internal/apperr"
)

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.InsufficientStock, apperr.EmptyCart, apperr.Invalid:
		return http.StatusBadRequest
	case apperr.Unauthorized:
		return http.StatusUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.Request.URL.Path).Msg("internal error")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(kind), errorBody{Kind: kind.String(), Message: apperr.Message(err)})
}

func badRequest(c *gin.Context, err error) {
	abortWithError(c, apperr.Wrap(apperr.Invalid, err, "invalid request body"))
}
