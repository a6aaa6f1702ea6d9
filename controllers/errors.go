package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/cppla/carecircle/services"
	"github.com/cppla/carecircle/utils"
)

// respondError maps a service failure onto the response envelope. Infrastructure errors are
// logged and hidden behind a generic 500.
func respondError(ctx *gin.Context, log *zap.Logger, err error) {
	var se *services.Error
	if !errors.As(err, &se) {
		log.Error("request failed",
			zap.String("path", ctx.FullPath()),
			zap.String("request_id", utils.RequestID(ctx)),
			zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, utils.CodeInternal, "internal server error")
		return
	}
	status, code := statusFor(se.Kind)
	utils.Error(ctx, status, code, se.Message)
}

func statusFor(kind services.Kind) (int, int) {
	switch kind {
	case services.KindValidation:
		return http.StatusBadRequest, utils.CodeBadRequest
	case services.KindPermission:
		return http.StatusForbidden, utils.CodeForbidden
	case services.KindNotFound:
		return http.StatusNotFound, utils.CodeNotFound
	case services.KindConflict:
		return http.StatusConflict, utils.CodeConflict
	case services.KindState:
		return http.StatusConflict, utils.CodeLocked
	default:
		return http.StatusInternalServerError, utils.CodeInternal
	}
}

func badRequest(ctx *gin.Context, message string) {
	utils.Error(ctx, http.StatusBadRequest, utils.CodeBadRequest, message)
}

func unauthorized(ctx *gin.Context) {
	utils.Error(ctx, http.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
}

func forbidden(ctx *gin.Context, message string) {
	utils.Error(ctx, http.StatusForbidden, utils.CodeForbidden, message)
}
