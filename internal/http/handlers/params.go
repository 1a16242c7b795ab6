package handlers

import (
	"github.com/geocoder89/lifeplus/internal/http/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// pathID reads a uuid path parameter. A malformed id cannot name an
// existing record, so it gets the same 404 as a missing one.
func pathID(ctx *gin.Context, name, notFoundMsg string) (string, bool) {
	raw := ctx.Param(name)
	if _, err := uuid.Parse(raw); err != nil {
		RespondNotFound(ctx, notFoundMsg)
		return "", false
	}
	return raw, true
}

// callerID returns the authenticated user id set by RequireAuth.
func callerID(ctx *gin.Context) (string, bool) {
	id, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "Missing identity context")
		return "", false
	}
	return id, true
}
