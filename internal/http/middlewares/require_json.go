package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireContentType rejects POST/PUT/PATCH bodies whose media type is not
// one of allowed.
func RequireContentType(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			// allow parameters such as "; charset=utf-8"
			ct := strings.ToLower(strings.TrimSpace(c.GetHeader("Content-Type")))
			for _, a := range allowed {
				if strings.HasPrefix(ct, a) {
					c.Next()
					return
				}
			}

			c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
				"error": gin.H{
					"code":    "unsupported_media_type",
					"message": "Content-Type must be " + strings.Join(allowed, " or "),
				},
			})
			return
		}
		c.Next()
	}
}

func RequireJSON() gin.HandlerFunc {
	return RequireContentType("application/json")
}
