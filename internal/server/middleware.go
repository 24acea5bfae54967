package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const maxRequestBodyBytes = 1 << 20

// LimitBody caps request bodies; bulk-delete id lists are the largest legitimate payload.
func LimitBody(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

func noRoute(c *gin.Context) {
	AbortWithError(c, ErrNotFound)
}
