package middlewares

import (
	"net/http"

	"github.com/SumantSagar73/certify/server/httpserver/auth"
	"github.com/SumantSagar73/certify/server/httpserver/controllers"
	"github.com/gin-gonic/gin"
)

func Authorize(v *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		acc, err := v.ExtractAccess(c.Request)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"err": "unauthorized"})
			c.Abort()
			return
		}
		c.Set(controllers.UserIDKey, acc.UserID)
		c.Set(controllers.AccessKey, acc)
		c.Next()
	}
}
