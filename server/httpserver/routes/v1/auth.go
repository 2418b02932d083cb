package v1

import (
	"github.com/SumantSagar73/certify/server/httpserver/auth"
	"github.com/SumantSagar73/certify/server/httpserver/controllers"
	"github.com/gin-gonic/gin"
)

func Auth(ginApp *gin.RouterGroup, ctr *controllers.Controller, google *auth.Google, private gin.HandlerFunc) {
	routeGroup := ginApp.Group("/auth")
	routeGroup.POST("/otp", ctr.SendMagicLink)
	routeGroup.GET("/verify", ctr.VerifyMagicLink)

	oauth := routeGroup.Group("/google")
	oauth.Use(google.Session())
	oauth.GET("/login", ctr.GoogleLogin)
	oauth.GET("/callback", ctr.GoogleCallback)

	routeGroup.GET("/session", private, ctr.CurrentSession)
	routeGroup.POST("/logout", private, ctr.Logout)
}
