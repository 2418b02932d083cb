package v1

import (
	"github.com/SumantSagar73/certify/server/httpserver/controllers"
	"github.com/gin-gonic/gin"
)

func Storage(ginApp *gin.RouterGroup, ctr *controllers.Controller) {
	routeGroup := ginApp.Group("/storage")
	routeGroup.POST("/remove", ctr.RemoveObjects)
	routeGroup.GET("/url", ctr.ObjectURL)
}

// Objects serves downloads outside the authenticated API.
func Objects(ginApp *gin.Engine, ctr *controllers.Controller) {
	routeGroup := ginApp.Group("/storage/v1/object")
	routeGroup.GET("/public/:bucket/*path", ctr.PublicObject)
	routeGroup.GET("/sign/:bucket/*path", ctr.SignedObject)
}
