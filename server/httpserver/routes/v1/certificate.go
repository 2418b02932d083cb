package v1

import (
	"github.com/SumantSagar73/certify/server/httpserver/controllers"
	"github.com/gin-gonic/gin"
)

func Certificate(ginApp *gin.RouterGroup, ctr *controllers.Controller) {
	routeGroup := ginApp.Group("/certificates")
	routeGroup.GET("", ctr.ListCertificates)
	routeGroup.POST("", ctr.UploadCertificate)
	routeGroup.POST("/lookup", ctr.LookupCertificates)
	routeGroup.POST("/delete", ctr.DeleteCertificates)
	routeGroup.GET("/authorities", ctr.ListAuthorities)
	routeGroup.PUT("/:id", ctr.UpdateCertificate)
}
