package routes

import (
	"net/http"

	"github.com/SumantSagar73/certify/server/httpserver/auth"
	"github.com/SumantSagar73/certify/server/httpserver/controllers"
	"github.com/SumantSagar73/certify/server/httpserver/middlewares"
	v1 "github.com/SumantSagar73/certify/server/httpserver/routes/v1"
	"github.com/gin-gonic/gin"
)

type Options struct {
	Controller   *controllers.Controller
	Verifier     *auth.Verifier
	Google       *auth.Google
	AllowOrigins []string
}

func initialize(ginApp *gin.Engine, opts Options) {
	ginApp.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	private := middlewares.Authorize(opts.Verifier)
	routeGroup := ginApp.Group("/apis/v1")
	v1.Auth(routeGroup, opts.Controller, opts.Google, private)

	privateGroup := ginApp.Group("/apis/v1")
	privateGroup.Use(private)
	v1.Certificate(privateGroup, opts.Controller)
	v1.Storage(privateGroup, opts.Controller)

	v1.Objects(ginApp, opts.Controller)
}

func Build(opts Options) *gin.Engine {
	ginApp := gin.New()
	ginApp.Use(gin.Recovery())
	ginApp.Use(middlewares.CORSMiddleware(opts.AllowOrigins))
	initialize(ginApp, opts)

	return ginApp
}
