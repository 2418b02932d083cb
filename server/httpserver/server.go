package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/SumantSagar73/certify/server/httpserver/routes"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type HttpServer struct {
	Router *gin.Engine
	srv    *http.Server
}

func New(port int, opts routes.Options) *HttpServer {
	router := routes.Build(opts)
	return &HttpServer{
		Router: router,
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (server *HttpServer) Start() error {
	log.Info().Str("addr", server.srv.Addr).Msg("Starting the server...")
	if err := server.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Server is not running!")
		return err
	}
	return nil
}

func (server *HttpServer) Shutdown(ctx context.Context) error {
	log.Warn().Msg("Shutting down...")
	return server.srv.Shutdown(ctx)
}
