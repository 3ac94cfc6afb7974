package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"converse/configs"
	"converse/internal/handlers"
	"converse/internal/hub"

	"github.com/gin-gonic/gin"
)

var (
	httpServer *HttpServer
	once       sync.Once
)

type HttpServer struct {
	ctx           context.Context
	config        *configs.Config
	router        *gin.Engine
	hub           *hub.Hub
	restHandler   *handlers.RestHandler
	socketHandler *handlers.SocketChatHandler
}

func NewHttpServer(
	ctx context.Context,
	config *configs.Config,
	chatHub *hub.Hub,
	restHandler *handlers.RestHandler,
	socketHandler *handlers.SocketChatHandler,
) *HttpServer {
	once.Do(func() {
		httpServer = &HttpServer{
			ctx:           ctx,
			config:        config,
			hub:           chatHub,
			restHandler:   restHandler,
			socketHandler: socketHandler,
		}
	})
	return httpServer
}

func (hs *HttpServer) Run() {
	hs.router = gin.Default()
	hs.setupRoutes()

	server := hs.startServer()
	hs.waitForShutdown(server)
}

func (hs *HttpServer) setupRoutes() {
	api := hs.router.Group("/api", hs.restHandler.MustAuthenticateMiddleware())
	{
		api.GET("/conversations", hs.restHandler.ListConversations)
		api.POST("/conversations", hs.restHandler.CreateConversation)
		api.GET("/conversations/:id/messages", hs.restHandler.GetMessages)
		api.POST("/conversations/:id/messages", hs.restHandler.SendMessage)
		api.POST("/conversations/:id/pin", hs.restHandler.TogglePin)
		api.DELETE("/messages/:id", hs.restHandler.DeleteMessage)
	}

	hs.router.GET("/ws", hs.socketHandler.HandleSocketRoute)
}

func (hs *HttpServer) startServer() *http.Server {
	addr := fmt.Sprintf("%v:%v",
		hs.config.Viper.GetString("server.host"),
		hs.config.Viper.GetInt("server.port"),
	)
	server := &http.Server{
		Addr:    addr,
		Handler: hs.router,
	}

	go func() {
		log.Printf("HTTP server started on %v", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	return server
}

func (hs *HttpServer) waitForShutdown(server *http.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	if err := server.Shutdown(hs.ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	hs.hub.CloseAll()

	log.Println("Server exiting")
}
