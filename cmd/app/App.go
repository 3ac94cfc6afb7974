package app

import (
	"context"
	"log"
	"sync"

	"converse/configs"
	"converse/internal/handlers"
	"converse/internal/hub"
	"converse/internal/repositories"
	"converse/internal/servers/database"
	"converse/internal/servers/http"
	"converse/internal/services"

	"github.com/redis/go-redis/v9"
)

var (
	app  *App
	once sync.Once
)

type App struct {
	ctx     context.Context
	configs *configs.Config
	redis   *redis.Client
}

func GetApp() *App {
	once.Do(func() {
		app = &App{}
	})
	return app
}

func (app *App) LetsGo() {
	app.ctx = context.Background()
	app.configs = configs.GetConfig()
	app.redis = redis.NewClient(&redis.Options{
		Addr: app.configs.Viper.GetString("redis.addr"),
	})

	db := database.GetDB(app.configs)
	chatRepo := repositories.NewChatRepository(db)

	chatHub := hub.NewHub()
	bridge := hub.NewRedisBridge(app.ctx, app.redis, chatHub)
	go bridge.Run()

	redisAddr := app.configs.Viper.GetString("redis.addr")
	queue := app.configs.Viper.GetString("notifications.queue")
	notifier := services.NewNotificationService(redisAddr, queue)

	chatService := services.NewChatService(chatRepo, bridge, notifier)

	worker := services.NewNotificationWorker(
		redisAddr,
		queue,
		app.configs.Viper.GetInt("notifications.concurrency"),
		chatRepo,
		bridge,
	)
	go func() {
		if err := worker.Run(); err != nil {
			log.Fatalf("Notification worker failed: %v", err)
		}
	}()

	jwtKey := []byte(app.configs.Viper.GetString("jwt.secret"))
	restHandler := handlers.NewRestHandler(chatService, jwtKey)
	socketHandler := handlers.NewSocketChatHandler(chatHub, chatService, jwtKey)

	http.NewHttpServer(
		app.ctx,
		app.configs,
		chatHub,
		restHandler,
		socketHandler,
	).Run()

	worker.Shutdown()
	if err := notifier.Close(); err != nil {
		log.Printf("Error closing notification client: %v", err)
	}
}
