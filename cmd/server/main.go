package main

import (
	"log"
	"os"

	"fulfillment-service/internal/app"
	"fulfillment-service/internal/config"
	"fulfillment-service/internal/controllers/http"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer a.Close()

	handler := http.NewHandler(a.Orders, a.Lifecycle, a.Payments, a.Rules, cfg.JWTSecret)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(http.CORSMiddleware())

	handler.RegisterRoutes(r)

	log.Printf("Starting fulfillment service on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Printf("server run: %v", err)
		a.Close()
		os.Exit(1)
	}
}
