package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/thoward27/friend-olympics/internal/api/handlers"
	"github.com/thoward27/friend-olympics/internal/auth"
	"github.com/thoward27/friend-olympics/internal/config"
	"github.com/thoward27/friend-olympics/internal/fixtures"
	"github.com/thoward27/friend-olympics/internal/notify"
	"github.com/thoward27/friend-olympics/internal/store"
	"github.com/thoward27/friend-olympics/internal/ws"
)

// SetupRoutes configures all API routes and returns the lifecycle service so
// callers can reuse the same wiring.
func SetupRoutes(router *gin.Engine, db *sqlx.DB, rdb *redis.Client, cfg *config.Config, hub *ws.Hub) *fixtures.Service {
	// CORS for the frontend dev server
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Origin")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	players := store.NewPlayers(db)
	games := store.NewGames(db)
	fixtureStore := store.NewFixtures(db)
	svc := fixtures.NewService(players, games, fixtureStore, notify.NewRedisPublisher(rdb))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)

		v1.POST("/auth/login", handlers.Login(players, cfg))
		v1.GET("/auth/qr/:username/:token", handlers.QRLogin(players, cfg))

		v1.GET("/ws", ws.Serve(hub))

		authed := v1.Group("", auth.RequireAuth(cfg))
		{
			authed.GET("/players", handlers.ListPlayers(players))
			authed.GET("/players/:id", handlers.GetPlayer(players))
			authed.GET("/players/:id/qrcode", handlers.PlayerQRCode(players, cfg))

			authed.GET("/games", handlers.ListGames(games))
			authed.GET("/games/:slug", handlers.GetGame(games))

			authed.POST("/fixtures", handlers.CreateFixture(svc))
			authed.GET("/fixtures", handlers.ListFixtures(fixtureStore))
			authed.GET("/fixtures/:id", handlers.GetFixture(fixtureStore))
			authed.PUT("/fixtures/:id/ranks", handlers.UpdateRanks(svc))
			authed.POST("/fixtures/:id/finish", handlers.FinishFixture(svc))

			admin := authed.Group("", auth.RequireAdmin())
			{
				admin.POST("/players", handlers.CreatePlayer(players, cfg))
				admin.POST("/games", handlers.CreateGame(games))
				admin.POST("/fixtures/:id/reapply", handlers.ReapplyFixture(svc))
			}
		}
	}

	return svc
}
