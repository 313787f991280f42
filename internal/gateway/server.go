// Package gateway exposes the room engines to remote clients over HTTP and a
// websocket room feed.
package gateway

import (
	"net/http"
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func CreateServer(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", func(ctx *gin.Context) { ctx.String(200, "healthy") })

	r.Use(func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")

		if slices.Contains(allowedOrigins, origin) {
			ctx.Next()
			return
		}
		ctx.String(http.StatusForbidden, "forbidden origin")
		ctx.Abort()
	})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			PlayerHeader,
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
	}))

	return r
}

// Register mounts every room route on r.
func (h *Handler) Register(r *gin.Engine) {
	rooms := r.Group("/rooms")
	rooms.Use(h.RequirePlayerMiddleware)

	rooms.POST("", h.CreateRoomHandler)
	rooms.GET("", h.HostedRoomsHandler)
	rooms.GET("/:roomId", h.GetRoomHandler)
	rooms.GET("/:roomId/feed", h.FeedHandler)
	rooms.POST("/:roomId/join", h.JoinRoomHandler)
	rooms.POST("/:roomId/leave", h.LeaveRoomHandler)
	rooms.PATCH("/:roomId/profile", h.UpdateProfileHandler)
	rooms.POST("/:roomId/topics/custom", h.ProposeTopicHandler)
	rooms.POST("/:roomId/votes", h.VoteHandler)
	rooms.POST("/:roomId/order", h.PlaceCardHandler)
	rooms.DELETE("/:roomId/order", h.WithdrawCardHandler)
	rooms.POST("/:roomId/reveal", h.RevealCardHandler)

	host := rooms.Group("/:roomId")
	host.Use(h.RequireHostMiddleware)

	host.DELETE("/players/:playerId", h.RemovePlayerHandler)
	host.POST("/topics/start", h.StartTopicSelectionHandler)
	host.POST("/topics/refresh", h.RefreshTopicsHandler)
	host.POST("/topics/choose", h.ForceChooseHandler)
	host.PUT("/tiebreak", h.SetTiebreakHandler)
	host.POST("/deal", h.DealHandler)
	host.POST("/reset", h.ResetRoundHandler)
	host.DELETE("/used-titles", h.ResetUsedTitlesHandler)
}
