package gateway

import (
	"ito/internal/domain"
	"ito/internal/game"
	"ito/internal/logger"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	PlayerHeader = "X-Player-Id"

	playerKey = "playerId"
	tokenKey  = "hostToken"
)

type Options struct {
	// PingInterval is how often the feed pings an idle client.
	PingInterval time.Duration

	// FrameRate and FrameBurst bound inbound websocket frames per connection.
	FrameRate  float64
	FrameBurst int

	Logger zerolog.Logger
}

type Handler struct {
	game *game.Game
	opts Options
	log  zerolog.Logger
}

func NewHandler(g *game.Game, opts Options) *Handler {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = 1
	}
	if opts.FrameBurst <= 0 {
		opts.FrameBurst = 5
	}
	return &Handler{
		game: g,
		opts: opts,
		log:  logger.ForComponent(opts.Logger, "gateway"),
	}
}

// RequirePlayerMiddleware identifies the caller. There is no authentication:
// the id is whatever stable device id the client presents.
func (h *Handler) RequirePlayerMiddleware(ctx *gin.Context) {
	id := ctx.GetHeader(PlayerHeader)
	if id == "" {
		id = ctx.Query("playerId")
	}
	if id == "" {
		ctx.String(http.StatusUnauthorized, ErrMissingPlayerStr)
		ctx.Abort()
		return
	}
	ctx.Set(playerKey, id)
	ctx.Next()
}

// RequireHostMiddleware exchanges the caller's id for a host token.
func (h *Handler) RequireHostMiddleware(ctx *gin.Context) {
	token, err := h.game.Roster.ClaimHost(ctx.Request.Context(), ctx.Param("roomId"), ctx.GetString(playerKey))
	if err != nil {
		h.abortWithError(ctx, err)
		return
	}
	ctx.Set(tokenKey, token)
	ctx.Next()
}

func hostToken(ctx *gin.Context) game.HostToken {
	token, _ := ctx.MustGet(tokenKey).(game.HostToken)
	return token
}

type profileRequest struct {
	Nickname  string `json:"nickname" binding:"required,max=32"`
	Color     string `json:"color"`
	AvatarURL string `json:"avatarUrl"`
}

func (p profileRequest) player() domain.Player {
	return domain.Player{Nickname: p.Nickname, Color: p.Color, AvatarURL: p.AvatarURL}
}

func (h *Handler) CreateRoomHandler(ctx *gin.Context) {
	var req profileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}
	roomID, _, err := h.game.Roster.CreateRoom(ctx.Request.Context(), ctx.GetString(playerKey), req.player())
	if err != nil {
		h.abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"roomId": roomID})
}

func (h *Handler) HostedRoomsHandler(ctx *gin.Context) {
	ids, err := h.game.Roster.RoomsHostedBy(ctx.Request.Context(), ctx.GetString(playerKey))
	if err != nil {
		h.abortWithError(ctx, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	ctx.JSON(http.StatusOK, gin.H{"rooms": ids})
}

func (h *Handler) GetRoomHandler(ctx *gin.Context) {
	room, err := h.game.Room(ctx.Request.Context(), ctx.Param("roomId"))
	if err != nil {
		h.abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, room)
}

func (h *Handler) JoinRoomHandler(ctx *gin.Context) {
	var req profileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}
	created, err := h.game.Roster.JoinRoom(ctx.Request.Context(), ctx.Param("roomId"), ctx.GetString(playerKey), req.player())
	if err != nil {
		h.abortWithError(ctx, err)
		return
	}
	if created {
		ctx.JSON(http.StatusCreated, gin.H{"created": true})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"created": false})
}

func (h *Handler) LeaveRoomHandler(ctx *gin.Context) {
	if err := h.game.Roster.LeaveRoom(ctx.Request.Context(), ctx.Param("roomId"), ctx.GetString(playerKey)); err != nil {
		h.abortWithError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *Handler) UpdateProfileHandler(ctx *gin.Context) {
	var req profileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}
	if err := h.game.Roster.UpdateProfile(ctx.Request.Context(), ctx.Param("roomId"), ctx.GetString(playerKey), req.player()); err != nil {
		h.abortWithError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *Handler) RemovePlayerHandler(ctx *gin.Context) {
	if err := h.game.Roster.RemovePlayer(ctx.Request.Context(), hostToken(ctx), ctx.Param("playerId")); err != nil {
		h.abortWithError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *Handler) StartTopicSelectionHandler(ctx *gin.Context) {
	options, err := h.game.Topics.StartTopicSelection(ctx.Request.Context(), hostToken(ctx))
	if err != nil {
		h.abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"topicOptions": options})
}

func (h *Handler) RefreshTopicsHandler(ctx *gin.Context) {
	options, err := h.game.Topics.RefreshTopics(ctx.Request.Context(), hostToken(ctx))
	if err != nil {
		h.abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"topicOptions": options})
}

func (h *Handler) ProposeTopicHandler(ctx *gin.Context) {
	var topic domain.Topic
	if err := ctx.ShouldBindJSON(&topic); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}
	if err := h.game.Topics.ProposeTopic(ctx.Request.Context(), ctx.Param("roomId"), ctx.GetString(playerKey), topic); err != nil {
		h.abortWithError(ctx, err)
		return
	}
	ctx.Status(http.StatusCreated)
}

type titleRequest struct {
	Title string `json:"title" binding:"required"`
}

func resolutionBody(res game.Resolution) gin.H {
	body := gin.H{"state": res.State.String()}
	if res.Topic != nil {
		body["topic"] = res.Topic
	}
	if len(res.Tied) > 0 {
		body["tied"] = res.Tied
	}
	return body
}

func (h *Handler) VoteHandler(ctx *gin.Context) {
	var req titleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}
	res, err := h.game.Topics.Vote(ctx.Request.Context(), ctx.Param("roomId"), ctx.GetString(playerKey), req.Title)
	if err != nil {
		h.abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resolutionBody(res))
}

func (h *Handler) ForceChooseHandler(ctx *gin.Context) {
	var req titleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}
	res, err := h.game.Topics.ForceChoose(ctx.Request.Context(), hostToken(ctx), req.Title)
	if err != nil {
		h.abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resolutionBody(res))
}

func (h *Handler) SetTiebreakHandler(ctx *gin.Context) {
	var req struct {
		Method domain.TiebreakMethod `json:"method" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}
	if err := h.game.Topics.SetTiebreakMethod(ctx.Request.Context(), hostToken(ctx), req.Method); err != nil {
		h.abortWithError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *Handler) DealHandler(ctx *gin.Context) {
	var req struct {
		Level int `json:"level"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}
	if req.Level == 0 {
		req.Level = 1
	}
	hands, err := h.game.Dealer.Deal(ctx.Request.Context(), hostToken(ctx), req.Level)
	if err != nil {
		h.abortWithError(ctx, err)
		return
	}
	// Hands are private: the host learns only how many cards went out.
	dealt := 0
	for _, hand := range hands {
		dealt += len(hand)
	}
	ctx.JSON(http.StatusOK, gin.H{"level": req.Level, "dealt": dealt})
}

func (h *Handler) PlaceCardHandler(ctx *gin.Context) {
	var req struct {
		Value int  `json:"cardValue" binding:"required"`
		Index *int `json:"index" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}
	order, err := h.game.Sequencer.PlaceCard(ctx.Request.Context(), ctx.Param("roomId"), ctx.GetString(playerKey), req.Value, *req.Index)
	if err != nil {
		h.abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"cardOrder": order})
}

func (h *Handler) WithdrawCardHandler(ctx *gin.Context) {
	order, err := h.game.Sequencer.WithdrawCard(ctx.Request.Context(), ctx.Param("roomId"), ctx.GetString(playerKey))
	if err != nil {
		h.abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"cardOrder": order})
}

func (h *Handler) RevealCardHandler(ctx *gin.Context) {
	verdict, err := h.game.Revealer.RevealCard(ctx.Request.Context(), ctx.Param("roomId"), ctx.GetString(playerKey))
	if err != nil {
		h.abortWithError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"verdict": verdict})
}

func (h *Handler) ResetRoundHandler(ctx *gin.Context) {
	if err := h.game.Revealer.ResetRound(ctx.Request.Context(), hostToken(ctx)); err != nil {
		h.abortWithError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *Handler) ResetUsedTitlesHandler(ctx *gin.Context) {
	if err := h.game.Revealer.ResetUsedTitles(ctx.Request.Context(), hostToken(ctx)); err != nil {
		h.abortWithError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}
