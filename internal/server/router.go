package server

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"contact-chat-lab/internal/auth"
	"contact-chat-lab/internal/console"
	"contact-chat-lab/internal/handler"
	"contact-chat-lab/internal/hub"
	"contact-chat-lab/internal/middleware"
	"contact-chat-lab/internal/render"
	"contact-chat-lab/internal/store"
)

//go:embed templates/*.html
var templates embed.FS

type Deps struct {
	Console    *console.Console
	Hub        *hub.Hub
	Gatherer   prometheus.Gatherer
	APIBaseURL string
	WSBaseURL  string
	Now        func() time.Time
}

// NewRouter serves the browser console. Console changes are pushed to /live
// viewers through deps.Hub.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	// Token ids are path segments and may contain escaped slashes.
	r.UseRawPath = true
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	now := deps.Now
	if now == nil {
		now = time.Now
	}
	tmpl := template.Must(template.New("").Funcs(render.FuncMap(now)).ParseFS(templates, "templates/*.html"))
	r.SetHTMLTemplate(tmpl)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	h := &handler.ConsoleHandler{
		Console:    deps.Console,
		APIBaseURL: deps.APIBaseURL,
		WSBaseURL:  deps.WSBaseURL,
		Now:        now,
	}
	r.GET("/", h.Page)

	actions := r.Group("/actions")
	registerConsoleActions(actions, h, false)

	api := r.Group("/api")
	api.GET("/state", h.State)
	registerConsoleActions(api, h, true)

	handler.PublishLive(deps.Console, deps.Hub)
	live := &handler.LiveHandler{Console: deps.Console, Hub: deps.Hub}
	r.GET("/live", live.Serve)

	return r
}

func registerConsoleActions(g *gin.RouterGroup, h *handler.ConsoleHandler, asJSON bool) {
	c := h.Console
	g.POST("/context", h.SetContext(asJSON))
	g.POST("/filters", h.SetFilters(asJSON))
	g.POST("/composer", h.SetComposer(asJSON))
	g.POST("/token-expiry", h.SetTokenExpiry(asJSON))

	g.POST("/messages/list", h.Run(asJSON, c.ListMessages))
	g.POST("/messages/send", h.Run(asJSON, c.SendMessage))
	g.POST("/messages/clear", h.Do(asJSON, c.ClearMessages))
	g.POST("/composer/reset", h.Do(asJSON, c.ResetComposer))
	g.POST("/tokens/create", h.Run(asJSON, c.CreateToken))
	g.POST("/tokens/list", h.Run(asJSON, c.ListTokens))
	g.POST("/tokens/:id/invalidate", h.Invalidate(asJSON))
}

type FakeAPIDeps struct {
	Store *store.Store
	Hub   *hub.Hub
	// TokenConfig.Secret, when set, turns on bearer auth and signed token values.
	TokenConfig   auth.TokenConfig
	CreateLimiter *middleware.RateLimiter
	ResponseDelay time.Duration
}

// NewFakeAPIRouter serves an in-memory stand-in for the chat API.
func NewFakeAPIRouter(deps FakeAPIDeps) *gin.Engine {
	r := gin.New()
	// Token ids are path segments and may contain escaped slashes.
	r.UseRawPath = true
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	chat := r.Group("/location-contact-chat")
	if deps.TokenConfig.Secret != "" {
		chat.Use(middleware.RequireAuth(deps.TokenConfig))
	}
	if deps.ResponseDelay > 0 {
		chat.Use(delay(deps.ResponseDelay))
	}

	chatHandler := &handler.ChatHandler{Store: deps.Store, Hub: deps.Hub}
	chat.GET("/messages", chatHandler.List)
	chat.POST("/messages", chatHandler.Send)

	tokenHandler := &handler.TokenHandler{Store: deps.Store, Hub: deps.Hub, TokenConfig: deps.TokenConfig}
	if deps.CreateLimiter != nil {
		chat.POST("/tokens", middleware.RateLimitMiddleware(deps.CreateLimiter), tokenHandler.Create)
	} else {
		chat.POST("/tokens", tokenHandler.Create)
	}
	chat.GET("/tokens", tokenHandler.List)
	chat.POST("/tokens/:id/invalidate", tokenHandler.Invalidate)

	notifyHandler := &handler.NotifyHandler{Hub: deps.Hub, Store: deps.Store}
	r.GET("/ws", notifyHandler.Serve)

	return r
}

// delay holds each response, which makes overlapping requests easy to provoke.
func delay(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		select {
		case <-time.After(d):
		case <-c.Request.Context().Done():
		}
		c.Next()
	}
}
