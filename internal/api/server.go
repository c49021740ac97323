// Package api is an in-process implementation of the vault backend contract. It backs
// the controller tests and the `vault stub` development server.
package api

import (
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BhargavCodes/ai-vault/internal/auth"
)

// Handler wires HTTP routes to the in-memory state.
type Handler struct {
	state  *State
	auth   *auth.Service
	logger *zap.Logger

	mu     sync.Mutex
	calls  map[string]int
	faults map[string]fault
	holds  map[string]*Hold
}

type fault struct {
	status  int
	message string
}

// NewHandler constructs a Handler instance.
func NewHandler(state *State, authService *auth.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		state:  state,
		auth:   authService,
		logger: logger.Named("stub"),
		calls:  make(map[string]int),
		faults: make(map[string]fault),
		holds:  make(map[string]*Hold),
	}
}

// State exposes the backing data, mostly for seeding.
func (h *Handler) State() *State {
	return h.state
}

// Router builds a gin engine with every route registered.
func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	h.RegisterRoutes(router)
	return router
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(h.instrument())

	authMW := h.auth.Middleware()

	authRoutes := router.Group("/auth")
	authRoutes.POST("/signup", h.signup)
	authRoutes.POST("/login", h.login)
	authRoutes.POST("/forgot-password", h.forgotPassword)
	authRoutes.POST("/reset-password", h.resetPassword)
	authRoutes.GET("/me", authMW, h.me)
	authRoutes.PUT("/change-password", authMW, h.changePassword)
	authRoutes.PUT("/assign-role/:id", authMW, h.requireAdmin(), h.assignRole)

	files := router.Group("/files", authMW)
	files.GET("/list", h.listFiles)
	files.POST("/upload", h.uploadFile)
	files.POST("/upload/profile", h.uploadAvatar)
	files.DELETE("/delete/:id", h.deleteFile)
	files.GET("/history", h.history)
	files.POST("/:id/analyze", h.analyzeFile)
	files.POST("/:id/suggest_name", h.suggestName)
	files.PUT("/:id/rename", h.renameFile)
	files.POST("/:id/chat", h.chat)

	users := router.Group("/users", authMW, h.requireAdmin())
	users.GET("", h.listUsers)
	users.DELETE("/:id", h.deleteUser)
}

func routeKey(method, route string) string {
	return method + " " + route
}

// instrument counts calls per route and applies injected faults and holds. Routes are
// gin patterns such as "/files/:id/analyze".
func (h *Handler) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := routeKey(c.Request.Method, c.FullPath())
		h.mu.Lock()
		h.calls[key]++
		f, faulted := h.faults[key]
		hold := h.holds[key]
		if hold != nil {
			delete(h.holds, key)
		}
		h.mu.Unlock()

		if hold != nil {
			hold.wait()
		}
		if faulted {
			h.logger.Debug("injected fault", zap.String("route", key), zap.Int("status", f.status))
			c.AbortWithStatusJSON(f.status, gin.H{"error": f.message})
			return
		}
		c.Next()
	}
}

// Calls reports how many requests reached the route.
func (h *Handler) Calls(method, route string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[routeKey(method, route)]
}

// Fail makes every request to the route answer with status until Heal is called.
func (h *Handler) Fail(method, route string, status int, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.faults[routeKey(method, route)] = fault{status: status, message: message}
}

func (h *Handler) Heal(method, route string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.faults, routeKey(method, route))
}

// Hold parks the next request to the route until Release is called.
func (h *Handler) Hold(method, route string) *Hold {
	hold := &Hold{arrived: make(chan struct{}), release: make(chan struct{})}
	h.mu.Lock()
	h.holds[routeKey(method, route)] = hold
	h.mu.Unlock()
	return hold
}

// Hold is a one-shot gate on a single request.
type Hold struct {
	arrived     chan struct{}
	release     chan struct{}
	releaseOnce sync.Once
}

// Arrived is closed once the held request reaches the handler.
func (h *Hold) Arrived() <-chan struct{} {
	return h.arrived
}

func (h *Hold) Release() {
	h.releaseOnce.Do(func() { close(h.release) })
}

func (h *Hold) wait() {
	close(h.arrived)
	<-h.release
}
