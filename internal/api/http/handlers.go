package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/sandbox"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/shared/validate"
)

// maxBodyBytes bounds an execute request body
const maxBodyBytes = 1 << 20

// Executor runs snippet requests
type Executor interface {
	Execute(ctx context.Context, req sandbox.Request) sandbox.Result
	Capabilities() []string
}

// Handlers contains all HTTP handlers
type Handlers struct {
	engine  Executor
	metrics *monitoring.Metrics
	version string
}

// NewHandlers creates a new handler set
func NewHandlers(engine Executor, metrics *monitoring.Metrics, version string) *Handlers {
	return &Handlers{
		engine:  engine,
		metrics: metrics,
		version: version,
	}
}

// Register mounts every route on router
func (h *Handlers) Register(router gin.IRouter) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	v1 := router.Group("/v1")
	v1.POST("/execute", h.Execute)
	v1.GET("/capabilities", h.Capabilities)
}

// Root identifies the service
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "scriptbox",
		"version": h.version,
	})
}

// Health reports service health with execution statistics
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"executions": h.metrics.Snapshot(),
	})
}

// Capabilities lists the registered capability names
func (h *Handlers) Capabilities(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"capabilities": h.engine.Capabilities()})
}

// Execute runs one snippet. Every request the engine settles is a 200; the
// outcome is in the body.
func (h *Handlers) Execute(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	var body ExecuteRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := body.toRequest()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.engine.Execute(c.Request.Context(), req))
}

// ExecuteRequest is the JSON body of POST /v1/execute
type ExecuteRequest struct {
	Code      string   `json:"code"`
	Input     any      `json:"input"`
	TimeoutMs int64    `json:"timeoutMs"`
	InputMode string   `json:"inputMode"`
	APIPick   []string `json:"apiPick"`
	APIMode   string   `json:"apiMode"`
	Tier      string   `json:"tier"`
}

func (r ExecuteRequest) toRequest() (sandbox.Request, error) {
	if err := validate.Code(r.Code); err != nil {
		return sandbox.Request{}, err
	}
	if err := validate.Names(r.APIPick, "apiPick"); err != nil {
		return sandbox.Request{}, err
	}
	if err := validate.Depth(r.Input, validate.MaxInputDepth); err != nil {
		return sandbox.Request{}, fmt.Errorf("input: %w", err)
	}
	if r.TimeoutMs < 0 {
		return sandbox.Request{}, fmt.Errorf("timeoutMs must not be negative")
	}
	inputMode, err := sandbox.ParseInputMode(r.InputMode)
	if err != nil {
		return sandbox.Request{}, err
	}
	apiMode, err := sandbox.ParseAPIMode(r.APIMode)
	if err != nil {
		return sandbox.Request{}, err
	}
	tier, err := sandbox.ParseTier(r.Tier)
	if err != nil {
		return sandbox.Request{}, err
	}

	return sandbox.Request{
		Code:      r.Code,
		Input:     r.Input,
		Timeout:   time.Duration(r.TimeoutMs) * time.Millisecond,
		InputMode: inputMode,
		APIPick:   r.APIPick,
		APIMode:   apiMode,
		Tier:      tier,
	}, nil
}
