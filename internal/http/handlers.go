package http

import (
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telchain/backend/internal/chain"
	"github.com/telchain/backend/internal/monitoring"
	"github.com/telchain/backend/internal/tracing"
)

// Upper bound for the greet endpoint's simulated delay, fixed like the
// broker consumer delays rather than configured per hop.
const maxGreetDelay = 200 * time.Millisecond

// Handlers contains all HTTP handlers for one hop.
type Handlers struct {
	service      string
	orchestrator *chain.Orchestrator
	metrics      *monitoring.Metrics
	logger       *zap.Logger
	brokerReady  func() bool
}

// NewHandlers creates a handler set. brokerReady reports broker connectivity
// for the health endpoint; nil means no broker is configured.
func NewHandlers(service string, orchestrator *chain.Orchestrator, metrics *monitoring.Metrics, logger *zap.Logger, brokerReady func() bool) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		service:      service,
		orchestrator: orchestrator,
		metrics:      metrics,
		logger:       logger,
		brokerReady:  brokerReady,
	}
}

// Chain handles the main chain entry point. The data query parameter is
// carried through every hop; it defaults to "data" when absent.
func (h *Handlers) Chain(c *gin.Context) {
	data := c.DefaultQuery("data", "data")
	resp := h.orchestrator.Handle(c.Request.Context(), data)
	c.JSON(http.StatusOK, resp)
}

// Process is an alias for Chain kept for intermediate hops whose route is
// /api/process rather than /api/chain.
func (h *Handlers) Process(c *gin.Context) {
	h.Chain(c)
}

// Fanout publishes one message to the fan-out exchange.
func (h *Handlers) Fanout(c *gin.Context) {
	data := c.DefaultQuery("data", "data")
	resp := h.orchestrator.HandleFanout(c.Request.Context(), data)
	c.JSON(http.StatusOK, resp)
}

// Greet returns a greeting after a short random delay. It exists to produce
// single-span traces with varying durations.
func (h *Handlers) Greet(c *gin.Context) {
	name := c.DefaultQuery("name", "World")

	delay := rand.N(maxGreetDelay)
	select {
	case <-time.After(delay):
	case <-c.Request.Context().Done():
	}

	if span := tracing.FromContext(c.Request.Context()); span != nil {
		span.Tag("greeting.name", name)
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "hello",
		"name":      name,
		"service":   h.service,
		"timestamp": time.Now().UnixMilli(),
	})
}

// Error always fails. It is the only endpoint that returns a non-200 status;
// the trace middleware records the failure on the SERVER span.
func (h *Handlers) Error(c *gin.Context) {
	err := fmt.Errorf("intentional error for trace testing")
	if span := tracing.FromContext(c.Request.Context()); span != nil {
		span.RecordError(err)
	}
	h.logger.Error("error endpoint invoked", zap.String("service", h.service))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   err.Error(),
		"service": h.service,
	})
}

// Health handles the health check.
func (h *Handlers) Health(c *gin.Context) {
	if h.metrics != nil {
		h.metrics.UpdateUptime()
	}
	status := gin.H{
		"status":  "healthy",
		"service": h.service,
	}
	if h.brokerReady != nil {
		status["broker"] = gin.H{"connected": h.brokerReady()}
	}
	c.JSON(http.StatusOK, status)
}
