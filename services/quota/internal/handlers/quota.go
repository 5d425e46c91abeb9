package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Usama125/ResumeAgentAI-sub000/libs/auth"
	"github.com/Usama125/ResumeAgentAI-sub000/libs/httpmiddleware"
	"github.com/Usama125/ResumeAgentAI-sub000/services/quota/internal/config"
	"github.com/Usama125/ResumeAgentAI-sub000/services/quota/internal/fingerprint"
	"github.com/Usama125/ResumeAgentAI-sub000/services/quota/internal/limiter"
	"github.com/gin-gonic/gin"
)

const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"

	// DecisionKey is the gin context key under which Guard stores the admitted decision.
	DecisionKey = "quota.decision"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type Engine interface {
	Check(ctx context.Context, signal fingerprint.Signal, class limiter.Class, now time.Time) (limiter.Decision, error)
	Peek(ctx context.Context, signal fingerprint.Signal, class limiter.Class, now time.Time) (limiter.Decision, error)
	CheckAuthenticated(ctx context.Context, accountID string, class limiter.Class, now time.Time) (limiter.Decision, error)
	PeekAuthenticated(ctx context.Context, accountID string, class limiter.Class, now time.Time) (limiter.Decision, error)
}

type Resolver interface {
	Resolve(header string) (string, error)
}

type DenialRecorder interface {
	Denied(class limiter.Class, path limiter.Path, subject, requestID string, d limiter.Decision, at time.Time)
}

type QuotaHandler struct {
	Engine     Engine
	Resolver   Resolver
	Denials    DenialRecorder
	Logger     *slog.Logger
	Clock      Clock
	TrustProxy bool
	// AuthFailurePolicy is config.AuthFailureAnonymous or config.AuthFailureReject.
	AuthFailurePolicy string
	OnAuthFallback    func(policy string)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type quotaResponse struct {
	Class limiter.Class `json:"class"`
	limiter.Decision
}

type deniedResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Class   limiter.Class `json:"class"`
	limiter.Decision
}

func NewQuotaHandler(engine Engine, resolver Resolver, logger *slog.Logger, trustProxy bool, authFailurePolicy string) *QuotaHandler {
	if authFailurePolicy == "" {
		authFailurePolicy = config.AuthFailureAnonymous
	}
	return &QuotaHandler{
		Engine:            engine,
		Resolver:          resolver,
		Logger:            logger,
		Clock:             systemClock{},
		TrustProxy:        trustProxy,
		AuthFailurePolicy: authFailurePolicy,
	}
}

func (h *QuotaHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/quota/:class/consume", h.Consume)
	r.GET("/v1/quota/:class", h.Status)
}

// Consume records one request of the class and reports the decision.
func (h *QuotaHandler) Consume(c *gin.Context) {
	class, ok := h.parseClass(c)
	if !ok {
		return
	}
	d, ok := h.decide(c, class, true)
	if !ok {
		return
	}
	setRateHeaders(c, d)
	if !d.Allowed {
		c.JSON(http.StatusTooManyRequests, denied(class, d))
		return
	}
	c.JSON(http.StatusOK, quotaResponse{Class: class, Decision: d})
}

// Status reports the decision the next request would get without consuming quota.
func (h *QuotaHandler) Status(c *gin.Context) {
	class, ok := h.parseClass(c)
	if !ok {
		return
	}
	d, ok := h.decide(c, class, false)
	if !ok {
		return
	}
	setRateHeaders(c, d)
	c.JSON(http.StatusOK, quotaResponse{Class: class, Decision: d})
}

// Guard throttles the wrapped route under class. Admitted requests carry their
// decision in the context under DecisionKey.
func (h *QuotaHandler) Guard(class limiter.Class) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, ok := h.decide(c, class, true)
		if !ok {
			c.Abort()
			return
		}
		setRateHeaders(c, d)
		if !d.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, denied(class, d))
			return
		}
		c.Set(DecisionKey, d)
		c.Next()
	}
}

func (h *QuotaHandler) parseClass(c *gin.Context) (limiter.Class, bool) {
	class, err := limiter.ParseClass(c.Param("class"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "UNKNOWN_CLASS", Message: "unknown request class"})
		return "", false
	}
	return class, true
}

// decide resolves the caller and runs the matching path. It returns false once it has
// written an error response itself.
func (h *QuotaHandler) decide(c *gin.Context, class limiter.Class, commit bool) (limiter.Decision, bool) {
	accountID, ok := h.identify(c)
	if !ok {
		return limiter.Decision{}, false
	}

	ctx := c.Request.Context()
	now := h.clock().Now()

	var (
		d       limiter.Decision
		err     error
		path    limiter.Path
		subject string
	)
	if accountID != "" {
		path, subject = limiter.PathAuthenticated, accountID
		if commit {
			d, err = h.Engine.CheckAuthenticated(ctx, accountID, class, now)
		} else {
			d, err = h.Engine.PeekAuthenticated(ctx, accountID, class, now)
		}
	} else {
		signal := ExtractSignal(c, h.TrustProxy)
		path, subject = limiter.PathAnonymous, fingerprint.Derive(signal)
		if commit {
			d, err = h.Engine.Check(ctx, signal, class, now)
		} else {
			d, err = h.Engine.Peek(ctx, signal, class, now)
		}
	}
	if err != nil {
		h.logger().Error("quota decision failed", "class", string(class), "path", string(path), "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return limiter.Decision{}, false
	}

	if commit && !d.Allowed && h.Denials != nil {
		h.Denials.Denied(class, path, subject, httpmiddleware.GetRequestID(c), d, now)
	}
	return d, true
}

// identify returns the account id of the caller, or "" for an anonymous request.
func (h *QuotaHandler) identify(c *gin.Context) (string, bool) {
	if h.Resolver == nil {
		return "", true
	}
	accountID, err := h.Resolver.Resolve(c.GetHeader("Authorization"))
	switch {
	case err == nil:
		return accountID, true
	case errors.Is(err, auth.ErrNoCredentials):
		return "", true
	}

	if h.OnAuthFallback != nil {
		h.OnAuthFallback(h.AuthFailurePolicy)
	}
	if h.AuthFailurePolicy == config.AuthFailureReject {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "invalid credentials"})
		return "", false
	}
	h.logger().Warn("credentials could not be resolved, treating request as anonymous",
		"request_id", httpmiddleware.GetRequestID(c),
		"error", err,
	)
	return "", true
}

func denied(class limiter.Class, d limiter.Decision) deniedResponse {
	return deniedResponse{
		Code:     "RATE_LIMITED",
		Message:  "quota exceeded for " + string(class),
		Class:    class,
		Decision: d,
	}
}

func setRateHeaders(c *gin.Context, d limiter.Decision) {
	c.Header(HeaderLimit, strconv.Itoa(d.Limit))
	c.Header(HeaderRemaining, strconv.Itoa(d.Remaining))
	if d.ResetInSeconds == nil {
		return
	}
	reset := strconv.FormatInt(*d.ResetInSeconds, 10)
	c.Header(HeaderReset, reset)
	if !d.Allowed {
		c.Header(HeaderRetryAfter, reset)
	}
}

func (h *QuotaHandler) clock() Clock {
	if h.Clock == nil {
		return systemClock{}
	}
	return h.Clock
}

func (h *QuotaHandler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}
