package httpapi

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/manenim/storefront/pkg/limiter"
)

const (
	sessionCookie = "sid"
	sessionMaxAge = 30 * 24 * 60 * 60

	ctxSession = "session_id"
	ctxUser    = "user_id"
)

// session makes sure every caller carries a session id cookie.
func (s *Server) session() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(sessionCookie)
		if _, perr := uuid.Parse(sid); err != nil || perr != nil {
			sid = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(sessionCookie, sid, sessionMaxAge, "/", "", false, true)
		}
		c.Set(ctxSession, sid)
		c.Next()
	}
}

// identify attaches the token subject when a valid bearer token is present.
// Invalid tokens are ignored here; protected routes reject them.
func (s *Server) identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, ok := bearer(c.GetHeader("Authorization")); ok {
			if sub, err := s.tokens.Subject(raw); err == nil {
				c.Set(ctxUser, sub)
			}
		}
		c.Next()
	}
}

func bearer(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := bearer(c.GetHeader("Authorization")); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}
		if c.GetString(ctxUser) != s.admin.User {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Next()
	}
}

func requestInfo(c *gin.Context) limiter.RequestInfo {
	return limiter.RequestInfo{
		Address:   c.ClientIP(),
		UserID:    c.GetString(ctxUser),
		SessionID: c.GetString(ctxSession),
	}
}

// rateLimit counts the request against cat. Limiter failures let the
// request through.
func (s *Server) rateLimit(cat limiter.Category) gin.HandlerFunc {
	return func(c *gin.Context) {
		dec, err := s.guard.Check(c.Request.Context(), cat, requestInfo(c))
		if err != nil {
			s.logger.Error("rate limiter failed", "category", string(cat), "error", err)
			c.Next()
			return
		}

		setLimitHeaders(c, dec)
		if !dec.Allow {
			secs := retryAfterSeconds(dec.RetryAfter)
			c.Header("Retry-After", strconv.FormatInt(secs, 10))
			s.recorder.Add("http.rate_limited", 1, map[string]string{"category": string(cat)})
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many requests, please try again later",
				"retry_after": secs,
			})
			return
		}
		c.Next()
	}
}

func setLimitHeaders(c *gin.Context, dec limiter.Decision) {
	c.Header("X-RateLimit-Limit", strconv.FormatInt(dec.Limit, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(dec.Remaining, 10))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(dec.ResetTime.Unix(), 10))
}

func retryAfterSeconds(d time.Duration) int64 {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// logRequests replaces gin's logger with the structured one.
func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := s.clock.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		took := s.clock.Since(start)

		s.recorder.Add("http.requests", 1, map[string]string{"route": route, "status": strconv.Itoa(status)})
		s.recorder.Observe("http.latency", took.Seconds(), map[string]string{"route": route})
		s.logger.Debug("request",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration", took,
			"client", c.ClientIP(),
		)
	}
}
