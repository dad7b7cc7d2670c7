package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"github.com/BenhadineKaoutar/picorpixel/pkg/gamedto"
)

// AuthMiddleware verifies the bearer token issued by the host identity
// provider and exposes the authenticated {userId, username} pair through
// request locals. Signature and expiry failures never reach a handler.
func (s *Server) AuthMiddleware(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return s.unauthorized(c, "missing authorization header")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return s.unauthorized(c, "invalid authorization header format")
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return s.unauthorized(c, "invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return s.unauthorized(c, "invalid token claims")
	}
	userID, _ := claims["user_id"].(string)
	username, _ := claims["username"].(string)
	if userID == "" {
		return s.unauthorized(c, "token carries no user id")
	}
	if username == "" {
		username = "player"
	}

	c.Locals("userId", userID)
	c.Locals("username", username)
	return c.Next()
}

func (s *Server) unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(gamedto.ErrorResponse{
		Error: gamedto.DomainError{Code: gamedto.CodeUnauthorized, Message: msg},
	})
}

// clientLimiter hands out one token-bucket limiter per client IP. Entries
// idle past the expiry window are dropped on the next sweep.
type clientLimiter struct {
	mu       sync.Mutex
	clients  map[string]*limiterEntry
	rate     rate.Limit
	burst    int
	stop     chan struct{}
	stopOnce sync.Once
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(perMinute, burst int) *clientLimiter {
	if perMinute <= 0 {
		perMinute = 120
	}
	if burst <= 0 {
		burst = 30
	}
	cl := &clientLimiter{
		clients: make(map[string]*limiterEntry),
		rate:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		stop:    make(chan struct{}),
	}
	go cl.sweep()
	return cl
}

func (cl *clientLimiter) allow(ip string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	entry, ok := cl.clients[ip]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(cl.rate, cl.burst)}
		cl.clients[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

func (cl *clientLimiter) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-cl.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-10 * time.Minute)
			cl.mu.Lock()
			for ip, entry := range cl.clients {
				if entry.lastSeen.Before(cutoff) {
					delete(cl.clients, ip)
				}
			}
			cl.mu.Unlock()
		}
	}
}

func (cl *clientLimiter) close() {
	cl.stopOnce.Do(func() { close(cl.stop) })
}

// RateLimitMiddleware rejects clients that exceed the configured request
// budget with 429 and a retryable error payload.
func (s *Server) RateLimitMiddleware(c *fiber.Ctx) error {
	if s.limiter.allow(c.IP()) {
		return c.Next()
	}
	return c.Status(fiber.StatusTooManyRequests).JSON(gamedto.ErrorResponse{
		Error: gamedto.DomainError{
			Code:      gamedto.CodeRateLimited,
			Message:   s.messages.Get("error.rate_limited"),
			Retryable: true,
		},
	})
}
