package httpcontext

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	appLogger "github.com/fastygo/taskhub/pkg/logger"
)

// Key represents a context value key exported for reuse.
type Key string

const (
	KeyRemoteAddr Key = "remote_addr"
	KeyUserAgent  Key = "user_agent"

	// UserValueOwner and UserValueSession are the fasthttp user-value keys set by the
	// auth middleware.
	UserValueOwner   = "owner_id"
	UserValueSession = "session_id"
	// UserValueRequestID caches the request ID so middleware and handlers agree on it.
	UserValueRequestID = "request_id"
)

// Adapter converts fasthttp.RequestCtx into a stdlib context with deadlines and metadata.
type Adapter struct {
	timeout time.Duration
}

// NewAdapter constructs a new Adapter using the provided timeout.
func NewAdapter(timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Adapter{
		timeout: timeout,
	}
}

// Attach creates a context with timeout derived from the adapter and enriches it with request
// metadata and, when authenticated, the owner id.
func (a *Adapter) Attach(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	stdCtx, cancel := context.WithTimeout(context.Background(), a.timeout)

	reqID := RequestID(ctx)
	stdCtx = appLogger.ContextWithRequestID(stdCtx, reqID)

	if owner := OwnerID(ctx); owner != "" {
		stdCtx = appLogger.ContextWithOwner(stdCtx, owner)
	}
	if remoteAddr := ctx.RemoteAddr(); remoteAddr != nil {
		stdCtx = context.WithValue(stdCtx, KeyRemoteAddr, remoteAddr.String())
	}
	if ua := string(ctx.Request.Header.UserAgent()); ua != "" {
		stdCtx = context.WithValue(stdCtx, KeyUserAgent, ua)
	}

	return stdCtx, cancel
}

// RequestID returns the request's ID, taking X-Request-ID when supplied and generating one
// otherwise. The value is echoed on the response.
func RequestID(ctx *fasthttp.RequestCtx) string {
	if ctx == nil {
		return uuid.NewString()
	}
	if id, ok := ctx.UserValue(UserValueRequestID).(string); ok && id != "" {
		return id
	}
	id := strings.TrimSpace(string(ctx.Request.Header.Peek("X-Request-ID")))
	if id == "" {
		id = uuid.NewString()
	}
	ctx.SetUserValue(UserValueRequestID, id)
	ctx.Response.Header.Set("X-Request-ID", id)
	return id
}

// OwnerID returns the authenticated owner, or "" for anonymous requests.
func OwnerID(ctx *fasthttp.RequestCtx) string {
	owner, _ := ctx.UserValue(UserValueOwner).(string)
	return owner
}

// SessionID returns the session behind the presented token.
func SessionID(ctx *fasthttp.RequestCtx) string {
	session, _ := ctx.UserValue(UserValueSession).(string)
	return session
}
