package middleware

import (
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskhub/pkg/httpcontext"
)

// RequestObserver receives one call per finished request.
type RequestObserver interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

// AccessLog assigns a request ID, logs each request and reports it to observer when set.
// route names the matched pattern so metric labels stay bounded.
func AccessLog(logger *zap.Logger, observer RequestObserver) func(route string, next fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(route string, next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()
			reqID := httpcontext.RequestID(ctx)

			next(ctx)

			elapsed := time.Since(start)
			status := ctx.Response.StatusCode()
			method := string(ctx.Method())
			if observer != nil {
				observer.ObserveRequest(method, route, status, elapsed)
			}

			fields := []zap.Field{
				zap.String("request_id", reqID),
				zap.String("method", method),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Duration("elapsed", elapsed),
			}
			if owner := httpcontext.OwnerID(ctx); owner != "" {
				fields = append(fields, zap.String("owner_id", owner))
			}
			if status >= fasthttp.StatusInternalServerError {
				logger.Warn("request served", fields...)
				return
			}
			logger.Info("request served", fields...)
		}
	}
}
