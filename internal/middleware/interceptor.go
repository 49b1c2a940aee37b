package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/fekuna/omnipos-order-service/internal/apperr"
	"github.com/fekuna/omnipos-order-service/internal/auth"
	"github.com/fekuna/omnipos-order-service/internal/logger"
)

// ContextInterceptor moves the session headers into the request context and
// maps domain errors onto gRPC status codes. Calls without a session pass
// through; the operations they reach check permissions themselves.
func ContextInterceptor(log logger.ZapLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if s, ok := auth.FromMetadata(ctx); ok {
			ctx = auth.WithSession(ctx, s)
		}

		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			log.Warn("request failed",
				zap.String("method", info.FullMethod),
				zap.Duration("duration", time.Since(start)),
				zap.String("kind", string(apperr.KindOf(err))),
				zap.Error(err),
			)
			return resp, apperr.ToStatus(err)
		}
		log.Debug("request served", zap.String("method", info.FullMethod), zap.Duration("duration", time.Since(start)))
		return resp, nil
	}
}
