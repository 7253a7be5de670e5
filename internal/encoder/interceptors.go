package encoder

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// LoggingUnaryClient returns a unary client interceptor for structured logging.
// Payloads are never logged, only metadata.
func LoggingUnaryClient(log *zap.Logger) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)

		var target string
		if cc != nil {
			target = cc.Target()
		}
		log.Debug("grpc",
			zap.String("method", method),
			zap.String("code", status.Code(err).String()),
			zap.Duration("dur", time.Since(start)),
			zap.String("target", target),
		)
		return err
	}
}
