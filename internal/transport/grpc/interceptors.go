package grpc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vertexdb/vertexdb/internal/apierrors"
	"github.com/vertexdb/vertexdb/internal/metrics"
)

type requestIDKey struct{}

// RequestID returns the request id threaded through ctx by the RequestID
// interceptor, or "" if none is present.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// RequestIDInterceptor assigns a request id from the incoming metadata,
// generating one with uuid.New if the caller did not supply one.
func RequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		id := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get("x-request-id"); len(vals) > 0 {
				id = vals[0]
			}
		}
		if id == "" {
			id = uuid.New().String()
		}
		ctx = context.WithValue(ctx, requestIDKey{}, id)
		grpc.SetHeader(ctx, metadata.Pairs("x-request-id", id))
		return handler(ctx, req)
	}
}

// LoggingInterceptor logs one structured line per RPC and records
// per-method request/latency metrics.
func LoggingInterceptor(logger *zap.Logger, m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		duration := time.Since(start)

		code := "OK"
		if err != nil {
			if ge, ok := apierrors.As(err); ok {
				code = ge.Code.String()
			} else if st, ok := status.FromError(err); ok {
				code = st.Code().String()
			}
		}

		m.RequestsTotal.WithLabelValues(info.FullMethod, code).Inc()
		m.RequestDuration.WithLabelValues(info.FullMethod).Observe(duration.Seconds())

		logger.Info("rpc",
			zap.String("method", info.FullMethod),
			zap.String("request_id", RequestID(ctx)),
			zap.String("code", code),
			zap.Duration("duration", duration),
		)
		return resp, err
	}
}

// RecoveryInterceptor converts a panic in a handler into an INTERNAL
// error instead of crashing the process.
func RecoveryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in rpc handler", zap.String("method", info.FullMethod), zap.Any("panic", r))
				err = apierrors.Internal("internal error", nil).ToGRPCStatus()
			}
		}()
		return handler(ctx, req)
	}
}

// RateLimitInterceptor rejects RPCs past a fixed per-process rate,
// mapping to RESOURCE_EXHAUSTED.
func RateLimitInterceptor(limiter *rate.Limiter, m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !limiter.Allow() {
			m.RateLimitRejections.Inc()
			return nil, apierrors.ResourceExhausted("rate limit exceeded").ToGRPCStatus()
		}
		return handler(ctx, req)
	}
}

// ErrorTranslationInterceptor converts any *apierrors.GraphError returned
// by a handler into its gRPC status, so handlers can return domain errors
// directly.
func ErrorTranslationInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		if ge, ok := apierrors.As(err); ok {
			return nil, ge.ToGRPCStatus()
		}
		return resp, err
	}
}

// Chain composes unary interceptors in order, outermost first.
func Chain(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		chained := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			interceptor := interceptors[i]
			next := chained
			chained = func(ctx context.Context, req interface{}) (interface{}, error) {
				return interceptor(ctx, req, info, next)
			}
		}
		return chained(ctx, req)
	}
}
