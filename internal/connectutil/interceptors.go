package connectutil

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/pitabwire/frame/security"
	securityhttp "github.com/pitabwire/frame/security/interceptors/httptor"
)

// DefaultOptions returns the handler options shared by every service: the
// JSON codec, panic recovery and request logging.
func DefaultOptions() []connect.HandlerOption {
	return []connect.HandlerOption{
		connect.WithCodec(JSONCodec{}),
		connect.WithRecover(recoverPanic),
		connect.WithInterceptors(NewLoggingInterceptor()),
	}
}

// DefaultClientOptions returns the client options matching DefaultOptions.
func DefaultClientOptions() []connect.ClientOption {
	return []connect.ClientOption{
		connect.WithCodec(JSONCodec{}),
		connect.WithInterceptors(NewLoggingInterceptor()),
	}
}

// AuthenticatedHTTPMiddleware wraps an http.Handler with frame's
// authentication middleware, validating bearer tokens on every route.
func AuthenticatedHTTPMiddleware(handler http.Handler, authenticator security.Authenticator) http.Handler {
	return securityhttp.AuthenticationMiddleware(handler, authenticator)
}

func recoverPanic(ctx context.Context, spec connect.Spec, _ http.Header, r any) error {
	slog.ErrorContext(ctx, "rpc panic",
		slog.String("procedure", spec.Procedure),
		slog.String("panic", fmt.Sprint(r)))
	return connect.NewError(connect.CodeInternal, fmt.Errorf("internal error"))
}

// NewLoggingInterceptor logs the procedure, peer, duration and, on failure,
// the Connect code of each unary call.
func NewLoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			attrs := []any{
				slog.String("procedure", req.Spec().Procedure),
				slog.String("peer", req.Peer().Addr),
				slog.Duration("duration", time.Since(start)),
			}
			if err != nil {
				attrs = append(attrs,
					slog.String("code", connect.CodeOf(err).String()),
					slog.String("error", err.Error()))
				slog.WarnContext(ctx, "rpc error", attrs...)
			} else {
				slog.DebugContext(ctx, "rpc ok", attrs...)
			}
			return resp, err
		}
	}
}
