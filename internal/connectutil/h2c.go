package connectutil

import (
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const maxConcurrentStreams = 100

// H2CHandler serves handler over cleartext HTTP/2 as well as HTTP/1.1, so
// Connect and gRPC clients reach the service without TLS.
func H2CHandler(handler http.Handler) http.Handler {
	return h2c.NewHandler(handler, &http2.Server{
		MaxConcurrentStreams: maxConcurrentStreams,
		IdleTimeout:          2 * time.Minute,
	})
}
