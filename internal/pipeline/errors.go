package pipeline

import "errors"

// ErrNoGenerator is returned when a query is requested but no generator is
// configured.
var ErrNoGenerator = errors.New("query generation is not available; check the GOOGLE_API_KEY configuration")
