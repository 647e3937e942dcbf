package translation

import "errors"

// ErrNoDatabase is returned by Build when called without a database
// connection, since the persist step has no in-memory fallback.
var ErrNoDatabase = errors.New("translation: pipeline requires a database connection")
