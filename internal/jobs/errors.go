package jobs

import "github.com/cockroachdb/errors"

// ErrJobNotFound is returned for an unknown job id.
var ErrJobNotFound = errors.New("job not found")
