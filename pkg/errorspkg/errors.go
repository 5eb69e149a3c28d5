// Package errorspkg provides errors shared across adapters.
package errorspkg

import "errors"

// ErrInternal indicates an adapter-internal defect the caller cannot
// act on beyond reporting it.
var ErrInternal = errors.New("internal")
