package fetch

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// DataRetrievalError collects the sources a batch could not retrieve. The
// batch's successful results remain usable.
type DataRetrievalError struct {
	URLs []string
	errs *multierror.Error
}

func (e *DataRetrievalError) Error() string {
	return fmt.Sprintf("could not retrieve %d source(s): %s", len(e.URLs), strings.Join(e.URLs, ", "))
}

// Unwrap exposes the per-source errors to errors.Is and errors.As.
func (e *DataRetrievalError) Unwrap() []error {
	return e.errs.WrappedErrors()
}

// Detail renders every per-source error, one per line.
func (e *DataRetrievalError) Detail() string {
	return e.errs.Error()
}

// Failures aggregates the failed results of a batch, or returns nil when
// every URL succeeded.
func Failures[T any](results []Result[T]) error {
	var merr *multierror.Error
	var urls []string
	for _, r := range results {
		if r.Success {
			continue
		}
		urls = append(urls, r.URL)
		merr = multierror.Append(merr, fmt.Errorf("%s: %w", r.URL, r.Err))
	}
	if merr == nil {
		return nil
	}
	return &DataRetrievalError{URLs: urls, errs: merr}
}
