package dataset

import "errors"

var (
	// ErrAcquisition reports that the external source could not be fetched.
	// The provider recovers by falling back to synthetic data.
	ErrAcquisition = errors.New("dataset: acquisition failed")

	// ErrFormat reports a fetched bundle without a usable tabular file, or
	// a file that is not the expected CSV shape.
	ErrFormat = errors.New("dataset: unexpected format")

	// ErrNoData reports that no dataset could be produced at all, the
	// synthetic fallback included.
	ErrNoData = errors.New("dataset: no data")
)

// kind names the failure class of err for logging.
func kind(err error) string {
	switch {
	case errors.Is(err, ErrFormat):
		return "format"
	case errors.Is(err, ErrAcquisition):
		return "acquisition"
	case errors.Is(err, ErrNoData):
		return "no_data"
	default:
		return "unknown"
	}
}
