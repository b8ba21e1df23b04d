//go:build !darwin && !linux

package evaluator

// OpenLibrary is only available where the evaluator can be loaded without cgo.
func OpenLibrary(path string) (Library, error) {
	return nil, ErrUnsupported
}
