//go:build !darwin || !cgo

package system

// NewReader fails on platforms without IOKit.
func NewReader() (Reader, error) {
	return nil, ErrUnsupported
}

// NewAsserter fails on platforms without IOKit.
func NewAsserter() (Asserter, error) {
	return nil, ErrUnsupported
}

// NewWatcher fails on platforms without IOKit.
func NewWatcher() (Watcher, error) {
	return nil, ErrUnsupported
}
