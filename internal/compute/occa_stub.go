//go:build !occa

package compute

import "log/slog"

// OCCABackend is compiled out; build with -tags occa to enable it.
type OCCABackend struct {
	*CPUBackend
}

func NewOCCABackend(device string, b *Buffers, logger *slog.Logger) (*OCCABackend, error) {
	return nil, errNotCompiled
}

func (o *OCCABackend) Name() string    { return "occa (not available)" }
func (o *OCCABackend) Available() bool { return false }
