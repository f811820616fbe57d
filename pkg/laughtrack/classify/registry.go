package classify

import (
	"fmt"
	"time"
)

// Backend names accepted by New.
const (
	BackendSpectral = "spectral"
	BackendHTTP     = "http"
	BackendReplay   = "replay"
)

// Options carries backend-specific settings for New.
type Options struct {
	URL        string        // http: model server base URL
	Timeout    time.Duration // http: per-request timeout
	ScriptPath string        // replay: JSON script file
}

// New constructs the named backend.
func New(name string, opts Options) (Classifier, error) {
	switch name {
	case "", BackendSpectral:
		return NewSpectral(), nil
	case BackendHTTP:
		return NewHTTP(opts.URL, opts.Timeout)
	case BackendReplay:
		if opts.ScriptPath == "" {
			return nil, fmt.Errorf("replay backend needs a script path")
		}
		return LoadScript(opts.ScriptPath)
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", name)
	}
}
