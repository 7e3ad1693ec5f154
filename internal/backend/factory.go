package backend

import (
	"fmt"
	"time"

	"github.com/proenglish/go_proenglish/internal/practice"
	"github.com/proenglish/go_proenglish/internal/repository"
)

// Options selects and configures a Backend.
type Options struct {
	Type         string
	BaseURL      string
	ServiceToken string
	Timeout      time.Duration
	Document     *repository.DataDocument
	Rules        practice.Rules
}

// NewBackendFromConfig creates the configured Backend. "memory" serves
// Document (or an empty one); "http" (the default) calls the REST API.
func NewBackendFromConfig(opts Options) (Backend, error) {
	switch opts.Type {
	case TypeMemory:
		doc := repository.DataDocument{}
		if opts.Document != nil {
			doc = *opts.Document
		}
		return NewMemoryBackend(doc, opts.Rules), nil
	case TypeHTTP, "":
		return NewHTTPBackend(opts.BaseURL, opts.ServiceToken, opts.Timeout, nil)
	default:
		return nil, fmt.Errorf("unknown backend type: %s (supported: %s, %s)", opts.Type, TypeHTTP, TypeMemory)
	}
}
