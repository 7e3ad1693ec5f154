package payment

import "fmt"

// Options selects and configures a Provider.
type Options struct {
	Provider    string
	SecretKey   string
	AutoSucceed bool
}

// NewProviderFromConfig creates the configured Provider. An empty provider
// name selects the in-memory one.
func NewProviderFromConfig(opts Options) (Provider, error) {
	switch opts.Provider {
	case ProviderStripe:
		return NewStripeProvider(opts.SecretKey)
	case ProviderMemory, "":
		return NewMemoryProvider(opts.AutoSucceed), nil
	default:
		return nil, fmt.Errorf("unknown payment provider: %s (supported: %s, %s)", opts.Provider, ProviderStripe, ProviderMemory)
	}
}
