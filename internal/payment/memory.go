package payment

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryProvider keeps intents in process. With autoSucceed every new intent
// is created already paid, which lets the checkout run without a card form.
type MemoryProvider struct {
	mu          sync.RWMutex
	intents     map[string]Intent
	autoSucceed bool
}

// NewMemoryProvider creates an empty in-memory provider.
func NewMemoryProvider(autoSucceed bool) *MemoryProvider {
	return &MemoryProvider{intents: make(map[string]Intent), autoSucceed: autoSucceed}
}

func (m *MemoryProvider) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	if err := ctx.Err(); err != nil {
		return Intent{}, err
	}
	if err := req.validate(); err != nil {
		return Intent{}, err
	}
	id := "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	in := Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Amount:       FromMinorUnits(ToMinorUnits(req.Amount)),
		Currency:     strings.ToUpper(req.Currency),
		Status:       StatusRequiresPaymentMethod,
		Metadata:     metadataFor(req),
	}
	if m.autoSucceed {
		in.Status = StatusSucceeded
	}

	m.mu.Lock()
	m.intents[id] = in
	m.mu.Unlock()
	return cloneIntent(in), nil
}

func (m *MemoryProvider) GetIntent(ctx context.Context, id string) (Intent, error) {
	if err := ctx.Err(); err != nil {
		return Intent{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	in, ok := m.intents[id]
	if !ok {
		return Intent{}, fmt.Errorf("%w: %s", ErrIntentNotFound, id)
	}
	return cloneIntent(in), nil
}

// SetStatus moves an intent to status, as the card form would.
func (m *MemoryProvider) SetStatus(id string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.intents[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrIntentNotFound, id)
	}
	in.Status = status
	m.intents[id] = in
	return nil
}

func cloneIntent(in Intent) Intent {
	in.Metadata = maps.Clone(in.Metadata)
	return in
}
