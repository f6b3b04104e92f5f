package identity

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/tutor-room/pkg/rtc/types"
	"github.com/livekit/tutor-room/pkg/utils"
)

// Resolver derives the local participant identity. A generated identity is persisted before
// it is handed out, so every join from this client reuses it.
type Resolver struct {
	lock   sync.Mutex
	store  Store
	logger logger.Logger
}

func NewResolver(store Store, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Resolver{
		store:  store,
		logger: log,
	}
}

// ResolveIdentity returns identity when given, otherwise the persisted one, generating it on first use.
// displayName is required; the resolver never substitutes a placeholder.
func (r *Resolver) ResolveIdentity(identity string, displayName string) (types.LocalIdentity, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return types.LocalIdentity{}, types.ErrMissingIdentity
	}

	if identity = strings.TrimSpace(identity); identity != "" {
		return types.LocalIdentity{Identity: identity, DisplayName: displayName}, nil
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	persisted, err := r.store.Load()
	switch {
	case err == nil:
		return types.LocalIdentity{Identity: persisted, DisplayName: displayName}, nil
	case errors.Is(err, ErrIdentityNotFound):
	default:
		// unreadable store, overwritten below
		r.logger.Warnw("could not load persisted identity", err)
	}

	generated := utils.NewGuid(utils.IdentityPrefix)
	if err := r.store.Save(generated); err != nil {
		return types.LocalIdentity{}, fmt.Errorf("could not persist identity: %w", err)
	}
	r.logger.Infow("generated participant identity", "identity", generated)
	return types.LocalIdentity{Identity: generated, DisplayName: displayName}, nil
}
