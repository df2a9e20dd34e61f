// Package registry resolves institutions and participant banks. Lookups
// are served from an LRU cache in front of the state store; writes go
// through to the store and invalidate the cached entry.
package registry

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vireopay/fundflow/log"
	"github.com/vireopay/fundflow/storage"
	"github.com/vireopay/fundflow/types"
)

var (
	// ErrUnknownInstitution is returned when no active institution matches
	// the lookup.
	ErrUnknownInstitution = errors.New("unknown institution")
	// ErrUnknownParticipant is returned when a bank code does not belong
	// to an active participant.
	ErrUnknownParticipant = errors.New("unknown participant")
)

const cacheSize = 512

// Registry is the cached view over the institution and participant tables.
type Registry struct {
	store        *storage.Storage
	institutions *lru.Cache[string, *types.Institution]
	apiKeys      *lru.Cache[string, *types.Institution]
	participants *lru.Cache[string, *types.Participant]
}

// New creates a registry over the given store.
func New(store *storage.Storage) *Registry {
	institutions, err := lru.New[string, *types.Institution](cacheSize)
	if err != nil {
		log.Fatalf("failed to create institution cache: %v", err)
	}
	apiKeys, err := lru.New[string, *types.Institution](cacheSize)
	if err != nil {
		log.Fatalf("failed to create api key cache: %v", err)
	}
	participants, err := lru.New[string, *types.Participant](cacheSize)
	if err != nil {
		log.Fatalf("failed to create participant cache: %v", err)
	}
	return &Registry{
		store:        store,
		institutions: institutions,
		apiKeys:      apiKeys,
		participants: participants,
	}
}

// SetInstitution persists an institution and drops any cached copy. The
// API key cache is purged wholesale: the key itself may have been rotated,
// so the stale cache entry would not be reachable by the new key.
func (r *Registry) SetInstitution(inst *types.Institution) error {
	if err := r.store.SetInstitution(inst); err != nil {
		return fmt.Errorf("set institution: %w", err)
	}
	r.institutions.Remove(inst.ID)
	r.apiKeys.Purge()
	return nil
}

// Institution resolves an institution by ID. Inactive institutions are
// reported as unknown.
func (r *Registry) Institution(id string) (*types.Institution, error) {
	if inst, ok := r.institutions.Get(id); ok {
		return inst, nil
	}
	inst, err := r.store.Institution(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnknownInstitution
		}
		return nil, err
	}
	if !inst.Active {
		return nil, ErrUnknownInstitution
	}
	r.institutions.Add(id, inst)
	return inst, nil
}

// InstitutionByAPIKey resolves the institution owning an API key. Used by
// the bearer-auth middleware on every submission request.
func (r *Registry) InstitutionByAPIKey(apiKey string) (*types.Institution, error) {
	if apiKey == "" {
		return nil, ErrUnknownInstitution
	}
	if inst, ok := r.apiKeys.Get(apiKey); ok {
		return inst, nil
	}
	inst, err := r.store.InstitutionByAPIKey(apiKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnknownInstitution
		}
		return nil, err
	}
	if !inst.Active {
		return nil, ErrUnknownInstitution
	}
	r.apiKeys.Add(apiKey, inst)
	return inst, nil
}

// ListInstitutions returns every stored institution, active or not.
func (r *Registry) ListInstitutions() ([]*types.Institution, error) {
	return r.store.ListInstitutions()
}

// SetParticipant persists a participant bank and drops any cached copy.
func (r *Registry) SetParticipant(p *types.Participant) error {
	if err := r.store.SetParticipant(p); err != nil {
		return fmt.Errorf("set participant: %w", err)
	}
	r.participants.Remove(p.BankCode)
	return nil
}

// Participant resolves a participant bank by code. Inactive participants
// are reported as unknown.
func (r *Registry) Participant(bankCode string) (*types.Participant, error) {
	if p, ok := r.participants.Get(bankCode); ok {
		return p, nil
	}
	p, err := r.store.Participant(bankCode)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnknownParticipant
		}
		return nil, err
	}
	if !p.Active {
		return nil, ErrUnknownParticipant
	}
	r.participants.Add(bankCode, p)
	return p, nil
}

// ListParticipants returns every stored participant bank.
func (r *Registry) ListParticipants() ([]*types.Participant, error) {
	return r.store.ListParticipants()
}

// ValidateParticipants checks that every given bank code belongs to an
// active participant. Returns ErrUnknownParticipant naming the first code
// that does not.
func (r *Registry) ValidateParticipants(bankCodes ...string) error {
	for _, code := range bankCodes {
		if _, err := r.Participant(code); err != nil {
			if errors.Is(err, ErrUnknownParticipant) {
				return fmt.Errorf("%w: %s", ErrUnknownParticipant, code)
			}
			return err
		}
	}
	return nil
}
