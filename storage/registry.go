package storage

import (
	"fmt"
	"time"

	"github.com/vireopay/fundflow/db/prefixeddb"
	"github.com/vireopay/fundflow/types"
)

// SetInstitution stores or updates an institution and keeps the API key
// index in sync, dropping the old key entry when the key is rotated.
func (s *Storage) SetInstitution(inst *types.Institution) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	if inst == nil || inst.ID == "" || inst.APIKey == "" {
		return fmt.Errorf("institution missing ID or API key")
	}

	wTx := s.db.WriteTx()
	defer wTx.Discard()

	existing := &types.Institution{}
	if err := s.getArtifact(institutionPrefix, []byte(inst.ID), existing); err == nil {
		if existing.APIKey != inst.APIKey {
			if err := prefixeddb.NewPrefixedWriteTx(wTx, institutionKeyPrefix).Delete([]byte(existing.APIKey)); err != nil {
				return err
			}
		}
		inst.CreatedAt = existing.CreatedAt
	}
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = time.Now()
	}

	data, err := EncodeArtifact(inst)
	if err != nil {
		return err
	}
	if err := prefixeddb.NewPrefixedWriteTx(wTx, institutionPrefix).Set([]byte(inst.ID), data); err != nil {
		return err
	}
	if err := prefixeddb.NewPrefixedWriteTx(wTx, institutionKeyPrefix).Set([]byte(inst.APIKey), []byte(inst.ID)); err != nil {
		return err
	}
	return wTx.Commit()
}

// Institution retrieves an institution by ID.
func (s *Storage) Institution(id string) (*types.Institution, error) {
	inst := &types.Institution{}
	if err := s.getArtifact(institutionPrefix, []byte(id), inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// InstitutionByAPIKey resolves an institution through the API key index.
func (s *Storage) InstitutionByAPIKey(apiKey string) (*types.Institution, error) {
	id, err := prefixeddb.NewPrefixedReader(s.db, institutionKeyPrefix).Get([]byte(apiKey))
	if err != nil {
		return nil, ErrNotFound
	}
	return s.Institution(string(id))
}

// ListInstitutions returns every registered institution.
func (s *Storage) ListInstitutions() ([]*types.Institution, error) {
	var out []*types.Institution
	var decodeErr error
	if err := prefixeddb.NewPrefixedReader(s.db, institutionPrefix).Iterate(nil, func(_, v []byte) bool {
		inst := &types.Institution{}
		if err := DecodeArtifact(v, inst); err != nil {
			decodeErr = fmt.Errorf("decode institution: %w", err)
			return false
		}
		out = append(out, inst)
		return true
	}); err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return out, nil
}

// SetParticipant stores or updates a participant bank.
func (s *Storage) SetParticipant(p *types.Participant) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	if p == nil || p.BankCode == "" {
		return fmt.Errorf("participant missing bank code")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	return s.setArtifact(participantPrefix, []byte(p.BankCode), p)
}

// Participant retrieves a participant bank by code.
func (s *Storage) Participant(bankCode string) (*types.Participant, error) {
	p := &types.Participant{}
	if err := s.getArtifact(participantPrefix, []byte(bankCode), p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListParticipants returns every known participant bank.
func (s *Storage) ListParticipants() ([]*types.Participant, error) {
	var out []*types.Participant
	var decodeErr error
	if err := prefixeddb.NewPrefixedReader(s.db, participantPrefix).Iterate(nil, func(_, v []byte) bool {
		p := &types.Participant{}
		if err := DecodeArtifact(v, p); err != nil {
			decodeErr = fmt.Errorf("decode participant: %w", err)
			return false
		}
		out = append(out, p)
		return true
	}); err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return out, nil
}
