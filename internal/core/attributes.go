package core

import (
	"context"
	"errors"
	"fmt"

	"skill_persistence/internal/storage"
	"skill_persistence/pkg"
)

// AttributesManager owns the attribute state of exactly one cycle.
//
// Session attributes start as a copy of the envelope's session attributes and
// may be replaced by the persistence interceptors. Persistent attributes are
// fetched from the store at most once per cycle and cached; later reads in the
// same cycle are served from the cache.
type AttributesManager struct {
	envelope *pkg.RequestEnvelope
	store    storage.AttributeStore
	keyFn    storage.PartitionKeyFn

	session    storage.Attributes
	persistent storage.Attributes
	found      bool
	fetched    bool
	key        string
	state      CycleState
}

// NewAttributesManager creates the manager for one cycle; store and keyFn may be nil
// for skills without persistence
func NewAttributesManager(envelope *pkg.RequestEnvelope, store storage.AttributeStore, keyFn storage.PartitionKeyFn) *AttributesManager {
	session := storage.Attributes{}
	if envelope != nil && envelope.Session != nil && envelope.Session.Attributes != nil {
		session = storage.Attributes(envelope.Session.Attributes).Clone()
	}
	return &AttributesManager{
		envelope: envelope,
		store:    store,
		keyFn:    keyFn,
		session:  session,
		state:    StateUnloaded,
	}
}

// SessionAttributes returns the cycle's live session state. Handlers may mutate it in place.
func (m *AttributesManager) SessionAttributes() storage.Attributes {
	return m.session
}

// SetSessionAttributes replaces the session state
func (m *AttributesManager) SetSessionAttributes(attributes storage.Attributes) {
	if attributes == nil {
		attributes = storage.Attributes{}
	}
	m.session = attributes
}

// PartitionKey derives and caches the record key for this cycle
func (m *AttributesManager) PartitionKey() (string, error) {
	if m.key != "" {
		return m.key, nil
	}
	if m.keyFn == nil {
		return "", &ConfigurationError{Component: "attributes manager", Reason: "partition key function is not set"}
	}
	key, err := m.keyFn(m.envelope)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", storage.ErrEmptyKey
	}
	m.key = key
	return key, nil
}

// PersistentAttributes returns the persisted record and whether it existed.
// The store is read on the first call only.
func (m *AttributesManager) PersistentAttributes(ctx context.Context) (storage.Attributes, bool, error) {
	if m.fetched {
		return m.persistent, m.found, nil
	}
	if m.store == nil {
		return nil, false, &ConfigurationError{Component: "attributes manager", Reason: "attribute store is not set"}
	}

	key, err := m.PartitionKey()
	if err != nil {
		var configuration *ConfigurationError
		if errors.As(err, &configuration) {
			return nil, false, err
		}
		return nil, false, &RetrievalError{Err: err}
	}

	attributes, found, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, false, &RetrievalError{Key: key, Err: err}
	}
	if attributes == nil {
		attributes = storage.Attributes{}
	}

	m.persistent = attributes
	m.found = found
	m.fetched = true
	return m.persistent, m.found, nil
}

// SetPersistentAttributes replaces the cached persistent record without writing it
func (m *AttributesManager) SetPersistentAttributes(attributes storage.Attributes) {
	if attributes == nil {
		attributes = storage.Attributes{}
	}
	m.persistent = attributes
	m.fetched = true
}

// SavePersistentAttributes writes the cached persistent record. Nothing is
// written when ctx is already done.
func (m *AttributesManager) SavePersistentAttributes(ctx context.Context) error {
	if m.store == nil {
		return &ConfigurationError{Component: "attributes manager", Reason: "attribute store is not set"}
	}
	key, err := m.PartitionKey()
	if err != nil {
		return &PersistenceError{Err: err}
	}
	if !m.fetched {
		return &PersistenceError{Key: key, Err: fmt.Errorf("persistent attributes were never loaded or set")}
	}
	if err := ctx.Err(); err != nil {
		return &PersistenceError{Key: key, Err: err}
	}

	if err := m.store.Put(ctx, key, m.persistent.Clone()); err != nil {
		return &PersistenceError{Key: key, Err: err}
	}
	m.state = StateSaved
	return nil
}

// DeletePersistentAttributes removes the persisted record and clears the cache
func (m *AttributesManager) DeletePersistentAttributes(ctx context.Context) error {
	if m.store == nil {
		return &ConfigurationError{Component: "attributes manager", Reason: "attribute store is not set"}
	}
	key, err := m.PartitionKey()
	if err != nil {
		return &PersistenceError{Err: err}
	}
	if err := m.store.Delete(ctx, key); err != nil {
		return &PersistenceError{Key: key, Err: err}
	}
	m.persistent = storage.Attributes{}
	m.found = false
	m.fetched = true
	return nil
}

// State returns the cycle's current state
func (m *AttributesManager) State() CycleState {
	return m.state
}

// MarkLoaded records that session state was populated from the store
func (m *AttributesManager) MarkLoaded() error {
	if m.state != StateUnloaded {
		return ErrAlreadyLoaded
	}
	m.state = StateLoaded
	return nil
}

// MarkDiscarded records that the cycle's state will not be persisted
func (m *AttributesManager) MarkDiscarded() {
	if m.state != StateSaved {
		m.state = StateDiscarded
	}
}

func (m *AttributesManager) markHandled() {
	if m.state == StateUnloaded || m.state == StateLoaded {
		m.state = StateHandled
	}
}
