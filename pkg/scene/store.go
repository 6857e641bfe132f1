package scene

import (
	"fmt"
	"sync"

	"github.com/automerge/automerge-go"
)

// Store owns the canonical scene document. All reads go through Snapshot and
// all writes go through Mutate; nothing outside the store holds a mutable
// reference into the document.
type Store struct {
	mu     sync.Mutex
	doc    *automerge.Doc
	ids    IDGenerator
	cached *Scene
}

type Option func(*Store)

// WithIDGenerator replaces the default uuid based generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

func newStore(doc *automerge.Doc, opts []Option) *Store {
	s := &Store{doc: doc, ids: UUIDGenerator{}}
	for _, o := range opts {
		o(s)
	}
	return s
}

// New creates a fresh scene document with a title and a single empty page.
func New(opts ...Option) (*Store, error) {
	s := newStore(automerge.New(), opts)
	if err := s.Mutate("init", func(tx *Tx) error {
		if err := tx.set(DefaultTitle, keyTitle); err != nil {
			return err
		}
		for _, k := range []string{keyCards, keyPages, keyCardInstances} {
			if err := tx.set(map[string]interface{}{}, k); err != nil {
				return err
			}
		}
		if err := tx.set([]string{}, keyPageOrder); err != nil {
			return err
		}
		_, err := tx.CreatePage()
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to seed scene: %w", err)
	}
	return s, nil
}

// Load reads a document previously produced by Save.
func Load(raw []byte, opts ...Option) (*Store, error) {
	doc, err := automerge.Load(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to load doc: %w", err)
	}
	return newStore(doc, opts), nil
}

// FromDoc wraps an existing document. The caller must not use doc afterwards.
func FromDoc(doc *automerge.Doc, opts ...Option) *Store {
	return newStore(doc, opts)
}

// Mutate applies fn to a fork of the document and merges the result back as
// a single change. If fn fails nothing is applied and readers never observe a
// partially applied mutation.
func (s *Store) Mutate(message string, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fork, err := s.doc.Fork()
	if err != nil {
		return fmt.Errorf("failed to fork doc: %w", err)
	}
	if err := fork.SetActorID(s.doc.ActorID()); err != nil {
		return fmt.Errorf("failed to set actor: %w", err)
	}
	tx := &Tx{doc: fork, ids: s.ids}
	if err := fn(tx); err != nil {
		return err
	}
	if !tx.dirty {
		return nil
	}
	if _, err := fork.Commit(message); err != nil {
		return fmt.Errorf("failed to commit %q: %w", message, err)
	}
	if _, err := s.doc.Merge(fork); err != nil {
		return fmt.Errorf("failed to merge %q: %w", message, err)
	}
	s.cached = nil
	return nil
}

// Snapshot returns the current materialized scene. The returned value is
// shared between callers and must be treated as read-only.
func (s *Store) Snapshot() (*Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil {
		return s.cached, nil
	}
	sc, err := Decode(s.doc)
	if err != nil {
		return nil, err
	}
	s.cached = sc
	return sc, nil
}

func (s *Store) Save() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Save()
}

func (s *Store) Heads() []automerge.ChangeHash {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Heads()
}

func (s *Store) ActorID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.ActorID()
}

// ForkDoc returns an independent copy of the underlying document.
func (s *Store) ForkDoc() (*automerge.Doc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Fork()
}

// Fork returns a new store holding a copy of this document under a new actor,
// as a second client would.
func (s *Store) Fork() (*Store, error) {
	doc, err := s.ForkDoc()
	if err != nil {
		return nil, fmt.Errorf("failed to fork doc: %w", err)
	}
	return newStore(doc, []Option{WithIDGenerator(s.ids)}), nil
}

// Merge folds every change from other into this store.
func (s *Store) Merge(other *Store) error {
	od, err := other.ForkDoc()
	if err != nil {
		return fmt.Errorf("failed to fork other doc: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.doc.Merge(od); err != nil {
		return fmt.Errorf("failed to merge: %w", err)
	}
	s.cached = nil
	return nil
}

// SyncPeer exchanges automerge sync messages with one remote peer while
// holding the store lock for each message.
type SyncPeer struct {
	store *Store
	state *automerge.SyncState
}

func (s *Store) NewSyncPeer() *SyncPeer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &SyncPeer{store: s, state: automerge.NewSyncState(s.doc)}
}

// GenerateMessage returns the next message for the remote, if any.
func (p *SyncPeer) GenerateMessage() ([]byte, bool) {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	msg, valid := p.state.GenerateMessage()
	if !valid || msg == nil {
		return nil, false
	}
	return msg.Bytes(), true
}

func (p *SyncPeer) ReceiveMessage(raw []byte) error {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	if _, err := p.state.ReceiveMessage(raw); err != nil {
		return fmt.Errorf("failed to receive message: %w", err)
	}
	p.store.cached = nil
	return nil
}
