// Package vocab implements the immutable vocabulary store used by the wordpiece matcher.
//
// The store maps byte-string keys to non-negative integer ids. It is encoded as a minimal acyclic
// finite state transducer: keys share both prefixes and suffixes, and ids are accumulated along the
// outputs of the transitions followed. Walking one byte is a single transition, independent of the
// vocabulary size.
//
// A Store is built once, from keys sorted by their byte representation, and is then read-only: it
// can be shared by any number of goroutines without locking.
package vocab

import (
	"bytes"
	"io"
	"os"

	"github.com/blevesearch/vellum"
	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Entry is one vocabulary key with its identifier.
type Entry struct {
	Key []byte
	ID  int
}

// Store is the compiled vocabulary automaton.
type Store struct {
	fst  *vellum.FST
	data []byte

	// mapped is set when data is backed by a memory-mapped file, see Open.
	mapped mmap.MMap
}

// State is a position in the automaton: the node reached and the output accumulated to get there.
// The zero value is not valid, use Store.Root.
type State struct {
	addr int
	out  uint64
}

// Build compiles the store from entries, which must be sorted in strictly increasing byte order.
//
// It returns a *ConstructionError (see ErrUnsortedInput, ErrDuplicateKey, ErrEmptyVocabulary and
// ErrInvalidID) if the precondition is violated, in which case no store is returned.
func Build(entries []Entry) (*Store, error) {
	if len(entries) == 0 {
		return nil, &ConstructionError{Kind: EmptyVocabulary, Index: -1}
	}
	for ii, e := range entries {
		if e.ID < 0 {
			return nil, &ConstructionError{Kind: InvalidID, Index: ii, Key: e.Key}
		}
		if ii == 0 {
			continue
		}
		switch cmp := bytes.Compare(entries[ii-1].Key, e.Key); {
		case cmp == 0:
			return nil, &ConstructionError{Kind: DuplicateKey, Index: ii, Key: e.Key}
		case cmp > 0:
			return nil, &ConstructionError{Kind: UnsortedInput, Index: ii, Key: e.Key}
		}
	}

	var buf bytes.Buffer
	builder, err := vellum.New(&buf, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create vocabulary automaton builder")
	}
	for _, e := range entries {
		if err := builder.Insert(e.Key, uint64(e.ID)); err != nil {
			return nil, errors.Wrapf(err, "failed to insert key %q into vocabulary automaton", e.Key)
		}
	}
	if err := builder.Close(); err != nil {
		return nil, errors.Wrapf(err, "failed to finish vocabulary automaton")
	}
	s, err := Load(buf.Bytes())
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("vocab: built automaton with %d keys in %d bytes", len(entries), len(s.data))
	return s, nil
}

// Load creates a Store from the serialized automaton written by Store.WriteTo.
// The Store keeps a reference to data, which must not be modified afterwards.
func Load(data []byte) (*Store, error) {
	fst, err := vellum.Load(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load vocabulary automaton")
	}
	if fst.Len() == 0 {
		return nil, &ConstructionError{Kind: EmptyVocabulary, Index: -1}
	}
	return &Store{fst: fst, data: data}, nil
}

// Open memory-maps the serialized automaton in filePath.
// The returned Store must be closed with Store.Close once no longer used.
func Open(filePath string) (*Store, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open vocabulary automaton %q", filePath)
	}
	defer func() { _ = f.Close() }()

	mapped, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to mmap %s", filePath)
	}
	s, err := Load(mapped)
	if err != nil {
		_ = mapped.Unmap()
		return nil, errors.WithMessagef(err, "while loading %q", filePath)
	}
	s.mapped = mapped
	klog.V(1).Infof("vocab: mapped automaton %q with %d keys", filePath, s.Len())
	return s, nil
}

// Close releases the memory mapping of a Store created with Open. It is a no-op otherwise.
// The Store must not be used after Close.
func (s *Store) Close() error {
	if s.mapped == nil {
		return nil
	}
	err := s.mapped.Unmap()
	s.mapped = nil
	s.data = nil
	if err != nil {
		return errors.Wrapf(err, "failed to unmap vocabulary automaton")
	}
	return nil
}

// WriteTo writes the serialized automaton to w. It implements io.WriterTo.
func (s *Store) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(s.data)
	if err != nil {
		return int64(n), errors.Wrapf(err, "failed to write vocabulary automaton")
	}
	return int64(n), nil
}

// Len returns the number of keys in the store.
func (s *Store) Len() int {
	return s.fst.Len()
}

// Root returns the state for the empty prefix.
func (s *Store) Root() State {
	return State{addr: s.fst.Start()}
}

// Step follows the transition for byte b out of st.
// It returns false if no key starts with the prefix of st followed by b.
func (s *Store) Step(st State, b byte) (State, bool) {
	next, out := s.fst.AcceptWithVal(st.addr, b)
	if !s.fst.CanMatch(next) {
		return State{}, false
	}
	return State{addr: next, out: st.out + out}, true
}

// Walk follows Step for every byte of key. It returns false as soon as one Step fails.
func (s *Store) Walk(st State, key []byte) (State, bool) {
	for _, b := range key {
		var ok bool
		if st, ok = s.Step(st, b); !ok {
			return State{}, false
		}
	}
	return st, true
}

// Match returns the identifier of the key that ends at st, if the prefix leading to st is itself
// a key.
func (s *Store) Match(st State) (int, bool) {
	final, out := s.fst.IsMatchWithVal(st.addr)
	if !final {
		return 0, false
	}
	return int(st.out + out), true
}

// CanContinue reports whether any key starts with prefix.
func (s *Store) CanContinue(prefix []byte) bool {
	_, ok := s.Walk(s.Root(), prefix)
	return ok
}

// ExactMatch returns the identifier of key, if it is in the store.
func (s *Store) ExactMatch(key []byte) (int, bool) {
	st, ok := s.Walk(s.Root(), key)
	if !ok {
		return 0, false
	}
	return s.Match(st)
}
