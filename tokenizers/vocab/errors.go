package vocab

import "fmt"

// ErrorKind classifies a ConstructionError.
type ErrorKind int

const (
	// UnsortedInput means a key was not greater than the key before it.
	UnsortedInput ErrorKind = iota + 1
	// DuplicateKey means the same key was given twice.
	DuplicateKey
	// EmptyVocabulary means no entries were given.
	EmptyVocabulary
	// InvalidID means an entry had a negative identifier.
	InvalidID
)

func (k ErrorKind) String() string {
	switch k {
	case UnsortedInput:
		return "unsorted input"
	case DuplicateKey:
		return "duplicate key"
	case EmptyVocabulary:
		return "empty vocabulary"
	case InvalidID:
		return "invalid id"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// ConstructionError is returned by Build when its entries violate the input precondition.
type ConstructionError struct {
	Kind ErrorKind

	// Index of the offending entry, -1 if not applicable.
	Index int
	Key   []byte
}

// Sentinel errors to use with errors.Is: any *ConstructionError of the same Kind matches.
var (
	ErrUnsortedInput   = &ConstructionError{Kind: UnsortedInput, Index: -1}
	ErrDuplicateKey    = &ConstructionError{Kind: DuplicateKey, Index: -1}
	ErrEmptyVocabulary = &ConstructionError{Kind: EmptyVocabulary, Index: -1}
	ErrInvalidID       = &ConstructionError{Kind: InvalidID, Index: -1}
)

func (e *ConstructionError) Error() string {
	if e.Index < 0 {
		return "vocab: " + e.Kind.String()
	}
	return fmt.Sprintf("vocab: %s at entry #%d (key %q)", e.Kind, e.Index, e.Key)
}

// Is implements the interface used by errors.Is.
func (e *ConstructionError) Is(target error) bool {
	t, ok := target.(*ConstructionError)
	return ok && t.Kind == e.Kind
}
