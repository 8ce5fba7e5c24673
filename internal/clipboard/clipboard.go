// Package clipboard abstracts the system clipboard the replacement executor
// exchanges payloads through. The executor always saves the user's clipboard
// before writing and restores it on every exit path, so both operations here
// must be cheap and total.
package clipboard

import (
	"errors"
	"fmt"
)

// ErrUnavailable reports that the clipboard could not be read or written.
var ErrUnavailable = errors.New("clipboard: unavailable")

// Well-known payload type tags.
const (
	TypePlainText = "public.utf8-plain-text"
	TypeRichDelta = "custom/rich-delta"
)

// Payload is one clipboard state: a type tag plus raw bytes. For the plain
// text lane Bytes is UTF-8 text; for the rich lane it is a pickle container.
type Payload struct {
	TypeTag string
	Bytes   []byte
}

// IsZero reports an empty payload (clipboard was empty when saved).
func (p Payload) IsZero() bool {
	return p.TypeTag == "" && len(p.Bytes) == 0
}

// Clipboard reads and writes the current clipboard contents.
type Clipboard interface {
	Read() (Payload, error)
	Write(Payload) error
}

// Memory is an in-process clipboard used in tests and as the save slot for
// the executor's restore logic.
type Memory struct {
	payload Payload
	fail    error
}

// NewMemory creates an empty in-memory clipboard.
func NewMemory() *Memory {
	return &Memory{}
}

// FailWith makes all subsequent operations return err.
func (m *Memory) FailWith(err error) {
	m.fail = err
}

func (m *Memory) Read() (Payload, error) {
	if m.fail != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrUnavailable, m.fail)
	}
	return m.payload, nil
}

func (m *Memory) Write(p Payload) error {
	if m.fail != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, m.fail)
	}
	m.payload = p
	return nil
}
