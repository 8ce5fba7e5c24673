package clipboard

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
)

// richPrefix marks a system clipboard string that carries an armored rich
// payload rather than user text.
const richPrefix = "twd1:"

// System is the real clipboard. The platform text lane is the only portable
// channel, so rich payloads ride through it base64-armored with a type tag;
// plain text payloads pass through untouched.
type System struct{}

// NewSystem creates the system clipboard accessor.
func NewSystem() *System {
	return &System{}
}

func (s *System) Read() (Payload, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return Payload{}, fmt.Errorf("%w: read: %v", ErrUnavailable, err)
	}
	if rest, ok := strings.CutPrefix(text, richPrefix); ok {
		tag, body, found := strings.Cut(rest, ":")
		if found {
			if raw, err := base64.StdEncoding.DecodeString(body); err == nil {
				return Payload{TypeTag: tag, Bytes: raw}, nil
			}
		}
		// Malformed armor is treated as the literal text it is.
	}
	if text == "" {
		return Payload{}, nil
	}
	return Payload{TypeTag: TypePlainText, Bytes: []byte(text)}, nil
}

func (s *System) Write(p Payload) error {
	var text string
	switch {
	case p.IsZero():
		text = ""
	case p.TypeTag == TypePlainText:
		text = string(p.Bytes)
	default:
		text = richPrefix + p.TypeTag + ":" + base64.StdEncoding.EncodeToString(p.Bytes)
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("%w: write: %v", ErrUnavailable, err)
	}
	return nil
}
