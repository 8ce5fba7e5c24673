package engine

import (
	"testing"

	"go.uber.org/goleak"
)

// Every engine operation must join or close the goroutines it starts; the
// guard's abandoned-call escape hatch is exercised in internal/host, not here.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
