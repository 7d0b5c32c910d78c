package lock

import (
	"io"
	"testing"

	"github.com/kolkov/parklock/internal/lock/diag"
)

func silenceReports(t *testing.T) {
	t.Helper()
	old := diag.Output
	diag.Output = io.Discard
	t.Cleanup(func() { diag.Output = old })
}
