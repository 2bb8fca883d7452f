package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	orig := Logf
	defer func() { Logf = orig }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})
	Logf("dual-iso: %d rows", 4)
	if got != "dual-iso: 4 rows" {
		t.Errorf("Logf wrote %q, want %q", got, "dual-iso: 4 rows")
	}

	SetLogger(nil)
	got = ""
	Logf("muted %d", 1)
	if got != "" {
		t.Errorf("Logf after SetLogger(nil) wrote %q, want nothing", got)
	}
}
