package logfields

import (
	"errors"
	"testing"
)

func TestWorkspace_NoRoot(t *testing.T) {
	a := Workspace("")
	if a.Key != KeyWorkspace || a.Value.String() != "<none>" {
		t.Fatalf("unexpected attr: %v", a)
	}
}

func TestError(t *testing.T) {
	if got := Error(nil).Value.String(); got != "" {
		t.Errorf("nil error = %q, want empty", got)
	}
	if got := Error(errors.New("boom")).Value.String(); got != "boom" {
		t.Errorf("error = %q, want boom", got)
	}
}

func TestStatusAndPort(t *testing.T) {
	if Status(404).Value.Int64() != 404 {
		t.Error("status value mismatch")
	}
	if Port(3000).Key != KeyPort || WSPort(3001).Key != KeyWSPort {
		t.Error("port keys mismatch")
	}
}
