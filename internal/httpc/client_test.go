package httpc

import (
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	if c := NewClient(5 * time.Second); c.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", c.Timeout)
	}
	if c := NewClient(0); c.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want default %v", c.Timeout, DefaultTimeout)
	}
}
