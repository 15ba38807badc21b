package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("overloaded"), 503), true},
		{"wrapped_fmt", fmt.Errorf("call: %w", NewTransientError(errors.New("limited"), 429)), true},
		{"wrapped_eris", eris.Wrap(NewTransientError(errors.New("limited"), 429), "functions: call"), true},
		{"plain", errors.New("invalid input"), false},
		{"conn_reset", fmt.Errorf("write tcp: %w", syscall.ECONNRESET), true},
		{"conn_refused", fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED), true},
		{"net_timeout", &net.DNSError{IsTimeout: true, Err: "timeout"}, true},
		{"pattern", errors.New("read: Connection Reset By Peer"), true},
		{"io_timeout", errors.New("dial tcp 10.0.0.1:443: i/o timeout"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for status, want := range map[int]bool{
		200: false, 400: false, 404: false, 500: false,
		408: true, 429: true, 502: true, 503: true, 504: true,
	} {
		if got := IsTransientHTTPStatus(status); got != want {
			t.Errorf("IsTransientHTTPStatus(%d) = %v, want %v", status, got, want)
		}
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	te := NewTransientError(inner, 503)
	if !errors.Is(te, inner) {
		t.Error("expected errors.Is to find inner error")
	}
	if te.Error() != "root cause" {
		t.Errorf("unexpected message %q", te.Error())
	}
	if te.StatusCode != 503 {
		t.Errorf("expected 503, got %d", te.StatusCode)
	}
}
