package expiry

import (
	"errors"
	"testing"
	"time"

	"github.com/obdkit/obdkit-go/pkg/interest"
)

func TestSet(t *testing.T) {
	m := NewManager()
	defer m.Close()

	if err := m.Set("tok-1", 5*time.Second); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}

	timer := m.Get("tok-1")
	if timer == nil {
		t.Fatal("Get() = nil, want timer")
	}
	if timer.TTL != 5*time.Second {
		t.Errorf("TTL = %v, want 5s", timer.TTL)
	}
	if got := timer.ExpiresAt(); got != timer.StartTime.Add(5*time.Second) {
		t.Errorf("ExpiresAt() = %v, want start+5s", got)
	}
	if timer.IsExpired() {
		t.Error("IsExpired() = true for fresh timer")
	}
}

func TestSetBounds(t *testing.T) {
	m := NewManager()
	defer m.Close()

	if err := m.Set("tok", 500*time.Millisecond); !errors.Is(err, ErrInvalidTTL) {
		t.Errorf("Set(500ms) error = %v, want ErrInvalidTTL", err)
	}
	if err := m.Set("tok", 25*time.Hour); !errors.Is(err, ErrInvalidTTL) {
		t.Errorf("Set(25h) error = %v, want ErrInvalidTTL", err)
	}
	if err := m.Set("tok", MinTTL); err != nil {
		t.Errorf("Set(MinTTL) error = %v", err)
	}
	if err := m.Set("tok", MaxTTL); err != nil {
		t.Errorf("Set(MaxTTL) error = %v", err)
	}
}

func TestSetReplacesPendingTimer(t *testing.T) {
	m := NewManager()
	defer m.Close()

	m.Set("tok", 10*time.Second)
	m.Set("tok", 20*time.Second)

	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1 after replacement", m.Count())
	}
	if got := m.Get("tok").TTL; got != 20*time.Second {
		t.Errorf("TTL = %v, want 20s", got)
	}
}

func TestCancel(t *testing.T) {
	m := NewManager()
	defer m.Close()

	fired := false
	m.OnExpiry(func(interest.Token) { fired = true })

	m.Set("tok", 5*time.Second)
	if err := m.Cancel("tok"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0", m.Count())
	}
	if err := m.Cancel("tok"); !errors.Is(err, ErrTimerNotFound) {
		t.Errorf("second Cancel() error = %v, want ErrTimerNotFound", err)
	}

	// Firing the already-cancelled timer key must be a no-op.
	m.expire("tok")
	if fired {
		t.Error("expiry callback fired after cancel")
	}
}

func TestExpiryCallback(t *testing.T) {
	m := NewManager()
	defer m.Close()

	expired := make(chan interest.Token, 1)
	m.OnExpiry(func(token interest.Token) { expired <- token })

	m.Set("tok", 5*time.Second)
	m.expire("tok")

	select {
	case token := <-expired:
		if token != "tok" {
			t.Errorf("expired token = %q, want tok", token)
		}
	case <-time.After(time.Second):
		t.Error("expiry callback was not called")
	}

	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0 after expiry", m.Count())
	}
}

func TestCloseStopsAll(t *testing.T) {
	m := NewManager()
	m.OnExpiry(func(interest.Token) {
		t.Error("expiry callback fired after Close")
	})

	m.Set("a", 5*time.Second)
	m.Set("b", 5*time.Second)
	m.Close()

	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0 after Close", m.Count())
	}
	m.expire("a")

	if err := m.Set("c", 5*time.Second); err != nil {
		t.Errorf("Set() after Close error = %v", err)
	}
	if m.Count() != 0 {
		t.Error("Set() after Close created a timer")
	}
}

func TestAccuracy(t *testing.T) {
	if got := Accuracy(10 * time.Second); got != AccuracyAbsolute {
		t.Errorf("Accuracy(10s) = %v, want %v", got, AccuracyAbsolute)
	}
	if got := Accuracy(10 * time.Minute); got != 6*time.Second {
		t.Errorf("Accuracy(10m) = %v, want 6s", got)
	}
}
