package login

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shindakun/btweet/internal/models"
	"github.com/shindakun/btweet/internal/querycache"
)

func newTestRegistry(size int, ttl time.Duration, auth Authenticator) *Registry {
	return NewRegistry(size, ttl, func(clientID string) *Coordinator {
		return NewCoordinator(auth, &countingInvalidator{}, querycache.AuthUser(clientID), nil, nil)
	})
}

func TestRegistryReturnsSamePage(t *testing.T) {
	r := newTestRegistry(8, time.Minute, newBlockingAuth())

	p1 := r.Page("client-1")
	if err := p1.Form.Set(models.FieldUsername, "alice"); err != nil {
		t.Fatal(err)
	}

	p2 := r.Page("client-1")
	if p1 != p2 {
		t.Fatal("Page() mounted a second page for the same client")
	}
	if got := p2.Form.Credentials().Username; got != "alice" {
		t.Errorf("form lost its state: username = %q", got)
	}

	if other := r.Page("client-2"); other == p1 {
		t.Error("different clients share a page")
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestRegistryReleaseTearsDown(t *testing.T) {
	r := newTestRegistry(8, time.Minute, newBlockingAuth())
	p := r.Page("client-1")

	r.Release("client-1")

	if _, ok := r.Lookup("client-1"); ok {
		t.Error("page still mounted after Release")
	}
	if _, err := p.Coordinator.Submit(context.Background(), models.Credentials{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit() on released page error = %v, want ErrClosed", err)
	}

	// A new visit mounts a fresh page with an empty form
	if fresh := r.Page("client-1"); fresh == p || fresh.Form.Credentials() != (models.Credentials{}) {
		t.Error("expected a fresh page after release")
	}
}

func TestRegistryCapacityEvictsOldest(t *testing.T) {
	r := newTestRegistry(2, time.Minute, newBlockingAuth())

	oldest := r.Page("a")
	r.Page("b")
	r.Page("c")

	if _, ok := r.Lookup("a"); ok {
		t.Error("oldest page should have been evicted")
	}
	if _, err := oldest.Coordinator.Submit(context.Background(), models.Credentials{}); !errors.Is(err, ErrClosed) {
		t.Errorf("evicted page Submit() error = %v, want ErrClosed", err)
	}
}

func TestRegistryExpiredPageIsClosed(t *testing.T) {
	r := newTestRegistry(8, 20*time.Millisecond, newBlockingAuth())
	stale := r.Page("client-1")

	time.Sleep(60 * time.Millisecond)

	fresh := r.Page("client-1")
	if fresh == stale {
		t.Fatal("expected a fresh page after expiry")
	}
	if _, err := stale.Coordinator.Submit(context.Background(), models.Credentials{}); !errors.Is(err, ErrClosed) {
		t.Errorf("expired page Submit() error = %v, want ErrClosed", err)
	}
}

func TestRegistryLookupExtendsLifetime(t *testing.T) {
	ttl := 300 * time.Millisecond
	r := newTestRegistry(8, ttl, newBlockingAuth())
	p := r.Page("client-1")

	// Poll for well past the ttl
	for i := 0; i < 6; i++ {
		time.Sleep(ttl / 3)
		got, ok := r.Lookup("client-1")
		if !ok || got != p {
			t.Fatalf("page torn down while polled (after %d lookups)", i)
		}
	}
}
