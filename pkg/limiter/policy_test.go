package limiter

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestDefaultPolicies(t *testing.T) {
	p := DefaultPolicies()

	want := map[Category]Limit{
		CategoryGeneral:   {Window: 15 * time.Minute, MaxRequests: 100},
		CategoryAuth:      {Window: 15 * time.Minute, MaxRequests: 5},
		CategorySearch:    {Window: time.Minute, MaxRequests: 30},
		CategoryUpload:    {Window: time.Minute, MaxRequests: 10},
		CategoryMessaging: {Window: time.Minute, MaxRequests: 20},
	}
	for cat, limit := range want {
		if p[cat] != limit {
			t.Errorf("%s: got %+v, want %+v", cat, p[cat], limit)
		}
	}
	if len(p) != len(Categories) {
		t.Errorf("Expected %d policies, got %d", len(Categories), len(p))
	}
}

func TestGuard_CategoriesAreIndependent(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(epoch)
	g, err := NewGuard(NewMemoryLimiter(WithClock(clock)), DefaultPolicies(), nil)
	if err != nil {
		t.Fatal(err)
	}

	caller := RequestInfo{Address: "10.0.0.1", SessionID: "s-1"}
	for i := 0; i < 5; i++ {
		if dec, _ := g.Check(ctx, CategoryAuth, caller); !dec.Allow {
			t.Fatalf("auth request %d unexpectedly denied", i)
		}
	}
	if dec, _ := g.Check(ctx, CategoryAuth, caller); dec.Allow {
		t.Fatal("6th auth request should be denied")
	}

	dec, err := g.Check(ctx, CategorySearch, caller)
	if err != nil {
		t.Fatal(err)
	}
	if !dec.Allow || dec.Remaining != 29 {
		t.Errorf("search quota should be untouched, got %+v", dec)
	}

	info, _ := g.Info(ctx, CategoryAuth, caller)
	if info.Allow {
		t.Error("auth info should report saturation")
	}

	if err := g.Reset(ctx, CategoryAuth, caller); err != nil {
		t.Fatal(err)
	}
	if dec, _ := g.Check(ctx, CategoryAuth, caller); !dec.Allow {
		t.Error("auth should be allowed after reset")
	}
}

func TestGuard_UnknownCategory(t *testing.T) {
	g, err := NewGuard(NewMemoryLimiter(), DefaultPolicies(), ByAddress)
	if err != nil {
		t.Fatal(err)
	}

	_, err = g.Check(context.Background(), Category("billing"), RequestInfo{Address: "10.0.0.1"})
	if err == nil || !strings.Contains(err.Error(), ErrUnknownCategory.Error()) {
		t.Errorf("Expected unknown category error, got %v", err)
	}
}

func TestGuard_RejectsInvalidPolicy(t *testing.T) {
	policies := DefaultPolicies()
	policies[CategoryUpload] = Limit{Window: time.Minute, MaxRequests: 0}

	if _, err := NewGuard(NewMemoryLimiter(), policies, nil); err == nil {
		t.Error("Expected invalid policy to be rejected")
	}
}

func TestGuard_EmptyIdentity(t *testing.T) {
	g, _ := NewGuard(NewMemoryLimiter(), DefaultPolicies(), ByAddress)
	if _, err := g.Check(context.Background(), CategoryGeneral, RequestInfo{}); err == nil {
		t.Error("Expected empty identity to be rejected")
	}
}
