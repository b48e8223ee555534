package limiter

import "testing"

func TestIdentityFuncs(t *testing.T) {
	full := RequestInfo{Address: "10.0.0.1", UserID: "u42", SessionID: "s-1"}
	anon := RequestInfo{Address: "10.0.0.1"}

	tests := []struct {
		name string
		fn   IdentityFunc
		info RequestInfo
		want string
	}{
		{"address", ByAddress, full, "ip:10.0.0.1"},
		{"user", ByUser, full, "user:u42"},
		{"user falls back to address", ByUser, anon, "ip:10.0.0.1"},
		{"session", BySession, full, "session:s-1"},
		{"session falls back to address", BySession, anon, "ip:10.0.0.1"},
		{"composite", Composite, full, "10.0.0.1|u42|s-1"},
		{"composite anonymous", Composite, anon, "10.0.0.1|anonymous|anonymous"},
		{"composite empty", Composite, RequestInfo{}, ""},
		{"address empty", ByAddress, RequestInfo{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.info); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestComposite_SeparatesSessionsBehindOneAddress(t *testing.T) {
	a := Composite(RequestInfo{Address: "10.0.0.1", SessionID: "s-1"})
	b := Composite(RequestInfo{Address: "10.0.0.1", SessionID: "s-2"})
	if a == b {
		t.Errorf("Expected distinct identities, both were %q", a)
	}
}

func TestIdentityByName(t *testing.T) {
	for _, name := range []string{"address", "ip", "user", "session", "composite", ""} {
		if _, ok := IdentityByName(name); !ok {
			t.Errorf("Expected %q to resolve", name)
		}
	}
	if _, ok := IdentityByName("fingerprint"); ok {
		t.Error("Expected unknown strategy to be rejected")
	}
}
