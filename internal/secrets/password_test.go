package secrets

import (
	"errors"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestResolveSchemes(t *testing.T) {
	keyring.MockInit()

	if err := SetPassword(KeyringAccount("A@x.com"), "from-keyring"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	t.Setenv("JOBSWEEP_TEST_PW", "from-env")

	cases := map[string]string{
		"plain:inline":            "inline",
		"env:JOBSWEEP_TEST_PW":    "from-env",
		"keyring:account/a@x.com": "from-keyring",
		"account/a@x.com":         "from-keyring",
	}
	for ref, want := range cases {
		got, err := Resolve(ref)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", ref, err)
		}
		if got != want {
			t.Fatalf("Resolve(%q) = %q, want %q", ref, got, want)
		}
	}

	if _, err := Resolve("vault:secret/a"); err == nil {
		t.Fatal("expected unknown scheme error")
	}
}

func TestResolveMissing(t *testing.T) {
	keyring.MockInit()

	if _, err := Resolve("keyring:nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := Resolve("env:JOBSWEEP_DEFINITELY_UNSET"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := Resolve("bare-account"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for bare keyring ref, got %v", err)
	}
}
