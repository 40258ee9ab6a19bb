package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService groups account passwords in the OS keychain.
	KeyringService = "jobsweep"
)

var ErrNotFound = errors.New("credential not found")

// Resolve turns a credential reference into a password. Supported forms:
//
//	keyring:<account>   OS keychain entry under KeyringService
//	env:<NAME>          environment variable
//	plain:<password>    inline (demo and legacy account files)
//	<account>           same as keyring:<account>
func Resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	scheme, rest, ok := strings.Cut(ref, ":")
	if !ok {
		scheme, rest = "keyring", ref
	}

	switch scheme {
	case "plain":
		if rest == "" {
			return "", fmt.Errorf("plain credential: %w", ErrNotFound)
		}
		return rest, nil
	case "env":
		pw := os.Getenv(rest)
		if strings.TrimSpace(pw) == "" {
			return "", fmt.Errorf("env %s: %w", rest, ErrNotFound)
		}
		return pw, nil
	case "keyring":
		if strings.TrimSpace(rest) == "" {
			return "", errors.New("keyring account name is empty")
		}
		pw, err := keyring.Get(KeyringService, rest)
		if errors.Is(err, keyring.ErrNotFound) || (err == nil && strings.TrimSpace(pw) == "") {
			return "", fmt.Errorf("keyring %s: %w", rest, ErrNotFound)
		}
		if err != nil {
			return "", fmt.Errorf("keyring %s: %w", rest, err)
		}
		return pw, nil
	default:
		return "", fmt.Errorf("unknown credential scheme %q", scheme)
	}
}

func SetPassword(keyringAccount string, password string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, keyringAccount, password)
}

func DeletePassword(keyringAccount string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, keyringAccount)
}

// KeyringAccount is the conventional keychain entry name for an account email.
func KeyringAccount(email string) string {
	return "account/" + strings.ToLower(strings.TrimSpace(email))
}
