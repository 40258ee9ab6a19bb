package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"jobsweep-engine/internal/secrets"
)

type SecretsHandler struct {
	// Set stores a password; nil uses the OS keyring.
	Set func(keyringAccount, password string) error
}

type setAccountPasswordReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SetAccountPassword stores an account password in the keychain and
// returns the credential reference to put in the accounts file.
func (h SecretsHandler) SetAccountPassword(w http.ResponseWriter, r *http.Request) {
	var req setAccountPasswordReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if !strings.Contains(req.Email, "@") {
		WriteError(w, r, http.StatusBadRequest, "invalid_email", "email is required")
		return
	}

	set := h.Set
	if set == nil {
		set = secrets.SetPassword
	}
	account := secrets.KeyringAccount(req.Email)
	if err := set(account, req.Password); err != nil {
		WriteError(w, r, http.StatusBadRequest, "store_failed", "failed to store password: "+err.Error())
		return
	}
	writeJSON(w, map[string]any{"ok": true, "credential": "keyring:" + account})
}
