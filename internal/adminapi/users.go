package adminapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	rdvcrypto "github.com/rdv2go/rdv2go/internal/crypto"
	"github.com/rdv2go/rdv2go/internal/model"
)

// listUsers handles GET /users.
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.Store.ListAccounts(r.Context())
	if err != nil {
		s.logger().Error("listing accounts", "error", err)
		writeError(w, http.StatusInternalServerError, "listing accounts failed")
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// deleteUser handles DELETE /users/{id}.
func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUint32(w, r, "id")
	if !ok {
		return
	}
	if err := s.Store.DeleteAccount(r.Context(), id); err != nil {
		s.logger().Error("deleting account", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "deleting account failed")
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// disableUser handles POST /users/{id}/disable.
func (s *Server) disableUser(w http.ResponseWriter, r *http.Request) {
	s.setDisabled(w, r, true)
}

// enableUser handles POST /users/{id}/enable.
func (s *Server) enableUser(w http.ResponseWriter, r *http.Request) {
	s.setDisabled(w, r, false)
}

func (s *Server) setDisabled(w http.ResponseWriter, r *http.Request, disabled bool) {
	id, ok := pathUint32(w, r, "id")
	if !ok {
		return
	}
	if err := s.Store.SetDisabled(r.Context(), id, disabled); err != nil {
		s.logger().Error("setting disabled", "id", id, "disabled", disabled, "error", err)
		writeError(w, http.StatusInternalServerError, "updating account failed")
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// registerUser handles POST /register, the launcher's account-creation
// surface. New accounts always get an Argon2id hash, never the legacy
// plaintext field.
func (s *Server) registerUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	if existing, err := s.Store.GetAccountByUsername(r.Context(), req.Username); err != nil {
		s.logger().Error("checking existing account", "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	} else if existing != nil {
		writeError(w, http.StatusConflict, "username already taken")
		return
	}

	hash, err := rdvcrypto.HashPassword(req.Password)
	if err != nil {
		s.logger().Error("hashing password", "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	id, err := s.Store.CreateAccount(r.Context(), model.Account{Username: req.Username, PasswordHash: hash})
	if err != nil {
		s.logger().Error("creating account", "error", err)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint32{"id": id})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginUser handles POST /login, the launcher's credential check before
// handing the client off to the PRUDP rendezvous service proper. It
// never issues a ticket — that only happens over RMC Authentication.Login
// (spec §4.5).
func (s *Server) loginUser(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	account, err := s.Store.GetAccountByUsername(r.Context(), req.Username)
	if err != nil {
		s.logger().Error("looking up account", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if account == nil || account.Disabled {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	var ok bool
	if account.LegacyPassword != "" {
		ok = req.Password == account.LegacyPassword
	} else {
		ok, err = rdvcrypto.VerifyPassword(account.PasswordHash, req.Password)
		if err != nil {
			s.logger().Error("verifying password", "error", err)
			writeError(w, http.StatusInternalServerError, "login failed")
			return
		}
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint32{"id": account.ID})
}

func pathUint32(w http.ResponseWriter, r *http.Request, key string) (uint32, bool) {
	raw := mux.Vars(r)[key]
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+key)
		return 0, false
	}
	return uint32(id), true
}
