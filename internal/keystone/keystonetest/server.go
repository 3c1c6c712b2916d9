// Package keystonetest provee un Keystone v2.0 falso en memoria sobre
// httptest, para tests de los paquetes que hablan con el identity service.
package keystonetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// Admin son las credenciales admin que acepta el servidor.
const (
	AdminUser     = "admin"
	AdminPassword = "admin-pass"
	AdminTenant   = "admin"
	MemberRole    = "_member_"
)

type user struct {
	ID, Name, Password, Email, TenantID string
}

type tenant struct {
	ID, Name, Description string
}

// Server es el fake. Los campos Fail* fuerzan errores 500 en ese paso.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	seq      int
	tenants  map[string]*tenant
	users    map[string]*user
	roles    map[string]string // id -> name
	grants   map[string][]string
	tokens   map[string]string // token -> user id
	calls    []string
	failStep map[string]bool
}

// New arranca el fake con el admin y el rol de miembro cargados.
func New() *Server {
	s := &Server{
		tenants:  map[string]*tenant{},
		users:    map[string]*user{},
		roles:    map[string]string{"r-member": MemberRole, "r-admin": "admin"},
		grants:   map[string][]string{},
		tokens:   map[string]string{},
		failStep: map[string]bool{},
	}
	adminTenant := s.addTenant(AdminTenant, "")
	s.users["u-admin"] = &user{ID: "u-admin", Name: AdminUser, Password: AdminPassword, TenantID: adminTenant.ID}

	r := chi.NewRouter()
	r.Post("/v2.0/tokens", s.handleTokens)
	r.Get("/v2.0/tenants", s.handleListTenants)
	r.Post("/v2.0/tenants", s.handleCreateTenant)
	r.Post("/v2.0/users", s.handleCreateUser)
	r.Get("/v2.0/users/{id}", s.handleGetUser)
	r.Get("/v2.0/OS-KSADM/roles", s.handleListRoles)
	r.Put("/v2.0/tenants/{tid}/users/{uid}/roles/OS-KSADM/{rid}", s.handleAddRole)
	s.Server = httptest.NewServer(r)
	return s
}

// URL del endpoint v2.0.
func (s *Server) AuthURL() string { return s.Server.URL + "/v2.0" }

// Fail hace que step ("tokens", "create_tenant", "create_user", "add_role",
// "user_tokens") responda 500.
func (s *Server) Fail(step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStep[step] = true
}

// Calls devuelve los pasos invocados en orden.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// TenantByName retorna el id del tenant o "".
func (s *Server) TenantByName(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tenants {
		if t.Name == name {
			return t.ID
		}
	}
	return ""
}

// UserByName retorna el id del usuario o "".
func (s *Server) UserByName(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Name == name {
			return u.ID
		}
	}
	return ""
}

// Roles retorna los role ids asignados a userID en tenantID.
func (s *Server) Roles(tenantID, userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.grants[tenantID+"/"+userID]...)
}

// SetPassword cambia la password de un usuario existente.
func (s *Server) SetPassword(name, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Name == name {
			u.Password = password
		}
	}
}

func (s *Server) addTenant(name, desc string) *tenant {
	s.seq++
	t := &tenant{ID: fmt.Sprintf("t-%d", s.seq), Name: name, Description: desc}
	s.tenants[t.ID] = t
	return t
}

func (s *Server) record(step string) bool {
	s.calls = append(s.calls, step)
	return s.failStep[step]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]any{"message": msg, "code": status}})
}

func (s *Server) authUser(r *http.Request) (*user, bool) {
	uid, ok := s.tokens[r.Header.Get("X-Auth-Token")]
	if !ok {
		return nil, false
	}
	return s.users[uid], true
}

func (s *Server) isAdmin(r *http.Request) bool {
	u, ok := s.authUser(r)
	return ok && u.Name == AdminUser
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Auth struct {
			PasswordCredentials struct {
				Username string `json:"username"`
				Password string `json:"password"`
			} `json:"passwordCredentials"`
			TenantName string `json:"tenantName"`
			TenantID   string `json:"tenantId"`
		} `json:"auth"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, http.StatusBadRequest, "bad json")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	step := "user_tokens"
	if in.Auth.PasswordCredentials.Username == AdminUser {
		step = "tokens"
	}
	if s.record(step) {
		writeErr(w, http.StatusInternalServerError, "forced failure")
		return
	}

	var found *user
	for _, u := range s.users {
		if u.Name == in.Auth.PasswordCredentials.Username && u.Password == in.Auth.PasswordCredentials.Password {
			found = u
		}
	}
	if found == nil {
		writeErr(w, http.StatusUnauthorized, "Invalid user / password")
		return
	}

	var scoped *tenant
	for _, t := range s.tenants {
		if (in.Auth.TenantID != "" && t.ID == in.Auth.TenantID) || (in.Auth.TenantName != "" && t.Name == in.Auth.TenantName) {
			scoped = t
		}
	}
	if (in.Auth.TenantID != "" || in.Auth.TenantName != "") && (scoped == nil || scoped.ID != found.TenantID) {
		writeErr(w, http.StatusUnauthorized, "user not in tenant")
		return
	}

	s.seq++
	tokID := fmt.Sprintf("tok-%d", s.seq)
	s.tokens[tokID] = found.ID

	tok := map[string]any{"id": tokID, "expires": time.Now().Add(time.Hour).UTC().Format("2006-01-02T15:04:05Z")}
	if scoped != nil {
		tok["tenant"] = map[string]any{"id": scoped.ID, "name": scoped.Name, "enabled": true}
	}
	writeJSON(w, http.StatusOK, map[string]any{"access": map[string]any{
		"token": tok,
		"user":  map[string]any{"id": found.ID, "name": found.Name, "roles": []any{}},
	}})
}

func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.authUser(r)
	if !ok {
		writeErr(w, http.StatusUnauthorized, "bad token")
		return
	}
	out := []map[string]any{}
	if t, ok := s.tenants[u.TenantID]; ok {
		out = append(out, map[string]any{"id": t.ID, "name": t.Name, "enabled": true})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenants": out})
}

func (s *Server) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Tenant struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"tenant"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record("create_tenant") {
		writeErr(w, http.StatusInternalServerError, "forced failure")
		return
	}
	if !s.isAdmin(r) {
		writeErr(w, http.StatusUnauthorized, "admin required")
		return
	}
	for _, t := range s.tenants {
		if t.Name == in.Tenant.Name {
			writeErr(w, http.StatusConflict, "Tenant name already exists")
			return
		}
	}
	t := s.addTenant(in.Tenant.Name, in.Tenant.Description)
	writeJSON(w, http.StatusOK, map[string]any{"tenant": map[string]any{
		"id": t.ID, "name": t.Name, "description": t.Description, "enabled": true,
	}})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in struct {
		User struct {
			Name     string `json:"name"`
			Password string `json:"password"`
			Email    string `json:"email"`
			TenantID string `json:"tenantId"`
		} `json:"user"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record("create_user") {
		writeErr(w, http.StatusInternalServerError, "forced failure")
		return
	}
	if !s.isAdmin(r) {
		writeErr(w, http.StatusUnauthorized, "admin required")
		return
	}
	for _, u := range s.users {
		if u.Name == in.User.Name {
			writeErr(w, http.StatusConflict, "Duplicate user name")
			return
		}
	}
	s.seq++
	u := &user{ID: fmt.Sprintf("u-%d", s.seq), Name: in.User.Name, Password: in.User.Password,
		Email: in.User.Email, TenantID: in.User.TenantID}
	s.users[u.ID] = u
	writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{
		"id": u.ID, "name": u.Name, "email": u.Email, "tenantId": u.TenantID, "enabled": true,
	}})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isAdmin(r) {
		writeErr(w, http.StatusUnauthorized, "admin required")
		return
	}
	u, ok := s.users[chi.URLParam(r, "id")]
	if !ok {
		writeErr(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{
		"id": u.ID, "name": u.Name, "email": u.Email, "tenantId": u.TenantID, "enabled": true,
	}})
}

func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isAdmin(r) {
		writeErr(w, http.StatusUnauthorized, "admin required")
		return
	}
	out := []map[string]any{}
	for id, name := range s.roles {
		out = append(out, map[string]any{"id": id, "name": name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": out})
}

func (s *Server) handleAddRole(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record("add_role") {
		writeErr(w, http.StatusInternalServerError, "forced failure")
		return
	}
	if !s.isAdmin(r) {
		writeErr(w, http.StatusUnauthorized, "admin required")
		return
	}
	tid, uid, rid := chi.URLParam(r, "tid"), chi.URLParam(r, "uid"), chi.URLParam(r, "rid")
	if _, ok := s.roles[rid]; !ok {
		writeErr(w, http.StatusNotFound, "role not found")
		return
	}
	if _, ok := s.tenants[tid]; !ok {
		writeErr(w, http.StatusNotFound, "tenant not found")
		return
	}
	if _, ok := s.users[uid]; !ok {
		writeErr(w, http.StatusNotFound, "user not found")
		return
	}
	key := tid + "/" + uid
	for _, g := range s.grants[key] {
		if strings.EqualFold(g, rid) {
			writeErr(w, http.StatusConflict, "role already granted")
			return
		}
	}
	s.grants[key] = append(s.grants[key], rid)
	writeJSON(w, http.StatusOK, map[string]any{"role": map[string]any{"id": rid, "name": s.roles[rid]}})
}
