// Package fakeplatform is an in-process stand-in for the job listing
// platform. It speaks the same login, onboarding, filter and list endpoints
// so the engine can run offline (platform.provider=mock) and in tests.
package fakeplatform

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// User describes how the fake treats one account.
type User struct {
	Email    string
	Password string
	Locked   bool
	// FailLogins makes the next N logins answer 503.
	FailLogins int
	// RejectAfter answers 403 to list requests once this many have been
	// served. Zero disables it.
	RejectAfter int
}

type userState struct {
	User
	id       string
	offset   int
	served   int
	filter   string
	loggedIn bool
}

type Server struct {
	PageSize int

	mu      sync.Mutex
	catalog []Job
	users   map[string]*userState // by email
	byID    map[string]*userState
	hits    map[string]int
	open    bool
}

// New builds a fake serving catalog. With open=true any email/password pair
// logs in; otherwise only registered users do.
func New(catalog []Job, open bool) *Server {
	return &Server{
		PageSize: 20,
		catalog:  catalog,
		users:    make(map[string]*userState),
		byID:     make(map[string]*userState),
		hits:     make(map[string]int),
		open:     open,
	}
}

func (s *Server) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addUserLocked(u)
}

func (s *Server) addUserLocked(u User) *userState {
	n := len(s.users)
	st := &userState{User: u, id: strconv.Itoa(100000 + n), offset: (n * 7) % max(len(s.catalog), 1)}
	s.users[strings.ToLower(u.Email)] = st
	s.byID[st.id] = st
	return st
}

// Hits returns how many requests a path has received.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	s.mu.Unlock()

	switch r.URL.Path {
	case "/swan/auth/login/pwd":
		s.login(w, r)
	case "/swan/auth/newinfo", "/swan/user-settings/get", "/swan/ab/user":
		if _, ok := s.user(r); !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "errorMsg": "not logged in"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": map[string]any{}})
	case "/swan/filter/update/filter-v2":
		s.updateFilter(w, r)
	case "/swan/recommend/landing/jobs":
		s.list(w, r, false)
	case "/swan/recommend/list/jobs":
		s.list(w, r, true)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "errorMsg": "bad request"})
		return
	}

	s.mu.Lock()
	u, ok := s.users[strings.ToLower(body.Email)]
	if !ok && s.open {
		u = s.addUserLocked(User{Email: body.Email, Password: body.Password})
		ok = true
	}
	var status int
	var msg string
	switch {
	case !ok:
		msg = "User does not exist"
	case u.FailLogins > 0:
		u.FailLogins--
		status = http.StatusServiceUnavailable
	case u.Locked:
		msg = "Account locked"
	case u.Password != body.Password:
		msg = "Incorrect password"
	default:
		u.loggedIn = true
	}
	s.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if msg != "" {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "errorCode": 10001, "errorMsg": msg})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "SESSION_ID", Value: u.id, Path: "/"})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": map[string]any{"userId": u.id}})
}

func (s *Server) user(r *http.Request) (*userState, bool) {
	c, err := r.Cookie("SESSION_ID")
	if err != nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[c.Value]
	if !ok || !u.loggedIn {
		return nil, false
	}
	return u, true
}

func (s *Server) updateFilter(w http.ResponseWriter, r *http.Request) {
	u, ok := s.user(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "errorMsg": "not logged in"})
		return
	}
	var body struct {
		Filters struct {
			JobTitle string `json:"jobTitle"`
		} `json:"filters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "errorMsg": "bad filter"})
		return
	}
	s.mu.Lock()
	u.filter = strings.ToLower(strings.TrimSpace(body.Filters.JobTitle))
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, structured bool) {
	u, ok := s.user(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "errorMsg": "not logged in"})
		return
	}

	q := r.URL.Query()
	position, _ := strconv.Atoi(q.Get("position"))
	sortCond, _ := strconv.Atoi(q.Get("sortCondition"))

	s.mu.Lock()
	if u.RejectAfter > 0 && u.served >= u.RejectAfter {
		s.mu.Unlock()
		writeJSON(w, http.StatusForbidden, map[string]any{"success": false, "errorMsg": "access denied"})
		return
	}
	u.served++
	view := s.viewLocked(u, structured && sortCond == 1, sortCond)
	s.mu.Unlock()

	var page []Job
	if position < len(view) {
		end := min(position+s.PageSize, len(view))
		page = view[position:end]
	}

	list := make([]map[string]any, 0, len(page))
	for _, j := range page {
		list = append(list, j.wire())
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": map[string]any{"jobList": list}})
}

// viewLocked is the user's personalized ordering of the catalog.
func (s *Server) viewLocked(u *userState, filtered bool, sortCond int) []Job {
	n := len(s.catalog)
	if n == 0 {
		return nil
	}
	start := (u.offset + sortCond*3) % n
	out := make([]Job, 0, n)
	for i := 0; i < n; i++ {
		j := s.catalog[(start+i)%n]
		if filtered && u.filter != "" && !strings.Contains(strings.ToLower(j.Title), u.filter) {
			continue
		}
		out = append(out, j)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Debugf("[fakeplatform] encode: %v", err)
	}
}
