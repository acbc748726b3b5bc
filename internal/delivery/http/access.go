package http

import "sync"

// Access is the session state a web route requires.
type Access int

const (
	// AccessAuthenticated is the default for any route not listed.
	AccessAuthenticated Access = iota
	// AccessGuest routes are for signed-out users; signed-in users are sent home.
	AccessGuest
	// AccessChallenge routes are only reachable with a pending 2FA session.
	AccessChallenge
	// AccessPublic routes skip session checks entirely.
	AccessPublic
)

func (a Access) String() string {
	switch a {
	case AccessGuest:
		return "guest"
	case AccessChallenge:
		return "challenge"
	case AccessPublic:
		return "public"
	default:
		return "authenticated"
	}
}

// AccessTable maps route templates to their web access level and API routes
// to the scope they require. It is filled at startup and read per request.
type AccessTable struct {
	mu     sync.RWMutex
	access map[string]Access
	scopes map[string]string
}

func NewAccessTable() *AccessTable {
	return &AccessTable{
		access: map[string]Access{},
		scopes: map[string]string{},
	}
}

// Allow sets the access level for every method on path.
func (t *AccessTable) Allow(path string, a Access) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.access[path] = a
}

// Access returns the level registered for path, or AccessAuthenticated.
func (t *AccessTable) Access(path string) Access {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.access[path]
}

// RequireScope makes method+path reject API identities lacking scope.
func (t *AccessTable) RequireScope(method, path, scope string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scopes[method+" "+path] = scope
}

// Scope returns the scope required for method+path, if any.
func (t *AccessTable) Scope(method, path string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.scopes[method+" "+path]
	return s, ok
}
