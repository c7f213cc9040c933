// Package guard decides which top-level navigation subtree is reachable
// given the latest session and configuration state. It performs no I/O;
// callers feed it whatever the session provider and config loader report
// and must re-decide whenever either changes.
package guard

import "github.com/campus-connect/appcore/internal/domain"

// Route is the single active top-level screen state.
type Route int

const (
	// RouteLoading is active while the session provider is still resolving,
	// irrespective of every other input.
	RouteLoading Route = iota
	// RouteSetupRequired is active when the service connection parameters
	// are missing; session state cannot override it.
	RouteSetupRequired
	// RouteAuth covers sign-in, sign-up and verification screens. A session
	// whose email is not yet confirmed still lands here.
	RouteAuth
	// RouteMain is the authenticated application area.
	RouteMain
)

func (r Route) String() string {
	switch r {
	case RouteLoading:
		return "loading"
	case RouteSetupRequired:
		return "setup-required"
	case RouteAuth:
		return "auth"
	case RouteMain:
		return "main"
	}
	return "unknown"
}

// Decide maps (loading, session, config presence) to exactly one Route.
// The decision is pure and never cached: the moment the session object
// reports a confirmed email the next call yields RouteMain.
func Decide(sessionLoading bool, sess *domain.Session, configPresent bool) Route {
	if sessionLoading {
		return RouteLoading
	}
	if !configPresent {
		return RouteSetupRequired
	}
	if sess.Confirmed() {
		return RouteMain
	}
	return RouteAuth
}
