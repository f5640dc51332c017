package guard

import (
	"path"
	"sort"
	"strings"

	"github.com/dataglove/glovectl/internal/core/domain"
)

// Well-known pages.
const (
	PathRoot      = "/"
	PathLogin     = "/login"
	PathRegister  = "/register"
	PathNotFound  = "/404"
	PathDashboard = "/dashboard"
)

// Route is one navigable page.
type Route struct {
	Path  string
	Name  string
	Title string

	// Redirect sends the navigation elsewhere before any guard runs.
	Redirect string

	// Roles are the effective required roles, parent roles included.
	// Any one of them grants access.
	Roles []string

	// Anonymous routes are reachable without a session.
	Anonymous bool

	// Entry marks the log-in and registration pages.
	Entry bool

	// Hidden routes are left out of menus and listings.
	Hidden bool
}

// Request builds the navigation request for r.
func (r Route) Request() NavigationRequest {
	return NavigationRequest{
		Path:      r.Path,
		Roles:     append([]string(nil), r.Roles...),
		Anonymous: r.Anonymous,
	}
}

// Group is a set of routes under a common prefix. Children without their
// own Roles inherit the group's.
type Group struct {
	Prefix   string
	Title    string
	Redirect string
	Roles    []string
	Routes   []Route
}

// Router resolves paths against a fixed route table.
type Router struct {
	routes   map[string]Route
	fallback string
}

// NewRouter builds a router. Unknown paths redirect to fallback.
func NewRouter(fallback string, groups ...Group) *Router {
	r := &Router{
		routes:   make(map[string]Route),
		fallback: Clean(fallback),
	}

	for _, g := range groups {
		prefix := Clean(g.Prefix)
		if g.Redirect != "" || g.Title != "" {
			r.routes[prefix] = Route{
				Path:     prefix,
				Title:    g.Title,
				Redirect: Clean(g.Redirect),
				Roles:    g.Roles,
				Hidden:   true,
			}
		}
		for _, child := range g.Routes {
			child.Path = Clean(path.Join(prefix, child.Path))
			if child.Redirect != "" {
				child.Redirect = Clean(child.Redirect)
			}
			if len(child.Roles) == 0 {
				child.Roles = append([]string(nil), g.Roles...)
			}
			r.routes[child.Path] = child
		}
	}
	return r
}

// Resolve returns the route for p. Paths not in the table resolve to a
// route that redirects to the fallback page.
func (r *Router) Resolve(p string) Route {
	p = Clean(p)
	if route, ok := r.routes[p]; ok {
		return route
	}
	return Route{Path: p, Redirect: r.fallback, Hidden: true}
}

// Routes lists the table sorted by path.
func (r *Router) Routes() []Route {
	out := make([]Route, 0, len(r.routes))
	for _, route := range r.routes {
		out = append(out, route)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Paths lists the paths of visible routes, for completion.
func (r *Router) Paths() []string {
	var out []string
	for _, route := range r.Routes() {
		if !route.Hidden && route.Redirect == "" {
			out = append(out, route.Path)
		}
	}
	return out
}

// Clean normalizes a page path. Query strings and fragments are dropped.
func Clean(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// DefaultRoutes is the glove console's route table.
func DefaultRoutes() *Router {
	return NewRouter(PathNotFound,
		Group{
			Routes: []Route{
				{Path: PathLogin, Name: "Login", Title: "Log in", Anonymous: true, Entry: true, Hidden: true},
				{Path: PathRegister, Name: "Register", Title: "Register", Anonymous: true, Entry: true, Hidden: true},
				{Path: PathNotFound, Name: "NotFound", Title: "Page not found", Anonymous: true, Hidden: true},
			},
		},
		Group{
			Prefix:   PathRoot,
			Redirect: PathDashboard,
			Routes: []Route{
				{Path: "dashboard", Name: "Dashboard", Title: "Dashboard"},
				{Path: "profile", Name: "Profile", Title: "Profile", Hidden: true},
			},
		},
		Group{
			Prefix:   "/user",
			Title:    "User management",
			Redirect: "/user/list",
			Roles:    []string{domain.RoleAdmin},
			Routes: []Route{
				{Path: "list", Name: "UserList", Title: "Users"},
				{Path: "roles", Name: "UserRoles", Title: "Roles"},
			},
		},
		Group{
			Prefix:   "/device",
			Title:    "Device management",
			Redirect: "/device/list",
			Routes: []Route{
				{Path: "list", Name: "DeviceList", Title: "Devices"},
				{Path: "my-devices", Name: "MyDevices", Title: "My devices"},
			},
		},
		Group{
			Prefix:   "/data",
			Title:    "Data management",
			Redirect: "/data/sensor",
			Routes: []Route{
				{Path: "sensor", Name: "SensorData", Title: "Sensor data"},
				{Path: "gesture", Name: "GestureData", Title: "Gesture recognition"},
				{Path: "learning", Name: "LearningData", Title: "Learning records"},
			},
		},
	)
}
