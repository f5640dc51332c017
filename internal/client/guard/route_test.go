package guard

import (
	"testing"

	"github.com/dataglove/glovectl/internal/core/domain"
)

func TestClean(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "/"},
		{"/", "/"},
		{"login", "/login"},
		{"/data/sensor/", "/data/sensor"},
		{"/device/../user/list", "/user/list"},
		{"/device/list?page=2", "/device/list"},
		{"/profile#top", "/profile"},
	}
	for _, tt := range tests {
		if got := Clean(tt.in); got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultRoutes(t *testing.T) {
	r := DefaultRoutes()

	tests := []struct {
		path      string
		redirect  string
		roles     []string
		anonymous bool
		entry     bool
	}{
		{path: "/login", anonymous: true, entry: true},
		{path: "/register", anonymous: true, entry: true},
		{path: "/404", anonymous: true},
		{path: "/", redirect: "/dashboard"},
		{path: "/dashboard"},
		{path: "/profile"},
		{path: "/user", redirect: "/user/list", roles: []string{domain.RoleAdmin}},
		{path: "/user/list", roles: []string{domain.RoleAdmin}},
		{path: "/user/roles", roles: []string{domain.RoleAdmin}},
		{path: "/device", redirect: "/device/list"},
		{path: "/device/list"},
		{path: "/device/my-devices"},
		{path: "/data", redirect: "/data/sensor"},
		{path: "/data/sensor"},
		{path: "/data/gesture"},
		{path: "/data/learning"},
		{path: "/missing", redirect: "/404"},
		{path: "/user/list/extra", redirect: "/404"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := r.Resolve(tt.path)
			if got.Path != tt.path {
				t.Errorf("Path = %q, want %q", got.Path, tt.path)
			}
			if got.Redirect != tt.redirect {
				t.Errorf("Redirect = %q, want %q", got.Redirect, tt.redirect)
			}
			if got.Anonymous != tt.anonymous {
				t.Errorf("Anonymous = %v, want %v", got.Anonymous, tt.anonymous)
			}
			if got.Entry != tt.entry {
				t.Errorf("Entry = %v, want %v", got.Entry, tt.entry)
			}
			if len(got.Roles) != len(tt.roles) {
				t.Fatalf("Roles = %v, want %v", got.Roles, tt.roles)
			}
			for i := range tt.roles {
				if got.Roles[i] != tt.roles[i] {
					t.Errorf("Roles = %v, want %v", got.Roles, tt.roles)
				}
			}
		})
	}
}

func TestRouter_Paths(t *testing.T) {
	got := DefaultRoutes().Paths()
	want := []string{
		"/dashboard",
		"/data/gesture",
		"/data/learning",
		"/data/sensor",
		"/device/list",
		"/device/my-devices",
		"/user/list",
		"/user/roles",
	}
	if len(got) != len(want) {
		t.Fatalf("Paths() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Paths()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRoute_RequestCopiesRoles(t *testing.T) {
	route := DefaultRoutes().Resolve("/user/list")
	req := route.Request()
	req.Roles[0] = "MUTATED"

	if DefaultRoutes().Resolve("/user/list").Roles[0] != domain.RoleAdmin {
		t.Fatal("route roles were mutated through the request")
	}
	if route.Roles[0] != domain.RoleAdmin {
		t.Fatal("request shares the route's roles slice")
	}
}
