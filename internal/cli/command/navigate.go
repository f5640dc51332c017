package command

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/urfave/cli/v2"

	"github.com/dataglove/glovectl/internal/client"
	"github.com/dataglove/glovectl/internal/client/api"
	"github.com/dataglove/glovectl/internal/client/guard"
	"github.com/dataglove/glovectl/internal/client/notice"
	"github.com/dataglove/glovectl/internal/core/domain"
)

// Console pages backed by a single endpoint.
const (
	pageProfile       = "/profile"
	pageUserList      = "/user/list"
	pageUserRoles     = "/user/roles"
	pageDeviceList    = "/device/list"
	pageMyDevices     = "/device/my-devices"
	pageSensorData    = "/data/sensor"
	pageGestureData   = "/data/gesture"
	pageLearningData  = "/data/learning"
	defaultOpenTarget = guard.PathRoot
)

// OpenCommand returns the open command.
func OpenCommand() *cli.Command {
	return &cli.Command{
		Name:      "open",
		Aliases:   []string{"cd", "go"},
		Usage:     "Navigate to a console page and show its content",
		ArgsUsage: "[PATH]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "page", Usage: "page number of list pages"},
			&cli.IntFlag{Name: "size", Usage: "rows per page"},
			&cli.StringFlag{Name: "keyword", Aliases: []string{"k"}, Usage: "search keyword"},
			&cli.StringFlag{Name: "status", Usage: "status filter"},
			&cli.StringFlag{Name: "sort", Usage: "sort field"},
			&cli.BoolFlag{Name: "desc", Usage: "sort descending"},
			&cli.StringSliceFlag{Name: "filter", Aliases: []string{"f"}, Usage: "endpoint filter as key=value (repeatable)"},
		},
		Action: open,
	}
}

func open(c *cli.Context) error {
	rt := GetRuntime(c)
	args, err := positional(c, 0, 1)
	if err != nil {
		return err
	}
	target := defaultOpenTarget
	if len(args) == 1 {
		target = args[0]
	}

	q, err := listQuery(c)
	if err != nil {
		return err
	}

	cl, err := rt.Client(c.Context)
	if err != nil {
		return err
	}
	rt.view.setQuery(q)
	defer rt.view.setQuery(api.ListQuery{})

	_, err = cl.Navigator.Navigate(c.Context, target)
	return err
}

func listQuery(c *cli.Context) (api.ListQuery, error) {
	q := api.ListQuery{
		Page:    c.Int("page"),
		Size:    c.Int("size"),
		Keyword: c.String("keyword"),
		Status:  c.String("status"),
		SortBy:  c.String("sort"),
	}
	if c.Bool("desc") {
		q.SortDir = "desc"
	}
	for _, f := range c.StringSlice("filter") {
		key, value, ok := strings.Cut(f, "=")
		if !ok || key == "" {
			return q, fmt.Errorf("invalid filter %q: want key=value", f)
		}
		if q.Extra == nil {
			q.Extra = url.Values{}
		}
		q.Extra.Add(key, value)
	}
	return q, nil
}

// RoutesCommand returns the routes command.
func RoutesCommand() *cli.Command {
	return &cli.Command{
		Name:  "routes",
		Usage: "List console pages and who may open them",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "include hidden pages and redirects"},
		},
		Action: routes,
	}
}

type routeRow struct {
	Path     string `json:"path"`
	Title    string `json:"title"`
	Access   string `json:"access"`
	Redirect string `json:"redirect,omitempty" table:"-"`
}

func routes(c *cli.Context) error {
	rt := GetRuntime(c)
	cl, err := rt.Client(c.Context)
	if err != nil {
		return err
	}

	all := c.Bool("all")
	var rows []routeRow
	for _, r := range cl.Router.Routes() {
		if !all && (r.Hidden || r.Redirect != "") {
			continue
		}
		rows = append(rows, routeRow{
			Path:     r.Path,
			Title:    firstNonEmpty(r.Title, r.Name),
			Access:   access(r),
			Redirect: r.Redirect,
		})
	}
	return rt.Render(rows)
}

func access(r guard.Route) string {
	switch {
	case r.Redirect != "":
		return "-> " + r.Redirect
	case r.Anonymous:
		return "anyone"
	case len(r.Roles) == 0:
		return "signed in"
	default:
		return strings.Join(r.Roles, " | ")
	}
}

// pageView renders an entered page by calling its endpoint.
type pageView struct {
	rt     *Runtime
	client *client.Client

	mu    sync.Mutex
	query api.ListQuery
}

func (v *pageView) setQuery(q api.ListQuery) {
	v.mu.Lock()
	v.query = q
	v.mu.Unlock()
}

func (v *pageView) listQuery() api.ListQuery {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.query
}

// Render implements guard.View.
func (v *pageView) Render(ctx context.Context, route guard.Route) error {
	if v.client == nil {
		return nil
	}
	a := v.client.API
	q := v.listQuery()

	switch route.Path {
	case guard.PathLogin:
		v.rt.Notify(notice.LevelInfo, "not signed in; run: login USERNAME")
		return nil
	case guard.PathRegister:
		v.rt.Notify(notice.LevelInfo, "run: register --username NAME --email ADDRESS")
		return nil
	case guard.PathNotFound:
		v.rt.Notify(notice.LevelInfo, "nothing to show here; run: routes")
		return nil
	case guard.PathDashboard:
		overview, err := a.Data.Overview(ctx)
		if err != nil {
			return err
		}
		return v.show(route, overview)
	case pageProfile:
		id, ok := v.client.State.Identity()
		if !ok {
			var err error
			if id, err = v.client.Controller.FetchIdentity(ctx); err != nil {
				return err
			}
		}
		return v.show(route, id)
	case pageUserList:
		return showPage[domain.Identity](v, route)(a.Users.List(ctx, q))
	case pageUserRoles:
		roles, err := a.Users.Roles(ctx)
		if err != nil {
			return err
		}
		return v.show(route, roles)
	case pageDeviceList:
		return showPage[api.Record](v, route)(a.Devices.List(ctx, q))
	case pageMyDevices:
		devices, err := a.Devices.Mine(ctx)
		if err != nil {
			return err
		}
		return v.show(route, devices)
	case pageSensorData:
		return showPage[api.Record](v, route)(a.Data.SensorData(ctx, q))
	case pageGestureData:
		return showPage[api.Record](v, route)(a.Data.GestureResults(ctx, q))
	case pageLearningData:
		return showPage[api.Record](v, route)(a.Data.LearningRecords(ctx, q))
	}

	v.rt.Notify(notice.LevelInfo, "entered "+route.Path)
	return nil
}

func (v *pageView) show(route guard.Route, data any) error {
	if v.rt.Tabular() && route.Title != "" {
		fmt.Fprintf(v.rt.Out, "== %s ==\n", route.Title)
	}
	return v.rt.Render(data)
}

// showPage renders a list page. Tables get the rows and a footer; other
// formats get the whole page object.
func showPage[T any](v *pageView, route guard.Route) func(*api.Page[T], error) error {
	return func(p *api.Page[T], err error) error {
		if err != nil {
			return err
		}
		if !v.rt.Tabular() {
			return v.rt.Render(p)
		}
		if len(p.Content) == 0 {
			fmt.Fprintf(v.rt.Out, "== %s ==\n", route.Title)
			fmt.Fprintln(v.rt.Out, "no records")
			return nil
		}
		if err := v.show(route, p.Content); err != nil {
			return err
		}
		fmt.Fprintf(v.rt.Out, "page %d of %d, %d total\n", p.Page+1, max(p.TotalPages, 1), p.Total)
		return nil
	}
}
