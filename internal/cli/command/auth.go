package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/dataglove/glovectl/internal/client/notice"
	"github.com/dataglove/glovectl/internal/core/domain"
)

// LoginCommand returns the login command.
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "Sign in and keep the session for later commands",
		ArgsUsage: "[USERNAME]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "username",
				Aliases: []string{"u"},
				Usage:   "account name",
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "password (read from stdin when omitted)",
				EnvVars: []string{"GLOVECTL_PASSWORD"},
			},
		},
		Action: login,
	}
}

func login(c *cli.Context) error {
	rt := GetRuntime(c)
	args, err := positional(c, 0, 1)
	if err != nil {
		return err
	}
	username := c.String("username")
	if len(args) == 1 {
		username = firstNonEmpty(username, args[0])
	}
	if username == "" {
		return errors.New("username is required")
	}
	password, err := rt.secret(c.Context, c.String("password"), "Password: ")
	if err != nil {
		return err
	}

	cl, err := rt.Client(c.Context)
	if err != nil {
		return err
	}
	id, err := cl.Controller.Login(c.Context, domain.LoginRequest{Username: username, Password: password})
	if err != nil {
		return err
	}
	return rt.Render(id)
}

// RegisterCommand returns the register command.
func RegisterCommand() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Create an account and sign in",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "account name", Required: true},
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "email address", Required: true},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "password (read from stdin when omitted)"},
			&cli.StringFlag{Name: "confirm-password", Usage: "repeat of the password (defaults to --password)"},
			&cli.StringFlag{Name: "phone", Usage: "phone number"},
			&cli.StringFlag{Name: "real-name", Usage: "display name"},
		},
		Action: register,
	}
}

func register(c *cli.Context) error {
	rt := GetRuntime(c)
	password, err := rt.secret(c.Context, c.String("password"), "Password: ")
	if err != nil {
		return err
	}

	cl, err := rt.Client(c.Context)
	if err != nil {
		return err
	}
	id, err := cl.Controller.Register(c.Context, domain.RegisterRequest{
		Username:        c.String("username"),
		Email:           c.String("email"),
		Password:        password,
		ConfirmPassword: firstNonEmpty(c.String("confirm-password"), password),
		Phone:           c.String("phone"),
		RealName:        c.String("real-name"),
	})
	if err != nil {
		return err
	}
	return rt.Render(id)
}

// LogoutCommand returns the logout command.
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "End the session here and on the service",
		Action: logout,
	}
}

func logout(c *cli.Context) error {
	rt := GetRuntime(c)
	cl, err := rt.Client(c.Context)
	if err != nil {
		return err
	}
	if !cl.State.IsAuthenticated() {
		rt.Notify(notice.LevelInfo, "not logged in")
		return nil
	}
	if err := cl.Controller.Logout(c.Context); err != nil {
		return err
	}
	rt.Notify(notice.LevelSuccess, "logged out")
	return nil
}

// PasswdCommand returns the passwd command.
func PasswdCommand() *cli.Command {
	return &cli.Command{
		Name:  "passwd",
		Usage: "Change the password of the signed-in account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "old", Usage: "current password (read from stdin when omitted)"},
			&cli.StringFlag{Name: "new", Usage: "new password (read from stdin when omitted)"},
		},
		Action: passwd,
	}
}

func passwd(c *cli.Context) error {
	rt := GetRuntime(c)
	cl, err := rt.Client(c.Context)
	if err != nil {
		return err
	}
	if !cl.State.IsAuthenticated() {
		return domain.ErrNotLoggedIn
	}
	id, ok := cl.State.Identity()
	if !ok {
		if id, err = cl.Controller.FetchIdentity(c.Context); err != nil {
			return err
		}
	}

	old, err := rt.secret(c.Context, c.String("old"), "Current password: ")
	if err != nil {
		return err
	}
	next, err := rt.secret(c.Context, c.String("new"), "New password: ")
	if err != nil {
		return err
	}
	err = cl.API.Users.ChangePassword(c.Context, id.ID, domain.PasswordChangeRequest{
		OldPassword:     old,
		NewPassword:     next,
		ConfirmPassword: next,
	})
	if err != nil {
		return err
	}
	rt.Notify(notice.LevelSuccess, "password changed")
	return nil
}

// WhoamiCommand returns the whoami command.
func WhoamiCommand() *cli.Command {
	return &cli.Command{
		Name:   "whoami",
		Usage:  "Show the signed-in account",
		Action: whoami,
	}
}

func whoami(c *cli.Context) error {
	rt := GetRuntime(c)
	cl, err := rt.Client(c.Context)
	if err != nil {
		return err
	}
	if id, ok := cl.State.Identity(); ok {
		return rt.Render(id)
	}
	id, err := cl.Controller.FetchIdentity(c.Context)
	if err != nil {
		return err
	}
	return rt.Render(id)
}

// RefreshCommand returns the refresh command.
func RefreshCommand() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "Exchange the refresh token for a new access token",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "token",
				Usage: "refresh token to use instead of the stored one",
			},
			&cli.BoolFlag{
				Name:  "if-expiring",
				Usage: "refresh only when the access token expires within refresh_skew",
			},
		},
		Action: refresh,
	}
}

func refresh(c *cli.Context) error {
	rt := GetRuntime(c)
	cl, err := rt.Client(c.Context)
	if err != nil {
		return err
	}

	if c.Bool("if-expiring") {
		cfg, err := rt.Config()
		if err != nil {
			return err
		}
		refreshed, err := cl.Controller.RefreshIfExpiring(c.Context, cfg.RefreshSkew)
		if err != nil {
			return err
		}
		if !refreshed {
			rt.Notify(notice.LevelInfo, "access token still valid")
			return nil
		}
		rt.Notify(notice.LevelSuccess, "session refreshed")
		return nil
	}

	id, err := cl.Controller.Refresh(c.Context, c.String("token"))
	if err != nil {
		return err
	}
	rt.Notify(notice.LevelSuccess, "session refreshed")
	return rt.Render(id)
}

// secret returns value, or reads one line of input after prompt.
func (rt *Runtime) secret(ctx context.Context, value, prompt string) (string, error) {
	if value != "" {
		return value, nil
	}

	rt.mu.Lock()
	readLine := rt.readLine
	if rt.stdin == nil {
		rt.stdin = bufio.NewReader(rt.In)
	}
	stdin := rt.stdin
	rt.mu.Unlock()

	var (
		line string
		err  error
	)
	if readLine != nil {
		line, err = readLine(ctx, prompt)
	} else {
		fmt.Fprint(rt.Err, prompt)
		line, err = stdin.ReadString('\n')
		fmt.Fprintln(rt.Err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return "", errors.New("password is required")
	}
	return line, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
