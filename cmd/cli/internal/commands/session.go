package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wolfeidau/storesync/internal/models"
)

// LoginCmd authenticates against the data API.
type LoginCmd struct {
	Email    string `arg:"" help:"Account email"`
	Password string `help:"Account password, read from stdin when empty" env:"STORESYNC_PASSWORD"`

	stdin io.Reader `kong:"-"`
}

func (c *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	password := c.Password
	if password == "" {
		var err error
		password, err = c.readPassword()
		if err != nil {
			return err
		}
	}

	return globals.run(ctx, false, func(a *app) error {
		principal, err := a.store.Login(ctx, models.Credentials{Email: c.Email, Password: password})
		if err != nil {
			return err
		}

		return globals.printer().message(
			fmt.Sprintf("Logged in as %s (%s)", principal.Name, principal.Role),
			map[string]any{"principal": principal},
		)
	})
}

func (c *LoginCmd) readPassword() (string, error) {
	in := c.stdin
	if in == nil {
		in = os.Stdin
		fmt.Fprint(os.Stderr, "Password: ")
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password is required")
	}
	return password, nil
}

// LogoutCmd ends the session. It succeeds even when the server is down.
type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, false, func(a *app) error {
		if err := a.store.Logout(ctx); err != nil {
			return err
		}
		return globals.printer().message("Logged out", map[string]any{"authenticated": false})
	})
}

// WhoamiCmd prints the persisted principal.
type WhoamiCmd struct{}

func (c *WhoamiCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, true, func(a *app) error {
		p := a.store.Session().Principal

		return globals.printer().print(p, table{
			headers: []string{"ID", "NAME", "EMAIL", "ROLE"},
			rows:    [][]string{{p.ID, p.Name, p.Email, p.Role}},
		})
	})
}
