package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/storesync/internal/models"
	"github.com/wolfeidau/storesync/internal/store"
)

type UsersCmd struct {
	List  UsersListCmd  `cmd:"" default:"withargs" help:"List users"`
	Show  UsersShowCmd  `cmd:"" help:"Show one user"`
	Ban   UsersBanCmd   `cmd:"" help:"Ban a user"`
	Unban UsersUnbanCmd `cmd:"" help:"Lift a user's ban"`
}

type UsersListCmd struct {
	ListFlags
}

func (c *UsersListCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, true, func(a *app) error {
		return list(ctx, globals, a, a.store.Users(), c.ListFlags, usersTable)
	})
}

func usersTable(st store.State[models.User]) table {
	t := table{headers: []string{"ID", "NAME", "EMAIL", "ROLE", "STATUS"}}
	for _, u := range st.List {
		t.rows = append(t.rows, userRow(u))
	}
	t.footer = counts(st.StatusCounts, []string{"active", "banned"})
	return t
}

func userRow(u models.User) []string {
	return []string{u.ID, u.Name, u.Email, orDash(u.Role), u.UserStatus()}
}

type UsersShowCmd struct {
	ID string `arg:"" help:"User ID"`
}

func (c *UsersShowCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, true, func(a *app) error {
		u, err := a.store.User(ctx, c.ID)
		if err != nil {
			return err
		}
		return globals.printer().print(u, table{
			headers: []string{"ID", "NAME", "EMAIL", "ROLE", "STATUS"},
			rows:    [][]string{userRow(u)},
		})
	})
}

type UsersBanCmd struct {
	ID string `arg:"" help:"User ID"`
}

func (c *UsersBanCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, true, func(a *app) error {
		if err := a.store.BanUser(ctx, c.ID); err != nil {
			return err
		}
		return globals.printer().message(fmt.Sprintf("User %s banned", c.ID), map[string]any{"id": c.ID, "banned": true})
	})
}

type UsersUnbanCmd struct {
	ID string `arg:"" help:"User ID"`
}

func (c *UsersUnbanCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, true, func(a *app) error {
		if err := a.store.UnbanUser(ctx, c.ID); err != nil {
			return err
		}
		return globals.printer().message(fmt.Sprintf("User %s unbanned", c.ID), map[string]any{"id": c.ID, "banned": false})
	})
}
