package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/storesync/cmd/cli/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		commands.Globals

		Login     commands.LoginCmd     `cmd:"" help:"Log in and persist the session"`
		Logout    commands.LogoutCmd    `cmd:"" help:"Log out and clear the local session"`
		Whoami    commands.WhoamiCmd    `cmd:"" help:"Show the logged in principal"`
		Dashboard commands.DashboardCmd `cmd:"" help:"Show the dashboard summary"`
		Orders    commands.OrdersCmd    `cmd:"" help:"List and update orders"`
		Users     commands.UsersCmd     `cmd:"" help:"List, inspect and ban users"`
		Products  commands.ProductsCmd  `cmd:"" help:"List, inspect and update products"`
		Partners  commands.PartnersCmd  `cmd:"" help:"List and manage delivery partners"`
		Refresh   commands.RefreshCmd   `cmd:"" help:"Refetch the dashboard and every list"`
		Version   kong.VersionFlag
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("storesync"),
		kong.Description("Keep the storefront consoles in sync with the data API."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	globals := cli.Globals
	globals.Version = version

	err := cmd.Run(&globals)
	cmd.FatalIfErrorf(err)
}
