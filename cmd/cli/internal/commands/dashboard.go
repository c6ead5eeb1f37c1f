package commands

import (
	"context"
	"errors"
	"strconv"

	"github.com/wolfeidau/storesync/internal/models"
)

type DashboardCmd struct {
	Force bool `help:"Bypass the cache"`
}

func (c *DashboardCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, true, func(a *app) error {
		st := a.store.Dashboard(ctx, c.Force)
		if !st.Loaded {
			return errors.New(st.Error)
		}

		d := st.Data
		t := table{
			headers: []string{"METRIC", "VALUE"},
			rows: [][]string{
				{"Orders", strconv.Itoa(d.TotalOrders)},
				{"Users", strconv.Itoa(d.TotalUsers)},
				{"Products", strconv.Itoa(d.TotalProducts)},
				{"Revenue", money(d.TotalRevenue)},
			},
			footer: counts(d.OrderStatusCounts, models.OrderStatuses),
		}
		if st.Error != "" {
			t.footer += "\nwarning: " + st.Error
		}

		return globals.printer().print(d, t)
	})
}

// RefreshCmd drops every cache and refetches the dashboard and page 1 of
// every list concurrently.
type RefreshCmd struct{}

func (c *RefreshCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, true, func(a *app) error {
		if err := a.store.RefreshAll(ctx); err != nil {
			return err
		}

		summary := map[string]any{
			"dashboard": a.store.CurrentDashboard().Loaded,
			"orders":    len(a.store.Orders().State().List),
			"users":     len(a.store.Users().State().List),
			"products":  len(a.store.Products().State().List),
			"partners":  len(a.store.Partners().State().List),
		}

		t := table{headers: []string{"RESOURCE", "LOADED", "ERROR"}}
		t.rows = append(t.rows,
			[]string{"dashboard", strconv.FormatBool(a.store.CurrentDashboard().Loaded), orDash(a.store.CurrentDashboard().Error)},
			[]string{"orders", strconv.Itoa(len(a.store.Orders().State().List)), orDash(a.store.Orders().State().Error)},
			[]string{"users", strconv.Itoa(len(a.store.Users().State().List)), orDash(a.store.Users().State().Error)},
			[]string{"products", strconv.Itoa(len(a.store.Products().State().List)), orDash(a.store.Products().State().Error)},
			[]string{"partners", strconv.Itoa(len(a.store.Partners().State().List)), orDash(a.store.Partners().State().Error)},
		)

		return globals.printer().print(summary, t)
	})
}
