package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/wolfeidau/storesync/internal/models"
	"github.com/wolfeidau/storesync/internal/store"
)

type OrdersCmd struct {
	List   OrdersListCmd   `cmd:"" default:"withargs" help:"List orders"`
	Status OrdersStatusCmd `cmd:"" help:"Change the status of an order"`
	Assign OrdersAssignCmd `cmd:"" help:"Assign an order to a delivery partner"`
}

type OrdersListCmd struct {
	ListFlags
}

func (c *OrdersListCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, true, func(a *app) error {
		return list(ctx, globals, a, a.store.Orders(), c.ListFlags, ordersTable)
	})
}

func ordersTable(st store.State[models.Order]) table {
	t := table{headers: []string{"ID", "CUSTOMER", "STATUS", "ITEMS", "TOTAL", "PARTNER", "CREATED"}}
	for _, o := range st.List {
		created := "-"
		if !o.CreatedAt.IsZero() {
			created = o.CreatedAt.Format("2006-01-02 15:04")
		}
		t.rows = append(t.rows, []string{
			o.ID,
			orDash(o.CustomerName),
			o.Status,
			strconv.Itoa(len(o.Items)),
			money(o.Total),
			orDash(o.DeliveryPartnerID),
			created,
		})
	}
	t.footer = counts(st.StatusCounts, models.OrderStatuses)
	return t
}

type OrdersStatusCmd struct {
	ID     string `arg:"" help:"Order ID"`
	Status string `arg:"" help:"New status"`
}

func (c *OrdersStatusCmd) Help() string {
	return "Known statuses: " + strings.Join(models.OrderStatuses, ", ")
}

func (c *OrdersStatusCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, true, func(a *app) error {
		if err := a.store.UpdateOrderStatus(ctx, c.ID, c.Status); err != nil {
			return err
		}
		return globals.printer().message(
			fmt.Sprintf("Order %s is now %s", c.ID, c.Status),
			map[string]any{"id": c.ID, "status": c.Status},
		)
	})
}

type OrdersAssignCmd struct {
	ID        string `arg:"" help:"Order ID"`
	PartnerID string `arg:"" help:"Delivery partner ID"`
}

func (c *OrdersAssignCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, true, func(a *app) error {
		if err := a.store.AssignOrder(ctx, c.ID, c.PartnerID); err != nil {
			return err
		}
		return globals.printer().message(
			fmt.Sprintf("Order %s assigned to %s", c.ID, c.PartnerID),
			map[string]any{"id": c.ID, "partnerId": c.PartnerID},
		)
	})
}
