package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/wolfeidau/storesync/internal/models"
	"github.com/wolfeidau/storesync/internal/store"
)

type PartnersCmd struct {
	List         PartnersListCmd         `cmd:"" default:"withargs" help:"List delivery partners"`
	Verify       PartnersVerifyCmd       `cmd:"" help:"Verify a delivery partner"`
	Availability PartnersAvailabilityCmd `cmd:"" help:"Set your availability as a delivery partner"`
}

type PartnersListCmd struct {
	ListFlags
}

func (c *PartnersListCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, true, func(a *app) error {
		return list(ctx, globals, a, a.store.Partners(), c.ListFlags, partnersTable)
	})
}

func partnersTable(st store.State[models.DeliveryPartner]) table {
	t := table{headers: []string{"ID", "NAME", "PHONE", "VEHICLE", "VERIFIED", "AVAILABLE", "ACTIVE ORDERS"}}
	for _, p := range st.List {
		t.rows = append(t.rows, []string{
			p.ID,
			p.Name,
			orDash(p.Phone),
			orDash(p.Vehicle),
			yesNo(p.Verified),
			yesNo(p.Available),
			strconv.Itoa(p.ActiveOrders),
		})
	}
	t.footer = counts(st.StatusCounts, []string{"pending_verification", "available", "unavailable"})
	return t
}

type PartnersVerifyCmd struct {
	ID string `arg:"" help:"Delivery partner ID"`
}

func (c *PartnersVerifyCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, true, func(a *app) error {
		if err := a.store.VerifyPartner(ctx, c.ID); err != nil {
			return err
		}
		return globals.printer().message(fmt.Sprintf("Partner %s verified", c.ID), map[string]any{"id": c.ID, "verified": true})
	})
}

type PartnersAvailabilityCmd struct {
	Available bool `arg:"" help:"true to take new orders, false to pause"`
}

func (c *PartnersAvailabilityCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, true, func(a *app) error {
		id := a.store.Session().Principal.ID
		if err := a.store.SetPartnerAvailability(ctx, id, c.Available); err != nil {
			return err
		}
		state := "unavailable"
		if c.Available {
			state = "available"
		}
		return globals.printer().message(fmt.Sprintf("You are now %s", state), map[string]any{"id": id, "available": c.Available})
	})
}
