package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/wolfeidau/storesync/internal/models"
	"github.com/wolfeidau/storesync/internal/store"
)

type ProductsCmd struct {
	List   ProductsListCmd   `cmd:"" default:"withargs" help:"List products"`
	Show   ProductsShowCmd   `cmd:"" help:"Show one product"`
	Update ProductsUpdateCmd `cmd:"" help:"Update product fields"`
}

type ProductsListCmd struct {
	ListFlags
}

func (c *ProductsListCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, true, func(a *app) error {
		return list(ctx, globals, a, a.store.Products(), c.ListFlags, productsTable)
	})
}

var productHeaders = []string{"ID", "NAME", "CATEGORY", "PRICE", "STOCK", "STATUS"}

func productsTable(st store.State[models.Product]) table {
	t := table{headers: productHeaders}
	for _, p := range st.List {
		t.rows = append(t.rows, productRow(p))
	}
	t.footer = counts(st.StatusCounts, nil)
	return t
}

func productRow(p models.Product) []string {
	return []string{p.ID, p.Name, orDash(p.Category), money(p.Price), strconv.Itoa(p.Stock), orDash(p.Status)}
}

type ProductsShowCmd struct {
	ID string `arg:"" help:"Product ID"`
}

func (c *ProductsShowCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, true, func(a *app) error {
		p, err := a.store.Product(ctx, c.ID)
		if err != nil {
			return err
		}
		return globals.printer().print(p, table{headers: productHeaders, rows: [][]string{productRow(p)}})
	})
}

type ProductsUpdateCmd struct {
	ID     string   `arg:"" help:"Product ID"`
	Name   *string  `help:"New name"`
	Price  *float64 `help:"New price"`
	Stock  *int     `help:"New stock level"`
	Status *string  `help:"New status"`
}

func (c *ProductsUpdateCmd) update() models.ProductUpdate {
	return models.ProductUpdate{Name: c.Name, Price: c.Price, Stock: c.Stock, Status: c.Status}
}

func (c *ProductsUpdateCmd) Validate() error {
	if c.update().IsEmpty() {
		return errors.New("at least one of --name, --price, --stock or --status is required")
	}
	return nil
}

func (c *ProductsUpdateCmd) Run(ctx context.Context, globals *Globals) error {
	return globals.run(ctx, true, func(a *app) error {
		if err := a.store.UpdateProduct(ctx, c.ID, c.update()); err != nil {
			return err
		}
		return globals.printer().message(fmt.Sprintf("Product %s updated", c.ID), map[string]any{"id": c.ID, "update": c.update()})
	})
}
