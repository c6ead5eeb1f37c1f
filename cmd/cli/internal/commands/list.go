package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/storesync/internal/store"
)

// ListFlags are shared by every list command.
type ListFlags struct {
	Page     int           `help:"Load pages up to and including this one" default:"1"`
	All      bool          `help:"Load every page"`
	Force    bool          `help:"Bypass the cache for page 1"`
	Watch    bool          `help:"Keep the list on screen and reload it periodically"`
	Interval time.Duration `help:"Reload interval for --watch" default:"5s"`
}

// load brings r up to the requested page. Page 1 honours the cache unless
// Force is set; later pages always come from the network.
func load[T any](ctx context.Context, r *store.Resource[T], f ListFlags) store.State[T] {
	if f.All {
		if f.Force {
			r.Refresh(ctx)
		}
		return r.All(ctx)
	}

	st := r.FetchPage(ctx, 1, f.Force)
	for st.Page < f.Page && st.HasMore && st.Error == "" {
		next := r.LoadMore(ctx)
		if next.Page == st.Page {
			return next
		}
		st = next
	}
	return st
}

func render[T any](globals *Globals, st store.State[T], toTable func(store.State[T]) table) error {
	if st.Error != "" && len(st.List) == 0 {
		return errors.New(st.Error)
	}

	t := toTable(st)
	summary := fmt.Sprintf("Showing %d of %d (page %d)", len(st.List), st.Total, st.Page)
	if t.footer != "" {
		summary = "By status: " + t.footer + "\n" + summary
	}
	t.footer = summary
	if st.HasMore {
		t.footer += ", more available with --page or --all"
	}
	if st.Error != "" {
		t.footer += "\nwarning: " + st.Error
	}

	return globals.printer().print(st, t)
}

// list loads and renders r, optionally refreshing it until ctx is done.
func list[T any](ctx context.Context, globals *Globals, a *app, r *store.Resource[T], f ListFlags, toTable func(store.State[T]) table) error {
	if err := render(globals, load(ctx, r, f), toTable); err != nil {
		return err
	}

	log.Debug().Str("resource", r.Name()).Int("cached", a.store.CachedCollections()).Msg("list rendered")

	if !f.Watch {
		return nil
	}

	ticker := time.NewTicker(f.Interval)
	defer ticker.Stop()

	w := globals.writer()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fmt.Fprint(w, "\033[2J\033[H") // Clear screen and move cursor to top
			fmt.Fprintf(w, "%s (updated at %s)\n\n", r.Name(), time.Now().Format("15:04:05"))

			// page 1 comes from the cache until the TTL lapses
			reload := f
			reload.Force = false
			if err := render(globals, load(ctx, r, reload), toTable); err != nil {
				fmt.Fprintf(w, "Error updating %s: %v\n", r.Name(), err)
			}
		}
	}
}
