package store

import (
	"maps"
	"slices"

	"github.com/wolfeidau/storesync/internal/models"
)

// State is the client-side view of one paginated resource.
//
// Len(List) never exceeds Total. HasMore reports whether the last page
// fetched was full; it is a hint, the server never confirms it. Page is the
// last page merged into List, zero before the first fetch.
type State[T any] struct {
	List         []T            `json:"list"`
	Loading      bool           `json:"loading"`
	Error        string         `json:"error,omitempty"`
	HasMore      bool           `json:"hasMore"`
	Total        int            `json:"total"`
	StatusCounts map[string]int `json:"statusCounts"`
	Page         int            `json:"page"`
}

// Clone returns a deep copy of the state's slice and map.
func (s State[T]) Clone() State[T] {
	s.List = slices.Clone(s.List)
	s.StatusCounts = maps.Clone(s.StatusCounts)
	return s
}

// DashboardState is the client-side view of the dashboard summary.
type DashboardState struct {
	Data    models.Dashboard `json:"data"`
	Loaded  bool             `json:"loaded"`
	Loading bool             `json:"loading"`
	Error   string           `json:"error,omitempty"`
}

func cloneDashboard(d models.Dashboard) models.Dashboard {
	d.OrderStatusCounts = maps.Clone(d.OrderStatusCounts)
	d.RecentOrders = slices.Clone(d.RecentOrders)
	return d
}

func countStatuses[T any](list []T, status func(T) string) map[string]int {
	counts := make(map[string]int)
	for _, item := range list {
		counts[status(item)]++
	}
	return counts
}
