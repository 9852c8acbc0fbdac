package route_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/core/route"
	inmemdb "github.com/trezcool/shulebus/storage/database/inmem"
)

func TestService(t *testing.T) {
	ctx := context.Background()
	db := inmemdb.Open()
	svc := route.NewService(db, inmemdb.NewRouteRepository(db))

	r, err := svc.Create(ctx, route.NewRoute{
		Name:     "Westlands AM",
		SchoolID: "school-1",
		TripType: route.MorningPickup,
		BusID:    "bus-1",
		Students: []route.RouteStudent{{StudentID: "s1", RiderType: route.RiderDaily}},
	})
	require.NoError(t, err)
	assert.True(t, r.IsActive)
	assert.Equal(t, "bus-1", *r.BusID)
	assert.Nil(t, r.DriverID)

	t.Run("patch keeps the roster when students are omitted", func(t *testing.T) {
		name := "Westlands Morning"
		got, err := svc.Update(ctx, r.ID, route.UpdateRoute{Name: &name, BusID: core.ClearRef()})
		require.NoError(t, err)
		assert.Equal(t, "Westlands Morning", got.Name)
		assert.Nil(t, got.BusID)
		assert.Len(t, got.Students, 1)
	})

	t.Run("empty students clears the roster", func(t *testing.T) {
		got, err := svc.Update(ctx, r.ID, route.UpdateRoute{Students: []route.RouteStudent{}})
		require.NoError(t, err)
		assert.Empty(t, got.Students)
	})

	t.Run("query", func(t *testing.T) {
		routes, pag, err := svc.Query(ctx, route.QueryFilter{SchoolID: "school-1"}, core.Page{})
		require.NoError(t, err)
		assert.Len(t, routes, 1)
		assert.Equal(t, 1, pag.TotalItems)

		routes, _, err = svc.Query(ctx, route.QueryFilter{SchoolID: "school-2"}, core.Page{})
		require.NoError(t, err)
		assert.Empty(t, routes)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, r.ID))
		_, err := svc.Get(ctx, r.ID)
		assert.Equal(t, route.ErrNotFound, err)
	})
}
