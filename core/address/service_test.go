package address_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/core/address"
	inmemdb "github.com/trezcool/shulebus/storage/database/inmem"
)

func newService() address.Service {
	db := inmemdb.Open()
	return address.NewService(db, inmemdb.NewAddressRepository(db), core.NopLogger{})
}

func primaries(t *testing.T, svc address.Service, parentID string) []address.Address {
	addrs, _, err := svc.Query(context.Background(), address.QueryFilter{ParentID: parentID}, core.Page{PageSize: 100})
	require.NoError(t, err)
	var out []address.Address
	for _, a := range addrs {
		if a.IsPrimary {
			out = append(out, a)
		}
	}
	return out
}

func TestService_Create_SinglePrimary(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	home, err := svc.Create(ctx, address.NewAddress{ParentID: "p1", AddressType: "Home", Location: "Kilimani", Status: address.StatusActive, IsPrimary: true})
	require.NoError(t, err)
	other, err := svc.Create(ctx, address.NewAddress{ParentID: "p2", AddressType: "Home", Location: "Karen", Status: address.StatusActive, IsPrimary: true})
	require.NoError(t, err)

	office, err := svc.Create(ctx, address.NewAddress{ParentID: "p1", AddressType: "Office", Location: "Upper Hill", Status: address.StatusActive, IsPrimary: true})
	require.NoError(t, err)

	got := primaries(t, svc, "p1")
	require.Len(t, got, 1)
	assert.Equal(t, office.ID, got[0].ID)

	home, err = svc.Get(ctx, home.ID)
	require.NoError(t, err)
	assert.False(t, home.IsPrimary)

	require.Len(t, primaries(t, svc, "p2"), 1, "other parents are untouched")
	assert.Equal(t, other.ID, primaries(t, svc, "p2")[0].ID)

	primary, err := svc.GetPrimary(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, office.ID, primary.ID)
}

func TestService_Create_NonPrimary(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	home, err := svc.Create(ctx, address.NewAddress{ParentID: "p1", AddressType: "Home", Location: "Kilimani", Status: address.StatusActive, IsPrimary: true})
	require.NoError(t, err)
	_, err = svc.Create(ctx, address.NewAddress{ParentID: "p1", AddressType: "Office", Location: "Upper Hill", Status: address.StatusActive})
	require.NoError(t, err)

	got := primaries(t, svc, "p1")
	require.Len(t, got, 1)
	assert.Equal(t, home.ID, got[0].ID)
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	home, err := svc.Create(ctx, address.NewAddress{ParentID: "p1", AddressType: "Home", Location: "Kilimani", Status: address.StatusActive, IsPrimary: true})
	require.NoError(t, err)
	office, err := svc.Create(ctx, address.NewAddress{ParentID: "p1", AddressType: "Office", Location: "Upper Hill", Status: address.StatusActive})
	require.NoError(t, err)

	yes := true
	lat := -1.29
	office, err = svc.Update(ctx, office.ID, address.UpdateAddress{IsPrimary: &yes, Latitude: &lat})
	require.NoError(t, err)
	assert.True(t, office.IsPrimary)
	assert.Equal(t, "Upper Hill", office.Location, "omitted fields are untouched")
	assert.Equal(t, -1.29, *office.Latitude)

	got := primaries(t, svc, "p1")
	require.Len(t, got, 1)
	assert.Equal(t, office.ID, got[0].ID)

	home, err = svc.Get(ctx, home.ID)
	require.NoError(t, err)
	assert.False(t, home.IsPrimary)

	_, err = svc.Update(ctx, "nope", address.UpdateAddress{})
	assert.Equal(t, address.ErrNotFound, err)
}

func TestService_GetPrimary(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	_, err := svc.GetPrimary(ctx, "p1")
	assert.True(t, core.IsNotFound(err))

	_, err = svc.Create(ctx, address.NewAddress{ParentID: "p1", AddressType: "Home", Location: "Kilimani", Status: address.StatusInactive, IsPrimary: true})
	require.NoError(t, err)
	_, err = svc.GetPrimary(ctx, "p1")
	assert.True(t, core.IsNotFound(err), "inactive addresses are not used for pickups")
}

func TestService_DeleteAndStatistics(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	a, err := svc.Create(ctx, address.NewAddress{ParentID: "p1", AddressType: "Home", Location: "Kilimani", Status: address.StatusActive, IsPrimary: true})
	require.NoError(t, err)
	_, err = svc.Create(ctx, address.NewAddress{ParentID: "p1", AddressType: "Office", Location: "Upper Hill", Status: address.StatusInactive})
	require.NoError(t, err)

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, address.Statistics{Total: 2, Primary: 1, Active: 1}, stats)

	require.NoError(t, svc.Delete(ctx, a.ID))
	assert.True(t, core.IsNotFound(svc.Delete(ctx, a.ID)))

	stats, err = svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, address.Statistics{Total: 1}, stats)
}
