package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shulebus/core/address"
)

func TestAddressAPI(t *testing.T) {
	a := newTestApp(t)
	p, _ := a.createStudent("0712345678", "ABC123")

	create := func(location string, primary bool) address.Address {
		code, res := a.call(http.MethodPost, "/v1/addresses", map[string]interface{}{
			"parentId":    p.ID,
			"addressType": "Home",
			"location":    location,
			"latitude":    -1.29,
			"longitude":   36.82,
			"isPrimary":   primary,
		})
		require.Equal(t, http.StatusCreated, code, res.Error)
		assert.Equal(t, "Address created successfully", res.Message)

		var addr address.Address
		decode(t, res, &addr)
		return addr
	}

	first := create("Kilimani", true)
	assert.Equal(t, address.StatusActive, first.Status)
	second := create("Westlands", true)

	// a new primary replaces the old one
	code, res := a.call(http.MethodGet, "/v1/addresses/primary/"+p.ID, nil)
	require.Equal(t, http.StatusOK, code)
	var primary address.Address
	decode(t, res, &primary)
	assert.Equal(t, second.ID, primary.ID)

	code, res = a.call(http.MethodGet, "/v1/addresses/"+first.ID, nil)
	require.Equal(t, http.StatusOK, code)
	var got address.Address
	decode(t, res, &got)
	assert.False(t, got.IsPrimary)

	code, res = a.call(http.MethodGet, "/v1/addresses?parentId="+p.ID, nil)
	require.Equal(t, http.StatusOK, code)
	var addrs []address.Address
	decode(t, res, &addrs)
	require.Len(t, addrs, 2)
	assert.Equal(t, second.ID, addrs[0].ID)

	code, res = a.call(http.MethodGet, "/v1/addresses/statistics", nil)
	require.Equal(t, http.StatusOK, code)
	var stats address.Statistics
	decode(t, res, &stats)
	assert.Equal(t, address.Statistics{Total: 2, Primary: 1, Active: 2}, stats)

	code, res = a.call(http.MethodPut, "/v1/addresses/"+second.ID, map[string]interface{}{"status": "Inactive"})
	require.Equal(t, http.StatusOK, code, res.Error)
	decode(t, res, &got)
	assert.Equal(t, address.StatusInactive, got.Status)

	code, _ = a.call(http.MethodDelete, "/v1/addresses/"+first.ID, nil)
	assert.Equal(t, http.StatusOK, code)
	code, res = a.call(http.MethodGet, "/v1/addresses/"+first.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Address not found", res.Error)
}

func TestAddressAPI_Validation(t *testing.T) {
	a := newTestApp(t)

	code, res := a.call(http.MethodPost, "/v1/addresses", map[string]interface{}{"addressType": "Home", "latitude": 120})
	assert.Equal(t, http.StatusBadRequest, code)

	var fields map[string]string
	decode(t, res, &fields)
	assert.Contains(t, fields, "parentId")
	assert.Contains(t, fields, "location")
	assert.Contains(t, fields, "latitude")
}
