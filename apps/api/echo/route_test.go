package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shulebus/core/route"
)

func TestRouteAPI(t *testing.T) {
	a := newTestApp(t)
	_, s := a.createStudent("0712345678", "ABC123")

	code, res := a.call(http.MethodPost, "/v1/routes", map[string]interface{}{
		"name":     "Karen Morning",
		"schoolId": "school-1",
		"tripType": "MORNING_PICKUP",
		"busId":    "bus-1",
		"students": []map[string]string{{"studentId": s.ID}},
	})
	require.Equal(t, http.StatusCreated, code, res.Error)
	var r route.Route
	decode(t, res, &r)
	require.Len(t, r.Students, 1)
	assert.Equal(t, route.RiderDaily, r.Students[0].RiderType)

	code, res = a.call(http.MethodPut, "/v1/routes/"+r.ID, map[string]interface{}{"busId": "", "minderId": "minder-1"})
	require.Equal(t, http.StatusOK, code, res.Error)
	decode(t, res, &r)
	assert.Nil(t, r.BusID)
	if assert.NotNil(t, r.MinderID) {
		assert.Equal(t, "minder-1", *r.MinderID)
	}
	assert.Len(t, r.Students, 1)

	code, res = a.call(http.MethodGet, "/v1/routes", nil)
	require.Equal(t, http.StatusOK, code)
	var routes []route.Route
	decode(t, res, &routes)
	assert.Len(t, routes, 1)
	assert.Equal(t, 1, res.Pagination.TotalItems)

	code, _ = a.call(http.MethodPost, "/v1/routes", map[string]interface{}{"name": "x", "schoolId": "s", "tripType": "MIDNIGHT"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.call(http.MethodGet, "/v1/routes/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)
}
