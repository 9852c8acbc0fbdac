package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/core/address"
	"github.com/trezcool/shulebus/core/notify"
	"github.com/trezcool/shulebus/core/route"
	"github.com/trezcool/shulebus/core/student"
	"github.com/trezcool/shulebus/core/tracking"
	"github.com/trezcool/shulebus/core/trip"
	emailsvc "github.com/trezcool/shulebus/services/email"
	smssvc "github.com/trezcool/shulebus/services/sms"
	inmemdb "github.com/trezcool/shulebus/storage/database/inmem"
)

type testApp struct {
	t         *testing.T
	conf      *core.Config
	srv       *Server
	hub       *tracking.Hub
	routes    route.Repository
	students  student.Repository
	addresses address.Repository
	db        *inmemdb.DB
	sms       *smssvc.ServiceMock
	token     string
}

func newTestApp(t *testing.T) *testApp {
	conf := core.NewTestConfig()
	db := inmemdb.Open()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	trip.InitValidators(validate, translator)
	route.InitValidators(validate, translator)
	address.InitValidators(validate, translator)

	sms := smssvc.NewServiceMock()
	hub := tracking.NewHub(core.NopLogger{})
	a := &testApp{
		t:         t,
		conf:      conf,
		hub:       hub,
		routes:    inmemdb.NewRouteRepository(db),
		students:  inmemdb.NewStudentRepository(db),
		addresses: inmemdb.NewAddressRepository(db),
		db:        db,
		sms:       sms,
	}

	tripSvc := trip.NewServiceMock(trip.Deps{
		Tx:          db,
		Repo:        inmemdb.NewTripRepository(db),
		Routes:      a.routes,
		StudentRepo: a.students,
		Addresses:   a.addresses,
		Notifier:    notify.NewDispatcher(conf, emailsvc.NewConsoleServiceMock(conf), sms, core.NopLogger{}),
		Broadcaster: hub,
		Logger:      core.NopLogger{},
	})

	a.srv = NewServer(ServerDeps{
		Conf:       conf,
		Logger:     core.NopLogger{},
		Validate:   validate,
		Translator: translator,
		TripSvc:    tripSvc,
		RouteSvc:   route.NewService(db, a.routes),
		AddressSvc: address.NewService(db, a.addresses, core.NopLogger{}),
		Gateway:    tracking.NewGateway(hub, core.NopLogger{}),
	})
	a.token = a.newToken()
	return a
}

func (a *testApp) newToken(roles ...string) string {
	token, err := GenerateToken(NewClaims("user-1", "school-1", time.Hour, roles...), []byte(a.conf.SecretKey))
	require.NoError(a.t, err)
	return token
}

type envelope struct {
	Success    bool             `json:"success"`
	Data       json.RawMessage  `json:"data"`
	Error      string           `json:"error"`
	Message    string           `json:"message"`
	Pagination *core.Pagination `json:"pagination"`
}

func (a *testApp) do(method, path, token string, body interface{}) (int, envelope) {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.srv.ServeHTTP(rec, req)

	var res envelope
	if method != http.MethodHead {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	}
	return rec.Code, res
}

// call sends an authenticated request.
func (a *testApp) call(method, path string, body interface{}) (int, envelope) {
	return a.do(method, path, a.token, body)
}

func decode(t *testing.T, res envelope, v interface{}) {
	require.NoError(t, json.Unmarshal(res.Data, v), string(res.Data))
}

func (a *testApp) createRoute(tripType route.TripType) route.Route {
	r, err := a.routes.CreateRoute(context.Background(), route.Route{Name: "Route A", SchoolID: "school-1", TripType: tripType, IsActive: true})
	require.NoError(a.t, err)
	return r
}

func (a *testApp) createStudent(phone, tag string) (student.Parent, student.Student) {
	ctx := context.Background()
	p, err := a.students.CreateParent(ctx, student.Parent{Name: "Wanjiru", PhoneNumber: phone})
	require.NoError(a.t, err)
	s, err := a.students.CreateStudent(ctx, student.Student{
		SchoolID:  "school-1",
		ParentID:  p.ID,
		Name:      "Amani",
		RFIDTagID: core.StringPtr(tag),
		IsActive:  true,
	})
	require.NoError(a.t, err)
	return p, s
}

func TestServer_Home(t *testing.T) {
	a := newTestApp(t)

	code, res := a.do(http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, res.Success)
	assert.Equal(t, "Welcome to Shulebus API!", res.Message)
}

func TestServer_Metrics(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	a.srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestServer_Auth(t *testing.T) {
	a := newTestApp(t)

	expired, err := GenerateToken(NewClaims("user-1", "school-1", -time.Minute), []byte(a.conf.SecretKey))
	require.NoError(t, err)
	foreign, err := GenerateToken(NewClaims("user-1", "school-1", time.Hour), []byte("other-secret"))
	require.NoError(t, err)

	tests := []struct {
		name     string
		token    string
		wantCode int
	}{
		{name: "missing token", token: "", wantCode: http.StatusUnauthorized},
		{name: "malformed token", token: "not-a-jwt", wantCode: http.StatusUnauthorized},
		{name: "expired token", token: expired, wantCode: http.StatusUnauthorized},
		{name: "wrong key", token: foreign, wantCode: http.StatusUnauthorized},
		{name: "valid token", token: a.token, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, res := a.do(http.MethodGet, "/v1/trips", tt.token, nil)
			assert.Equal(t, tt.wantCode, code)
			if tt.wantCode == http.StatusUnauthorized {
				assert.False(t, res.Success)
				assert.Equal(t, "Missing or invalid token", res.Error)
			}
		})
	}
}

func TestServer_AdminOnly(t *testing.T) {
	a := newTestApp(t)
	r := a.createRoute(route.MorningPickup)

	code, res := a.call(http.MethodDelete, "/v1/routes/"+r.ID, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Permission denied", res.Error)

	code, res = a.do(http.MethodDelete, "/v1/routes/"+r.ID, a.newToken(RoleAdmin), nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, res.Success)
}

func TestServer_InvalidJSON(t *testing.T) {
	a := newTestApp(t)

	code, res := a.call(http.MethodPost, "/v1/trips", "{not json")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, res.Success)
	assert.Equal(t, "Invalid JSON body", res.Error)
}

func TestServer_ValidationErrors(t *testing.T) {
	a := newTestApp(t)

	code, res := a.call(http.MethodPost, "/v1/trips", map[string]interface{}{"tripDate": "2024-03-01"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Validation failed", res.Error)

	var fields map[string]string
	decode(t, res, &fields)
	assert.Contains(t, fields, "routeId")

	code, res = a.call(http.MethodPost, "/v1/trips", map[string]interface{}{"routeId": "r", "tripDate": "01/03/2024"})
	assert.Equal(t, http.StatusBadRequest, code)
	decode(t, res, &fields)
	assert.Contains(t, fields, "tripDate")
}
