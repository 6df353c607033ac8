package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"pcinventory/internal/events"
	"pcinventory/internal/feed"
	"pcinventory/internal/inventory"
	"pcinventory/internal/middleware"
	"pcinventory/internal/models"
	"pcinventory/internal/version"
)

const body = `{"uuid":"4c4c4544-0042-3510-8052-b7c04f4e4d32","mac_address":"00:11:22:33:44:55",
"network_type":"Ethernet","user_name":"Taro Yamada","ip_address":"192.168.1.100",
"os":"Windows","os_version":"10.0.19045","model_name":"OptiPlex 7090"}`

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.EventType
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func setup(t *testing.T, tokenHash string) (http.Handler, *recorder) {
	t.Helper()
	conn, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	require.NoError(t, inventory.Migrate(conn, zerolog.Nop()))
	t.Cleanup(func() { conn.Close() })

	bus := events.NewBus(zerolog.Nop())
	rec := &recorder{}
	bus.Subscribe(rec.handle)

	return Routes(Deps{
		DB:           conn,
		Bus:          bus,
		Feed:         feed.NewHub(bus, zerolog.Nop()),
		EndpointPath: "/api/pc-info",
		TokenHash:    tokenHash,
		Log:          zerolog.Nop(),
	}), rec
}

func post(h http.Handler, payload string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/pc-info", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSubmitCreatesThenUpdates(t *testing.T) {
	h, seen := setup(t, "")

	rec := post(h, body)
	require.Equal(t, http.StatusOK, rec.Code)
	var created models.PCInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, models.Created(created.ID), created)

	moved := strings.Replace(body, "192.168.1.100", "10.0.0.12", 1)
	rec = post(h, moved)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated models.PCInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, models.Updated(created.ID), updated)

	assert.Equal(t, []events.EventType{events.MachineCreated, events.MachineUpdated, events.MachineMoved}, seen.types())
}

func TestSubmitRejectsBadInput(t *testing.T) {
	h, _ := setup(t, "")

	tests := []struct {
		name    string
		payload string
		message string
	}{
		{"malformed json", `{"uuid":`, "Invalid JSON"},
		{"blank uuid", strings.Replace(body, "4c4c4544-0042-3510-8052-b7c04f4e4d32", "  ", 1), "UUID cannot be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(h, tt.payload)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var er models.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &er))
			assert.Equal(t, models.StatusError, er.Status)
			assert.Contains(t, er.Message, tt.message)
		})
	}
}

func TestSubmitRequiresTokenWhenConfigured(t *testing.T) {
	hash, err := middleware.HashToken("s3cret")
	require.NoError(t, err)
	h, _ := setup(t, hash)

	assert.Equal(t, http.StatusUnauthorized, post(h, body).Code)
	assert.Equal(t, http.StatusOK, post(h, body, "Authorization", "Bearer s3cret").Code)
}

func TestListAndGet(t *testing.T) {
	h, _ := setup(t, "")
	require.Equal(t, http.StatusOK, post(h, body).Code)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pc-info", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Machine
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, version.Version, list[0].AgentVersion)
	assert.False(t, list[0].Outdated)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pc-info/4C4C4544-0042-3510-8052-B7C04F4E4D32", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var m models.Machine
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "Taro Yamada", m.UserName)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pc-info/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	h, _ := setup(t, "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}
