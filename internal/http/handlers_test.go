package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/aquatracking/aquatracking/internal/config"
	"github.com/aquatracking/aquatracking/internal/docstore"
	"github.com/aquatracking/aquatracking/internal/domain"
	"github.com/aquatracking/aquatracking/internal/metrics"
	"github.com/aquatracking/aquatracking/internal/service"
)

var testNow = time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

func newTestApp(t *testing.T) (*fiber.App, *service.Services) {
	t.Helper()
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.Disabled)
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	logger := zerolog.Nop()
	svcs := service.New(service.Deps{
		Store:  docstore.NewMemory(),
		Policy: config.Settings{DefaultLocation: time.UTC},
		Logger: &logger,
		Clock:  func() time.Time { return testNow },
	})
	return NewApp(svcs, metrics.New()), svcs
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if r != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}

func seedHome(t *testing.T, svcs *service.Services, id string) {
	t.Helper()
	h := &domain.Home{Name: "Casa " + id, Address: "Calle 1", SectorID: "S1", Active: true, Members: 1}
	h.ID = id
	if err := svcs.Repos.Homes.Put(context.Background(), id, h); err != nil {
		t.Fatal(err)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := do(t, app, "GET", "/health", nil)
	if status != fiber.StatusOK || string(body) != "ok" {
		t.Fatalf("health: %d %s", status, body)
	}
	status, body = do(t, app, "GET", "/metrics", nil)
	if status != fiber.StatusOK {
		t.Fatalf("metrics: %d", status)
	}
	for _, name := range []string{"aquatracking_measurements_ingested_total", "http_requests_total"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics output is missing %s", name)
		}
	}
}

func TestHomes_HTTP(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := do(t, app, "POST", "/homes", CreateHomeRequest{Name: "Casa 1", Address: "Los Aromos 12", SectorID: "S1", Members: 2})
	if status != fiber.StatusCreated {
		t.Fatalf("create: %d %s", status, body)
	}
	home := decode[domain.Home](t, body)
	if home.ID == "" || !home.Active {
		t.Errorf("unexpected home %+v", home)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing members", "POST", "/homes", CreateHomeRequest{Name: "x", Address: "y", SectorID: "S1"}, fiber.StatusBadRequest},
		{"bad timezone", "POST", "/homes", CreateHomeRequest{Name: "x", Address: "y", SectorID: "S1", Members: 1, Timezone: "Mars/Olympus"}, fiber.StatusBadRequest},
		{"malformed body", "POST", "/homes", "{", fiber.StatusBadRequest},
		{"get", "GET", "/homes/" + home.ID, nil, fiber.StatusOK},
		{"get unknown", "GET", "/homes/nope", nil, fiber.StatusNotFound},
		{"patch", "PATCH", "/homes/" + home.ID, map[string]any{"members": 3}, fiber.StatusOK},
		{"patch invalid", "PATCH", "/homes/" + home.ID, map[string]any{"members": 0}, fiber.StatusBadRequest},
		{"patch unknown", "PATCH", "/homes/nope", map[string]any{"name": "z"}, fiber.StatusNotFound},
		{"bad bool filter", "GET", "/homes?active=maybe", nil, fiber.StatusBadRequest},
		{"delete unknown", "DELETE", "/homes/nope", nil, fiber.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, app, tt.method, tt.path, tt.body)
			if status != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, status, body)
			}
			if status >= 400 {
				if resp := decode[map[string]string](t, body); resp["error"] == "" {
					t.Errorf("missing error message in %s", body)
				}
			}
		})
	}

	_, body = do(t, app, "GET", "/homes/count?sectorId=S1&active=true", nil)
	if got := decode[map[string]int](t, body); got["count"] != 1 {
		t.Errorf("expected count 1, got %s", body)
	}
	if status, _ := do(t, app, "DELETE", "/homes/"+home.ID, nil); status != fiber.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", status)
	}
}

func TestSectors_ConflictHTTP(t *testing.T) {
	app, _ := newTestApp(t)
	req := CreateSectorRequest{Name: "Norte", AprName: "APR Pelequén"}

	if status, body := do(t, app, "POST", "/sectors", req); status != fiber.StatusCreated {
		t.Fatalf("create: %d %s", status, body)
	}
	if status, _ := do(t, app, "POST", "/sectors", req); status != fiber.StatusConflict {
		t.Errorf("expected 409, got %d", status)
	}
	_, body := do(t, app, "GET", "/sectors?aprName=APR%20Pelequ%C3%A9n", nil)
	if got := decode[[]domain.Sector](t, body); len(got) != 1 {
		t.Errorf("expected one sector, got %d", len(got))
	}
}

func TestUsers_HidePasswordHash(t *testing.T) {
	app, _ := newTestApp(t)

	req := CreateUserRequest{Name: "Ana", Rut: "11.111.111-1", Email: "ana@example.com", Phone: "912345678", Role: domain.RoleResident, Password: "s3cret-pass"}
	status, body := do(t, app, "POST", "/users", req)
	if status != fiber.StatusCreated {
		t.Fatalf("create: %d %s", status, body)
	}
	if strings.Contains(string(body), "passwordHash") || strings.Contains(string(body), "s3cret") {
		t.Errorf("response leaks the password: %s", body)
	}
	got := decode[map[string]any](t, body)
	if got["phoneDisplay"] != "+56 9 1234 5678" || got["rut"] != "11111111-1" {
		t.Errorf("unexpected user %s", body)
	}

	bad := req
	bad.Rut = "11.111.111-2"
	if status, _ := do(t, app, "POST", "/users", bad); status != fiber.StatusBadRequest {
		t.Errorf("invalid rut: expected 400, got %d", status)
	}
	dup := req
	dup.Rut = "22.222.222-2"
	if status, _ := do(t, app, "POST", "/users", dup); status != fiber.StatusConflict {
		t.Errorf("duplicate email: expected 409, got %d", status)
	}
}

func TestMeasurementsToAlerts_HTTP(t *testing.T) {
	app, svcs := newTestApp(t)
	seedHome(t, svcs, "H1")
	day := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)

	ingest := func(sensor string, at time.Time, liters float64) service.IngestResult {
		t.Helper()
		status, body := do(t, app, "POST", "/measurements", CreateMeasurementRequest{
			SensorID: sensor, HomeID: "H1", StartTime: at, EndTime: at.Add(time.Minute), Liters: liters,
		})
		if status != fiber.StatusCreated {
			t.Fatalf("ingest: %d %s", status, body)
		}
		return decode[service.IngestResult](t, body)
	}

	first := ingest("S1", day, 10)
	status, body := do(t, app, "PATCH", "/daily-consumption/"+first.Rollup.ID, map[string]any{"limitLiters": 25})
	if status != fiber.StatusOK {
		t.Fatalf("set limit: %d %s", status, body)
	}
	ingest("S2", day.Add(time.Hour), 15)
	last := ingest("S1", day.Add(2*time.Hour), 5)
	if last.Rollup.TotalLiters != 30 || len(last.Alerts) != 1 || last.Alerts[0].Type != domain.AlertLimitExceeded {
		t.Fatalf("unexpected result %+v", last)
	}
	alertID := last.Alerts[0].ID

	status, _ = do(t, app, "POST", "/measurements", CreateMeasurementRequest{SensorID: "S1", HomeID: "H9", StartTime: day, EndTime: day, Liters: 1})
	if status != fiber.StatusNotFound {
		t.Errorf("unknown home: expected 404, got %d", status)
	}
	status, _ = do(t, app, "POST", "/measurements", CreateMeasurementRequest{SensorID: "S1", HomeID: "H1", StartTime: day, EndTime: day.Add(-time.Minute), Liters: 1})
	if status != fiber.StatusBadRequest {
		t.Errorf("end before start: expected 400, got %d", status)
	}

	for _, method := range []string{"DELETE", "PATCH", "PUT"} {
		status, _ = do(t, app, method, "/measurements/"+last.Measurement.ID, nil)
		if status != fiber.StatusMethodNotAllowed && status != fiber.StatusNotFound {
			t.Errorf("%s on a measurement: expected 404 or 405, got %d", method, status)
		}
	}

	_, body = do(t, app, "GET", "/measurements/count?homeId=H1", nil)
	if got := decode[map[string]int](t, body); got["count"] != 3 {
		t.Errorf("expected 3 measurements, got %s", body)
	}

	_, body = do(t, app, "GET", "/alerts?unresolvedOnly=true", nil)
	if got := decode[[]domain.Alert](t, body); len(got) != 1 || got[0].ID != alertID {
		t.Fatalf("expected the open alert, got %s", body)
	}
	status, body = do(t, app, "PATCH", "/alerts/"+alertID+"/resolve", nil)
	if status != fiber.StatusOK || !decode[domain.Alert](t, body).Resolved {
		t.Fatalf("resolve: %d %s", status, body)
	}
	_, body = do(t, app, "GET", "/alerts?unresolvedOnly=true", nil)
	if got := decode[[]domain.Alert](t, body); len(got) != 0 {
		t.Errorf("resolved alert still open: %s", body)
	}
	_, body = do(t, app, "GET", "/alerts?homeId=H1&type=limit_exceeded", nil)
	if got := decode[[]domain.Alert](t, body); len(got) != 1 {
		t.Errorf("resolved alert missing from home view: %s", body)
	}

	_, body = do(t, app, "GET", "/daily-consumption/system/alerts", nil)
	sum := decode[service.AlertSummary](t, body)
	if sum.Total != 1 || sum.Resolved != 1 {
		t.Errorf("unexpected summary %s", body)
	}
}

func TestDailyConsumption_HTTP(t *testing.T) {
	app, svcs := newTestApp(t)
	seedHome(t, svcs, "H1")

	status, body := do(t, app, "POST", "/daily-consumption/recompute", RecomputeRequest{HomeID: "H1", Date: "2024-05-01"})
	if status != fiber.StatusOK {
		t.Fatalf("recompute: %d %s", status, body)
	}
	if status, _ := do(t, app, "POST", "/daily-consumption/recompute", RecomputeRequest{HomeID: "H1", Date: "May 1"}); status != fiber.StatusBadRequest {
		t.Errorf("bad date: expected 400, got %d", status)
	}

	_, body = do(t, app, "GET", "/daily-consumption?homeId=H1&date=2024-05-01", nil)
	rollups := decode[[]domain.DailyConsumption](t, body)
	if len(rollups) != 1 || rollups[0].ID != service.RollupID("H1", "2024-05-01") {
		t.Fatalf("unexpected rollups %s", body)
	}

	status, body = do(t, app, "GET", "/daily-consumption/system/trends?days=3", nil)
	if status != fiber.StatusOK || len(decode[[]service.TrendPoint](t, body)) != 3 {
		t.Errorf("trends: %d %s", status, body)
	}
	for _, q := range []string{"0", "91", "abc"} {
		if status, _ := do(t, app, "GET", "/daily-consumption/system/trends?days="+q, nil); status != fiber.StatusBadRequest {
			t.Errorf("days=%s: expected 400, got %d", q, status)
		}
	}
	if status, _ := do(t, app, "GET", "/daily-consumption/system/distribution", nil); status != fiber.StatusOK {
		t.Errorf("distribution: expected 200, got %d", status)
	}

	if status, _ := do(t, app, "DELETE", "/daily-consumption/"+rollups[0].ID, nil); status != fiber.StatusNoContent {
		t.Errorf("purge: expected 204, got %d", status)
	}
	if status, _ := do(t, app, "GET", "/daily-consumption/"+rollups[0].ID, nil); status != fiber.StatusNotFound {
		t.Errorf("after purge: expected 404, got %d", status)
	}
}
