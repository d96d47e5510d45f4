package restserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/chrissnell/birthchart/internal/chart"
	"github.com/chrissnell/birthchart/internal/storage"
	"github.com/chrissnell/birthchart/internal/storage/sqlite"
	"github.com/chrissnell/birthchart/pkg/ephemeris"
	"github.com/chrissnell/birthchart/pkg/responseformat"
)

const honolulu = `{"subject":"honolulu","year":1961,"month":8,"day":5,"hour":5.4,"latitude":21.3,"longitude":-157.86666667}`

func newTestController(t *testing.T, archive bool) *Controller {
	t.Helper()

	var store storage.ChartStore
	if archive {
		s, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "charts.db"), nil)
		if err != nil {
			t.Fatalf("sqlite.New: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		store = s
	}

	ctrl, err := NewController(context.Background(), &sync.WaitGroup{}, ephemeris.NewMeeusProvider("", nil),
		store, nil, Options{Fileset: "test"}, nil)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return ctrl
}

func do(t *testing.T, ctrl *Controller, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	ctrl.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeChart(t *testing.T, rec *httptest.ResponseRecorder) *chart.Chart {
	t.Helper()
	var c chart.Chart
	if err := json.NewDecoder(rec.Body).Decode(&c); err != nil {
		t.Fatalf("error decoding chart: %v", err)
	}
	return &c
}

func TestCreateAndFetchChart(t *testing.T) {
	ctrl := newTestController(t, true)

	rec := do(t, ctrl, http.MethodPost, "/api/v1/charts", honolulu)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST status = %d, expected %d: %s", rec.Code, http.StatusCreated, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != responseformat.ContentTypeJSON {
		t.Errorf("Content-Type = %q", ct)
	}
	created := decodeChart(t, rec)
	if created.ID == "" {
		t.Fatal("created chart has no ID")
	}
	if len(created.Bodies) != 12 {
		t.Errorf("len(Bodies) = %d, expected 12", len(created.Bodies))
	}
	if created.Houses == nil {
		t.Fatal("created chart has no houses")
	}
	if created.Input.HouseSystem != 'P' {
		t.Errorf("house system = %q, expected default P", created.Input.HouseSystem.String())
	}

	rec = do(t, ctrl, http.MethodGet, "/api/v1/charts/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d: %s", rec.Code, rec.Body)
	}
	fetched := decodeChart(t, rec)
	if fetched.JulianDay != created.JulianDay || fetched.Houses.Ascendant != created.Houses.Ascendant {
		t.Errorf("fetched chart differs: jd %v/%v asc %v/%v",
			fetched.JulianDay, created.JulianDay, fetched.Houses.Ascendant, created.Houses.Ascendant)
	}

	rec = do(t, ctrl, http.MethodGet, "/api/v1/charts?subject=honolulu", "")
	var summaries []storage.Summary
	if err := json.NewDecoder(rec.Body).Decode(&summaries); err != nil {
		t.Fatalf("error decoding list: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != created.ID || summaries[0].HouseSystem != "P" {
		t.Errorf("summaries = %+v", summaries)
	}

	rec = do(t, ctrl, http.MethodGet, "/api/v1/charts?subject=nobody", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty list = %q, expected []", rec.Body.String())
	}
}

func TestCreateChartWithoutStoring(t *testing.T) {
	ctrl := newTestController(t, true)

	rec := do(t, ctrl, http.MethodPost, "/api/v1/charts?store=false", honolulu)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected %d", rec.Code, http.StatusOK)
	}
	if c := decodeChart(t, rec); c.ID != "" {
		t.Errorf("unstored chart has ID %q", c.ID)
	}

	rec = do(t, ctrl, http.MethodGet, "/api/v1/charts", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("list = %q, expected []", rec.Body.String())
	}
}

func TestCreateChartErrors(t *testing.T) {
	ctrl := newTestController(t, false)

	tests := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{"malformed json", `{"year":`, http.StatusBadRequest, ""},
		{"unknown field", `{"year":1961,"month":8,"day":5,"planet":"vulcan"}`, http.StatusBadRequest, ""},
		{"month out of range", `{"year":1961,"month":13,"day":5}`, http.StatusUnprocessableEntity, ""},
		{"unknown house system", `{"year":1961,"month":8,"day":5,"house_system":"Z"}`, http.StatusUnprocessableEntity, ""},
		{"unknown calendar", `{"year":1961,"month":8,"day":5,"calendar":"hebrew"}`, http.StatusUnprocessableEntity, "invalid input"},
		{"placidus in the arctic", `{"year":1961,"month":8,"day":5,"hour":5.4,"latitude":78.2,"longitude":15.6}`,
			http.StatusUnprocessableEntity, "polar circle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, ctrl, http.MethodPost, "/api/v1/charts", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, expected %d: %s", rec.Code, tt.status, rec.Body)
			}
			var body responseformat.ErrorBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("error decoding error body: %v", err)
			}
			if body.Error == "" {
				t.Error("empty diagnostic")
			}
			if tt.kind != "" && body.Kind != tt.kind {
				t.Errorf("kind = %q, expected %q", body.Kind, tt.kind)
			}
		})
	}
}

func TestGetChartNotFound(t *testing.T) {
	ctrl := newTestController(t, true)

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		rec := do(t, ctrl, http.MethodGet, "/api/v1/charts/"+id, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, expected %d", id, rec.Code, http.StatusNotFound)
		}
	}
}

func TestArchiveRoutesWithoutStore(t *testing.T) {
	ctrl := newTestController(t, false)

	for _, target := range []string{"/api/v1/charts", "/api/v1/charts/" + uuid.NewString()} {
		rec := do(t, ctrl, http.MethodGet, target, "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s status = %d, expected %d", target, rec.Code, http.StatusServiceUnavailable)
		}
	}

	rec := do(t, ctrl, http.MethodPost, "/api/v1/charts", honolulu)
	if rec.Code != http.StatusOK {
		t.Errorf("POST status = %d, expected %d", rec.Code, http.StatusOK)
	}
}

func TestGetJulianDay(t *testing.T) {
	ctrl := newTestController(t, false)

	tests := []struct {
		query    string
		status   int
		expected float64
	}{
		{"year=1961&month=8&day=5&hour=5.4", http.StatusOK, 2437516.725},
		{"year=2000&month=1&day=1&hour=12&calendar=gregorian", http.StatusOK, 2451545.0},
		{"year=1582&month=10&day=4&calendar=j", http.StatusOK, 2299159.5},
		{"year=1961&month=13&day=5", http.StatusBadRequest, 0},
		{"year=1961&month=8&day=5&hour=24", http.StatusBadRequest, 0},
		{"month=8&day=5", http.StatusBadRequest, 0},
		{"year=1961&month=8&day=5&calendar=mayan", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(t, ctrl, http.MethodGet, "/api/v1/julday?"+tt.query, "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, expected %d: %s", rec.Code, tt.status, rec.Body)
			}
			if tt.status != http.StatusOK {
				return
			}
			var resp JulianDayResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if diff := resp.JulianDay - tt.expected; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("julian_day = %f, expected %f", resp.JulianDay, tt.expected)
			}
		})
	}
}

func TestGetHouseSystems(t *testing.T) {
	ctrl := newTestController(t, false)

	rec := do(t, ctrl, http.MethodGet, "/api/v1/house-systems", "")
	var systems []map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&systems); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, s := range systems {
		if s["selector"] == "P" && s["name"] == "Placidus" {
			found = true
		}
	}
	if !found {
		t.Errorf("Placidus missing from %v", systems)
	}
}

func TestChartFormats(t *testing.T) {
	ctrl := newTestController(t, false)

	t.Run("text", func(t *testing.T) {
		rec := do(t, ctrl, http.MethodPost, "/api/v1/charts?format=text", honolulu)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
		body := rec.Body.String()
		if !strings.HasPrefix(body, "Date and time in UT: day=5 mon=8 year=1961") {
			t.Errorf("unexpected text layout:\n%s", body)
		}
		if !strings.Contains(body, "Julday of birth = 2437516.725000") {
			t.Errorf("missing Julian day line:\n%s", body)
		}
		if strings.Contains(body, "Placements") {
			t.Error("placements rendered without extended=true")
		}
	})

	t.Run("msgpack", func(t *testing.T) {
		rec := do(t, ctrl, http.MethodPost, "/api/v1/charts?format=msgpack", honolulu)
		if ct := rec.Header().Get("Content-Type"); ct != responseformat.ContentTypeMsgPack {
			t.Fatalf("Content-Type = %q", ct)
		}
		var c chart.Chart
		if err := responseformat.UnmarshalMsgPack(rec.Body.Bytes(), &c); err != nil {
			t.Fatalf("error decoding msgpack: %v", err)
		}
		if len(c.Bodies) != 12 {
			t.Errorf("len(Bodies) = %d, expected 12", len(c.Bodies))
		}
	})
}

func TestHealthAndMetrics(t *testing.T) {
	ctrl := newTestController(t, false)

	rec := do(t, ctrl, http.MethodGet, "/healthz", "")
	var health HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || health.Fileset != "test" || health.Archive {
		t.Errorf("health = %+v", health)
	}

	do(t, ctrl, http.MethodPost, "/api/v1/charts", honolulu)

	rec = do(t, ctrl, http.MethodGet, "/metrics", "")
	body := rec.Body.String()
	for _, want := range []string{
		`birthchart_api_requests_total{method="POST",route="/api/v1/charts",status="200"} 1`,
		`birthchart_body_failures_total{body="Mercury",kind="data unavailable"} 1`,
		`birthchart_charts_computed_total 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestNewController(t *testing.T) {
	ctrl := newTestController(t, false)
	if _, err := NewController(context.Background(), &sync.WaitGroup{}, nil, nil, nil, Options{}, nil); err == nil {
		t.Error("NewController without provider succeeded")
	}
	if ctrl.Server.Addr != ":8080" {
		t.Errorf("Addr = %q, expected :8080", ctrl.Server.Addr)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"invalid input", fmt.Errorf("%w: month 13", chart.ErrInvalidInput), http.StatusUnprocessableEntity},
		{"missing chart", fmt.Errorf("%w: x", storage.ErrNotFound), http.StatusNotFound},
		{"polar circle", &ephemeris.Error{Code: ephemeris.ERR, Kind: ephemeris.KindPolarCircle}, http.StatusUnprocessableEntity},
		{"out of range", &ephemeris.Error{Code: ephemeris.ERR, Kind: ephemeris.KindOutOfRange}, http.StatusInternalServerError},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.expected {
				t.Errorf("statusFor = %d, expected %d", got, tt.expected)
			}
		})
	}
}
