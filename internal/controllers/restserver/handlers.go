package restserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/chrissnell/birthchart/internal/chart"
	"github.com/chrissnell/birthchart/internal/storage"
	"github.com/chrissnell/birthchart/pkg/ephemeris"
	"github.com/chrissnell/birthchart/pkg/houses"
	"github.com/chrissnell/birthchart/pkg/responseformat"
)

const maxRequestBody = 1 << 20

// errNoArchive is returned by archive routes when no store is configured.
var errNoArchive = errors.New("chart archive not configured")

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// JulianDayResponse is returned by GetJulianDay.
type JulianDayResponse struct {
	Year      int                `json:"year"`
	Month     int                `json:"month"`
	Day       int                `json:"day"`
	Hour      float64            `json:"hour"`
	Calendar  ephemeris.Calendar `json:"calendar"`
	JulianDay float64            `json:"julian_day"`
}

// HouseSystemResponse describes one supported house system.
type HouseSystemResponse struct {
	Selector houses.System `json:"selector"`
	Name     string        `json:"name"`
}

// HealthResponse is returned by GetHealth.
type HealthResponse struct {
	Status  string `json:"status"`
	Engine  string `json:"engine"`
	Fileset string `json:"fileset,omitempty"`
	Archive bool   `json:"archive"`
}

// CreateChart computes a chart from a JSON Input. The chart is archived
// unless store=false is given or no archive is configured.
func (h *Handlers) CreateChart(w http.ResponseWriter, req *http.Request) {
	ctrl := h.controller

	in := chart.Input{HouseSystem: ctrl.opts.DefaultHouseSystem}
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		h.writeError(w, req, status, fmt.Errorf("error decoding chart input: %w", err))
		return
	}

	timer := ctrl.metrics.NewTimer(ctrl.metrics.ChartDuration)
	c, err := chart.Compute(ctrl.provider, in, ctrl.opts.Chart)
	timer.ObserveDuration()
	if c != nil {
		for _, r := range c.Failed() {
			ctrl.metrics.RecordBodyFailure(r.Name, ephemeris.KindOf(r.Err).String())
		}
	}
	if err != nil {
		if c != nil {
			ctrl.metrics.RecordHouseFailure(ephemeris.KindOf(err).String())
		}
		h.writeError(w, req, statusFor(err), err)
		return
	}
	ctrl.metrics.ChartsComputed.Inc()

	status := http.StatusOK
	if ctrl.store != nil && req.URL.Query().Get("store") != "false" {
		timer := ctrl.metrics.NewTimer(ctrl.metrics.StorageDuration.WithLabelValues("save"))
		_, err := ctrl.store.SaveChart(req.Context(), c)
		timer.ObserveDuration()
		if err != nil {
			ctrl.metrics.RecordStorageError("save")
			h.writeError(w, req, http.StatusInternalServerError, err)
			return
		}
		status = http.StatusCreated
	}

	h.writeChart(w, req, status, c)
}

// GetChart returns an archived chart.
func (h *Handlers) GetChart(w http.ResponseWriter, req *http.Request) {
	ctrl := h.controller
	if ctrl.store == nil {
		h.writeError(w, req, http.StatusServiceUnavailable, errNoArchive)
		return
	}

	id := mux.Vars(req)["id"]
	if !storage.ValidID(id) {
		h.writeError(w, req, http.StatusNotFound, fmt.Errorf("%w: %s", storage.ErrNotFound, id))
		return
	}

	timer := ctrl.metrics.NewTimer(ctrl.metrics.StorageDuration.WithLabelValues("get"))
	c, err := ctrl.store.GetChart(req.Context(), id)
	timer.ObserveDuration()
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			ctrl.metrics.RecordStorageError("get")
		}
		h.writeError(w, req, statusFor(err), err)
		return
	}

	h.writeChart(w, req, http.StatusOK, c)
}

// ListCharts returns archive summaries, newest first.
func (h *Handlers) ListCharts(w http.ResponseWriter, req *http.Request) {
	ctrl := h.controller
	if ctrl.store == nil {
		h.writeError(w, req, http.StatusServiceUnavailable, errNoArchive)
		return
	}

	q := req.URL.Query()
	opts := storage.ListOptions{Subject: q.Get("subject")}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			h.writeError(w, req, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		opts.Limit = limit
	}

	timer := ctrl.metrics.NewTimer(ctrl.metrics.StorageDuration.WithLabelValues("list"))
	summaries, err := ctrl.store.ListCharts(req.Context(), opts)
	timer.ObserveDuration()
	if err != nil {
		ctrl.metrics.RecordStorageError("list")
		h.writeError(w, req, http.StatusInternalServerError, err)
		return
	}
	if summaries == nil {
		summaries = []storage.Summary{}
	}

	h.formatter.WriteResponse(w, req, http.StatusOK, summaries)
}

// GetJulianDay converts a calendar date and decimal UT hour to a Julian day.
func (h *Handlers) GetJulianDay(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()

	var resp JulianDayResponse
	var err error
	if resp.Year, err = strconv.Atoi(q.Get("year")); err != nil {
		h.writeError(w, req, http.StatusBadRequest, fmt.Errorf("invalid year %q", q.Get("year")))
		return
	}
	if resp.Month, err = strconv.Atoi(q.Get("month")); err != nil || resp.Month < 1 || resp.Month > 12 {
		h.writeError(w, req, http.StatusBadRequest, fmt.Errorf("invalid month %q", q.Get("month")))
		return
	}
	if resp.Day, err = strconv.Atoi(q.Get("day")); err != nil || resp.Day < 1 || resp.Day > 31 {
		h.writeError(w, req, http.StatusBadRequest, fmt.Errorf("invalid day %q", q.Get("day")))
		return
	}
	if v := q.Get("hour"); v != "" {
		if resp.Hour, err = strconv.ParseFloat(v, 64); err != nil || resp.Hour < 0 || resp.Hour >= 24 {
			h.writeError(w, req, http.StatusBadRequest, fmt.Errorf("invalid hour %q", v))
			return
		}
	}
	if resp.Calendar, err = ephemeris.ParseCalendar(q.Get("calendar")); err != nil {
		h.writeError(w, req, http.StatusBadRequest, err)
		return
	}

	resp.JulianDay = ephemeris.JulDay(resp.Year, resp.Month, resp.Day, resp.Hour, resp.Calendar)
	h.controller.metrics.JulianDayLookups.Inc()
	h.formatter.WriteResponse(w, req, http.StatusOK, resp)
}

// GetHouseSystems lists the supported house systems.
func (h *Handlers) GetHouseSystems(w http.ResponseWriter, req *http.Request) {
	systems := houses.Systems()
	resp := make([]HouseSystemResponse, 0, len(systems))
	for _, s := range systems {
		resp = append(resp, HouseSystemResponse{Selector: s, Name: s.Name()})
	}
	h.formatter.WriteResponse(w, req, http.StatusOK, resp)
}

// GetHealth reports liveness and the ephemeris in use.
func (h *Handlers) GetHealth(w http.ResponseWriter, req *http.Request) {
	h.formatter.WriteResponse(w, req, http.StatusOK, HealthResponse{
		Status:  "ok",
		Engine:  ephemeris.EngineVersion(),
		Fileset: h.controller.opts.Fileset,
		Archive: h.controller.store != nil,
	})
}

// writeChart sends c as JSON, MessagePack, or with format=text in the
// fixed-column layout.
func (h *Handlers) writeChart(w http.ResponseWriter, req *http.Request, status int, c *chart.Chart) {
	q := req.URL.Query()
	if q.Get("format") != "text" {
		h.formatter.WriteResponse(w, req, status, c)
		return
	}

	var buf bytes.Buffer
	if err := chart.Render(&buf, c, chart.RenderOptions{Extended: q.Get("extended") == "true"}); err != nil {
		h.writeError(w, req, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (h *Handlers) writeError(w http.ResponseWriter, req *http.Request, status int, err error) {
	body := responseformat.ErrorBody{Error: err.Error()}
	var e *ephemeris.Error
	if errors.As(err, &e) {
		body.Kind = e.Kind.String()
		body.Code = e.Code
	}
	if status >= http.StatusInternalServerError {
		h.controller.logger.Errorf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	h.formatter.WriteError(w, req, status, body)
}

// statusFor maps a chart or archive error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, chart.ErrInvalidInput), errors.Is(err, houses.ErrUnknownSystem):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	}
	switch ephemeris.KindOf(err) {
	case ephemeris.KindInvalidInput, ephemeris.KindUnknownHouseSystem, ephemeris.KindPolarCircle:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
