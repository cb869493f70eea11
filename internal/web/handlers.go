package web

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sheetflow/internal/app"
	"github.com/JonMunkholm/sheetflow/internal/core"
	"github.com/JonMunkholm/sheetflow/internal/history"
	"github.com/JonMunkholm/sheetflow/internal/logging"
	"github.com/JonMunkholm/sheetflow/internal/source"
)

// MaxValidateSize caps the body of a validate request (16MB).
const MaxValidateSize = 16 << 20

type healthResponse struct {
	Status   string `json:"status"`
	Schemas  int    `json:"schemas"`
	Degraded bool   `json:"degraded"`

	RunningSince *time.Time `json:"runningSince,omitempty"`
}

type schemaResponse struct {
	TypeID       string   `json:"typeId"`
	Columns      []string `json:"columns"`
	Wildcard     bool     `json:"wildcard"`
	NumericDates []string `json:"numericDates,omitempty"`
	SkipRows     []int    `json:"skipRows,omitempty"`
	HeaderRow    int      `json:"headerRow"`
}

type schemasResponse struct {
	Schemas  []schemaResponse `json:"schemas"`
	Degraded bool             `json:"degraded"`
}

type runsResponse struct {
	Runs   []history.RunSummary `json:"runs"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

type validateResponse struct {
	Valid    bool   `json:"valid"`
	TypeID   string `json:"typeId"`
	Encoding string `json:"encoding"`
}

// handleHealth reports liveness. A degraded registry is still healthy: runs
// proceed without validation.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reg := s.backend.Registry()
	status := "ok"
	if reg.Degraded() {
		status = "degraded"
	}
	resp := healthResponse{
		Status:   status,
		Schemas:  reg.Len(),
		Degraded: reg.Degraded(),
	}
	if since, ok := s.backend.Running(); ok {
		resp.RunningSince = &since
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleListSchemas returns the registry in declaration order.
func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	reg := s.backend.Registry()
	resp := schemasResponse{Schemas: []schemaResponse{}, Degraded: reg.Degraded()}
	for _, sc := range reg.All() {
		resp.Schemas = append(resp.Schemas, schemaResponse{
			TypeID:       sc.TypeID,
			Columns:      sc.Columns,
			Wildcard:     sc.Wildcard,
			NumericDates: sc.NumericDates,
			SkipRows:     sc.SkipRows,
			HeaderRow:    sc.HeaderRow,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleValidate checks an uploaded delimited text against one type.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	typeID := chi.URLParam(r, "typeID")
	if _, ok := s.backend.Registry().Get(typeID); !ok && !s.backend.Registry().Degraded() {
		writeError(w, r, http.StatusNotFound, "CLS002", "unknown type "+typeID)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxValidateSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "FILE004", "body exceeds "+strconv.Itoa(MaxValidateSize)+" bytes")
			return
		}
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	text, enc, err := source.DecodeText(data)
	if err != nil {
		respondError(w, r, err, http.StatusUnprocessableEntity)
		return
	}
	if err := s.backend.Validate(typeID, text); err != nil {
		respondError(w, r, err, http.StatusUnprocessableEntity)
		return
	}

	writeJSON(w, http.StatusOK, validateResponse{Valid: true, TypeID: typeID, Encoding: enc})
}

// handleListRuns returns run summaries, newest first.
//
// Query parameters: mode, trigger, failed (bool), limit, offset.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := history.ListOptions{
		Mode:    core.InputMode(q.Get("mode")),
		Trigger: q.Get("trigger"),
	}

	switch opts.Mode {
	case "", core.ModeXLSX, core.ModeCSV, core.ModeText:
	default:
		writeError(w, r, http.StatusBadRequest, "REQ003", "mode must be one of: xlsx, csv, text")
		return
	}

	if v := q.Get("failed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "REQ003", "failed must be a boolean")
			return
		}
		opts.OnlyFailed = b
	}

	var ok bool
	if opts.Limit, ok = parseIntParam(r, "limit", history.DefaultListLimit); !ok {
		writeError(w, r, http.StatusBadRequest, "REQ003", "limit must be a non-negative integer")
		return
	}
	if opts.Offset, ok = parseIntParam(r, "offset", 0); !ok {
		writeError(w, r, http.StatusBadRequest, "REQ003", "offset must be a non-negative integer")
		return
	}
	if opts.Limit == 0 {
		opts.Limit = history.DefaultListLimit
	}
	if opts.Limit > history.MaxListLimit {
		opts.Limit = history.MaxListLimit
	}

	runs, err := s.backend.History().ListRuns(r.Context(), opts)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []history.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runsResponse{Runs: runs, Limit: opts.Limit, Offset: opts.Offset})
}

// handleGetRun returns the full report of one run.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	report, err := s.backend.History().GetRun(r.Context(), runID)
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "RUN001", "run not found: "+runID)
		return
	}
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleTriggerRun runs one batch now and returns its result. Runs are
// serialized by the application; a request made during a run waits for it
// and gets 409 if it is still running when the wait expires.
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())
	logger.Info("run requested", "ip", clientIP(r))

	res, err := s.backend.RunOnce(runContext(r))
	if errors.Is(err, app.ErrRunInProgress) {
		w.Header().Set("Retry-After", "30")
		writeError(w, r, http.StatusConflict, "RUN002", err.Error())
		return
	}
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// parseIntParam parses a non-negative integer query parameter. A missing
// value yields def.
func parseIntParam(r *http.Request, name string, def int) (int, bool) {
	val := r.URL.Query().Get(name)
	if val == "" {
		return def, true
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}
