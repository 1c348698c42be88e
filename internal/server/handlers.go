package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/michaelbrown/snipforge/internal/interp"
	"github.com/michaelbrown/snipforge/internal/runner"
	"github.com/michaelbrown/snipforge/internal/storage"
	"github.com/michaelbrown/snipforge/internal/storage/sqlite"
)

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

type errorBody struct {
	Error    string `json:"error"`
	Kind     string `json:"kind,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	ExitCode int    `json:"exit_code,omitempty"`
}

// runErrorStatus maps a run failure to its HTTP status.
func runErrorStatus(err error) int {
	switch interp.Kind(err) {
	case "runtime":
		return http.StatusUnprocessableEntity
	case "not_found":
		return http.StatusNotFound
	case "ambiguous":
		return http.StatusConflict
	case "launch":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func runErrorBody(err error) errorBody {
	body := errorBody{Error: err.Error(), Kind: interp.Kind(err)}
	var rt *interp.RuntimeError
	if errors.As(err, &rt) {
		body.Stderr = rt.Stderr
		body.ExitCode = rt.ExitCode
	}
	return body
}

func writeRunError(w http.ResponseWriter, err error) {
	writeJSON(w, runErrorStatus(err), runErrorBody(err))
}

// --- Interpreter handlers ---

type interpreterInfo struct {
	Name               string              `json:"name"`
	Languages          []string            `json:"languages"`
	MaxLevel           interp.SupportLevel `json:"max_level"`
	DefaultForFiletype bool                `json:"default_for_filetype"`
	ReplLike           bool                `json:"repl_like"`
}

func newInterpreterInfo(d interp.Descriptor) interpreterInfo {
	return interpreterInfo{
		Name:               d.Name,
		Languages:          d.Languages,
		MaxLevel:           d.MaxLevel,
		DefaultForFiletype: d.DefaultForFiletype,
		ReplLike:           d.ReplLike,
	}
}

func (s *Server) handleListInterpreters(w http.ResponseWriter, r *http.Request) {
	descs := s.runner.Registry().List()
	infos := make([]interpreterInfo, 0, len(descs))
	for _, d := range descs {
		infos = append(infos, newInterpreterInfo(d))
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleGetInterpreter(w http.ResponseWriter, r *http.Request) {
	d, err := s.runner.Registry().Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newInterpreterInfo(d))
}

// --- Run handlers ---

// runRequest is the body of POST /api/run and of WebSocket "run" messages.
type runRequest struct {
	Language    string   `json:"language"`
	Interpreter string   `json:"interpreter"`
	Line        string   `json:"line"`
	Bloc        string   `json:"bloc"`
	Args        []string `json:"args"`
	Level       string   `json:"level"`
}

func (req runRequest) toRunner() (runner.Request, error) {
	out := runner.Request{
		Interpreter: req.Interpreter,
		Data: interp.Data{
			Filetype:    req.Language,
			CurrentLine: req.Line,
			CurrentBloc: req.Bloc,
			CLIArgs:     req.Args,
		},
	}
	if req.Level != "" {
		level, err := interp.ParseSupportLevel(req.Level)
		if err != nil {
			return runner.Request{}, err
		}
		out.Level = level
	}
	return out, nil
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var body runRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if body.Language == "" && body.Interpreter == "" {
		writeError(w, http.StatusBadRequest, "language or interpreter is required")
		return
	}

	req, err := body.toRunner()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := "http:" + middleware.GetReqID(r.Context())
	ctx, done, err := s.tracker.Start(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	defer done()

	res, err := s.runner.Run(ctx, req)
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- History handlers ---

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is disabled")
		return false
	}
	return true
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	opts := storage.RunListOptions{
		Interpreter: r.URL.Query().Get("interpreter"),
	}

	if status := r.URL.Query().Get("status"); status != "" {
		opts.Status = storage.RunStatus(status)
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			opts.Limit = n
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil {
			opts.Offset = n
		}
	}

	runs, err := s.store.ListRuns(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if runs == nil {
		runs = []storage.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, sqlite.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	if err := s.store.DeleteRun(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, sqlite.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
