package chat

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/8adimka/expert_consult/internal/chat/assistant"
	"github.com/8adimka/expert_consult/internal/chat/model"
	"github.com/8adimka/expert_consult/internal/chat/persona"
	"github.com/8adimka/expert_consult/internal/errorsx"
	"github.com/gorilla/mux"
)

const (
	pageTitle          = "Expert Consult"
	placeholder        = "e.g. I want to start web scraping in Python. What should I learn first?"
	upstreamFailure    = "The LLM service could not answer right now. Please try again later."
	timeoutFailure     = "The LLM service took too long to answer. Please try again."
	unavailableFailure = "The LLM service is temporarily unavailable. Please try again in a minute."
	maxFormBytes       = 64 << 10

	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type Assistant interface {
	Answer(ctx context.Context, question, choice string) (assistant.Reply, error)
}

// HistoryLister reads back stored consultations
type HistoryLister interface {
	RecentConsultations(ctx context.Context, limit int64) ([]*model.Consultation, error)
}

type Server struct {
	assist      Assistant
	history     HistoryLister
	historyAuth func(http.Handler) http.Handler
}

type ServerOption func(*Server)

// WithHistoryLister enables GET /api/consultations
func WithHistoryLister(h HistoryLister) ServerOption {
	return func(s *Server) { s.history = h }
}

// WithHistoryAuth guards GET /api/consultations, which exposes other users' questions
func WithHistoryAuth(mw func(http.Handler) http.Handler) ServerOption {
	return func(s *Server) { s.historyAuth = mw }
}

func NewServer(assist Assistant, opts ...ServerOption) *Server {
	s := &Server{assist: assist}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register mounts the page and the JSON API on r
func (s *Server) Register(r *mux.Router) {
	r.HandleFunc("/", s.Page).Methods(http.MethodGet)
	r.HandleFunc("/", s.Submit).Methods(http.MethodPost)
	r.HandleFunc("/api/answer", s.AnswerJSON).Methods(http.MethodPost)
	r.HandleFunc("/api/personas", s.Personas).Methods(http.MethodGet)
	if s.history != nil {
		sub := r.PathPrefix("/api/consultations").Subrouter()
		if s.historyAuth != nil {
			sub.Use(s.historyAuth)
		}
		sub.HandleFunc("", s.Consultations).Methods(http.MethodGet)
	}
}

type personaOption struct {
	Key     string
	Label   string
	Checked bool
}

type pageResult struct {
	Class string
	Text  string
}

type pageData struct {
	Title       string
	Placeholder string
	Personas    []personaOption
	Question    string
	Result      *pageResult
}

// newPageData marks current as checked when selected is true. An unrecognised
// submitted persona leaves every option unchecked, since the request was
// answered with the generic instruction rather than either expert.
func newPageData(current persona.Persona, selected bool, question string) pageData {
	data := pageData{
		Title:       pageTitle,
		Placeholder: placeholder,
		Question:    question,
	}
	for _, p := range persona.All() {
		data.Personas = append(data.Personas, personaOption{
			Key:     p.Key(),
			Label:   p.Label(),
			Checked: selected && p == current,
		})
	}
	return data
}

// Page renders the empty form
func (s *Server) Page(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, newPageData(persona.All()[0], true, ""))
}

// Submit handles the form post and renders the answer or a guard message
func (s *Server) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	choice := r.PostFormValue("persona")
	question := r.PostFormValue("question")
	current, known := persona.Parse(choice)
	data := newPageData(current, known, question)

	reply, err := s.assist.Answer(r.Context(), question, choice)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to answer question", "persona", choice, "error", err)
		_, message := describeFailure(err)
		data.Result = &pageResult{Class: "error", Text: message}
		s.render(w, r, errorsx.HTTPStatus(err), data)
		return
	}

	data.Result = &pageResult{Class: resultClass(reply.Kind), Text: reply.Text}
	s.render(w, r, http.StatusOK, data)
}

// describeFailure returns the API error code and user-facing text for a failed answer
func describeFailure(err error) (code, message string) {
	switch {
	case errorsx.IsTimeout(err):
		return "timeout", timeoutFailure
	case errorsx.IsUnavailable(err):
		return "unavailable", unavailableFailure
	case errorsx.IsUpstream(err):
		return "upstream_error", upstreamFailure
	default:
		return "internal_error", upstreamFailure
	}
}

func resultClass(kind assistant.Kind) string {
	switch kind {
	case assistant.KindAnswer:
		return "answer"
	case assistant.KindEmptyQuestion:
		return "warning"
	default:
		return "error"
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, data); err != nil {
		slog.ErrorContext(r.Context(), "Failed to render page", "error", err)
	}
}

// AnswerRequest is the body of POST /api/answer
type AnswerRequest struct {
	Persona  string `json:"persona"`
	Question string `json:"question"`
}

// AnswerResponse is returned by POST /api/answer
type AnswerResponse struct {
	Kind   string `json:"kind"`
	Text   string `json:"text"`
	Cached bool   `json:"cached,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// AnswerJSON is the API form of Submit
func (s *Server) AnswerJSON(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: "request body must be JSON"})
		return
	}

	reply, err := s.assist.Answer(r.Context(), req.Question, req.Persona)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to answer question", "persona", req.Persona, "error", err)
		code, message := describeFailure(err)
		writeJSON(w, errorsx.HTTPStatus(err), errorResponse{Error: code, Message: message})
		return
	}

	writeJSON(w, kindStatus(reply.Kind), AnswerResponse{
		Kind:   string(reply.Kind),
		Text:   reply.Text,
		Cached: reply.Cached,
	})
}

func kindStatus(kind assistant.Kind) int {
	switch kind {
	case assistant.KindEmptyQuestion:
		return errorsx.HTTPStatus(errorsx.ErrInvalidInput)
	case assistant.KindMissingCredential:
		return errorsx.HTTPStatus(errorsx.ErrMissingCredential)
	default:
		return http.StatusOK
	}
}

type personaResponse struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Personas lists the available experts
func (s *Server) Personas(w http.ResponseWriter, r *http.Request) {
	out := make([]personaResponse, 0, len(persona.All()))
	for _, p := range persona.All() {
		out = append(out, personaResponse{Key: p.Key(), Label: p.Label()})
	}
	writeJSON(w, http.StatusOK, out)
}

// Consultations returns the most recent stored answers, newest first
func (s *Server) Consultations(w http.ResponseWriter, r *http.Request) {
	limit := int64(defaultHistoryLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	items, err := s.history.RecentConsultations(r.Context(), limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list consultations", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error", Message: "could not load history"})
		return
	}
	if items == nil {
		items = []*model.Consultation{}
	}
	writeJSON(w, http.StatusOK, items)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
