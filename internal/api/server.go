package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/spacesedan/agora/internal/digest"
	"github.com/spacesedan/agora/internal/models"
	"github.com/spacesedan/agora/internal/processing"
	"github.com/spacesedan/agora/internal/reflections"
)

const maxBodyBytes = 1 << 20

var errMissingTitle = errors.New("title query parameter is required")

type HeadlineFinder interface {
	Search(ctx context.Context, topic string) ([]models.Post, error)
	Hot(ctx context.Context, subreddit string) ([]models.Post, error)
	Subreddits() []string
}

type PostAnalyzer interface {
	Analyze(ctx context.Context, post models.Post) (*processing.Analysis, error)
	HotFeed(ctx context.Context, posts []models.Post) []processing.HotEntry
}

type ReflectionService interface {
	SubmitReflection(ctx context.Context, in reflections.ReflectionInput) (models.Reflection, error)
	React(ctx context.Context, headline, commentText, reaction string) (models.CommentReaction, error)
	ReflectOnComment(ctx context.Context, in reflections.CommentReflectionInput) (models.CommentReflection, error)
	Reply(ctx context.Context, reflectionID, text string) (models.Reply, error)
	RegisterFieldName(ctx context.Context, name string) (string, error)
	ForHeadline(ctx context.Context, headline string) ([]models.ReflectionThread, error)
	CommentReflectionsFor(ctx context.Context, headline string) ([]models.CommentReflection, error)
	CollectiveMood(ctx context.Context, now time.Time) (reflections.MoodReport, error)
}

type DigestSource interface {
	Latest(ctx context.Context) (digest.Digest, error)
}

type Deps struct {
	Finder      HeadlineFinder
	Analyzer    PostAnalyzer
	Reflections ReflectionService
	Digest      DigestSource
	// Healthy reports the summarizer state. Nil means always healthy.
	Healthy  *atomic.Bool
	PageSize int
	Now      func() time.Time
}

type Server struct {
	deps Deps
}

func NewServer(deps Deps) *Server {
	if deps.PageSize <= 0 {
		deps.PageSize = processing.DefaultPageSize
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Server{deps: deps}
}

// Routes builds the chi router for the dashboard API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)
	r.Get("/subreddits", s.handleSubreddits)
	r.Get("/headlines", s.handleHeadlines)
	r.Get("/hot", s.handleHot)
	r.Get("/posts/{postID}/analysis", s.handleAnalysis)

	r.Route("/reflections", func(r chi.Router) {
		r.Get("/", s.handleListReflections)
		r.Post("/", s.handleSubmitReflection)
		r.Post("/{reflectionID}/replies", s.handleReply)
	})
	r.Get("/comment-reflections", s.handleListCommentReflections)
	r.Post("/comment-reflections", s.handleReflectOnComment)
	r.Post("/reactions", s.handleReact)
	r.Post("/field-names", s.handleFieldName)

	r.Get("/mood", s.handleMood)
	r.Get("/digest", s.handleDigest)

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	summarizer := "healthy"
	if s.deps.Healthy != nil && !s.deps.Healthy.Load() {
		summarizer = "unhealthy"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "summarizer": summarizer})
}

func (s *Server) handleSubreddits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"subreddits": s.deps.Finder.Subreddits()})
}

func (s *Server) handleHeadlines(w http.ResponseWriter, r *http.Request) {
	posts, err := s.deps.Finder.Search(r.Context(), r.URL.Query().Get("topic"))
	if err != nil {
		writeError(w, err)
		return
	}

	page := parsePage(r.URL.Query().Get("page"))
	writeJSON(w, http.StatusOK, processing.Paginate(posts, page, s.deps.PageSize))
}

func (s *Server) handleHot(w http.ResponseWriter, r *http.Request) {
	subreddit := strings.TrimSpace(r.URL.Query().Get("subreddit"))
	if subreddit == "" {
		if subs := s.deps.Finder.Subreddits(); len(subs) > 0 {
			subreddit = subs[0]
		}
	}

	posts, err := s.deps.Finder.Hot(r.Context(), subreddit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"subreddit": subreddit,
		"entries":   s.deps.Analyzer.HotFeed(r.Context(), posts),
	})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	title := strings.TrimSpace(r.URL.Query().Get("title"))
	if title == "" {
		writeError(w, errMissingTitle)
		return
	}

	post := models.Post{
		ID:        chi.URLParam(r, "postID"),
		Title:     title,
		Subreddit: r.URL.Query().Get("subreddit"),
	}
	analysis, err := s.deps.Analyzer.Analyze(r.Context(), post)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleListReflections(w http.ResponseWriter, r *http.Request) {
	headline := r.URL.Query().Get("headline")
	if strings.TrimSpace(headline) == "" {
		writeError(w, reflections.ErrEmptyHeadline)
		return
	}

	threads, err := s.deps.Reflections.ForHeadline(r.Context(), headline)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, threads)
}

func (s *Server) handleSubmitReflection(w http.ResponseWriter, r *http.Request) {
	var in reflections.ReflectionInput
	if !decodeBody(w, r, &in) {
		return
	}

	created, err := s.deps.Reflections.SubmitReflection(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type replyRequest struct {
	Reply string `json:"reply"`
}

func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	var in replyRequest
	if !decodeBody(w, r, &in) {
		return
	}

	reply, err := s.deps.Reflections.Reply(r.Context(), chi.URLParam(r, "reflectionID"), in.Reply)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reply)
}

type reactionRequest struct {
	Headline string `json:"headline"`
	Comment  string `json:"comment"`
	Reaction string `json:"reaction"`
}

func (s *Server) handleReact(w http.ResponseWriter, r *http.Request) {
	var in reactionRequest
	if !decodeBody(w, r, &in) {
		return
	}

	reaction, err := s.deps.Reflections.React(r.Context(), in.Headline, in.Comment, in.Reaction)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reaction)
}

func (s *Server) handleListCommentReflections(w http.ResponseWriter, r *http.Request) {
	headline := r.URL.Query().Get("headline")
	if strings.TrimSpace(headline) == "" {
		writeError(w, reflections.ErrEmptyHeadline)
		return
	}

	found, err := s.deps.Reflections.CommentReflectionsFor(r.Context(), headline)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) handleReflectOnComment(w http.ResponseWriter, r *http.Request) {
	var in reflections.CommentReflectionInput
	if !decodeBody(w, r, &in) {
		return
	}

	created, err := s.deps.Reflections.ReflectOnComment(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type fieldNameRequest struct {
	FieldName string `json:"field_name"`
}

func (s *Server) handleFieldName(w http.ResponseWriter, r *http.Request) {
	var in fieldNameRequest
	if !decodeBody(w, r, &in) {
		return
	}

	name, err := s.deps.Reflections.RegisterFieldName(r.Context(), in.FieldName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fieldNameRequest{FieldName: name})
}

func (s *Server) handleMood(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Reflections.CollectiveMood(r.Context(), s.deps.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Digest.Latest(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

var badRequestErrors = []error{
	errMissingTitle,
	processing.ErrEmptyTopic,
	processing.ErrEmptySubreddit,
	reflections.ErrEmptyHeadline,
	reflections.ErrEmptyText,
	reflections.ErrEmptyReaction,
	reflections.ErrEmptyFieldName,
	reflections.ErrEmptyReflectionID,
	reflections.ErrTrustLevel,
}

func statusFor(err error) int {
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("[API] Request failed", slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("[API] Failed to encode response", slog.String("error", err.Error()))
	}
}

func parsePage(raw string) int {
	page, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("[API] Request served",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("took", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}
