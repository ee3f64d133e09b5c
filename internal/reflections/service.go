package reflections

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spacesedan/agora/internal/db"
	"github.com/spacesedan/agora/internal/models"
	"github.com/spacesedan/agora/internal/utils"
)

const (
	MinTrustLevel = 1
	MaxTrustLevel = 5
)

var (
	ErrEmptyHeadline     = errors.New("headline is required")
	ErrEmptyText         = errors.New("text is required")
	ErrEmptyReaction     = errors.New("reaction is required")
	ErrEmptyFieldName    = errors.New("field name is required")
	ErrEmptyReflectionID = errors.New("reflection id is required")
	ErrTrustLevel        = fmt.Errorf("trust level must be between %d and %d", MinTrustLevel, MaxTrustLevel)
)

// Reactions are the choices offered next to a highlighted comment.
var Reactions = []string{"Angry", "Sad", "Hopeful", "Confused", "Neutral"}

// Emotions are the tags offered for a headline reflection.
var Emotions = []string{"Hopeful", "Angry", "Confused", "Skeptical", "Inspired", "Indifferent"}

// Service records reflections, reactions and replies in the table store.
// Every write is followed by a retention trim of the table written to.
type Service struct {
	backend   db.Backend
	retention int
	now       func() time.Time
	newID     func() string
}

type Option func(*Service)

func WithRetention(rows int) Option {
	return func(s *Service) {
		s.retention = rows
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		s.newID = gen
	}
}

func NewService(backend db.Backend, opts ...Option) *Service {
	s := &Service{
		backend:   backend,
		retention: db.DefaultRetentionRows,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ReflectionInput struct {
	Headline   string   `json:"headline"`
	Emotions   []string `json:"emotions"`
	TrustLevel int      `json:"trust_level"`
	Text       string   `json:"reflection"`
}

// SubmitReflection stores a headline reflection. The text may be empty.
func (s *Service) SubmitReflection(ctx context.Context, in ReflectionInput) (models.Reflection, error) {
	if strings.TrimSpace(in.Headline) == "" {
		return models.Reflection{}, ErrEmptyHeadline
	}
	if in.TrustLevel < MinTrustLevel || in.TrustLevel > MaxTrustLevel {
		return models.Reflection{}, ErrTrustLevel
	}

	emotions := make([]string, 0, len(in.Emotions))
	for _, e := range in.Emotions {
		if e = strings.TrimSpace(e); e != "" {
			emotions = append(emotions, e)
		}
	}

	r := models.Reflection{
		ReflectionID:   s.newID(),
		Headline:       in.Headline,
		Emotions:       strings.Join(emotions, ", "),
		TrustLevel:     in.TrustLevel,
		ReflectionText: strings.TrimSpace(in.Text),
		Timestamp:      utils.Timestamp(s.now()),
	}

	row := []string{r.ReflectionID, r.Headline, r.Emotions, strconv.Itoa(r.TrustLevel), r.ReflectionText, r.Timestamp}
	if err := s.append(ctx, db.ReflectionsTable.Name, row); err != nil {
		return models.Reflection{}, err
	}

	slog.Info("[Reflections] Reflection recorded",
		slog.String("reflection_id", r.ReflectionID),
		slog.String("headline", r.Headline))
	return r, nil
}

// React records an emoji-style reaction to a comment, keyed by its snippet.
func (s *Service) React(ctx context.Context, headline, commentText, reaction string) (models.CommentReaction, error) {
	reaction = strings.TrimSpace(reaction)
	if reaction == "" {
		return models.CommentReaction{}, ErrEmptyReaction
	}
	if strings.TrimSpace(headline) == "" {
		return models.CommentReaction{}, ErrEmptyHeadline
	}

	cr := models.CommentReaction{
		Headline:       headline,
		CommentSnippet: utils.Snippet(commentText),
		Reaction:       reaction,
		Timestamp:      utils.Timestamp(s.now()),
	}

	row := []string{cr.Headline, cr.CommentSnippet, cr.Reaction, cr.Timestamp}
	if err := s.append(ctx, db.CommentReactionsTable.Name, row); err != nil {
		return models.CommentReaction{}, err
	}
	return cr, nil
}

type CommentReflectionInput struct {
	FieldName   string `json:"field_name"`
	Headline    string `json:"headline"`
	CommentText string `json:"comment"`
	Reflection  string `json:"reflection"`
	Emotion     string `json:"emotion"`
}

// ReflectOnComment stores a free-text reflection on a single comment.
func (s *Service) ReflectOnComment(ctx context.Context, in CommentReflectionInput) (models.CommentReflection, error) {
	text := strings.TrimSpace(in.Reflection)
	if text == "" {
		return models.CommentReflection{}, ErrEmptyText
	}
	if strings.TrimSpace(in.Headline) == "" {
		return models.CommentReflection{}, ErrEmptyHeadline
	}

	cr := models.CommentReflection{
		FieldName:      strings.TrimSpace(in.FieldName),
		Headline:       in.Headline,
		CommentSnippet: utils.Snippet(in.CommentText),
		Reflection:     text,
		Emotion:        strings.TrimSpace(in.Emotion),
		Timestamp:      utils.Timestamp(s.now()),
	}

	row := []string{cr.FieldName, cr.Headline, cr.CommentSnippet, cr.Reflection, cr.Emotion, cr.Timestamp}
	if err := s.append(ctx, db.CommentReflectionsTable.Name, row); err != nil {
		return models.CommentReflection{}, err
	}
	return cr, nil
}

// Reply attaches a reply to a stored reflection. The reflection id is not
// checked against the Reflections table.
func (s *Service) Reply(ctx context.Context, reflectionID, text string) (models.Reply, error) {
	if strings.TrimSpace(reflectionID) == "" {
		return models.Reply{}, ErrEmptyReflectionID
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Reply{}, ErrEmptyText
	}

	r := models.Reply{
		ReflectionID: reflectionID,
		Reply:        text,
		Timestamp:    utils.Timestamp(s.now()),
	}
	if err := s.append(ctx, db.RepliesTable.Name, []string{r.ReflectionID, r.Reply, r.Timestamp}); err != nil {
		return models.Reply{}, err
	}
	return r, nil
}

// RegisterFieldName records the display name a visitor chose.
func (s *Service) RegisterFieldName(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyFieldName
	}
	if err := s.append(ctx, db.FieldNamesTable.Name, []string{name, utils.Timestamp(s.now())}); err != nil {
		return "", err
	}
	return name, nil
}

// All returns every stored reflection in append order.
func (s *Service) All(ctx context.Context) ([]models.Reflection, error) {
	records, err := s.backend.ReadAll(ctx, db.ReflectionsTable.Name)
	if err != nil {
		return nil, fmt.Errorf("[Reflections] read reflections: %w", err)
	}

	out := make([]models.Reflection, 0, len(records))
	for _, rec := range records {
		out = append(out, reflectionFromRecord(rec))
	}
	return out, nil
}

// ForHeadline returns the reflections on a headline, matched exactly, each
// with its replies in append order.
func (s *Service) ForHeadline(ctx context.Context, headline string) ([]models.ReflectionThread, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}

	replyRecords, err := s.backend.ReadAll(ctx, db.RepliesTable.Name)
	if err != nil {
		return nil, fmt.Errorf("[Reflections] read replies: %w", err)
	}
	replies := make(map[string][]models.Reply)
	for _, rec := range replyRecords {
		id := rec.Get("reflection_id")
		replies[id] = append(replies[id], models.Reply{
			ReflectionID: id,
			Reply:        rec.Get("reply"),
			Timestamp:    rec.Get("timestamp"),
		})
	}

	threads := []models.ReflectionThread{}
	for _, r := range all {
		if r.Headline != headline {
			continue
		}
		thread := models.ReflectionThread{Reflection: r, Replies: replies[r.ReflectionID]}
		if thread.Replies == nil {
			thread.Replies = []models.Reply{}
		}
		threads = append(threads, thread)
	}
	return threads, nil
}

// CommentReflectionsFor returns the comment reflections left under a headline.
func (s *Service) CommentReflectionsFor(ctx context.Context, headline string) ([]models.CommentReflection, error) {
	records, err := s.backend.ReadAll(ctx, db.CommentReflectionsTable.Name)
	if err != nil {
		return nil, fmt.Errorf("[Reflections] read comment reflections: %w", err)
	}

	out := []models.CommentReflection{}
	for _, rec := range records {
		if rec.Get("headline") != headline {
			continue
		}
		out = append(out, models.CommentReflection{
			FieldName:      rec.Get("field_name"),
			Headline:       rec.Get("headline"),
			CommentSnippet: rec.Get("comment_snippet"),
			Reflection:     rec.Get("reflection"),
			Emotion:        rec.Get("emotion"),
			Timestamp:      rec.Get("timestamp"),
		})
	}
	return out, nil
}

func (s *Service) append(ctx context.Context, table string, row []string) error {
	if err := s.backend.AppendRow(ctx, table, row); err != nil {
		return fmt.Errorf("[Reflections] append to %s: %w", table, err)
	}

	if err := s.backend.Trim(ctx, table, s.retention); err != nil {
		slog.Warn("[Reflections] Failed to trim table",
			slog.String("table", table),
			slog.String("error", err.Error()))
	}
	return nil
}

func reflectionFromRecord(rec db.Record) models.Reflection {
	trust, _ := strconv.Atoi(strings.TrimSpace(rec.Get("trust_level")))
	return models.Reflection{
		ReflectionID:   rec.Get("reflection_id"),
		Headline:       rec.Get("headline"),
		Emotions:       rec.Get("emotions"),
		TrustLevel:     trust,
		ReflectionText: rec.Get("reflection"),
		Timestamp:      rec.Get("timestamp"),
	}
}
