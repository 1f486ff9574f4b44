package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"lesson-arcade-service/internal/app"
	"lesson-arcade-service/internal/domain"
)

// MetadataLookup resolves a video URL to its title and author.
type MetadataLookup interface {
	Lookup(ctx context.Context, videoURL string) (domain.VideoMetadata, error)
}

// APIHandler serves the JSON endpoints used by the setup screen.
type APIHandler struct {
	lessons  *app.LessonService
	play     *app.PlayService
	metadata MetadataLookup
}

// NewAPIHandler builds the handler. metadata may be nil.
func NewAPIHandler(lessons *app.LessonService, play *app.PlayService, metadata MetadataLookup) *APIHandler {
	return &APIHandler{lessons: lessons, play: play, metadata: metadata}
}

// Register mounts the API routes on mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/lessons", h.createLesson)
	mux.HandleFunc("GET /api/lessons/{id}", h.getLesson)
	mux.HandleFunc("GET /api/leaderboards/{lessonId}", h.getLeaderboard)
	mux.HandleFunc("POST /api/summaries", h.createSummary)
	mux.HandleFunc("GET /api/metadata", h.getMetadata)
}

type errorBody struct {
	Error string `json:"error"`
}

type summaryBody struct {
	Summary string `json:"summary"`
}

type leaderboardBody struct {
	LessonID string                    `json:"lessonId"`
	Entries  []domain.LeaderboardEntry `json:"entries"`
}

func (h *APIHandler) createLesson(w http.ResponseWriter, r *http.Request) {
	var req domain.LessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Title) == "" && h.metadata != nil {
		if meta, err := h.metadata.Lookup(r.Context(), req.VideoURL); err == nil {
			req.Title = meta.Title
		} else {
			log.Printf("metadata lookup for %s: %v", req.VideoURL, err)
		}
	}

	lesson, err := h.lessons.CreateLesson(r.Context(), req)
	if err != nil {
		writeJSON(w, generationStatus(err), errorBody{Error: app.UserMessage(err)})
		return
	}
	writeJSON(w, http.StatusCreated, lesson)
}

func (h *APIHandler) getLesson(w http.ResponseWriter, r *http.Request) {
	lesson, err := h.lessons.GetLesson(r.Context(), r.PathValue("id"))
	if errors.Is(err, domain.ErrLessonNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}
	if err != nil {
		log.Printf("get lesson: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "could not load lesson"})
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

func (h *APIHandler) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	lessonID := r.PathValue("lessonId")
	writeJSON(w, http.StatusOK, leaderboardBody{
		LessonID: lessonID,
		Entries:  h.play.Leaderboard(r.Context(), lessonID),
	})
}

func (h *APIHandler) createSummary(w http.ResponseWriter, r *http.Request) {
	var req struct {
		domain.SummaryRequest
		VideoURL string `json:"videoUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if req.VideoURL != "" && h.metadata != nil && (req.Title == "" || req.Author == "") {
		if meta, err := h.metadata.Lookup(r.Context(), req.VideoURL); err == nil {
			if req.Title == "" {
				req.Title = meta.Title
			}
			if req.Author == "" {
				req.Author = meta.AuthorName
			}
		} else {
			log.Printf("metadata lookup for %s: %v", req.VideoURL, err)
		}
	}

	text, err := h.lessons.Summarize(r.Context(), req.SummaryRequest)
	if err != nil {
		writeJSON(w, generationStatus(err), errorBody{Error: app.UserMessage(err)})
		return
	}
	writeJSON(w, http.StatusOK, summaryBody{Summary: text})
}

func (h *APIHandler) getMetadata(w http.ResponseWriter, r *http.Request) {
	videoURL := r.URL.Query().Get("url")
	if videoURL == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing url"})
		return
	}
	if h.metadata == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: domain.ErrMetadataUnavailable.Error()})
		return
	}
	meta, err := h.metadata.Lookup(r.Context(), videoURL)
	if err != nil {
		log.Printf("metadata lookup for %s: %v", videoURL, err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: domain.ErrMetadataUnavailable.Error()})
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func generationStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidLessonRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrQuotaExhausted):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}
