package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/m-mizutani/aria/pkg/model"
	"github.com/m-mizutani/aria/pkg/usecase/chat"
	"github.com/m-mizutani/aria/pkg/usecase/research"
	"github.com/m-mizutani/aria/pkg/usecase/saved"
)

type sessionRequest struct {
	SessionID model.SessionID `json:"session_id"`
}

// handleCreateSession creates a session, or returns the existing one
// when the request names a known id. An empty body is a valid request
// for a brand-new session.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(r.Context(), w, decodeErr(err))
		return
	}

	sess, err := s.sessions.GetOrCreate(r.Context(), req.SessionID)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess.Summary())
}

type listSessionsResponse struct {
	Sessions []*model.SessionSummary `json:"sessions"`
	Total    int                     `json:"total"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.sessions.List(r.Context())
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusOK, listSessionsResponse{
		Sessions: orEmpty(summaries),
		Total:    len(summaries),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), model.SessionID(r.PathValue("id")))
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(r.PathValue("id"))
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Session %s and all related data deleted successfully", id),
	})
}

type researchRequest struct {
	SessionID  model.SessionID `json:"session_id"`
	Topic      string          `json:"topic"`
	NumResults int             `json:"num_results"`
}

type researchResponse struct {
	SessionID           model.SessionID       `json:"session_id"`
	Status              model.ResearchStatus  `json:"status"`
	Topic               string                `json:"topic"`
	Timestamp           time.Time             `json:"timestamp"`
	Summary             string                `json:"summary"`
	Notes               string                `json:"notes"`
	KeyInsights         string                `json:"key_insights"`
	Sources             []*model.SearchResult `json:"sources"`
	Suggestions         []string              `json:"suggestions"`
	Report              *string               `json:"report"`
	ReflectingQuestions []string              `json:"reflecting_questions"`
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req researchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(r.Context(), w, err)
		return
	}
	if req.SessionID == "" {
		req.SessionID = model.SessionID(r.URL.Query().Get("session_id"))
	}

	out, err := s.research.Research(r.Context(), &research.Input{
		SessionID:  req.SessionID,
		Topic:      req.Topic,
		NumResults: req.NumResults,
	})
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}

	respondJSON(w, http.StatusOK, researchResponse{
		SessionID:           out.SessionID,
		Status:              out.Status,
		Topic:               out.Topic,
		Timestamp:           out.Timestamp,
		Summary:             out.Summary,
		Notes:               out.Notes,
		KeyInsights:         out.Insights,
		Sources:             orEmpty(out.Results),
		Suggestions:         orEmpty(out.Suggestions),
		ReflectingQuestions: orEmpty(out.ReflectingQuestions),
	})
}

type fullResearchRequest struct {
	Query      string `json:"query"`
	NumResults int    `json:"num_results"`
}

type fullResearchResponse struct {
	Articles         []*model.SearchResult `json:"articles"`
	RelevantSummary  string                `json:"relevant_summary"`
	StructuredReport string                `json:"structured_report"`
}

func (s *Server) handleFullResearch(w http.ResponseWriter, r *http.Request) {
	var req fullResearchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(r.Context(), w, err)
		return
	}

	out, err := s.research.FullResearch(r.Context(), &research.PipelineInput{
		Query:      req.Query,
		NumResults: req.NumResults,
	})
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}

	respondJSON(w, http.StatusOK, fullResearchResponse{
		Articles:         orEmpty(out.Articles),
		RelevantSummary:  out.RelevantSummary,
		StructuredReport: out.Report,
	})
}

type chatRequest struct {
	SessionID model.SessionID `json:"session_id"`
	Message   string          `json:"message"`
}

type chatResponse struct {
	SessionID model.SessionID `json:"session_id"`
	Response  string          `json:"response"`
	Timestamp time.Time       `json:"timestamp"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(r.Context(), w, err)
		return
	}

	out, err := s.chat.Chat(r.Context(), &chat.Input{
		SessionID: req.SessionID,
		Message:   req.Message,
	})
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}

	respondJSON(w, http.StatusOK, chatResponse{
		SessionID: out.SessionID,
		Response:  out.Response,
		Timestamp: out.Timestamp,
	})
}

type searchHistoryResponse struct {
	Searches []*model.SearchHistoryEntry `json:"searches"`
	Total    int                         `json:"total"`
}

func (s *Server) handleSearchHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.sessions.SearchHistory(r.Context(), model.SessionID(r.PathValue("id")))
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusOK, searchHistoryResponse{
		Searches: orEmpty(entries),
		Total:    len(entries),
	})
}

func (s *Server) handleAllSearchHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.sessions.AllSearchHistory(r.Context())
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusOK, searchHistoryResponse{
		Searches: orEmpty(entries),
		Total:    len(entries),
	})
}

type saveResearchRequest struct {
	SessionID   model.SessionID `json:"session_id"`
	Query       string          `json:"query"`
	SectionName string          `json:"section_name"`
	Content     string          `json:"content"`
}

func (s *Server) handleSaveResearch(w http.ResponseWriter, r *http.Request) {
	var req saveResearchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(r.Context(), w, err)
		return
	}

	err := s.saved.SaveSection(r.Context(), &saved.SaveInput{
		SessionID: req.SessionID,
		Query:     req.Query,
		Name:      req.SectionName,
		Content:   req.Content,
	})
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Research section '%s' saved successfully", req.SectionName),
	})
}

type savedResearchResponse struct {
	SavedResearch []*model.SavedResearch `json:"saved_research"`
	Total         int                    `json:"total"`
}

func (s *Server) handleSavedResearch(w http.ResponseWriter, r *http.Request) {
	records, err := s.saved.List(r.Context(), model.SessionID(r.PathValue("id")))
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusOK, savedResearchResponse{
		SavedResearch: orEmpty(records),
		Total:         len(records),
	})
}

func (s *Server) handleAllSavedResearch(w http.ResponseWriter, r *http.Request) {
	records, err := s.saved.ListAll(r.Context())
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusOK, savedResearchResponse{
		SavedResearch: orEmpty(records),
		Total:         len(records),
	})
}

func (s *Server) handleDeleteSavedResearch(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(r.PathValue("id"))
	query := r.PathValue("query")
	if err := s.saved.Delete(r.Context(), id, query); err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Saved research for '%s' deleted successfully", query),
	})
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Storage   string    `json:"storage"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Storage:   s.repo.Kind(),
	})
}

type rootResponse struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, rootResponse{
		Message: "ARIA - Academic Research Intelligence Assistant API",
		Version: "1.0.0",
		Endpoints: map[string]string{
			"research": "/research - Conduct comprehensive research on a topic",
			"chat":     "/chat - Chat with ARIA about research",
			"session":  "/session - Create or get session info",
			"sessions": "/sessions - List all active sessions",
		},
	})
}
