package server

import (
	"fmt"
	"net/http"

	"github.com/hyperjump/kioku/internal/models"
)

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	includeCounts, err := queryBool(r, "include_counts", true)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	page, err := s.history.ListConversations(r.Context(), s.history.Pagination(q.Get("page"), q.Get("page_size")), includeCounts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	includeEmbeddings, err := queryBool(r, "include_embeddings", false)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	q := r.URL.Query()
	page, err := s.history.ListMessages(r.Context(), id, s.history.Pagination(q.Get("page"), q.Get("page_size")), includeEmbeddings)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleExportConversation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	export, err := s.history.Export(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=conversation_%d.json", id))
	s.respondJSON(w, http.StatusOK, export)
}

func (s *Server) handleUpdateConversationTitle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var in models.TitleUpdate
	if err := decodeJSON(r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}
	conv, err := s.history.UpdateTitle(r.Context(), id, &in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	res, err := s.history.Delete(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleBulkDeleteConversations(w http.ResponseWriter, r *http.Request) {
	var in models.BulkDeleteInput
	if err := decodeJSON(r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}
	res, err := s.history.BulkDelete(r.Context(), &in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleAddMessage(w http.ResponseWriter, r *http.Request) {
	var in models.MessageInput
	if err := decodeJSON(r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}
	created, err := s.history.AddMessage(r.Context(), &in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleConversationContext(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	limit, err := queryIntPtr(r, "limit")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	includeSystem, err := queryBool(r, "include_system", false)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	window, err := s.history.Context(r.Context(), id, limit, includeSystem)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, window)
}

func (s *Server) handleSimilaritySearch(w http.ResponseWriter, r *http.Request) {
	var req models.MessageSearchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	resp, err := s.engine.SearchMessages(r.Context(), &req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}
