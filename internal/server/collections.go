package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/apperr"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/storage"
)

const (
	defaultDocumentLimit = 50
	maxDocumentLimit     = 1000
)

func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var in models.CollectionInput
	if err := decodeJSON(r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}
	coll, err := s.storage.CreateCollection(r.Context(), in.Name)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.logger.Info("collection created", zap.String("name", coll.Name))
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":    fmt.Sprintf("Collection '%s' created successfully.", coll.Name),
		"collection": coll,
	})
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	colls, err := s.storage.ListCollections(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	names := make([]string, len(colls))
	for i, c := range colls {
		names[i] = c.Name
	}
	s.respondJSON(w, http.StatusOK, map[string][]string{"collections": names})
}

func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	coll, err := s.storage.GetCollection(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, coll)
}

func (s *Server) handleDropCollection(w http.ResponseWriter, r *http.Request) {
	name, err := storage.NormalizeCollectionName(chi.URLParam(r, "name"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.storage.DropCollection(r.Context(), name); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.logger.Info("collection dropped", zap.String("name", name))
	s.respondJSON(w, http.StatusOK, messageResponse{Message: fmt.Sprintf("Collection '%s' deleted successfully.", name)})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultDocumentLimit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	limit = models.ClampTopK(&limit, defaultDocumentLimit, maxDocumentLimit)
	if offset < 0 {
		offset = 0
	}
	docs, err := s.storage.ListDocuments(r.Context(), chi.URLParam(r, "name"), limit, offset)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, &models.DocumentPage{Documents: docs, Count: len(docs), Limit: limit, Offset: offset})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	withEmbedding, err := queryBool(r, "include_embedding", false)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	doc, err := s.storage.GetDocument(r.Context(), chi.URLParam(r, "name"), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if !withEmbedding {
		doc.Embedding = nil
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var in models.DocumentUpdate
	if err := decodeJSON(r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.indexer.UpdateDocument(r.Context(), chi.URLParam(r, "name"), id, in.Content); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, messageResponse{Message: "Document updated successfully.", ID: &id})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.indexer.DeleteDocument(r.Context(), chi.URLParam(r, "name"), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, messageResponse{Message: "Document deleted successfully.", ID: &id})
}

func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	var in models.DocumentInput
	if err := decodeJSON(r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}
	id, err := s.indexer.AddDocument(r.Context(), in.CollectionName, in.Content)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, messageResponse{Message: "Document added successfully.", ID: &id})
}

func (s *Server) handleIngestFile(w http.ResponseWriter, r *http.Request) {
	chunkSize, err := queryInt(r, "chunk_size", s.config.Chunking.ChunkSize)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	overlap, err := queryInt(r, "overlap", s.config.Chunking.Overlap)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				Error: fmt.Sprintf("file exceeds the %d byte upload limit", tooLarge.Limit),
				Kind:  apperr.Validation.String(),
			})
			return
		}
		s.respondError(w, r, apperr.Validationf("multipart field \"file\" is required"))
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, apperr.Wrap(apperr.Validation, err, "failed to read upload"))
		return
	}
	res, err := s.indexer.IngestFile(r.Context(), chi.URLParam(r, "name"), header.Filename, content, chunkSize, overlap)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.logger.Info("file ingested",
		zap.String("collection", res.Collection), zap.String("file", res.File), zap.Int("chunks", res.Chunks))
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	resp, err := s.engine.QueryCollection(r.Context(), &req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}
