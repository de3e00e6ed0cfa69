package search

import (
	"context"

	"github.com/rs/zerolog"
)

// Backend is a search engine that also owns its index.
type Backend interface {
	Searcher
	Indexer
	IndexDocuments(documents []DocumentRecord) error
}

// RecordLoader supplies every document for a full reindex.
type RecordLoader interface {
	LoadAllRecords(ctx context.Context) ([]DocumentRecord, error)
}

// Service is the facade that tries the primary backend first and falls back
// to PG FTS.
type Service struct {
	primary  Backend
	fallback Searcher
	log      zerolog.Logger
}

// NewService creates a search service. primary may be nil if Meilisearch is
// not configured.
func NewService(primary Backend, fallback Searcher, logger zerolog.Logger) *Service {
	return &Service{
		primary:  primary,
		fallback: fallback,
		log:      logger.With().Str("component", "search").Logger(),
	}
}

func (s *Service) primaryReady() bool {
	return s.primary != nil && s.primary.Healthy()
}

// Search tries the primary backend if healthy, otherwise falls back.
func (s *Service) Search(q Query) Response {
	if s.primaryReady() {
		results, total, err := s.primary.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.log.Warn().Err(err).Msg("primary search failed, falling back to pgfts")
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}
	results, total, err := s.fallback.Search(q)
	if err != nil {
		s.log.Error().Err(err).Msg("pgfts search failed")
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexDocument indexes a document in the background.
func (s *Service) IndexDocument(doc DocumentRecord) {
	if !s.primaryReady() {
		return
	}
	go func() {
		if err := s.primary.IndexDocument(doc); err != nil {
			s.log.Error().Err(err).Str("document_id", doc.ID).Msg("index document")
		}
	}()
}

// DeleteDocument removes a document from the index in the background.
func (s *Service) DeleteDocument(id string) {
	if !s.primaryReady() {
		return
	}
	go func() {
		if err := s.primary.DeleteDocument(id); err != nil {
			s.log.Error().Err(err).Str("document_id", id).Msg("delete document from index")
		}
	}()
}

// ReindexAll pushes every record loaded from loader into the primary backend.
// Called at startup when the primary backend is reachable.
func (s *Service) ReindexAll(ctx context.Context, loader RecordLoader) {
	if !s.primaryReady() || loader == nil {
		return
	}
	documents, err := loader.LoadAllRecords(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("reindex load failed")
		return
	}
	if err := s.primary.IndexDocuments(documents); err != nil {
		s.log.Error().Err(err).Msg("reindex documents")
		return
	}
	s.log.Info().Int("documents", len(documents)).Msg("search index rebuilt")
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
