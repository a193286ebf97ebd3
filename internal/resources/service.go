package resources

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eduforge/eduforge-go/internal/api"
)

// BasePath is the resource CRUD endpoint prefix.
const BasePath = "/api/resources"

// Service performs resource CRUD against the backend and reconciles
// the local store on success. Failed calls leave the store untouched.
type Service struct {
	client *api.Client
	store  *Store
	logger *slog.Logger
}

// NewService creates a resource service.
func NewService(client *api.Client, store *Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, store: store, logger: logger}
}

// Store exposes the local collection.
func (s *Service) Store() *Store { return s.store }

// Create persists a finalized resource. On success the returned saved
// resource is upserted at the head of the local collection.
func (s *Service) Create(ctx context.Context, req SaveRequest) (*Resource, error) {
	var saved Resource
	if err := s.client.DoJSON(ctx, "POST", BasePath, req, &saved); err != nil {
		return nil, err
	}
	if saved.ID == "" {
		return nil, fmt.Errorf("save response missing resource id")
	}
	s.store.Upsert(saved)
	s.logger.Info("resource saved", "id", saved.ID, "kind", saved.Kind)
	return &saved, nil
}

// Delete removes a resource. The local entry is dropped only after the
// server confirms.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.client.DoJSON(ctx, "DELETE", BasePath+"/"+id, nil, nil); err != nil {
		return err
	}
	s.store.Remove(id)
	s.logger.Info("resource deleted", "id", id)
	return nil
}

// Sync fetches the full remote collection and replaces the local one.
func (s *Service) Sync(ctx context.Context) ([]Resource, error) {
	var items []Resource
	if err := s.client.DoJSON(ctx, "GET", BasePath, nil, &items); err != nil {
		return nil, err
	}
	s.store.Replace(items)
	return s.store.List(), nil
}
