package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"repogent.app/orchestrator/internal/domain"
	"repogent.app/orchestrator/internal/sanitize"
)

type ContextPatchParams struct {
	EntityType string                     `json:"entity_type"`
	EntityID   int64                      `json:"entity_id"`
	Patch      map[string]json.RawMessage `json:"patch"`
	UpdatedBy  string                     `json:"updated_by"`
}

// EntityContextService fronts the context store: identifier hygiene on the
// way in, then the transactional key-merge.
type EntityContextService interface {
	Get(ctx context.Context, entityType string, entityID int64) (*domain.ContextEntry, error)
	Merge(ctx context.Context, params ContextPatchParams) (*domain.ContextEntry, error)
}

type entityContextService struct {
	txRunner TxRunner
	logger   *slog.Logger
}

func NewEntityContextService(txRunner TxRunner, logger *slog.Logger) EntityContextService {
	if logger == nil {
		logger = slog.Default()
	}
	return &entityContextService{txRunner: txRunner, logger: logger}
}

func (s *entityContextService) Get(ctx context.Context, entityType string, entityID int64) (*domain.ContextEntry, error) {
	entityRef, err := entityRefFor(entityType, entityID)
	if err != nil {
		return nil, err
	}

	var entry *domain.ContextEntry
	if err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		entry, err = sp.Contexts().Get(ctx, entityRef)
		return err
	}); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *entityContextService) Merge(ctx context.Context, params ContextPatchParams) (*domain.ContextEntry, error) {
	entityRef, err := entityRefFor(params.EntityType, params.EntityID)
	if err != nil {
		return nil, err
	}
	if err := validatePatch(params.Patch); err != nil {
		return nil, err
	}
	updatedBy := params.UpdatedBy
	if updatedBy == "" {
		updatedBy = "unknown"
	}

	var entry *domain.ContextEntry
	if err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		entry, err = sp.Contexts().Merge(ctx, entityRef, params.Patch, updatedBy)
		return err
	}); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "context merged",
		"entity_ref", entityRef,
		"keys", len(params.Patch),
		"version", entry.Version,
		"updated_by", updatedBy)
	return entry, nil
}

// validatePatch runs every key through the identifier rules and every
// path-like string value through the path rules, so a hostile patch can never
// smuggle a traversal into a later file lookup.
func validatePatch(patch map[string]json.RawMessage) error {
	for key, value := range patch {
		if _, err := sanitize.NormalizeIdentifier(key); err != nil {
			return fmt.Errorf("patch key %q: %w", key, err)
		}
		if !isPathKey(key) {
			continue
		}
		var p string
		if err := json.Unmarshal(value, &p); err != nil {
			continue
		}
		if _, err := sanitize.NormalizePath(p); err != nil {
			return fmt.Errorf("patch key %q: %w", key, err)
		}
	}
	return nil
}

func isPathKey(key string) bool {
	return key == "path" || strings.HasSuffix(key, "_path") || strings.HasSuffix(key, "_file")
}

func entityRefFor(entityType string, entityID int64) (string, error) {
	t, err := sanitize.NormalizeIdentifier(entityType)
	if err != nil {
		return "", fmt.Errorf("entity_type: %w", err)
	}
	if entityID <= 0 {
		return "", fmt.Errorf("entity id must be positive")
	}
	return domain.EntityRef(t, entityID), nil
}
