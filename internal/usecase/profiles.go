package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"RegulatoryRadar/internal/domain"
	"RegulatoryRadar/internal/ports"
)

// ProfileService maintains tenant profiles and their embeddings.
type ProfileService struct {
	extractor ports.ProfileExtractor
	embedder  ports.EmbeddingGateway
	profiles  ports.ProfileRepository
	now       func() time.Time
	logger    *slog.Logger
}

// NewProfileService wires the oracle, the embedding gateway and the profile store.
func NewProfileService(extractor ports.ProfileExtractor, embedder ports.EmbeddingGateway, profiles ports.ProfileRepository, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		extractor: extractor,
		embedder:  embedder,
		profiles:  profiles,
		now:       time.Now,
		logger:    logger,
	}
}

// UpdateProfile extracts attributes from the description, embeds them and
// saves the profile. Nothing is saved unless every step succeeds, so a stored
// embedding always matches the stored description.
func (s *ProfileService) UpdateProfile(ctx context.Context, tenantID, description string) (domain.TenantProfile, error) {
	tenantID = strings.TrimSpace(tenantID)
	description = strings.TrimSpace(description)
	if tenantID == "" {
		return domain.TenantProfile{}, errors.New("tenant id is required")
	}
	if description == "" {
		return domain.TenantProfile{}, domain.ErrInvalidDescription
	}

	attrs, err := s.extractor.ExtractAttributes(ctx, description)
	if err != nil {
		return domain.TenantProfile{}, fmt.Errorf("extract attributes for %s: %w", tenantID, err)
	}

	text := attrs.ContextString()
	if text == "" {
		text = description
	}

	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return domain.TenantProfile{}, fmt.Errorf("embed profile %s: %w", tenantID, err)
	}

	profile := domain.TenantProfile{
		TenantID:    tenantID,
		Description: description,
		Attributes:  attrs,
		Embedding:   embedding,
		UpdatedAt:   s.now().UTC(),
	}
	if err := s.profiles.SaveProfile(ctx, profile); err != nil {
		return domain.TenantProfile{}, fmt.Errorf("save profile %s: %w", tenantID, err)
	}

	if s.logger != nil {
		s.logger.Info("profile updated", "tenant", tenantID, "dims", len(embedding))
	}
	return profile, nil
}

// GetProfile returns domain.ErrProfileNotFound for unknown tenants.
func (s *ProfileService) GetProfile(ctx context.Context, tenantID string) (domain.TenantProfile, error) {
	return s.profiles.GetProfile(ctx, tenantID)
}
