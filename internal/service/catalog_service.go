package service

import (
	"context"
	"errors"
	"strings"

	"campusres/internal/domain"
	"campusres/internal/models"

	"github.com/rs/zerolog"
)

type CatalogService struct {
	repo   domain.CatalogRepository
	logger *zerolog.Logger
}

func NewCatalogService(repo domain.CatalogRepository, logger *zerolog.Logger) *CatalogService {
	return &CatalogService{repo: repo, logger: logger}
}

func (s *CatalogService) Categories(ctx context.Context) ([]models.Category, error) {
	return s.repo.ListCategories(ctx)
}

// SaveCategory adds (ID == 0) or updates a category. Names are unique ignoring case.
func (s *CatalogService) SaveCategory(ctx context.Context, c *models.Category) error {
	name, err := requireName(c.Name)
	if err != nil {
		return err
	}
	existing, err := s.repo.ListCategories(ctx)
	if err != nil {
		return err
	}
	found := c.ID == 0
	for _, e := range existing {
		if e.ID == c.ID {
			found = true
			continue
		}
		if strings.EqualFold(e.Name, name) {
			return domain.ErrNameConflict
		}
	}
	if !found {
		return domain.ErrNotFound
	}
	c.Name = name
	return s.repo.SaveCategory(ctx, c)
}

// DeleteCategory отказывает, пока на категорию ссылается оборудование
func (s *CatalogService) DeleteCategory(ctx context.Context, id int64) error {
	equipment, err := s.repo.ListEquipment(ctx)
	if err != nil {
		return err
	}
	for _, e := range equipment {
		if e.CategoryID == id {
			return domain.ErrInUse
		}
	}
	return s.repo.DeleteCategory(ctx, id)
}

func (s *CatalogService) Equipment(ctx context.Context) ([]models.Equipment, error) {
	return s.repo.ListEquipment(ctx)
}

func (s *CatalogService) GetEquipment(ctx context.Context, id int64) (*models.Equipment, error) {
	return s.repo.GetEquipment(ctx, id)
}

// SaveEquipment adds or updates an item. New items start Available.
func (s *CatalogService) SaveEquipment(ctx context.Context, e *models.Equipment) error {
	name, err := requireName(e.Name)
	if err != nil {
		return err
	}
	e.Name = name
	if e.ID == 0 {
		e.Status = models.EquipmentAvailable
	} else if _, err := s.repo.GetEquipment(ctx, e.ID); err != nil {
		return err
	}
	if e.Status == "" {
		e.Status = models.EquipmentAvailable
	}
	return s.repo.SaveEquipment(ctx, e)
}

func (s *CatalogService) DeleteEquipment(ctx context.Context, id int64) error {
	return s.repo.DeleteEquipment(ctx, id)
}

func (s *CatalogService) SpaceTypes(ctx context.Context) ([]models.SpaceType, error) {
	return s.repo.ListSpaceTypes(ctx)
}

func (s *CatalogService) SaveSpaceType(ctx context.Context, st *models.SpaceType) error {
	name, err := requireName(st.Name)
	if err != nil {
		return err
	}
	existing, err := s.repo.ListSpaceTypes(ctx)
	if err != nil {
		return err
	}
	found := st.ID == 0
	for _, e := range existing {
		if e.ID == st.ID {
			found = true
			continue
		}
		if strings.EqualFold(e.Name, name) {
			return domain.ErrNameConflict
		}
	}
	if !found {
		return domain.ErrNotFound
	}
	st.Name = name
	return s.repo.SaveSpaceType(ctx, st)
}

func (s *CatalogService) DeleteSpaceType(ctx context.Context, id int64) error {
	spaces, err := s.repo.ListSpaces(ctx)
	if err != nil {
		return err
	}
	for _, sp := range spaces {
		if sp.SpaceTypeID == id {
			return domain.ErrInUse
		}
	}
	return s.repo.DeleteSpaceType(ctx, id)
}

// SpaceTypeName returns the type name or "" when the type is gone.
func (s *CatalogService) SpaceTypeName(ctx context.Context, id int64) string {
	types, err := s.repo.ListSpaceTypes(ctx)
	if err != nil {
		return ""
	}
	for _, st := range types {
		if st.ID == id {
			return st.Name
		}
	}
	return ""
}

func (s *CatalogService) Spaces(ctx context.Context) ([]models.Space, error) {
	return s.repo.ListSpaces(ctx)
}

func (s *CatalogService) GetSpace(ctx context.Context, id int64) (*models.Space, error) {
	return s.repo.GetSpace(ctx, id)
}

func (s *CatalogService) SaveSpace(ctx context.Context, sp *models.Space) error {
	name, err := requireName(sp.Name)
	if err != nil {
		return err
	}
	if sp.Capacity < 0 {
		return &domain.FieldError{Field: "capacity", Reason: "must not be negative"}
	}
	if sp.ID != 0 {
		if _, err := s.repo.GetSpace(ctx, sp.ID); err != nil {
			return err
		}
	}
	sp.Name = name
	return s.repo.SaveSpace(ctx, sp)
}

func (s *CatalogService) DeleteSpace(ctx context.Context, id int64) error {
	return s.repo.DeleteSpace(ctx, id)
}

// Exists reports whether ref points at a catalog record.
func (s *CatalogService) Exists(ctx context.Context, ref models.ResourceRef) (bool, error) {
	var err error
	switch {
	case ref.IsEquipment():
		_, err = s.repo.GetEquipment(ctx, ref.ID())
	case ref.IsSpace():
		_, err = s.repo.GetSpace(ctx, ref.ID())
	default:
		return false, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ResourceName resolves ref to a display name, "unknown resource" when it
// no longer exists.
func (s *CatalogService) ResourceName(ctx context.Context, ref models.ResourceRef) string {
	switch {
	case ref.IsEquipment():
		if e, err := s.repo.GetEquipment(ctx, ref.ID()); err == nil {
			return e.Name
		}
	case ref.IsSpace():
		if sp, err := s.repo.GetSpace(ctx, ref.ID()); err == nil {
			return sp.Name
		}
	}
	return models.UnknownResourceName
}

func requireName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &domain.FieldError{Field: "name", Reason: "is required"}
	}
	return name, nil
}
