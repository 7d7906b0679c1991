package repository

import (
	"context"
	"sort"
	"sync"

	"campusres/internal/domain"
	"campusres/internal/models"
)

// MemoryCatalog holds categories, equipment, space types and spaces.
// Ids for new records come from a single shared sequence.
type MemoryCatalog struct {
	mu         sync.RWMutex
	categories map[int64]models.Category
	equipment  map[int64]models.Equipment
	spaceTypes map[int64]models.SpaceType
	spaces     map[int64]models.Space
	nextID     int64
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		categories: make(map[int64]models.Category),
		equipment:  make(map[int64]models.Equipment),
		spaceTypes: make(map[int64]models.SpaceType),
		spaces:     make(map[int64]models.Space),
		nextID:     1,
	}
}

func (c *MemoryCatalog) assignID(id *int64) {
	if *id == 0 {
		*id = c.nextID
	}
	if *id >= c.nextID {
		c.nextID = *id + 1
	}
}

func (c *MemoryCatalog) ListCategories(ctx context.Context) ([]models.Category, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Category, 0, len(c.categories))
	for _, v := range c.categories {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *MemoryCatalog) SaveCategory(ctx context.Context, cat *models.Category) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assignID(&cat.ID)
	c.categories[cat.ID] = *cat
	return nil
}

func (c *MemoryCatalog) DeleteCategory(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.categories[id]; !ok {
		return domain.ErrNotFound
	}
	delete(c.categories, id)
	return nil
}

func (c *MemoryCatalog) ListEquipment(ctx context.Context) ([]models.Equipment, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Equipment, 0, len(c.equipment))
	for _, v := range c.equipment {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *MemoryCatalog) GetEquipment(ctx context.Context, id int64) (*models.Equipment, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.equipment[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &e, nil
}

func (c *MemoryCatalog) SaveEquipment(ctx context.Context, e *models.Equipment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assignID(&e.ID)
	c.equipment[e.ID] = *e
	return nil
}

func (c *MemoryCatalog) DeleteEquipment(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.equipment[id]; !ok {
		return domain.ErrNotFound
	}
	delete(c.equipment, id)
	return nil
}

func (c *MemoryCatalog) ListSpaceTypes(ctx context.Context) ([]models.SpaceType, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.SpaceType, 0, len(c.spaceTypes))
	for _, v := range c.spaceTypes {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *MemoryCatalog) SaveSpaceType(ctx context.Context, st *models.SpaceType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assignID(&st.ID)
	c.spaceTypes[st.ID] = *st
	return nil
}

func (c *MemoryCatalog) DeleteSpaceType(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.spaceTypes[id]; !ok {
		return domain.ErrNotFound
	}
	delete(c.spaceTypes, id)
	return nil
}

func (c *MemoryCatalog) ListSpaces(ctx context.Context) ([]models.Space, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Space, 0, len(c.spaces))
	for _, v := range c.spaces {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *MemoryCatalog) GetSpace(ctx context.Context, id int64) (*models.Space, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.spaces[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (c *MemoryCatalog) SaveSpace(ctx context.Context, s *models.Space) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assignID(&s.ID)
	c.spaces[s.ID] = *s
	return nil
}

func (c *MemoryCatalog) DeleteSpace(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.spaces[id]; !ok {
		return domain.ErrNotFound
	}
	delete(c.spaces, id)
	return nil
}
