package postgres

import (
	"context"
	"fmt"

	"campusres/internal/models"

	"github.com/jackc/pgx/v5"
)

// save inserts when *id is zero and upserts by id otherwise. The table's
// sequence is moved past explicit ids so later inserts do not collide.
func (s *Store) save(ctx context.Context, table string, id *int64, insert, upsert string, args ...interface{}) error {
	if *id == 0 {
		return s.pool.QueryRow(ctx, insert, args...).Scan(id)
	}
	if _, err := s.pool.Exec(ctx, upsert, append([]interface{}{*id}, args...)...); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`SELECT setval(pg_get_serial_sequence('%s', 'id'), (SELECT MAX(id) FROM %s))`, table, table))
	return err
}

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, image_url FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Category, error) {
		var c models.Category
		err := row.Scan(&c.ID, &c.Name, &c.ImageURL)
		return c, err
	})
}

func (s *Store) SaveCategory(ctx context.Context, c *models.Category) error {
	err := s.save(ctx, "categories", &c.ID,
		`INSERT INTO categories (name, image_url) VALUES ($1, $2) RETURNING id`,
		`INSERT INTO categories (id, name, image_url) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, image_url = EXCLUDED.image_url`,
		c.Name, c.ImageURL)
	if err != nil {
		return fmt.Errorf("save category: %w", err)
	}
	return nil
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	return s.execAffected(ctx, `DELETE FROM categories WHERE id = $1`, id)
}

const equipmentColumns = `id, name, unique_identifier, description, category_id, status, image_url`

func scanEquipment(row pgx.Row) (models.Equipment, error) {
	var e models.Equipment
	var status string
	err := row.Scan(&e.ID, &e.Name, &e.UniqueIdentifier, &e.Description, &e.CategoryID, &status, &e.ImageURL)
	e.Status = models.EquipmentStatus(status)
	return e, err
}

func (s *Store) ListEquipment(ctx context.Context) ([]models.Equipment, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+equipmentColumns+` FROM equipment ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list equipment: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Equipment, error) {
		return scanEquipment(row)
	})
}

func (s *Store) GetEquipment(ctx context.Context, id int64) (*models.Equipment, error) {
	e, err := scanEquipment(s.pool.QueryRow(ctx, `SELECT `+equipmentColumns+` FROM equipment WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (s *Store) SaveEquipment(ctx context.Context, e *models.Equipment) error {
	err := s.save(ctx, "equipment", &e.ID,
		`INSERT INTO equipment (name, unique_identifier, description, category_id, status, image_url)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		`INSERT INTO equipment (`+equipmentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, unique_identifier = EXCLUDED.unique_identifier,
		   description = EXCLUDED.description, category_id = EXCLUDED.category_id,
		   status = EXCLUDED.status, image_url = EXCLUDED.image_url`,
		e.Name, e.UniqueIdentifier, e.Description, e.CategoryID, string(e.Status), e.ImageURL)
	if err != nil {
		return fmt.Errorf("save equipment: %w", err)
	}
	return nil
}

func (s *Store) DeleteEquipment(ctx context.Context, id int64) error {
	return s.execAffected(ctx, `DELETE FROM equipment WHERE id = $1`, id)
}

func (s *Store) ListSpaceTypes(ctx context.Context) ([]models.SpaceType, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, image_url FROM space_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list space types: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SpaceType, error) {
		var st models.SpaceType
		err := row.Scan(&st.ID, &st.Name, &st.ImageURL)
		return st, err
	})
}

func (s *Store) SaveSpaceType(ctx context.Context, st *models.SpaceType) error {
	err := s.save(ctx, "space_types", &st.ID,
		`INSERT INTO space_types (name, image_url) VALUES ($1, $2) RETURNING id`,
		`INSERT INTO space_types (id, name, image_url) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, image_url = EXCLUDED.image_url`,
		st.Name, st.ImageURL)
	if err != nil {
		return fmt.Errorf("save space type: %w", err)
	}
	return nil
}

func (s *Store) DeleteSpaceType(ctx context.Context, id int64) error {
	return s.execAffected(ctx, `DELETE FROM space_types WHERE id = $1`, id)
}

const spaceColumns = `id, name, space_type_id, description, capacity, latitude, longitude, image_url`

func scanSpace(row pgx.Row) (models.Space, error) {
	var sp models.Space
	err := row.Scan(&sp.ID, &sp.Name, &sp.SpaceTypeID, &sp.Description, &sp.Capacity, &sp.Latitude, &sp.Longitude, &sp.ImageURL)
	return sp, err
}

func (s *Store) ListSpaces(ctx context.Context) ([]models.Space, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+spaceColumns+` FROM spaces ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list spaces: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Space, error) {
		return scanSpace(row)
	})
}

func (s *Store) GetSpace(ctx context.Context, id int64) (*models.Space, error) {
	sp, err := scanSpace(s.pool.QueryRow(ctx, `SELECT `+spaceColumns+` FROM spaces WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &sp, nil
}

func (s *Store) SaveSpace(ctx context.Context, sp *models.Space) error {
	err := s.save(ctx, "spaces", &sp.ID,
		`INSERT INTO spaces (name, space_type_id, description, capacity, latitude, longitude, image_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		`INSERT INTO spaces (`+spaceColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, space_type_id = EXCLUDED.space_type_id,
		   description = EXCLUDED.description, capacity = EXCLUDED.capacity,
		   latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude, image_url = EXCLUDED.image_url`,
		sp.Name, sp.SpaceTypeID, sp.Description, sp.Capacity, sp.Latitude, sp.Longitude, sp.ImageURL)
	if err != nil {
		return fmt.Errorf("save space: %w", err)
	}
	return nil
}

func (s *Store) DeleteSpace(ctx context.Context, id int64) error {
	return s.execAffected(ctx, `DELETE FROM spaces WHERE id = $1`, id)
}
