package database

import (
	"context"
	"fmt"

	"campusres/internal/models"
)

// upsert inserts when id is zero, otherwise replaces the row keeping the id.
func (db *DB) upsert(ctx context.Context, id *int64, insert, replace string, args ...interface{}) error {
	if *id == 0 {
		result, err := db.ExecContext(ctx, insert, args...)
		if err != nil {
			return err
		}
		newID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		*id = newID
		return nil
	}
	_, err := db.ExecContext(ctx, replace, append([]interface{}{*id}, args...)...)
	return err
}

func (db *DB) deleteByID(ctx context.Context, table string, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return requireAffected(result)
}

func (db *DB) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, image_url FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ImageURL); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (db *DB) SaveCategory(ctx context.Context, c *models.Category) error {
	err := db.upsert(ctx, &c.ID,
		`INSERT INTO categories (name, image_url) VALUES (?, ?)`,
		`INSERT OR REPLACE INTO categories (id, name, image_url) VALUES (?, ?, ?)`,
		c.Name, c.ImageURL)
	if err != nil {
		return fmt.Errorf("failed to save category: %w", err)
	}
	return nil
}

func (db *DB) DeleteCategory(ctx context.Context, id int64) error {
	return db.deleteByID(ctx, "categories", id)
}

const equipmentColumns = `id, name, unique_identifier, description, category_id, status, image_url`

func scanEquipment(row rowScanner) (*models.Equipment, error) {
	var e models.Equipment
	var status string
	if err := row.Scan(&e.ID, &e.Name, &e.UniqueIdentifier, &e.Description, &e.CategoryID, &status, &e.ImageURL); err != nil {
		return nil, err
	}
	e.Status = models.EquipmentStatus(status)
	return &e, nil
}

func (db *DB) ListEquipment(ctx context.Context) ([]models.Equipment, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+equipmentColumns+` FROM equipment ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list equipment: %w", err)
	}
	defer rows.Close()

	var out []models.Equipment
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (db *DB) GetEquipment(ctx context.Context, id int64) (*models.Equipment, error) {
	e, err := scanEquipment(db.QueryRowContext(ctx, `SELECT `+equipmentColumns+` FROM equipment WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

func (db *DB) SaveEquipment(ctx context.Context, e *models.Equipment) error {
	err := db.upsert(ctx, &e.ID,
		`INSERT INTO equipment (name, unique_identifier, description, category_id, status, image_url) VALUES (?, ?, ?, ?, ?, ?)`,
		`INSERT OR REPLACE INTO equipment (`+equipmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Name, e.UniqueIdentifier, e.Description, e.CategoryID, string(e.Status), e.ImageURL)
	if err != nil {
		return fmt.Errorf("failed to save equipment: %w", err)
	}
	return nil
}

func (db *DB) DeleteEquipment(ctx context.Context, id int64) error {
	return db.deleteByID(ctx, "equipment", id)
}

func (db *DB) ListSpaceTypes(ctx context.Context) ([]models.SpaceType, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, image_url FROM space_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list space types: %w", err)
	}
	defer rows.Close()

	var out []models.SpaceType
	for rows.Next() {
		var st models.SpaceType
		if err := rows.Scan(&st.ID, &st.Name, &st.ImageURL); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (db *DB) SaveSpaceType(ctx context.Context, st *models.SpaceType) error {
	err := db.upsert(ctx, &st.ID,
		`INSERT INTO space_types (name, image_url) VALUES (?, ?)`,
		`INSERT OR REPLACE INTO space_types (id, name, image_url) VALUES (?, ?, ?)`,
		st.Name, st.ImageURL)
	if err != nil {
		return fmt.Errorf("failed to save space type: %w", err)
	}
	return nil
}

func (db *DB) DeleteSpaceType(ctx context.Context, id int64) error {
	return db.deleteByID(ctx, "space_types", id)
}

const spaceColumns = `id, name, space_type_id, description, capacity, latitude, longitude, image_url`

func scanSpace(row rowScanner) (*models.Space, error) {
	var s models.Space
	if err := row.Scan(&s.ID, &s.Name, &s.SpaceTypeID, &s.Description, &s.Capacity, &s.Latitude, &s.Longitude, &s.ImageURL); err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DB) ListSpaces(ctx context.Context) ([]models.Space, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+spaceColumns+` FROM spaces ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list spaces: %w", err)
	}
	defer rows.Close()

	var out []models.Space
	for rows.Next() {
		s, err := scanSpace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (db *DB) GetSpace(ctx context.Context, id int64) (*models.Space, error) {
	s, err := scanSpace(db.QueryRowContext(ctx, `SELECT `+spaceColumns+` FROM spaces WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

func (db *DB) SaveSpace(ctx context.Context, s *models.Space) error {
	err := db.upsert(ctx, &s.ID,
		`INSERT INTO spaces (name, space_type_id, description, capacity, latitude, longitude, image_url) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		`INSERT OR REPLACE INTO spaces (`+spaceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Name, s.SpaceTypeID, s.Description, s.Capacity, s.Latitude, s.Longitude, s.ImageURL)
	if err != nil {
		return fmt.Errorf("failed to save space: %w", err)
	}
	return nil
}

func (db *DB) DeleteSpace(ctx context.Context, id int64) error {
	return db.deleteByID(ctx, "spaces", id)
}
