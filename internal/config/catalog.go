package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"campusres/internal/models"

	"gopkg.in/yaml.v2"
)

// Catalog is the seed file: catalog entries, accounts and demo reservations.
type Catalog struct {
	Categories   []models.Category  `yaml:"categories"`
	Equipment    []models.Equipment `yaml:"equipment"`
	SpaceTypes   []models.SpaceType `yaml:"space_types"`
	Spaces       []models.Space     `yaml:"spaces"`
	Users        []SeedUser         `yaml:"users"`
	Reservations []SeedReservation  `yaml:"reservations"`
	Reports      []SeedReport       `yaml:"reports"`
}

type SeedUser struct {
	ID             int64       `yaml:"id"`
	FullName       string      `yaml:"full_name"`
	Email          string      `yaml:"email"`
	Password       string      `yaml:"password"`
	Role           models.Role `yaml:"role"`
	TelegramChatID int64       `yaml:"telegram_chat_id"`
}

// SeedReservation places a reservation relative to the load time so demo
// data always lands around "today".
type SeedReservation struct {
	ID          int64                    `yaml:"id"`
	Kind        models.ResourceKind      `yaml:"kind"`
	ResourceID  int64                    `yaml:"resource_id"`
	RequesterID int64                    `yaml:"requester_id"`
	StartOffset time.Duration            `yaml:"start_offset"`
	Duration    time.Duration            `yaml:"duration"`
	Status      models.ReservationStatus `yaml:"status"`
}

type SeedReport struct {
	ID          int64               `yaml:"id"`
	Title       string              `yaml:"title"`
	Description string              `yaml:"description"`
	RequesterID int64               `yaml:"requester_id"`
	Status      models.ReportStatus `yaml:"status"`
}

func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("catalog validation failed: %w", err)
	}
	return &catalog, nil
}

func (c *Catalog) Validate() error {
	if err := uniqueIDs("category", len(c.Categories), func(i int) (int64, string) {
		return c.Categories[i].ID, c.Categories[i].Name
	}); err != nil {
		return err
	}
	if err := uniqueIDs("equipment", len(c.Equipment), func(i int) (int64, string) {
		return c.Equipment[i].ID, c.Equipment[i].Name
	}); err != nil {
		return err
	}
	if err := uniqueIDs("space type", len(c.SpaceTypes), func(i int) (int64, string) {
		return c.SpaceTypes[i].ID, c.SpaceTypes[i].Name
	}); err != nil {
		return err
	}
	if err := uniqueIDs("space", len(c.Spaces), func(i int) (int64, string) {
		return c.Spaces[i].ID, c.Spaces[i].Name
	}); err != nil {
		return err
	}

	emails := make(map[string]bool)
	for _, u := range c.Users {
		if !u.Role.Valid() {
			return fmt.Errorf("user %q has unknown role %q", u.Email, u.Role)
		}
		key := strings.ToLower(u.Email)
		if emails[key] {
			return fmt.Errorf("duplicate user email: %s", u.Email)
		}
		emails[key] = true
	}

	for _, r := range c.Reservations {
		if _, err := models.NewResourceRef(r.Kind, r.ResourceID); err != nil {
			return fmt.Errorf("reservation %d: %w", r.ID, err)
		}
		if !r.Status.Valid() {
			return fmt.Errorf("reservation %d has unknown status %q", r.ID, r.Status)
		}
		if r.Duration <= 0 {
			return fmt.Errorf("reservation %d has non-positive duration", r.ID)
		}
	}
	return nil
}

// ReservationsAt materializes the seed reservations around now.
func (c *Catalog) ReservationsAt(now time.Time) []models.Reservation {
	out := make([]models.Reservation, 0, len(c.Reservations))
	for _, r := range c.Reservations {
		ref, _ := models.NewResourceRef(r.Kind, r.ResourceID)
		start := now.Add(r.StartOffset).Truncate(time.Minute)
		out = append(out, models.Reservation{
			ID:          r.ID,
			Resource:    ref,
			RequesterID: r.RequesterID,
			StartTime:   start,
			EndTime:     start.Add(r.Duration),
			Status:      r.Status,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return out
}

func uniqueIDs(kind string, n int, at func(int) (int64, string)) error {
	seen := make(map[int64]bool, n)
	for i := 0; i < n; i++ {
		id, name := at(i)
		if id == 0 {
			return fmt.Errorf("%s '%s' has invalid ID 0", kind, name)
		}
		if seen[id] {
			return fmt.Errorf("duplicate %s ID found: %d", kind, id)
		}
		seen[id] = true
	}
	return nil
}
