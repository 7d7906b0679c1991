package models

type EquipmentStatus string

const (
	EquipmentAvailable EquipmentStatus = "available"
	EquipmentReserved  EquipmentStatus = "reserved"
)

type Category struct {
	ID       int64  `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	ImageURL string `yaml:"image_url" json:"image_url,omitempty"`
}

type Equipment struct {
	ID               int64           `yaml:"id" json:"id"`
	Name             string          `yaml:"name" json:"name"`
	UniqueIdentifier string          `yaml:"unique_identifier" json:"unique_identifier"`
	Description      string          `yaml:"description" json:"description"`
	CategoryID       int64           `yaml:"category_id" json:"category_id"`
	Status           EquipmentStatus `yaml:"status" json:"status"`
	ImageURL         string          `yaml:"image_url" json:"image_url,omitempty"`
}

type SpaceType struct {
	ID       int64  `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	ImageURL string `yaml:"image_url" json:"image_url,omitempty"`
}

type Space struct {
	ID          int64   `yaml:"id" json:"id"`
	Name        string  `yaml:"name" json:"name"`
	SpaceTypeID int64   `yaml:"space_type_id" json:"space_type_id"`
	Description string  `yaml:"description" json:"description"`
	Capacity    int     `yaml:"capacity" json:"capacity"`
	Latitude    float64 `yaml:"latitude" json:"latitude"`
	Longitude   float64 `yaml:"longitude" json:"longitude"`
	ImageURL    string  `yaml:"image_url" json:"image_url,omitempty"`
}
