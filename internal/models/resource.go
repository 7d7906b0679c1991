package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type ResourceKind string

const (
	ResourceEquipment ResourceKind = "equipment"
	ResourceSpace     ResourceKind = "space"
)

// ResourceRef identifies exactly one bookable resource: an equipment item or a space.
// The zero value refers to nothing and is never valid.
type ResourceRef struct {
	kind ResourceKind
	id   int64
}

func EquipmentRef(id int64) ResourceRef {
	return ResourceRef{kind: ResourceEquipment, id: id}
}

func SpaceRef(id int64) ResourceRef {
	return ResourceRef{kind: ResourceSpace, id: id}
}

func (r ResourceRef) Kind() ResourceKind { return r.kind }
func (r ResourceRef) ID() int64          { return r.id }

func (r ResourceRef) IsEquipment() bool { return r.kind == ResourceEquipment }
func (r ResourceRef) IsSpace() bool     { return r.kind == ResourceSpace }

func (r ResourceRef) Valid() bool {
	return (r.kind == ResourceEquipment || r.kind == ResourceSpace) && r.id > 0
}

// String renders the reference as "kind:id", e.g. "space:3".
func (r ResourceRef) String() string {
	if !r.Valid() {
		return "none"
	}
	return fmt.Sprintf("%s:%d", r.kind, r.id)
}

// ParseResourceRef parses the "kind:id" form produced by String.
func ParseResourceRef(s string) (ResourceRef, error) {
	kind, rawID, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return ResourceRef{}, fmt.Errorf("invalid resource reference %q", s)
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return ResourceRef{}, fmt.Errorf("invalid resource id %q: %w", rawID, err)
	}
	return NewResourceRef(ResourceKind(kind), id)
}

func NewResourceRef(kind ResourceKind, id int64) (ResourceRef, error) {
	ref := ResourceRef{kind: kind, id: id}
	if !ref.Valid() {
		return ResourceRef{}, fmt.Errorf("invalid resource reference %s:%d", kind, id)
	}
	return ref, nil
}

type resourceRefJSON struct {
	Kind ResourceKind `json:"kind"`
	ID   int64        `json:"id"`
}

func (r ResourceRef) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(resourceRefJSON{Kind: r.kind, ID: r.id})
}

func (r *ResourceRef) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = ResourceRef{}
		return nil
	}
	var raw resourceRefJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ref, err := NewResourceRef(raw.Kind, raw.ID)
	if err != nil {
		return err
	}
	*r = ref
	return nil
}
