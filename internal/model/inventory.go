package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type FurnitureStatus string

const (
	StatusWaiting      FurnitureStatus = "waiting"
	StatusInProduction FurnitureStatus = "in_production"
	StatusReadyToSell  FurnitureStatus = "ready_to_sell"
)

// FurnitureStatuses lists the statuses in display order.
var FurnitureStatuses = []FurnitureStatus{StatusWaiting, StatusInProduction, StatusReadyToSell}

// Ref points at another entity. Upstream sends either the bare id or the
// populated document; both decode here. It encodes back as the bare id.
type Ref struct {
	ID    string `json:"_id"`
	Label string `json:"label,omitempty"`
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = Ref{}
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = Ref{ID: id}
		return nil
	}

	var doc struct {
		ID    string `json:"_id"`
		Label string `json:"label"`
		Name  string `json:"name"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode reference: %w", err)
	}

	r.ID = doc.ID
	r.Label = doc.Label
	if r.Label == "" {
		r.Label = doc.Name
	}
	return nil
}

func (r Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ID)
}

type FurnitureRessource struct {
	Ressource Ref `json:"ressource"`
	Quantity  int `json:"quantity"`
}

type Furniture struct {
	ID          string               `json:"_id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Quantity    int                  `json:"quantity"`
	Status      FurnitureStatus      `json:"status"`
	Category    Ref                  `json:"category"`
	Ressources  []FurnitureRessource `json:"ressources"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

type Supplier struct {
	ID                  string    `json:"_id"`
	Name                string    `json:"name"`
	Email               string    `json:"email"`
	Phone               string    `json:"phone"`
	RessourceCategories []Ref     `json:"ressourceCategories"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

type Ressource struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    Ref       `json:"category"`
	Supplier    Ref       `json:"supplier"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Category backs both furniture and resource categories.
type Category struct {
	ID        string    `json:"_id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type FurnitureRessourcePayload struct {
	Ressource string `json:"ressource" validate:"required,objectid"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

type FurniturePayload struct {
	Name        string                      `json:"name" validate:"required,min=2,max=100"`
	Description string                      `json:"description" validate:"max=500"`
	Quantity    int                         `json:"quantity" validate:"gte=0"`
	Status      FurnitureStatus             `json:"status" validate:"required,oneof=waiting in_production ready_to_sell"`
	Category    string                      `json:"category" validate:"required,objectid"`
	Ressources  []FurnitureRessourcePayload `json:"ressources" validate:"dive"`
}

type SupplierPayload struct {
	Name                string   `json:"name" validate:"required,min=2,max=100"`
	Email               string   `json:"email" validate:"required,email"`
	Phone               string   `json:"phone" validate:"required,phone"`
	RessourceCategories []string `json:"ressourceCategories,omitempty" validate:"dive,objectid"`
}

type RessourcePayload struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=500"`
	Category    string `json:"category" validate:"required,objectid"`
	Supplier    string `json:"supplier" validate:"required,objectid"`
}

type CategoryPayload struct {
	Label string `json:"label" validate:"required,min=2,max=50"`
}

// Dated is implemented by every entity so the dashboard can bucket them.
type Dated interface {
	Created() time.Time
}

func (f Furniture) Created() time.Time { return f.CreatedAt }
func (s Supplier) Created() time.Time  { return s.CreatedAt }
func (r Ressource) Created() time.Time { return r.CreatedAt }
func (c Category) Created() time.Time  { return c.CreatedAt }
