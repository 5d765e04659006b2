package service

import (
	"log/slog"

	"furniture-dashboard/internal/apiclient"
	"furniture-dashboard/internal/cache"
	"furniture-dashboard/internal/event"
	"furniture-dashboard/internal/model"
)

// Inventory groups the entity services of one workspace.
type Inventory struct {
	Furnitures          *Collection[model.Furniture, model.FurniturePayload]
	Ressources          *Collection[model.Ressource, model.RessourcePayload]
	Suppliers           *SupplierService
	FurnitureCategories *Collection[model.Category, model.CategoryPayload]
	RessourceCategories *Collection[model.Category, model.CategoryPayload]
}

func NewInventory(api apiclient.Doer, c *cache.Cache, events event.Publisher, logger *slog.Logger) *Inventory {
	ressources := NewCollection[model.Ressource, model.RessourcePayload](RessourceResource, api, c, events, logger)

	return &Inventory{
		Furnitures:          NewCollection[model.Furniture, model.FurniturePayload](FurnitureResource, api, c, events, logger),
		Ressources:          ressources,
		Suppliers:           NewSupplierService(api, c, ressources, events, logger),
		FurnitureCategories: NewCollection[model.Category, model.CategoryPayload](FurnitureCategoryResource, api, c, events, logger),
		RessourceCategories: NewCollection[model.Category, model.CategoryPayload](RessourceCategoryResource, api, c, events, logger),
	}
}

// Query returns the cache query of a list (id empty) or of one entity of the
// collection behind endpoint.
func (inv *Inventory) Query(endpoint string, id string) (cache.Query, bool) {
	type querier interface {
		ListQuery() cache.Query
		GetQuery(id string) cache.Query
	}

	var q querier
	switch endpoint {
	case FurnitureResource.Endpoint:
		q = inv.Furnitures
	case RessourceResource.Endpoint:
		q = inv.Ressources
	case SupplierResource.Endpoint:
		q = inv.Suppliers
	case FurnitureCategoryResource.Endpoint:
		q = inv.FurnitureCategories
	case RessourceCategoryResource.Endpoint:
		q = inv.RessourceCategories
	default:
		return cache.Query{}, false
	}

	if id == "" {
		return q.ListQuery(), true
	}
	return q.GetQuery(id), true
}
