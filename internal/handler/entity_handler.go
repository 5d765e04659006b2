package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"furniture-dashboard/internal/model"
	"furniture-dashboard/internal/service"
	"furniture-dashboard/internal/workspace"
)

// Entities is what EntityHandler needs from a workspace collection.
type Entities[T any, P any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Create(ctx context.Context, payload P) (T, error)
	Update(ctx context.Context, id string, payload P) (T, error)
	Delete(ctx context.Context, id string) error
}

// EntityHandler exposes one collection of the visitor's workspace as
// GET/POST /, GET/PUT/DELETE /{id}.
type EntityHandler[T any, P any] struct {
	pick func(ws *workspace.Workspace) Entities[T, P]
}

func NewEntityHandler[T any, P any](pick func(ws *workspace.Workspace) Entities[T, P]) *EntityHandler[T, P] {
	return &EntityHandler[T, P]{pick: pick}
}

func (h *EntityHandler[T, P]) List(w http.ResponseWriter, r *http.Request) {
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}

	items, err := h.pick(ws).List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, items)
}

func (h *EntityHandler[T, P]) Get(w http.ResponseWriter, r *http.Request) {
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}

	item, err := h.pick(ws).Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, item)
}

func (h *EntityHandler[T, P]) Create(w http.ResponseWriter, r *http.Request) {
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}

	var payload P
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	item, err := h.pick(ws).Create(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, item)
}

func (h *EntityHandler[T, P]) Update(w http.ResponseWriter, r *http.Request) {
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}

	var payload P
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	item, err := h.pick(ws).Update(r.Context(), chi.URLParam(r, "id"), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, item)
}

func (h *EntityHandler[T, P]) Delete(w http.ResponseWriter, r *http.Request) {
	ws, ok := currentWorkspace(w, r)
	if !ok {
		return
	}

	if err := h.pick(ws).Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]string{"message": "deleted"})
}

// Routes mounts the handler on a fresh router.
func (h *EntityHandler[T, P]) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	return r
}

// Inventory handlers of the five collections.
func FurnitureHandler() *EntityHandler[model.Furniture, model.FurniturePayload] {
	return NewEntityHandler(func(ws *workspace.Workspace) Entities[model.Furniture, model.FurniturePayload] {
		return ws.Inventory.Furnitures
	})
}

func RessourceHandler() *EntityHandler[model.Ressource, model.RessourcePayload] {
	return NewEntityHandler(func(ws *workspace.Workspace) Entities[model.Ressource, model.RessourcePayload] {
		return ws.Inventory.Ressources
	})
}

func FurnitureCategoryHandler() *EntityHandler[model.Category, model.CategoryPayload] {
	return NewEntityHandler(func(ws *workspace.Workspace) Entities[model.Category, model.CategoryPayload] {
		return ws.Inventory.FurnitureCategories
	})
}

func RessourceCategoryHandler() *EntityHandler[model.Category, model.CategoryPayload] {
	return NewEntityHandler(func(ws *workspace.Workspace) Entities[model.Category, model.CategoryPayload] {
		return ws.Inventory.RessourceCategories
	})
}

// SupplierHandler serves suppliers as table rows carrying their in-use flag.
func SupplierHandler() *EntityHandler[service.SupplierRow, model.SupplierPayload] {
	return NewEntityHandler(func(ws *workspace.Workspace) Entities[service.SupplierRow, model.SupplierPayload] {
		return supplierRows{suppliers: ws.Inventory.Suppliers}
	})
}

type supplierRows struct {
	suppliers *service.SupplierService
}

func (s supplierRows) List(ctx context.Context) ([]service.SupplierRow, error) {
	return s.suppliers.ListWithUsage(ctx)
}

func (s supplierRows) Get(ctx context.Context, id string) (service.SupplierRow, error) {
	supplier, err := s.suppliers.Get(ctx, id)
	if err != nil {
		return service.SupplierRow{}, err
	}
	return s.row(ctx, supplier)
}

func (s supplierRows) Create(ctx context.Context, payload model.SupplierPayload) (service.SupplierRow, error) {
	supplier, err := s.suppliers.Create(ctx, payload)
	if err != nil {
		return service.SupplierRow{}, err
	}
	return service.SupplierRow{Supplier: supplier}, nil
}

func (s supplierRows) Update(ctx context.Context, id string, payload model.SupplierPayload) (service.SupplierRow, error) {
	supplier, err := s.suppliers.Update(ctx, id, payload)
	if err != nil {
		return service.SupplierRow{}, err
	}
	return s.row(ctx, supplier)
}

func (s supplierRows) Delete(ctx context.Context, id string) error {
	return s.suppliers.Delete(ctx, id)
}

func (s supplierRows) row(ctx context.Context, supplier model.Supplier) (service.SupplierRow, error) {
	inUse, err := s.suppliers.InUse(ctx, supplier.ID)
	if err != nil {
		return service.SupplierRow{}, err
	}
	return service.SupplierRow{Supplier: supplier, InUse: inUse}, nil
}
