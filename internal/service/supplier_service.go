package service

import (
	"context"
	"log/slog"
	"net/http"

	"furniture-dashboard/internal/apiclient"
	"furniture-dashboard/internal/cache"
	"furniture-dashboard/internal/event"
	"furniture-dashboard/internal/model"
	"furniture-dashboard/pkg/apierror"
)

// SupplierRow is a supplier as the suppliers table shows it.
type SupplierRow struct {
	model.Supplier
	InUse bool `json:"inUse"`
}

type SupplierService struct {
	*Collection[model.Supplier, model.SupplierPayload]
	ressources *Collection[model.Ressource, model.RessourcePayload]
}

func NewSupplierService(api apiclient.Doer, c *cache.Cache, ressources *Collection[model.Ressource, model.RessourcePayload], events event.Publisher, logger *slog.Logger) *SupplierService {
	return &SupplierService{
		Collection: NewCollection[model.Supplier, model.SupplierPayload](SupplierResource, api, c, events, logger),
		ressources: ressources,
	}
}

// InUse reports whether any ressource references the supplier. It reads the
// ressource list through the cache, so a fresh list costs no request.
func (s *SupplierService) InUse(ctx context.Context, id string) (bool, error) {
	used, err := s.usage(ctx)
	if err != nil {
		return false, err
	}
	_, ok := used[id]
	return ok, nil
}

// ListWithUsage returns every supplier flagged with whether it can be
// deleted.
func (s *SupplierService) ListWithUsage(ctx context.Context) ([]SupplierRow, error) {
	suppliers, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	used, err := s.usage(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]SupplierRow, 0, len(suppliers))
	for _, supplier := range suppliers {
		_, inUse := used[supplier.ID]
		rows = append(rows, SupplierRow{Supplier: supplier, InUse: inUse})
	}
	return rows, nil
}

// Delete refuses, without any request, to delete a supplier still referenced
// by a ressource.
func (s *SupplierService) Delete(ctx context.Context, id string) error {
	inUse, err := s.InUse(ctx, id)
	if err != nil {
		return err
	}
	if inUse {
		return &apierror.APIError{
			Kind:       apierror.KindValidation,
			Code:       "SUPPLIER_IN_USE",
			Message:    "This supplier provides at least one ressource and cannot be deleted",
			HTTPStatus: http.StatusConflict,
			Err:        model.ErrSupplierInUse,
		}
	}
	return s.Collection.Delete(ctx, id)
}

func (s *SupplierService) usage(ctx context.Context) (map[string]struct{}, error) {
	ressources, err := s.ressources.List(ctx)
	if err != nil {
		return nil, err
	}

	used := make(map[string]struct{}, len(ressources))
	for _, r := range ressources {
		if r.Supplier.ID != "" {
			used[r.Supplier.ID] = struct{}{}
		}
	}
	return used, nil
}
