package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"furniture-dashboard/internal/model"
	"furniture-dashboard/internal/stats"
)

type DashboardService struct {
	inventory *Inventory
	now       func() time.Time
}

func NewDashboardService(inventory *Inventory) *DashboardService {
	return &DashboardService{inventory: inventory, now: time.Now}
}

// Summary loads every list (from the cache when fresh) and derives the
// dashboard figures for the trailing window.
func (s *DashboardService) Summary(ctx context.Context, window stats.Window) (stats.Summary, error) {
	var (
		furnitures          []model.Furniture
		ressources          []model.Ressource
		suppliers           []model.Supplier
		furnitureCategories []model.Category
		ressourceCategories []model.Category
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { furnitures, err = s.inventory.Furnitures.List(gctx); return })
	g.Go(func() (err error) { ressources, err = s.inventory.Ressources.List(gctx); return })
	g.Go(func() (err error) { suppliers, err = s.inventory.Suppliers.List(gctx); return })
	g.Go(func() (err error) { furnitureCategories, err = s.inventory.FurnitureCategories.List(gctx); return })
	g.Go(func() (err error) { ressourceCategories, err = s.inventory.RessourceCategories.List(gctx); return })
	if err := g.Wait(); err != nil {
		return stats.Summary{}, err
	}

	now := s.now()
	return stats.Summary{
		Window: int(window),
		Totals: map[string]int{
			FurnitureResource.Endpoint:         len(furnitures),
			RessourceResource.Endpoint:         len(ressources),
			SupplierResource.Endpoint:          len(suppliers),
			FurnitureCategoryResource.Endpoint: len(furnitureCategories),
			RessourceCategoryResource.Endpoint: len(ressourceCategories),
		},
		Timelines: map[string][]stats.Bucket{
			FurnitureResource.Endpoint: stats.TimelineOf(furnitures, window, now),
			RessourceResource.Endpoint: stats.TimelineOf(ressources, window, now),
			SupplierResource.Endpoint:  stats.TimelineOf(suppliers, window, now),
		},
		Statuses:    stats.StatusDistribution(furnitures),
		GeneratedAt: now.UTC(),
	}, nil
}
