package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"furniture-dashboard/internal/apiclient"
	"furniture-dashboard/internal/cache"
	"furniture-dashboard/internal/event"
	"furniture-dashboard/internal/validation"
	"furniture-dashboard/pkg/apierror"
)

// Resource describes one upstream collection: where it lives, the tag its
// reads carry and the tags its writes invalidate.
type Resource struct {
	Endpoint    string
	Label       string
	Provides    cache.Tag
	Invalidates []cache.Tag
}

var (
	FurnitureResource = Resource{
		Endpoint:    "furnitures",
		Label:       "furniture",
		Provides:    cache.TagFurniture,
		Invalidates: []cache.Tag{cache.TagFurniture},
	}
	// Furnitures embed ressource references, so ressource writes refresh them too.
	RessourceResource = Resource{
		Endpoint:    "ressources",
		Label:       "ressource",
		Provides:    cache.TagRessource,
		Invalidates: []cache.Tag{cache.TagRessource, cache.TagFurniture},
	}
	SupplierResource = Resource{
		Endpoint:    "suppliers",
		Label:       "supplier",
		Provides:    cache.TagSupplier,
		Invalidates: []cache.Tag{cache.TagSupplier},
	}
	FurnitureCategoryResource = Resource{
		Endpoint:    "furnitureCategories",
		Label:       "furniture category",
		Provides:    cache.TagFurnitureCategory,
		Invalidates: []cache.Tag{cache.TagFurnitureCategory},
	}
	RessourceCategoryResource = Resource{
		Endpoint:    "ressourceCategories",
		Label:       "ressource category",
		Provides:    cache.TagRessourceCategory,
		Invalidates: []cache.Tag{cache.TagRessourceCategory},
	}
)

// Collection reads entities of type T through the cache and writes payloads
// of type P as cache mutations.
type Collection[T any, P any] struct {
	resource Resource
	api      apiclient.Doer
	cache    *cache.Cache
	events   event.Publisher
	logger   *slog.Logger
}

func NewCollection[T any, P any](resource Resource, api apiclient.Doer, c *cache.Cache, events event.Publisher, logger *slog.Logger) *Collection[T, P] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collection[T, P]{resource: resource, api: api, cache: c, events: events, logger: logger}
}

func (c *Collection[T, P]) Resource() Resource {
	return c.resource
}

func (c *Collection[T, P]) ListQuery() cache.Query {
	return cache.Query{
		Endpoint: c.resource.Endpoint,
		Tags:     []cache.Tag{c.resource.Provides},
		Fetch: func(ctx context.Context) (any, error) {
			items, err := apiclient.Get[[]T](ctx, c.api, c.path(""))
			if err != nil {
				return nil, err
			}
			if items == nil {
				items = []T{}
			}
			return items, nil
		},
	}
}

func (c *Collection[T, P]) GetQuery(id string) cache.Query {
	return cache.Query{
		Endpoint: c.resource.Endpoint,
		Arg:      id,
		Tags:     []cache.Tag{c.resource.Provides},
		Fetch: func(ctx context.Context) (any, error) {
			return apiclient.Get[T](ctx, c.api, c.path(id))
		},
	}
}

func (c *Collection[T, P]) List(ctx context.Context) ([]T, error) {
	snap, err := c.cache.Query(ctx, c.ListQuery())
	if err != nil {
		return nil, err
	}
	items, _ := snap.Data.([]T)
	return items, nil
}

func (c *Collection[T, P]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	if err := validation.ID(id); err != nil {
		return zero, err
	}

	snap, err := c.cache.Query(ctx, c.GetQuery(id))
	if err != nil {
		return zero, err
	}
	item, _ := snap.Data.(T)
	return item, nil
}

// SubscribeList keeps the list entry alive and refreshed until the
// subscription is dropped.
func (c *Collection[T, P]) SubscribeList() *cache.Subscription {
	return c.cache.Subscribe(c.ListQuery())
}

func (c *Collection[T, P]) SubscribeGet(id string) *cache.Subscription {
	return c.cache.Subscribe(c.GetQuery(id))
}

func (c *Collection[T, P]) Create(ctx context.Context, payload P) (T, error) {
	return c.write(ctx, "create", http.MethodPost, "", payload)
}

func (c *Collection[T, P]) Update(ctx context.Context, id string, payload P) (T, error) {
	if err := validation.ID(id); err != nil {
		var zero T
		return zero, err
	}
	return c.write(ctx, "update", http.MethodPut, id, payload)
}

func (c *Collection[T, P]) Delete(ctx context.Context, id string) error {
	if err := validation.ID(id); err != nil {
		return err
	}

	_, err := c.cache.Mutate(ctx, c.resource.Invalidates, func(ctx context.Context) (any, error) {
		return nil, c.api.Do(ctx, http.MethodDelete, c.path(id), nil, nil)
	})
	if err != nil {
		return c.failed(ctx, "delete", err)
	}
	return nil
}

func (c *Collection[T, P]) write(ctx context.Context, op string, method string, id string, payload P) (T, error) {
	var zero T
	if err := validation.Struct(payload); err != nil {
		return zero, err
	}

	result, err := c.cache.Mutate(ctx, c.resource.Invalidates, func(ctx context.Context) (any, error) {
		return apiclient.Send[T](ctx, c.api, method, c.path(id), payload)
	})
	if err != nil {
		return zero, c.failed(ctx, op, err)
	}
	return result.(T), nil
}

// failed logs a rejected write and raises an alert for the visitor.
func (c *Collection[T, P]) failed(ctx context.Context, op string, err error) error {
	apiErr := apierror.From(err)
	c.logger.WarnContext(ctx, "mutation failed",
		"resource", c.resource.Endpoint,
		"operation", op,
		"kind", string(apiErr.Kind),
		"error", err,
	)

	c.events.Publish(event.TypeAlert, event.Alert{
		Level:   "error",
		Title:   fmt.Sprintf("Could not %s %s", op, c.resource.Label),
		Message: apierror.MessageOr(err, apierror.GenericMessage),
	})
	return apiErr
}

func (c *Collection[T, P]) path(id string) string {
	if id == "" {
		return "/" + c.resource.Endpoint
	}
	return "/" + c.resource.Endpoint + "/" + id
}
