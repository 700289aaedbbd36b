package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RouteCache специализированный кэш для рассчитанных планов потоков.
// Ключ — пара (cargo, origin station), значение — доли потока по
// станциям назначения.
type RouteCache struct {
	cache      Cache
	defaultTTL time.Duration
}

// RouteShare is one routed share of cargo leaving an origin station:
// Amount units bound for Destination leave via the neighboring station Via.
type RouteShare struct {
	Destination uint16 `json:"destination"`
	Via         uint16 `json:"via"`
	Amount      uint64 `json:"amount"`
}

// CachedRoutes кэшированный план для одной станции отправления
type CachedRoutes struct {
	Cargo      uint8        `json:"cargo"`
	Origin     uint16       `json:"origin"`
	Shares     []RouteShare `json:"shares,omitempty"`
	ComputedAt time.Time    `json:"computed_at"`
}

// NewRouteCache создаёт кэш планов маршрутизации
func NewRouteCache(cache Cache, defaultTTL time.Duration) *RouteCache {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	return &RouteCache{
		cache:      cache,
		defaultTTL: defaultTTL,
	}
}

// BuildRouteKey формирует ключ кэша для пары (cargo, origin)
func BuildRouteKey(cargo uint8, origin uint16) string {
	return fmt.Sprintf("routes:%d:%d", cargo, origin)
}

// Get получает кэшированный план
func (rc *RouteCache) Get(ctx context.Context, cargo uint8, origin uint16) (*CachedRoutes, bool, error) {
	key := BuildRouteKey(cargo, origin)

	data, err := rc.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var routes CachedRoutes
	if err := json.Unmarshal(data, &routes); err != nil {
		// Повреждённый кэш — удаляем, ошибку удаления игнорируем намеренно
		_ = rc.cache.Delete(ctx, key) //nolint:errcheck // best effort cleanup
		return nil, false, nil
	}

	return &routes, true, nil
}

// Set сохраняет план в кэш
func (rc *RouteCache) Set(ctx context.Context, routes *CachedRoutes, ttl time.Duration) error {
	if routes == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = rc.defaultTTL
	}

	routes.ComputedAt = time.Now()

	data, err := json.Marshal(routes)
	if err != nil {
		return err
	}

	return rc.cache.Set(ctx, BuildRouteKey(routes.Cargo, routes.Origin), data, ttl)
}

// SetAll сохраняет планы нескольких станций одной операцией
func (rc *RouteCache) SetAll(ctx context.Context, all []*CachedRoutes, ttl time.Duration) error {
	if len(all) == 0 {
		return nil
	}
	if ttl <= 0 {
		ttl = rc.defaultTTL
	}

	now := time.Now()
	entries := make(map[string][]byte, len(all))
	for _, routes := range all {
		routes.ComputedAt = now
		data, err := json.Marshal(routes)
		if err != nil {
			return err
		}
		entries[BuildRouteKey(routes.Cargo, routes.Origin)] = data
	}

	return rc.cache.MSet(ctx, entries, ttl)
}

// GetStations получает планы нескольких станций одной операцией.
// Возвращает map origin -> план; отсутствующие станции в map не попадают.
func (rc *RouteCache) GetStations(ctx context.Context, cargo uint8, origins []uint16) (map[uint16]*CachedRoutes, error) {
	if len(origins) == 0 {
		return make(map[uint16]*CachedRoutes), nil
	}

	keys := make([]string, len(origins))
	for i, origin := range origins {
		keys[i] = BuildRouteKey(cargo, origin)
	}

	data, err := rc.cache.MGet(ctx, keys)
	if err != nil {
		return nil, err
	}

	result := make(map[uint16]*CachedRoutes, len(data))
	for i, origin := range origins {
		raw, ok := data[keys[i]]
		if !ok {
			continue
		}
		var routes CachedRoutes
		if err := json.Unmarshal(raw, &routes); err != nil {
			continue
		}
		result[origin] = &routes
	}

	return result, nil
}

// InvalidateCargo удаляет все планы для одного груза
func (rc *RouteCache) InvalidateCargo(ctx context.Context, cargo uint8) (int64, error) {
	return rc.cache.DeleteByPattern(ctx, fmt.Sprintf("routes:%d:*", cargo))
}

// InvalidateAll удаляет все кэшированные планы
func (rc *RouteCache) InvalidateAll(ctx context.Context) (int64, error) {
	return rc.cache.DeleteByPattern(ctx, "routes:*")
}
