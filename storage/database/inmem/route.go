package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/core/route"
)

type routeRepository struct {
	db *routeTable
}

var _ route.Repository = (*routeRepository)(nil)

func NewRouteRepository(db *DB) route.Repository {
	return &routeRepository{db: db.route}
}

func (repo *routeRepository) CreateRoute(_ context.Context, r route.Route, _ ...core.DBExecutor) (route.Route, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	r.ID = newID()
	r.Students = append([]route.RouteStudent{}, r.Students...)
	repo.db.table[r.ID] = &r
	return r, nil
}

func (repo *routeRepository) GetRoute(_ context.Context, id string, _ ...core.DBExecutor) (route.Route, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if r, ok := repo.db.table[id]; ok {
		return *r, nil
	}
	return route.Route{}, route.ErrNotFound
}

func (repo *routeRepository) QueryRoutes(_ context.Context, filter route.QueryFilter, page core.Page, _ ...core.DBExecutor) ([]route.Route, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	routes := make([]route.Route, 0, len(repo.db.table))
	for _, r := range repo.db.table {
		if filter.SchoolID != "" && r.SchoolID != filter.SchoolID {
			continue
		}
		routes = append(routes, *r)
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].CreatedAt.After(routes[j].CreatedAt) })
	return paginate(routes, page), len(routes), nil
}

func (repo *routeRepository) UpdateRoute(_ context.Context, r route.Route, replaceStudents bool, _ ...core.DBExecutor) (route.Route, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[r.ID]
	if !ok {
		return route.Route{}, route.ErrNotFound
	}
	if replaceStudents {
		r.Students = append([]route.RouteStudent{}, r.Students...)
	} else {
		r.Students = orig.Students
	}
	repo.db.table[r.ID] = &r
	return r, nil
}

func (repo *routeRepository) DeleteRoute(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return route.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
