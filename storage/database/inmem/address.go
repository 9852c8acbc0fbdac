package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/core/address"
)

type addressRepository struct {
	db *addressTable
}

var _ address.Repository = (*addressRepository)(nil)

func NewAddressRepository(db *DB) address.Repository {
	return &addressRepository{db: db.address}
}

func (repo *addressRepository) CreateAddress(_ context.Context, addr address.Address, _ ...core.DBExecutor) (address.Address, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	addr.ID = newID()
	repo.db.table[addr.ID] = &addr
	return addr, nil
}

func (repo *addressRepository) GetAddress(_ context.Context, id string, _ ...core.DBExecutor) (address.Address, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if addr, ok := repo.db.table[id]; ok {
		return *addr, nil
	}
	return address.Address{}, address.ErrNotFound
}

func (repo *addressRepository) GetPrimaryAddress(_ context.Context, parentID string, _ ...core.DBExecutor) (address.Address, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, addr := range repo.db.table {
		if addr.ParentID == parentID && addr.IsPrimary && addr.Status == address.StatusActive {
			return *addr, nil
		}
	}
	return address.Address{}, address.ErrNotFound
}

func (repo *addressRepository) QueryAddresses(_ context.Context, filter address.QueryFilter, page core.Page, _ ...core.DBExecutor) ([]address.Address, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	addrs := make([]address.Address, 0, len(repo.db.table))
	for _, addr := range repo.db.table {
		if filter.ParentID != "" && addr.ParentID != filter.ParentID {
			continue
		}
		addrs = append(addrs, *addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		if addrs[i].IsPrimary != addrs[j].IsPrimary {
			return addrs[i].IsPrimary
		}
		return addrs[i].CreatedAt.After(addrs[j].CreatedAt)
	})
	return paginate(addrs, page), len(addrs), nil
}

func (repo *addressRepository) UpdateAddress(_ context.Context, addr address.Address, _ ...core.DBExecutor) (address.Address, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[addr.ID]; !ok {
		return address.Address{}, address.ErrNotFound
	}
	repo.db.table[addr.ID] = &addr
	return addr, nil
}

func (repo *addressRepository) DeleteAddress(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return address.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}

func (repo *addressRepository) UnsetPrimaryAddresses(_ context.Context, parentID, exceptID string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, addr := range repo.db.table {
		if addr.ParentID == parentID && id != exceptID && addr.IsPrimary {
			updated := *addr
			updated.IsPrimary = false
			repo.db.table[id] = &updated
		}
	}
	return nil
}

func (repo *addressRepository) AddressStatistics(_ context.Context, _ ...core.DBExecutor) (address.Statistics, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var stats address.Statistics
	for _, addr := range repo.db.table {
		stats.Total++
		if addr.IsPrimary {
			stats.Primary++
		}
		if addr.Status == address.StatusActive {
			stats.Active++
		}
	}
	return stats, nil
}
