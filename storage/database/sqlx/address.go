package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/core/address"
	"github.com/trezcool/shulebus/core/student"
)

const addressColumns = `id, parent_id, address_type, location, latitude, longitude, status, is_primary, created_at, updated_at`

var errPrimaryTaken = core.NewConflictError("Parent already has a primary address")

type addressRow struct {
	ID          string       `db:"id"`
	ParentID    string       `db:"parent_id"`
	AddressType string       `db:"address_type"`
	Location    string       `db:"location"`
	Latitude    null.Float64 `db:"latitude"`
	Longitude   null.Float64 `db:"longitude"`
	Status      string       `db:"status"`
	IsPrimary   bool         `db:"is_primary"`
	CreatedAt   time.Time    `db:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at"`
}

func boilAddress(addr address.Address) addressRow {
	return addressRow{
		ID:          addr.ID,
		ParentID:    addr.ParentID,
		AddressType: addr.AddressType,
		Location:    addr.Location,
		Latitude:    null.Float64FromPtr(addr.Latitude),
		Longitude:   null.Float64FromPtr(addr.Longitude),
		Status:      addr.Status,
		IsPrimary:   addr.IsPrimary,
		CreatedAt:   addr.CreatedAt,
		UpdatedAt:   addr.UpdatedAt,
	}
}

func (row addressRow) unboil() address.Address {
	return address.Address{
		ID:          row.ID,
		ParentID:    row.ParentID,
		AddressType: row.AddressType,
		Location:    row.Location,
		Latitude:    row.Latitude.Ptr(),
		Longitude:   row.Longitude.Ptr(),
		Status:      row.Status,
		IsPrimary:   row.IsPrimary,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

type AddressRepository struct {
	repository
}

var _ address.Repository = (*AddressRepository)(nil)

func NewAddressRepository(db *sqlx.DB) *AddressRepository {
	return &AddressRepository{repository{db: db}}
}

func (repo *AddressRepository) CreateAddress(ctx context.Context, addr address.Address, exec ...core.DBExecutor) (address.Address, error) {
	if !validIDs(addr.ParentID) {
		return address.Address{}, student.ErrParentNotFound
	}
	addr.ID = uuid.NewString()
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `INSERT INTO addresses (`+addressColumns+`) VALUES (
		:id, :parent_id, :address_type, :location, :latitude, :longitude, :status, :is_primary, :created_at, :updated_at)`,
		boilAddress(addr))
	if isForeignKeyViolation(err) {
		return address.Address{}, student.ErrParentNotFound
	}
	if err != nil {
		return address.Address{}, mapErr(err, nil, errPrimaryTaken, "inserting address")
	}
	return addr, nil
}

func (repo *AddressRepository) getAddress(ctx context.Context, exec []core.DBExecutor, cond string, arg interface{}) (address.Address, error) {
	var row addressRow
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, `SELECT `+addressColumns+` FROM addresses WHERE `+cond, arg); err != nil {
		return address.Address{}, mapErr(err, address.ErrNotFound, nil, "selecting address")
	}
	return row.unboil(), nil
}

func (repo *AddressRepository) GetAddress(ctx context.Context, id string, exec ...core.DBExecutor) (address.Address, error) {
	if !validIDs(id) {
		return address.Address{}, address.ErrNotFound
	}
	return repo.getAddress(ctx, exec, "id = $1", id)
}

func (repo *AddressRepository) GetPrimaryAddress(ctx context.Context, parentID string, exec ...core.DBExecutor) (address.Address, error) {
	if !validIDs(parentID) {
		return address.Address{}, address.ErrNotFound
	}
	return repo.getAddress(ctx, exec, "parent_id = $1 AND is_primary AND status = '"+address.StatusActive+"'", parentID)
}

func (repo *AddressRepository) QueryAddresses(ctx context.Context, filter address.QueryFilter, page core.Page, exec ...core.DBExecutor) ([]address.Address, int, error) {
	ext := repo.getExec(exec)

	var w where
	if filter.ParentID != "" {
		if !validIDs(filter.ParentID) {
			return []address.Address{}, 0, nil
		}
		w.add("parent_id = ?", filter.ParentID)
	}

	var total int
	if err := sqlx.GetContext(ctx, ext, &total, `SELECT count(*) FROM addresses`+w.String(), w.args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting addresses")
	}

	var rows []addressRow
	query := `SELECT ` + addressColumns + ` FROM addresses` + w.String() +
		` ORDER BY is_primary DESC, created_at DESC` + limitOffset(len(w.args))
	if err := sqlx.SelectContext(ctx, ext, &rows, query, append(w.args, page.Limit(), page.Offset())...); err != nil {
		return nil, 0, errors.Wrap(err, "selecting addresses")
	}
	addrs := make([]address.Address, 0, len(rows))
	for _, row := range rows {
		addrs = append(addrs, row.unboil())
	}
	return addrs, total, nil
}

func (repo *AddressRepository) UpdateAddress(ctx context.Context, addr address.Address, exec ...core.DBExecutor) (address.Address, error) {
	if !validIDs(addr.ID) {
		return address.Address{}, address.ErrNotFound
	}
	if !validIDs(addr.ParentID) {
		return address.Address{}, student.ErrParentNotFound
	}
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `UPDATE addresses SET
		parent_id = :parent_id, address_type = :address_type, location = :location, latitude = :latitude,
		longitude = :longitude, status = :status, is_primary = :is_primary, updated_at = :updated_at
		WHERE id = :id`, boilAddress(addr))
	if isForeignKeyViolation(err) {
		return address.Address{}, student.ErrParentNotFound
	}
	if err != nil {
		return address.Address{}, mapErr(err, nil, errPrimaryTaken, "updating address")
	}
	if err = mustAffect(res, address.ErrNotFound); err != nil {
		return address.Address{}, err
	}
	return addr, nil
}

func (repo *AddressRepository) DeleteAddress(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validIDs(id) {
		return address.ErrNotFound
	}
	res, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM addresses WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting address")
	}
	return mustAffect(res, address.ErrNotFound)
}

func (repo *AddressRepository) UnsetPrimaryAddresses(ctx context.Context, parentID, exceptID string, exec ...core.DBExecutor) error {
	if !validIDs(parentID) {
		return nil
	}
	// exceptID is empty while creating
	_, err := repo.getExec(exec).ExecContext(ctx, `UPDATE addresses SET is_primary = FALSE, updated_at = now()
		WHERE parent_id = $1 AND id::text <> $2 AND is_primary`, parentID, exceptID)
	return errors.Wrap(err, "unsetting primary addresses")
}

func (repo *AddressRepository) AddressStatistics(ctx context.Context, exec ...core.DBExecutor) (address.Statistics, error) {
	var stats address.Statistics
	err := repo.getExec(exec).QueryRowxContext(ctx, `SELECT
		count(*),
		count(*) FILTER (WHERE is_primary),
		count(*) FILTER (WHERE status = $1)
		FROM addresses`, address.StatusActive).Scan(&stats.Total, &stats.Primary, &stats.Active)
	if err != nil {
		return address.Statistics{}, errors.Wrap(err, "computing address statistics")
	}
	return stats, nil
}
