package address

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/shulebus/core"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("Address not found")
)

type (
	Repository interface {
		CreateAddress(ctx context.Context, addr Address, exec ...core.DBExecutor) (Address, error)
		GetAddress(ctx context.Context, id string, exec ...core.DBExecutor) (Address, error)
		// GetPrimaryAddress returns the parent's primary, Active address.
		GetPrimaryAddress(ctx context.Context, parentID string, exec ...core.DBExecutor) (Address, error)
		// QueryAddresses orders primary addresses first, then the newest.
		QueryAddresses(ctx context.Context, filter QueryFilter, page core.Page, exec ...core.DBExecutor) ([]Address, int, error)
		UpdateAddress(ctx context.Context, addr Address, exec ...core.DBExecutor) (Address, error)
		DeleteAddress(ctx context.Context, id string, exec ...core.DBExecutor) error
		// UnsetPrimaryAddresses clears isPrimary on every address of the parent except exceptID.
		UnsetPrimaryAddresses(ctx context.Context, parentID, exceptID string, exec ...core.DBExecutor) error
		AddressStatistics(ctx context.Context, exec ...core.DBExecutor) (Statistics, error)
	}

	Service interface {
		Create(ctx context.Context, na NewAddress) (Address, error)
		Get(ctx context.Context, id string) (Address, error)
		GetPrimary(ctx context.Context, parentID string) (Address, error)
		Query(ctx context.Context, filter QueryFilter, page core.Page) ([]Address, core.Pagination, error)
		Update(ctx context.Context, id string, ua UpdateAddress) (Address, error)
		Delete(ctx context.Context, id string) error
		Statistics(ctx context.Context) (Statistics, error)
	}

	service struct {
		tx     core.Transactor
		repo   Repository
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(tx core.Transactor, repo Repository, logger core.Logger) Service {
	return &service{tx: tx, repo: repo, logger: logger}
}

// InitValidators registers the address validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterEnumValidation(validate, translator, "addressstatus", Statuses...)
}

// Create unsets any existing primary address of the parent before saving a new primary one.
func (svc *service) Create(ctx context.Context, na NewAddress) (Address, error) {
	now := time.Now().UTC()
	addr := Address{
		ParentID:    na.ParentID,
		AddressType: na.AddressType,
		Location:    na.Location,
		Latitude:    na.Latitude,
		Longitude:   na.Longitude,
		Status:      na.Status,
		IsPrimary:   na.IsPrimary,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if addr.IsPrimary {
			if err := svc.repo.UnsetPrimaryAddresses(ctx, addr.ParentID, "", exec); err != nil {
				return errors.Wrap(err, "unsetting primary addresses")
			}
		}
		var err error
		addr, err = svc.repo.CreateAddress(ctx, addr, exec)
		return errors.Wrap(err, "creating address")
	})
	if err != nil {
		return Address{}, err
	}
	svc.logger.Info("address created", map[string]interface{}{"addressId": addr.ID, "parentId": addr.ParentID})
	return addr, nil
}

func (svc *service) Get(ctx context.Context, id string) (Address, error) {
	return svc.repo.GetAddress(ctx, id)
}

func (svc *service) GetPrimary(ctx context.Context, parentID string) (Address, error) {
	return svc.repo.GetPrimaryAddress(ctx, parentID)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, page core.Page) ([]Address, core.Pagination, error) {
	page.Clean()
	addrs, total, err := svc.repo.QueryAddresses(ctx, filter, page)
	if err != nil {
		return nil, core.Pagination{}, err
	}
	return addrs, core.NewPagination(page, total), nil
}

func (svc *service) Update(ctx context.Context, id string, ua UpdateAddress) (Address, error) {
	var addr Address
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.repo.GetAddress(ctx, id, exec)
		if err != nil {
			return err
		}
		addr = ua.apply(orig)
		addr.UpdatedAt = time.Now().UTC()

		if ua.IsPrimary != nil && *ua.IsPrimary {
			if err = svc.repo.UnsetPrimaryAddresses(ctx, addr.ParentID, addr.ID, exec); err != nil {
				return errors.Wrap(err, "unsetting primary addresses")
			}
		}
		addr, err = svc.repo.UpdateAddress(ctx, addr, exec)
		return errors.Wrap(err, "updating address")
	})
	if err != nil {
		return Address{}, err
	}
	return addr, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	if err := svc.repo.DeleteAddress(ctx, id); err != nil {
		return errors.Wrap(err, "deleting address")
	}
	svc.logger.Info("address deleted", map[string]interface{}{"addressId": id})
	return nil
}

func (svc *service) Statistics(ctx context.Context) (Statistics, error) {
	return svc.repo.AddressStatistics(ctx)
}
