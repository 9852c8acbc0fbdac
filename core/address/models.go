package address

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shulebus/core"
)

const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
)

var Statuses = []string{StatusActive, StatusInactive}

type Address struct {
	ID          string    `json:"id"`
	ParentID    string    `json:"parentId"`
	AddressType string    `json:"addressType"`
	Location    string    `json:"location"`
	Latitude    *float64  `json:"latitude"`
	Longitude   *float64  `json:"longitude"`
	Status      string    `json:"status"`
	IsPrimary   bool      `json:"isPrimary"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// HasCoordinates reports whether both latitude and longitude are known.
func (a Address) HasCoordinates() bool {
	return a.Latitude != nil && a.Longitude != nil
}

// GPS returns the "lat,lng" form of the coordinates, or nil when they are unknown.
func (a Address) GPS() *string {
	if !a.HasCoordinates() {
		return nil
	}
	gps := core.FormatGPS(*a.Latitude, *a.Longitude)
	return &gps
}

// NewAddress contains information needed to create a new Address.
type NewAddress struct {
	ParentID    string   `json:"parentId" validate:"required,notblank"`
	AddressType string   `json:"addressType" validate:"required,notblank,max=50"`
	Location    string   `json:"location" validate:"required,notblank,max=500"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,min=-180,max=180"`
	Status      string   `json:"status" validate:"omitempty,addressstatus"`
	IsPrimary   bool     `json:"isPrimary"`
}

func (na *NewAddress) Validate(validate *validator.Validate) error {
	na.ParentID = core.CleanString(na.ParentID)
	na.AddressType = core.CleanString(na.AddressType)
	na.Location = core.CleanString(na.Location)
	na.Status = core.CleanString(na.Status)
	if na.Status == "" {
		na.Status = StatusActive
	}
	return validate.Struct(na)
}

// UpdateAddress defines what information may be provided to modify an existing Address.
// Only non-nil fields are written.
type UpdateAddress struct {
	ParentID    *string  `json:"parentId" validate:"omitempty,notblank"`
	AddressType *string  `json:"addressType" validate:"omitempty,notblank,max=50"`
	Location    *string  `json:"location" validate:"omitempty,notblank,max=500"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,min=-180,max=180"`
	Status      *string  `json:"status" validate:"omitempty,addressstatus"`
	IsPrimary   *bool    `json:"isPrimary"`
}

func (ua *UpdateAddress) Validate(validate *validator.Validate) error {
	return validate.Struct(ua)
}

func (ua UpdateAddress) apply(addr Address) Address {
	if ua.ParentID != nil {
		addr.ParentID = core.CleanString(*ua.ParentID)
	}
	if ua.AddressType != nil {
		addr.AddressType = core.CleanString(*ua.AddressType)
	}
	if ua.Location != nil {
		addr.Location = core.CleanString(*ua.Location)
	}
	if ua.Latitude != nil {
		addr.Latitude = ua.Latitude
	}
	if ua.Longitude != nil {
		addr.Longitude = ua.Longitude
	}
	if ua.Status != nil {
		addr.Status = core.CleanString(*ua.Status)
	}
	if ua.IsPrimary != nil {
		addr.IsPrimary = *ua.IsPrimary
	}
	return addr
}

type QueryFilter struct {
	ParentID string `query:"parentId"`
}

type Statistics struct {
	Total   int `json:"total"`
	Primary int `json:"primary"`
	Active  int `json:"active"`
}
