package route

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shulebus/core"
)

type TripType string

// Trip types
const (
	MorningPickup   TripType = "MORNING_PICKUP"
	EveningDropoff  TripType = "EVENING_DROPOFF"
	FieldTrip       TripType = "FIELD_TRIP"
	ExtraCurricular TripType = "EXTRA_CURRICULUM"
	Emergency       TripType = "EMERGENCY"
)

type RiderType string

// Rider types
const (
	RiderDaily      RiderType = "DAILY"
	RiderOccasional RiderType = "OCCASIONAL"
)

var (
	TripTypes  = []string{string(MorningPickup), string(EveningDropoff), string(FieldTrip), string(ExtraCurricular), string(Emergency)}
	RiderTypes = []string{string(RiderDaily), string(RiderOccasional)}
)

type RouteStudent struct {
	StudentID string    `json:"studentId" validate:"required,notblank"`
	RiderType RiderType `json:"riderType" validate:"omitempty,ridertype"`
}

type Route struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	SchoolID    string         `json:"schoolId"`
	TripType    TripType       `json:"tripType"`
	Description string         `json:"description,omitempty"`
	Status      string         `json:"status,omitempty"`
	BusID       *string        `json:"busId"`
	DriverID    *string        `json:"driverId"`
	MinderID    *string        `json:"minderId"`
	IsActive    bool           `json:"isActive"`
	Students    []RouteStudent `json:"students"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// NewRoute contains information needed to create a new Route.
type NewRoute struct {
	Name        string         `json:"name" validate:"required,notblank,max=100"`
	SchoolID    string         `json:"schoolId" validate:"required,notblank"`
	TripType    TripType       `json:"tripType" validate:"required,triptype"`
	Description string         `json:"description" validate:"max=500"`
	Status      string         `json:"status" validate:"max=20"`
	BusID       string         `json:"busId"`
	DriverID    string         `json:"driverId"`
	MinderID    string         `json:"minderId"`
	Students    []RouteStudent `json:"students" validate:"omitempty,dive"`
	IsActive    *bool          `json:"isActive"`
}

func (nr *NewRoute) Validate(validate *validator.Validate) error {
	nr.Name = core.CleanString(nr.Name)
	nr.Description = core.CleanString(nr.Description)
	for i := range nr.Students {
		if nr.Students[i].RiderType == "" {
			nr.Students[i].RiderType = RiderDaily
		}
	}
	return validate.Struct(nr)
}

// UpdateRoute defines what information may be provided to modify an existing Route.
// A nil Students leaves the roster untouched; an empty one clears it.
type UpdateRoute struct {
	Name        *string        `json:"name" validate:"omitempty,notblank,max=100"`
	SchoolID    *string        `json:"schoolId" validate:"omitempty,notblank"`
	TripType    *TripType      `json:"tripType" validate:"omitempty,triptype"`
	Description *string        `json:"description" validate:"omitempty,max=500"`
	Status      *string        `json:"status" validate:"omitempty,max=20"`
	BusID       core.RefPatch  `json:"busId"`
	DriverID    core.RefPatch  `json:"driverId"`
	MinderID    core.RefPatch  `json:"minderId"`
	Students    []RouteStudent `json:"students" validate:"omitempty,dive"`
	IsActive    *bool          `json:"isActive"`
}

func (ur *UpdateRoute) Validate(validate *validator.Validate) error {
	for i := range ur.Students {
		if ur.Students[i].RiderType == "" {
			ur.Students[i].RiderType = RiderDaily
		}
	}
	return validate.Struct(ur)
}

func (ur UpdateRoute) apply(r Route) Route {
	if ur.Name != nil {
		r.Name = core.CleanString(*ur.Name)
	}
	if ur.SchoolID != nil {
		r.SchoolID = *ur.SchoolID
	}
	if ur.TripType != nil {
		r.TripType = *ur.TripType
	}
	if ur.Description != nil {
		r.Description = core.CleanString(*ur.Description)
	}
	if ur.Status != nil {
		r.Status = *ur.Status
	}
	r.BusID = ur.BusID.Apply(r.BusID)
	r.DriverID = ur.DriverID.Apply(r.DriverID)
	r.MinderID = ur.MinderID.Apply(r.MinderID)
	if ur.Students != nil {
		r.Students = ur.Students
	}
	if ur.IsActive != nil {
		r.IsActive = *ur.IsActive
	}
	return r
}

type QueryFilter struct {
	SchoolID string `query:"schoolId"`
}
