package http

import (
	"time"

	"github.com/aquatracking/aquatracking/internal/domain"
	"github.com/aquatracking/aquatracking/internal/validate"
)

type CreateHomeRequest struct {
	Name     string `json:"name" validate:"required"`
	Address  string `json:"address" validate:"required"`
	SectorID string `json:"sectorId" validate:"required"`
	OwnerID  string `json:"ownerId"`
	Active   *bool  `json:"active"`
	Members  int    `json:"members" validate:"min=1"`
	Timezone string `json:"timezone" validate:"omitempty,iana_tz"`
}

func (r CreateHomeRequest) toDomain() *domain.Home {
	return &domain.Home{
		Name:     r.Name,
		Address:  r.Address,
		SectorID: r.SectorID,
		OwnerID:  r.OwnerID,
		Active:   r.Active == nil || *r.Active,
		Members:  r.Members,
		Timezone: r.Timezone,
	}
}

type CreateSectorRequest struct {
	Name        string `json:"name" validate:"required"`
	AprName     string `json:"aprName" validate:"required"`
	Region      string `json:"region"`
	Description string `json:"description"`
}

type CreateSensorRequest struct {
	Name        string     `json:"name" validate:"required"`
	Serial      string     `json:"serial" validate:"required"`
	HomeID      string     `json:"homeId" validate:"required"`
	Type        string     `json:"type" validate:"required,oneof=flow meter"`
	Location    string     `json:"location"`
	Active      *bool      `json:"active"`
	InstalledAt *time.Time `json:"installedAt"`
}

func (r CreateSensorRequest) toDomain() *domain.Sensor {
	return &domain.Sensor{
		Name:        r.Name,
		Serial:      r.Serial,
		HomeID:      r.HomeID,
		Type:        r.Type,
		Location:    r.Location,
		Active:      r.Active == nil || *r.Active,
		InstalledAt: r.InstalledAt,
	}
}

type CreateUserRequest struct {
	Name     string `json:"name" validate:"required"`
	Rut      string `json:"rut" validate:"required,rut"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone"`
	Role     string `json:"role" validate:"required,oneof=admin operator resident"`
	HomeID   string `json:"homeId"`
	Active   *bool  `json:"active"`
	Password string `json:"password" validate:"required,min=8"`
}

func (r CreateUserRequest) toDomain() *domain.User {
	return &domain.User{
		Name:   r.Name,
		Rut:    r.Rut,
		Email:  r.Email,
		Phone:  r.Phone,
		Role:   r.Role,
		HomeID: r.HomeID,
		Active: r.Active == nil || *r.Active,
	}
}

// UserResponse is a user as returned to clients: without the password hash
// and with a display form of the phone number.
type UserResponse struct {
	domain.User
	PhoneDisplay string `json:"phoneDisplay,omitempty"`
}

func newUserResponse(u *domain.User) UserResponse {
	out := UserResponse{User: *u}
	out.PasswordHash = ""
	if u.Phone != "" {
		out.PhoneDisplay = validate.FormatPhone(u.Phone)
	}
	return out
}

type CreateMeasurementRequest struct {
	SensorID    string    `json:"sensorId" validate:"required"`
	HomeID      string    `json:"homeId" validate:"required"`
	StartTime   time.Time `json:"startTime" validate:"required"`
	EndTime     time.Time `json:"endTime" validate:"required,gtefield=StartTime"`
	Liters      float64   `json:"liters" validate:"gte=0"`
	DurationSec float64   `json:"durationSec" validate:"gte=0"`
	Unit        string    `json:"unit"`
}

func (r CreateMeasurementRequest) toDomain() *domain.Measurement {
	return &domain.Measurement{
		SensorID:    r.SensorID,
		HomeID:      r.HomeID,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Liters:      r.Liters,
		DurationSec: r.DurationSec,
		Unit:        r.Unit,
	}
}

type RecomputeRequest struct {
	HomeID string `json:"homeId" validate:"required"`
	Date   string `json:"date" validate:"required,datetime=2006-01-02"`
}

type CreateAlertRequest struct {
	HomeID      string     `json:"homeId" validate:"required"`
	Type        string     `json:"type" validate:"required"`
	Message     string     `json:"message" validate:"required"`
	TriggeredAt *time.Time `json:"triggeredAt"`
	Resolved    bool       `json:"resolved"`
}

func (r CreateAlertRequest) toDomain() *domain.Alert {
	a := &domain.Alert{HomeID: r.HomeID, Type: r.Type, Message: r.Message, Resolved: r.Resolved}
	if r.TriggeredAt != nil {
		a.TriggeredAt = *r.TriggeredAt
	}
	return a
}
