package domain

import "time"

// Base carries the fields every stored document has.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Meta exposes the common fields to generic helpers.
func (b *Base) Meta() *Base { return b }

// Touch stamps the document for a write at now.
func (b *Base) Touch(now time.Time) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

type Sector struct {
	Base
	Name        string `json:"name"`
	AprName     string `json:"aprName"`
	Region      string `json:"region,omitempty"`
	Description string `json:"description,omitempty"`
}

type Home struct {
	Base
	Name     string `json:"name"`
	Address  string `json:"address"`
	SectorID string `json:"sectorId"`
	OwnerID  string `json:"ownerId,omitempty"`
	Active   bool   `json:"active"`
	Members  int    `json:"members"`
	// Timezone is an IANA zone name; empty means the configured default.
	Timezone string `json:"timezone,omitempty"`
}

// Location resolves the home-local zone, falling back to def.
func (h *Home) Location(def *time.Location) *time.Location {
	if h != nil && h.Timezone != "" {
		if loc, err := time.LoadLocation(h.Timezone); err == nil {
			return loc
		}
	}
	if def == nil {
		return time.UTC
	}
	return def
}

const (
	SensorTypeFlow  = "flow"
	SensorTypeMeter = "meter"
)

type Sensor struct {
	Base
	Name        string     `json:"name"`
	Serial      string     `json:"serial"`
	HomeID      string     `json:"homeId"`
	Type        string     `json:"type"`
	Location    string     `json:"location,omitempty"`
	Active      bool       `json:"active"`
	InstalledAt *time.Time `json:"installedAt,omitempty"`
}

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleResident = "resident"
)

type User struct {
	Base
	Name         string `json:"name"`
	Rut          string `json:"rut"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
	Role         string `json:"role"`
	HomeID       string `json:"homeId,omitempty"`
	Active       bool   `json:"active"`
	PasswordHash string `json:"passwordHash,omitempty"`
}

// Measurement is an immutable reading produced by a sensor.
type Measurement struct {
	Base
	SensorID    string    `json:"sensorId"`
	HomeID      string    `json:"homeId"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Liters      float64   `json:"liters"`
	DurationSec float64   `json:"durationSec"`
	Unit        string    `json:"unit"`
	// IngestedBy is set when the measurement went through the ingestion
	// pipeline, whose caller already refreshed the rollup.
	IngestedBy string `json:"ingestedBy,omitempty"`
}

const IngestedByPipeline = "pipeline"

type SensorLiters struct {
	SensorID string  `json:"sensorId"`
	Liters   float64 `json:"liters"`
}

// DailyConsumption is the rollup of one home on one home-local calendar day.
type DailyConsumption struct {
	Base
	HomeID            string         `json:"homeId"`
	Date              string         `json:"date"`
	TotalLiters       float64        `json:"totalLiters"`
	BySensor          []SensorLiters `json:"bySensor"`
	MeasurementCount  int            `json:"measurementCount"`
	RecommendedLiters *float64       `json:"recommendedLiters,omitempty"`
	LimitLiters       *float64       `json:"limitLiters,omitempty"`
	Alerts            []string       `json:"alerts"`
}

// HasAlert reports whether id is already referenced by the rollup.
func (d *DailyConsumption) HasAlert(id string) bool {
	for _, a := range d.Alerts {
		if a == id {
			return true
		}
	}
	return false
}

const (
	AlertLimitExceeded    = "limit_exceeded"
	AlertAboveRecommended = "above_recommended"

	AlertSourceSystem   = "system"
	AlertSourceOperator = "operator"
)

type Alert struct {
	Base
	HomeID      string     `json:"homeId"`
	Type        string     `json:"type"`
	Message     string     `json:"message"`
	TriggeredAt time.Time  `json:"triggeredAt"`
	Resolved    bool       `json:"resolved"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
	Date        string     `json:"date,omitempty"`
	Source      string     `json:"source"`
}

// DateLayout is the calendar-day format used for rollups and system alerts.
const DateLayout = "2006-01-02"

// UniqueKey reserves a natural key (a sector name within its APR, a user RUT
// or email) for the document that owns it. Its id is derived from Kind and
// Value, so a second reservation of the same key fails its conditional insert.
type UniqueKey struct {
	Base
	Kind  string `json:"kind"`
	Value string `json:"value"`
	Owner string `json:"owner"`
}
