package medicine

import (
	"time"

	"github.com/geocoder89/lifeplus/internal/apperr"
	"github.com/google/uuid"
)

type Type string

const (
	TypePill   Type = "PILL"
	TypeLiquid Type = "LIQUID"
)

func (t Type) IsValid() bool {
	switch t {
	case TypePill, TypeLiquid:
		return true
	default:
		return false
	}
}

type Medicine struct {
	ID                string     `json:"id"`
	UserID            string     `json:"userId"`
	Name              string     `json:"name"`
	Type              Type       `json:"type"`
	IntervalHours     int        `json:"intervalHours"`
	LastTakenAt       *time.Time `json:"lastTakenAt"`
	ContinuousUse     bool       `json:"continuousUse"`
	TreatmentFinished bool       `json:"treatmentFinished"`
	TotalPills        *int       `json:"totalPills,omitempty"`
	PillsPerDose      *int       `json:"pillsPerDose,omitempty"`
	TotalMl           *float64   `json:"totalMl,omitempty"`
	MlPerDose         *float64   `json:"mlPerDose,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Interval is the configured spacing between two scheduled doses.
func (m Medicine) Interval() time.Duration {
	return time.Duration(m.IntervalHours) * time.Hour
}

// NextDose is the scheduled time of the next on-time dose, nil before the
// first recorded dose.
func (m Medicine) NextDose() *time.Time {
	if m.LastTakenAt == nil {
		return nil
	}
	next := m.LastTakenAt.Add(m.Interval())
	return &next
}

// HistoryEntry is an immutable record of one dose.
type HistoryEntry struct {
	ID         string    `json:"id"`
	MedicineID string    `json:"medicineId"`
	TakenAt    time.Time `json:"takenAt"`
	OnTime     bool      `json:"onTime"`
	CreatedAt  time.Time `json:"createdAt"`
}

func NewHistoryEntry(medicineID string, takenAt time.Time, onTime bool) HistoryEntry {
	return HistoryEntry{
		ID:         uuid.NewString(),
		MedicineID: medicineID,
		TakenAt:    takenAt.UTC(),
		OnTime:     onTime,
		CreatedAt:  time.Now().UTC(),
	}
}

var (
	ErrNotFound         = apperr.New(apperr.KindNotFound, "medicine_not_found", "medicine not found")
	ErrHistoryNotFound  = apperr.New(apperr.KindNotFound, "history_not_found", "history entry not found")
	ErrNoPriorDose      = apperr.New(apperr.KindValidation, "no_prior_dose", "no previous dose recorded to compute the scheduled time")
	ErrMissingTimestamp = apperr.New(apperr.KindValidation, "missing_taken_at", "takenAt is required when the dose is not on time")
	ErrNonMonotonicDose = apperr.New(apperr.KindConflict, "non_monotonic_dose", "a dose cannot be recorded at or before the last recorded dose")
	ErrInvalidStock     = apperr.New(apperr.KindValidation, "invalid_stock", "stock counters do not match the medicine type")
)

type CreateRequest struct {
	Name              string     `json:"name" binding:"required,min=1,max=120"`
	Type              Type       `json:"type" binding:"required,oneof=PILL LIQUID"`
	IntervalHours     int        `json:"intervalHours" binding:"required,min=1,max=720"`
	LastTakenAt       *time.Time `json:"lastTakenAt"`
	ContinuousUse     *bool      `json:"continuousUse" binding:"required"`
	TreatmentFinished bool       `json:"treatmentFinished"`
	TotalPills        *int       `json:"totalPills" binding:"omitempty,min=0"`
	PillsPerDose      *int       `json:"pillsPerDose" binding:"omitempty,min=1"`
	TotalMl           *float64   `json:"totalMl" binding:"omitempty,min=0"`
	MlPerDose         *float64   `json:"mlPerDose" binding:"omitempty,gt=0"`
}

// UpdateRequest is a partial update. The dose cursor is deliberately absent:
// only recorded doses move it.
type UpdateRequest struct {
	Name              *string  `json:"name" binding:"omitempty,min=1,max=120"`
	Type              *Type    `json:"type" binding:"omitempty,oneof=PILL LIQUID"`
	IntervalHours     *int     `json:"intervalHours" binding:"omitempty,min=1,max=720"`
	ContinuousUse     *bool    `json:"continuousUse"`
	TreatmentFinished *bool    `json:"treatmentFinished"`
	TotalPills        *int     `json:"totalPills" binding:"omitempty,min=0"`
	PillsPerDose      *int     `json:"pillsPerDose" binding:"omitempty,min=1"`
	TotalMl           *float64 `json:"totalMl" binding:"omitempty,min=0"`
	MlPerDose         *float64 `json:"mlPerDose" binding:"omitempty,gt=0"`
}

type RecordDoseRequest struct {
	TakenAt *time.Time `json:"takenAt"`
	OnTime  bool       `json:"onTime"`
}

func NewFromCreateRequest(userID string, req CreateRequest) Medicine {
	now := time.Now().UTC()

	var last *time.Time
	if req.LastTakenAt != nil {
		t := req.LastTakenAt.UTC()
		last = &t
	}

	return Medicine{
		ID:                uuid.NewString(),
		UserID:            userID,
		Name:              req.Name,
		Type:              req.Type,
		IntervalHours:     req.IntervalHours,
		LastTakenAt:       last,
		ContinuousUse:     req.ContinuousUse != nil && *req.ContinuousUse,
		TreatmentFinished: req.TreatmentFinished,
		TotalPills:        req.TotalPills,
		PillsPerDose:      req.PillsPerDose,
		TotalMl:           req.TotalMl,
		MlPerDose:         req.MlPerDose,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Apply merges a partial update into m.
func (m Medicine) Apply(req UpdateRequest) Medicine {
	if req.Name != nil {
		m.Name = *req.Name
	}
	if req.Type != nil && *req.Type != m.Type {
		// switching dosage form drops the old form's stock counters
		m.Type = *req.Type
		m.TotalPills, m.PillsPerDose, m.TotalMl, m.MlPerDose = nil, nil, nil, nil
	}
	if req.IntervalHours != nil {
		m.IntervalHours = *req.IntervalHours
	}
	if req.ContinuousUse != nil {
		m.ContinuousUse = *req.ContinuousUse
	}
	if req.TreatmentFinished != nil {
		m.TreatmentFinished = *req.TreatmentFinished
	}
	if req.TotalPills != nil {
		m.TotalPills = req.TotalPills
	}
	if req.PillsPerDose != nil {
		m.PillsPerDose = req.PillsPerDose
	}
	if req.TotalMl != nil {
		m.TotalMl = req.TotalMl
	}
	if req.MlPerDose != nil {
		m.MlPerDose = req.MlPerDose
	}
	m.UpdatedAt = time.Now().UTC()
	return m
}

// ValidateStock rejects pill counters on a liquid medicine and vice versa.
func (m Medicine) ValidateStock() error {
	switch m.Type {
	case TypePill:
		if m.TotalMl != nil || m.MlPerDose != nil {
			return ErrInvalidStock
		}
	case TypeLiquid:
		if m.TotalPills != nil || m.PillsPerDose != nil {
			return ErrInvalidStock
		}
	}
	return nil
}
