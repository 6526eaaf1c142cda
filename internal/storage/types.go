package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// ChargingRecord is one charging session as entered by the user.
type ChargingRecord struct {
	ID              string    `json:"id"`
	Date            time.Time `json:"date"`
	EnergyKWh       float64   `json:"energyKwh"`
	DurationMinutes int       `json:"durationMinutes"`
	Cost            float64   `json:"cost"`
	Balance         *float64  `json:"balance,omitempty"` // as reported by the card or app, nil when unknown
	Location        string    `json:"location,omitempty"`
	Notes           string    `json:"notes,omitempty"`
}

// Draft is a record's field set before an ID has been assigned.
type Draft struct {
	Date            time.Time
	EnergyKWh       float64
	DurationMinutes int
	Cost            float64
	Balance         *float64
	Location        string
	Notes           string
}

var (
	ErrZeroDate         = errors.New("date is required")
	ErrNegativeEnergy   = errors.New("energy must be a non-negative number")
	ErrNegativeDuration = errors.New("duration must be non-negative")
	ErrNegativeCost     = errors.New("cost must be a non-negative number")
	ErrInvalidBalance   = errors.New("balance must be a finite number")
)

// Validate checks the draft's fields. The store does not call it; callers
// building a draft from user input do.
func (d Draft) Validate() error {
	if d.Date.IsZero() {
		return ErrZeroDate
	}
	if !nonNegative(d.EnergyKWh) {
		return ErrNegativeEnergy
	}
	if d.DurationMinutes < 0 {
		return ErrNegativeDuration
	}
	if !nonNegative(d.Cost) {
		return ErrNegativeCost
	}
	if d.Balance != nil && (math.IsNaN(*d.Balance) || math.IsInf(*d.Balance, 0)) {
		return ErrInvalidBalance
	}
	return nil
}

// Draft returns the record's fields without its ID.
func (r ChargingRecord) Draft() Draft {
	return Draft{
		Date:            r.Date,
		EnergyKWh:       r.EnergyKWh,
		DurationMinutes: r.DurationMinutes,
		Cost:            r.Cost,
		Balance:         cloneFloat(r.Balance),
		Location:        r.Location,
		Notes:           r.Notes,
	}
}

// UnmarshalJSON accepts a fractional durationMinutes and rounds it, so one
// odd value in a stored collection does not make the whole array unreadable.
func (r *ChargingRecord) UnmarshalJSON(data []byte) error {
	type plain ChargingRecord
	aux := struct {
		*plain
		DurationMinutes float64 `json:"durationMinutes"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.DurationMinutes = roundMinutes(aux.DurationMinutes)
	return nil
}

func roundMinutes(v float64) int {
	v = math.Round(v)
	switch {
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	}
	return int(v)
}

func (r ChargingRecord) String() string {
	return fmt.Sprintf("%s %s %.2fkWh %dmin %.2f", r.ID, r.Date.Format(time.RFC3339), r.EnergyKWh, r.DurationMinutes, r.Cost)
}

// clone returns a copy that shares no memory with r.
func (r ChargingRecord) clone() ChargingRecord {
	r.Balance = cloneFloat(r.Balance)
	return r
}

func newRecord(id string, d Draft) ChargingRecord {
	return ChargingRecord{
		ID:              id,
		Date:            d.Date.UTC(),
		EnergyKWh:       d.EnergyKWh,
		DurationMinutes: d.DurationMinutes,
		Cost:            d.Cost,
		Balance:         cloneFloat(d.Balance),
		Location:        d.Location,
		Notes:           d.Notes,
	}
}

// Float returns a pointer to v, for optional fields such as Balance.
func Float(v float64) *float64 {
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func nonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
