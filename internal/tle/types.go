package tle

import "time"

// ElementSet is one decoded two-line element set. Angles are in degrees and
// mean motion in revolutions per day, exactly as written in the record.
type ElementSet struct {
	Name           string
	CatalogNumber  int
	Classification byte
	Designator     string // international designator, e.g. "98067A"

	EpochYear int     // two-digit year as written
	EpochDay  float64 // fractional day of year, 1-based
	Epoch     time.Time

	MeanMotionDot  float64 // first derivative of mean motion / 2 (rev/day²)
	MeanMotionDDot float64 // second derivative of mean motion / 6 (rev/day³)
	BStar          float64 // drag term (1/earth radii)
	EphemerisType  int
	ElementSetNo   int

	Inclination  float64
	RAAN         float64
	Eccentricity float64
	ArgPerigee   float64
	MeanAnomaly  float64
	MeanMotion   float64
	RevNumber    int

	Line1 string
	Line2 string
}

// EpochRange represents the minimum and maximum epoch times in a dataset.
type EpochRange struct {
	Min time.Time
	Max time.Time
}

// Dataset is a catalog of element sets fetched from one or more sources.
type Dataset struct {
	Source     string
	FetchedAt  time.Time
	EpochRange EpochRange
	Satellites []ElementSet
}

// NewDataset builds a dataset and computes its epoch range.
func NewDataset(source string, fetchedAt time.Time, sets []ElementSet) *Dataset {
	ds := &Dataset{Source: source, FetchedAt: fetchedAt, Satellites: sets}
	for i, s := range sets {
		if i == 0 || s.Epoch.Before(ds.EpochRange.Min) {
			ds.EpochRange.Min = s.Epoch
		}
		if i == 0 || s.Epoch.After(ds.EpochRange.Max) {
			ds.EpochRange.Max = s.Epoch
		}
	}
	return ds
}

// Lookup returns the element set with the given catalog number.
func (d *Dataset) Lookup(catalogNumber int) (ElementSet, bool) {
	for _, s := range d.Satellites {
		if s.CatalogNumber == catalogNumber {
			return s, true
		}
	}
	return ElementSet{}, false
}
