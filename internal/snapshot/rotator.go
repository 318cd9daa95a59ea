package snapshot

import (
	"time"
)

// Rotator archives the live log once the calendar day changes. It is checked on
// every poll tick and compares days rather than wall-clock strings, so a tick that
// lands after midnight still triggers the rotation.
type Rotator struct {
	store   *Store
	current time.Time
}

// NewRotator creates a rotator bound to store.
func NewRotator(store *Store) *Rotator {
	return &Rotator{store: store}
}

// Check rotates when now falls on a later day than the one the live log covers.
// The first call infers that day from the oldest logged snapshot, so a process
// restarted after midnight still archives yesterday's log under yesterday's date.
func (r *Rotator) Check(now time.Time) (ArchiveResult, bool, error) {
	loc := r.store.Location()
	today := startOfDay(now, loc)

	if r.current.IsZero() {
		day, err := r.logDay()
		if err != nil {
			return ArchiveResult{}, false, err
		}
		if day.IsZero() {
			day = today
		}
		r.current = day
	}

	if !today.After(r.current) {
		return ArchiveResult{}, false, nil
	}

	result, rotated, err := r.store.Rotate(r.current)
	if err != nil {
		return result, false, err
	}
	r.current = today
	return result, rotated, nil
}

// Day is the day the live log currently covers.
func (r *Rotator) Day() time.Time {
	return r.current
}

func (r *Rotator) logDay() (time.Time, error) {
	history, err := r.store.Load()
	if err != nil {
		return time.Time{}, err
	}
	if len(history) == 0 || history[0].Timestamp.IsZero() {
		return time.Time{}, nil
	}
	return startOfDay(history[0].Timestamp, r.store.Location()), nil
}
