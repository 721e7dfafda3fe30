package domain

import (
	"sort"
	"time"
)

type Dispatch struct {
	Start    time.Time
	End      time.Time
	DeltaKWh float64
	Type     string
	Source   string
	Location string
	DeviceID string
}

func (d Dispatch) Covers(now time.Time) bool {
	return !now.Before(d.Start) && now.Before(d.End)
}

// DispatchWindow holds the dispatch in progress and the next one to start.
type DispatchWindow struct {
	Current *Dispatch
	Next    *Dispatch
}

func (w DispatchWindow) Dispatching() bool {
	return w.Current != nil
}

func PlannedWindow(planned []Dispatch, now time.Time) DispatchWindow {
	ordered := make([]Dispatch, 0, len(planned))
	for _, dispatch := range planned {
		if dispatch.Start.IsZero() || dispatch.End.IsZero() {
			continue
		}
		ordered = append(ordered, dispatch)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start.Before(ordered[j].Start)
	})

	var window DispatchWindow
	for i := range ordered {
		dispatch := ordered[i]
		switch {
		case window.Current == nil && dispatch.Covers(now):
			window.Current = &dispatch
		case window.Next == nil && dispatch.Start.After(now):
			window.Next = &dispatch
		}
		if window.Current != nil && window.Next != nil {
			break
		}
	}

	return window
}
