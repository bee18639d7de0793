package farm

import (
	"sort"
	"time"
)

// window is a boost interval [start, end) speeding time up by mult.
type window struct {
	start, end time.Time
	mult       float64
}

// effectiveElapsed returns the simulated time elapsed between `from` and `to`:
// wall time plus (mult-1) x overlap for every window.
func effectiveElapsed(from, to time.Time, windows []window) time.Duration {
	if !to.After(from) {
		return 0
	}
	elapsed := to.Sub(from)
	for _, w := range windows {
		start, end := later(w.start, from), earlier(w.end, to)
		if end.After(start) && w.mult > 1 {
			elapsed += time.Duration(float64(end.Sub(start)) * (w.mult - 1))
		}
	}
	return elapsed
}

// readyAt returns the earliest instant at which effectiveElapsed(from, t) >= need.
// It walks the window breakpoints, each segment running at 1 + sum(mult-1) of its covering windows.
func readyAt(from time.Time, need time.Duration, windows []window) time.Time {
	if need <= 0 {
		return from
	}

	points := make([]time.Time, 0, 2*len(windows))
	for _, w := range windows {
		if w.mult <= 1 || !w.end.After(from) {
			continue
		}
		if w.start.After(from) {
			points = append(points, w.start)
		}
		points = append(points, w.end)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Before(points[j]) })

	remaining := float64(need)
	cur := from
	for _, p := range points {
		if !p.After(cur) {
			continue
		}
		rate := rateAt(cur, windows)
		segment := float64(p.Sub(cur)) * rate
		if segment >= remaining {
			return cur.Add(ceilDuration(remaining / rate))
		}
		remaining -= segment
		cur = p
	}
	return cur.Add(ceilDuration(remaining / rateAt(cur, windows)))
}

// rateAt returns the speed of time at instant t (valid until the next breakpoint).
func rateAt(t time.Time, windows []window) float64 {
	rate := 1.0
	for _, w := range windows {
		if !t.Before(w.start) && t.Before(w.end) && w.mult > 1 {
			rate += w.mult - 1
		}
	}
	return rate
}

// progress returns how far (0..1) an entity started at `from` needing `need` is at `now`.
func progress(from, now time.Time, need time.Duration, windows []window) float64 {
	if need <= 0 {
		return 1
	}
	p := float64(effectiveElapsed(from, now, windows)) / float64(need)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

func ceilDuration(ns float64) time.Duration {
	d := time.Duration(ns)
	if float64(d) < ns {
		d++
	}
	return d
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
