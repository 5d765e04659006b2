package stats

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"furniture-dashboard/internal/model"
)

const dayLayout = "2006-01-02"

// Window is a trailing number of calendar days, today included.
type Window int

const (
	Week    Window = 7
	Month   Window = 30
	Quarter Window = 90
)

var windows = []Window{Week, Month, Quarter}

// ParseWindow accepts "7", "30", "90" with an optional "d" suffix. An empty
// value selects the week.
func ParseWindow(raw string) (Window, error) {
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "d")
	if raw == "" {
		return Week, nil
	}

	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid window %q", raw)
	}
	for _, w := range windows {
		if int(w) == days {
			return w, nil
		}
	}
	return 0, fmt.Errorf("window must be one of 7, 30 or 90 days, got %d", days)
}

type Bucket struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Timeline counts created timestamps per calendar day of now's location
// over the trailing window. Every day of the window is present, empty days
// with a zero count, oldest first.
func Timeline(created []time.Time, window Window, now time.Time) []Bucket {
	loc := now.Location()
	today := startOfDay(now)
	first := today.AddDate(0, 0, -(int(window) - 1))

	buckets := make([]Bucket, 0, int(window))
	index := make(map[string]int, int(window))
	for day := first; !day.After(today); day = day.AddDate(0, 0, 1) {
		key := day.Format(dayLayout)
		index[key] = len(buckets)
		buckets = append(buckets, Bucket{Date: key})
	}

	for _, ts := range created {
		if ts.IsZero() {
			continue
		}
		key := ts.In(loc).Format(dayLayout)
		if i, ok := index[key]; ok {
			buckets[i].Count++
		}
	}

	return buckets
}

// TimelineOf is Timeline over the creation dates of items.
func TimelineOf[T model.Dated](items []T, window Window, now time.Time) []Bucket {
	created := make([]time.Time, 0, len(items))
	for _, item := range items {
		created = append(created, item.Created())
	}
	return Timeline(created, window, now)
}

type StatusCount struct {
	Status model.FurnitureStatus `json:"status"`
	Count  int                   `json:"count"`
}

// StatusDistribution counts furnitures per status in display order. Unknown
// statuses are ignored.
func StatusDistribution(items []model.Furniture) []StatusCount {
	counts := make(map[model.FurnitureStatus]int, len(model.FurnitureStatuses))
	for _, item := range items {
		counts[item.Status]++
	}

	out := make([]StatusCount, 0, len(model.FurnitureStatuses))
	for _, status := range model.FurnitureStatuses {
		out = append(out, StatusCount{Status: status, Count: counts[status]})
	}
	return out
}

// Summary is the data behind the dashboard home page.
type Summary struct {
	Window      int                 `json:"window"`
	Totals      map[string]int      `json:"totals"`
	Timelines   map[string][]Bucket `json:"timelines"`
	Statuses    []StatusCount       `json:"statuses"`
	GeneratedAt time.Time           `json:"generatedAt"`
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
