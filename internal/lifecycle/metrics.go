package lifecycle

import (
	"math"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/production/model"
)

// Metrics 看板统计
type Metrics struct {
	Total          int `json:"total" yaml:"total"`
	Active         int `json:"activeOrders" yaml:"activeOrders"`
	InProgress     int `json:"inProgress" yaml:"inProgress"`
	CompletedToday int `json:"completedToday" yaml:"completedToday"`
	Efficiency     int `json:"efficiency" yaml:"efficiency"`
}

// Summarize counts Planned and Started orders as active. Efficiency is the
// rounded percentage of completed orders.
func Summarize(orders []model.ProductionOrder, now time.Time) Metrics {
	m := Metrics{Total: len(orders)}
	completed := 0
	y, mo, d := now.Date()
	for _, o := range orders {
		switch o.Status {
		case model.StatusPlanned:
			m.Active++
		case model.StatusStarted:
			m.Active++
			m.InProgress++
		case model.StatusCompleted:
			completed++
			if o.EndDate != nil {
				ey, emo, ed := o.EndDate.In(now.Location()).Date()
				if ey == y && emo == mo && ed == d {
					m.CompletedToday++
				}
			}
		}
	}
	total := len(orders)
	if total == 0 {
		total = 1
	}
	m.Efficiency = int(math.Round(float64(completed) / float64(total) * 100))
	return m
}

// Progress is the stored value when the backend sends one, otherwise it is
// derived from the status.
func Progress(o model.ProductionOrder) int {
	if o.Progress != nil {
		return *o.Progress
	}
	switch o.Status {
	case model.StatusStarted:
		return 50
	case model.StatusCompleted:
		return 100
	}
	return 0
}
