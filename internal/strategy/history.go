package strategy

import (
	"sort"

	"github.com/Alias1177/Backtester/models"
)

// history indexes each symbol's bars in date order so a strategy can look at
// everything up to a date and nothing after it
type history struct {
	dates map[string][]string
	bars  map[string][]models.Bar
}

func newHistory(data models.HistoricalData) *history {
	dates := make([]string, 0, len(data))
	for date := range data {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	h := &history{
		dates: make(map[string][]string),
		bars:  make(map[string][]models.Bar),
	}
	for _, date := range dates {
		for symbol, bar := range data[date] {
			h.dates[symbol] = append(h.dates[symbol], date)
			h.bars[symbol] = append(h.bars[symbol], bar)
		}
	}
	return h
}

// upTo returns the symbol's bars dated on or before date
func (h *history) upTo(symbol, date string) []models.Bar {
	dates := h.dates[symbol]
	n := sort.Search(len(dates), func(i int) bool { return dates[i] > date })
	return h.bars[symbol][:n]
}
