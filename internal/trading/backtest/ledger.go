package backtest

import (
	"fmt"
	"sort"

	"github.com/Alias1177/Backtester/models"
)

// ledger holds open positions keyed by symbol. A symbol is either FLAT (absent),
// LONG or SHORT; there is no direct LONG <-> SHORT transition.
type ledger struct {
	positions map[string]*models.Position
}

func newLedger() *ledger {
	return &ledger{positions: make(map[string]*models.Position)}
}

func (l *ledger) get(symbol string) (*models.Position, bool) {
	p, ok := l.positions[symbol]
	return p, ok
}

func (l *ledger) open(p *models.Position) error {
	if existing, ok := l.positions[p.Symbol]; ok {
		return fmt.Errorf("%w: %s already %s", ErrPositionExists, p.Symbol, existing.Direction)
	}
	l.positions[p.Symbol] = p
	return nil
}

func (l *ledger) remove(symbol string) {
	delete(l.positions, symbol)
}

func (l *ledger) len() int {
	return len(l.positions)
}

// symbols returns open symbols in sorted order so iteration is deterministic
func (l *ledger) symbols() []string {
	out := make([]string, 0, len(l.positions))
	for s := range l.positions {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// simulation is the state owned by a single run
type simulation struct {
	cfg       models.BacktestConfig
	cash      float64
	peak      float64
	positions *ledger
	trades    []models.Trade
	equity    []models.EquitySnapshot
	decisions []models.Decision
}

func newSimulation(cfg models.BacktestConfig) *simulation {
	return &simulation{
		cfg:       cfg,
		cash:      cfg.InitialCapital,
		peak:      cfg.InitialCapital,
		positions: newLedger(),
		trades:    []models.Trade{},
		equity:    []models.EquitySnapshot{},
	}
}

// record keeps every outcome except plain no-ops
func (s *simulation) record(d models.Decision) {
	if d.Outcome == models.OutcomeNoop {
		return
	}
	s.decisions = append(s.decisions, d)
}

func (s *simulation) snapshot(date string) {
	if s.cash > s.peak {
		s.peak = s.cash
	}
	s.equity = append(s.equity, models.EquitySnapshot{
		Date:          date,
		Cash:          s.cash,
		OpenPositions: s.positions.len(),
	})
}
