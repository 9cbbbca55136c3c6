// Package dataset loads historical bars from CSV files laid out as
// date,symbol,open,high,low,close,volume with a header row.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Alias1177/Backtester/models"
)

// ErrBadRow is wrapped by every row-level parse failure
var ErrBadRow = errors.New("malformed row")

var header = []string{"date", "symbol", "open", "high", "low", "close", "volume"}

// LoadFile reads a CSV file into HistoricalData
func LoadFile(path string) (models.HistoricalData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load parses CSV rows into HistoricalData. Symbols are upper-cased; a
// duplicate date/symbol pair is rejected.
func Load(r io.Reader) (models.HistoricalData, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(header)
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	first, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrBadRow)
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i, col := range header {
		if !strings.EqualFold(strings.TrimSpace(first[i]), col) {
			return nil, fmt.Errorf("%w: header column %d is %q, want %q", ErrBadRow, i+1, first[i], col)
		}
	}

	data := make(models.HistoricalData)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadRow, err)
		}

		date, symbol, bar, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrBadRow, line, err)
		}

		day, ok := data[date]
		if !ok {
			day = make(map[string]models.Bar)
			data[date] = day
		}
		if _, dup := day[symbol]; dup {
			return nil, fmt.Errorf("%w: line %d: duplicate %s on %s", ErrBadRow, line, symbol, date)
		}
		day[symbol] = bar
	}

	return data, nil
}

func parseRecord(record []string) (string, string, models.Bar, error) {
	date := strings.TrimSpace(record[0])
	if _, err := models.ParseDate(date); err != nil {
		return "", "", models.Bar{}, err
	}

	symbol := strings.ToUpper(strings.TrimSpace(record[1]))
	if symbol == "" {
		return "", "", models.Bar{}, errors.New("empty symbol")
	}

	var bar models.Bar
	fields := []*float64{&bar.Open, &bar.High, &bar.Low, &bar.Close}
	for i, dst := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[i+2]), 64)
		if err != nil {
			return "", "", models.Bar{}, fmt.Errorf("%s: %w", header[i+2], err)
		}
		*dst = v
	}
	if bar.Low > bar.High {
		return "", "", models.Bar{}, fmt.Errorf("low %.4f above high %.4f", bar.Low, bar.High)
	}

	if raw := strings.TrimSpace(record[6]); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return "", "", models.Bar{}, fmt.Errorf("volume: %w", err)
		}
		bar.Volume = v
	}

	return date, symbol, bar, nil
}
