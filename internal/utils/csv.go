// Package utils holds small shared helpers for moving candle data in and
// out of files.
package utils

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"copyTradeEngine/internal/domain"
)

var csvHeader = []string{"open_time", "close_time", "open", "high", "low", "close", "volume"}

// WriteCandlesToCSV writes candles with a header row.
func WriteCandlesToCSV(candles []*domain.Candle, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	writer.Write(csvHeader)
	for _, c := range candles {
		writer.Write([]string{
			c.OpenTime.Format(time.RFC3339),
			c.CloseTime.Format(time.RFC3339),
			strconv.FormatFloat(c.Open, 'f', -1, 64),
			strconv.FormatFloat(c.High, 'f', -1, 64),
			strconv.FormatFloat(c.Low, 'f', -1, 64),
			strconv.FormatFloat(c.Close, 'f', -1, 64),
			strconv.FormatFloat(c.Volume, 'f', -1, 64),
		})
	}
	return writer.Error()
}

// ReadCandlesFromCSV reads candles written by WriteCandlesToCSV. The header
// row is required.
func ReadCandlesFromCSV(filename string) ([]*domain.Candle, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s is empty", filename)
	}

	candles := make([]*domain.Candle, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != len(csvHeader) {
			return nil, fmt.Errorf("%s row %d: expected %d columns, got %d", filename, i+2, len(csvHeader), len(rec))
		}
		candle, err := parseCandleRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", filename, i+2, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func parseCandleRecord(rec []string) (*domain.Candle, error) {
	openTime, err := time.Parse(time.RFC3339, rec[0])
	if err != nil {
		return nil, fmt.Errorf("parsing open_time: %w", err)
	}
	closeTime, err := time.Parse(time.RFC3339, rec[1])
	if err != nil {
		return nil, fmt.Errorf("parsing close_time: %w", err)
	}
	vals := make([]float64, 5)
	for i, name := range []string{"open", "high", "low", "close", "volume"} {
		v, err := strconv.ParseFloat(rec[i+2], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		vals[i] = v
	}
	return &domain.Candle{
		OpenTime:  openTime,
		CloseTime: closeTime,
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}
