package history

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// LoadCSV reads a price history file with a Date column followed by one
// column per asset. Rows are assumed chronological. Blank cells are skipped.
func LoadCSV(path string) (map[string][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("%s: expected Date column plus at least one asset", path)
	}

	assets := make([]string, 0, len(header)-1)
	for _, col := range header[1:] {
		assets = append(assets, strings.TrimSpace(col))
	}

	out := map[string][]float64{}
	line := 1
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		line++
		for i, asset := range assets {
			cell := strings.TrimSpace(record[i+1])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: bad value for %s: %w", path, line, asset, err)
			}
			out[asset] = append(out[asset], v)
		}
	}

	return out, nil
}
