package university

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/storelabs/storelabs/internal/errors"
	"github.com/storelabs/storelabs/internal/report"
)

// QueryResult is the mean latency of one benchmark query.
type QueryResult struct {
	Name string
	Mean time.Duration
}

// Millis returns the mean in milliseconds rounded to two decimals.
func (r QueryResult) Millis() float64 {
	ms := float64(r.Mean) / float64(time.Millisecond)
	return float64(int64(ms*100+0.5)) / 100
}

// Benchmark runs every query runs times, draining all rows each run, and
// returns the mean latency per query.
func (s *Store) Benchmark(ctx context.Context, queries []Query, runs int) ([]QueryResult, error) {
	results := make([]QueryResult, 0, len(queries))
	for _, q := range queries {
		mean, err := report.MeanOf(ctx, runs, func(ctx context.Context) error {
			return s.drain(ctx, q.SQL)
		})
		if err != nil {
			s.stats.Record(q.Name, 0, err)
			return nil, errors.NewQueryError(q.Name, err)
		}
		s.stats.Record(q.Name, mean, nil)
		results = append(results, QueryResult{Name: q.Name, Mean: mean})
		s.logger.WithFields(logrus.Fields{"query": q.Name, "mean_ms": QueryResult{Mean: mean}.Millis(), "runs": runs}).Info("query benchmarked")
	}
	return results, nil
}

func (s *Store) drain(ctx context.Context, query string) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	dest := make([]interface{}, len(cols))
	for i := range dest {
		dest[i] = new(interface{})
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return err
		}
	}
	return rows.Err()
}

// AppendResults appends one row (scale followed by each query's mean in ms)
// to the CSV at path, writing the header first when the file is new.
func AppendResults(path string, scale int, results []QueryResult) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create results directory: %w", err)
		}
	}

	info, statErr := os.Stat(path)
	writeHeader := os.IsNotExist(statErr) || (statErr == nil && info.Size() == 0)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open results file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		header := []string{"Scale"}
		for _, r := range results {
			header = append(header, r.Name)
		}
		if err := w.Write(header); err != nil {
			return err
		}
	}
	row := []string{strconv.Itoa(scale)}
	for _, r := range results {
		row = append(row, strconv.FormatFloat(r.Millis(), 'f', 2, 64))
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// ReadResults loads a results CSV for display.
func ReadResults(path string) (header []string, rows [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, errors.NewMalformedRecord("read results "+path, err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}
