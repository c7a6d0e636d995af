package snapshot

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Sink is the append-only persistence contract. The engine issues exactly
// one Append per successful day, in day order, and zero for a failed day.
type Sink interface {
	Append(Record) error
	Close() error
}

// === MemorySink ===

// MemorySink retains records in memory. Used by tests and by runs that only
// want the final metrics report.
type MemorySink struct {
	records []Record
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{records: make([]Record, 0)}
}

// Append stores one record.
func (m *MemorySink) Append(rec Record) error {
	m.records = append(m.records, rec)
	return nil
}

// Close is a no-op.
func (m *MemorySink) Close() error { return nil }

// Records returns the appended records in insertion order.
func (m *MemorySink) Records() []Record { return m.records }

// === CSVSink ===

// CSVSink writes one row per region per day.
type CSVSink struct {
	file   *os.File
	writer *csv.Writer
}

var csvHeader = []string{
	"day", "region", "susceptible", "exposed", "infectious", "recovered",
	"deceased", "total", "active_policies", "fired_events",
}

// NewCSVSink creates (truncating) the CSV file and writes the header row.
func NewCSVSink(path string) (*CSVSink, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create csv sink: %w", err)
	}
	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return &CSVSink{file: file, writer: writer}, nil
}

// Append writes the record's region rows and flushes so a later failed day
// cannot lose an already-committed one.
func (s *CSVSink) Append(rec Record) error {
	for _, region := range rec.Regions {
		row := []string{
			strconv.Itoa(rec.Day),
			region.ID,
			strconv.FormatInt(region.Susceptible, 10),
			strconv.FormatInt(region.Exposed, 10),
			strconv.FormatInt(region.Infectious, 10),
			strconv.FormatInt(region.Recovered, 10),
			strconv.FormatInt(region.Deceased, 10),
			strconv.FormatInt(region.Total(), 10),
			strings.Join(rec.ActivePolicies, ";"),
			strings.Join(rec.FiredEvents, ";"),
		}
		if err := s.writer.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	s.writer.Flush()
	return s.writer.Error()
}

// Close flushes and closes the underlying file.
func (s *CSVSink) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}

// === MultiSink ===

// MultiSink fans one Append out to several sinks. The first failure wins;
// earlier sinks in the list may already have accepted the record, which is
// safe under the append-only contract because the caller retries the whole
// day.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks. An empty list behaves like a no-op sink.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Append forwards the record to every sink in order.
func (m *MultiSink) Append(rec Record) error {
	for _, s := range m.sinks {
		if err := s.Append(rec); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink, returning the first error.
func (m *MultiSink) Close() error {
	var first error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
