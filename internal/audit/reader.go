package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"
)

// Filter selects records when reading the trail. Zero value matches all.
type Filter struct {
	Outcome  Outcome
	Actor    string
	Filtered bool
	Bypass   bool
	Last     int
}

// Read loads records from a JSONL audit file, skipping malformed lines.
// A missing file yields no records and no error.
func Read(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue // skip malformed lines
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}

// Apply returns the records matching the filter, in file order.
func (f Filter) Apply(records []Record) []Record {
	var out []Record
	for _, rec := range records {
		if f.Outcome != "" && rec.Outcome != f.Outcome {
			continue
		}
		if f.Actor != "" && !strings.EqualFold(rec.Actor, f.Actor) {
			continue
		}
		if f.Filtered && !rec.Filtered {
			continue
		}
		if f.Bypass && !rec.Bypass {
			continue
		}
		out = append(out, rec)
	}
	if f.Last > 0 && f.Last < len(out) {
		out = out[len(out)-f.Last:]
	}
	return out
}

// Summary aggregates a record set for reporting.
type Summary struct {
	Total        int
	Completed    int
	Blocked      int
	Errored      int
	Filtered     int
	Bypass       int
	InputTokens  int
	OutputTokens int
	First        string
	Last         string
}

// Summarize computes aggregate statistics over records in file order.
func Summarize(records []Record) Summary {
	var s Summary
	s.Total = len(records)
	for _, rec := range records {
		switch rec.Outcome {
		case OutcomeCompleted:
			s.Completed++
		case OutcomeBlocked:
			s.Blocked++
		case OutcomeErrored:
			s.Errored++
		}
		if rec.Filtered {
			s.Filtered++
		}
		if rec.Bypass {
			s.Bypass++
		}
		s.InputTokens += rec.InputTokens
		s.OutputTokens += rec.OutputTokens
	}
	if len(records) > 0 {
		s.First = records[0].Timestamp
		s.Last = records[len(records)-1].Timestamp
	}
	return s
}
