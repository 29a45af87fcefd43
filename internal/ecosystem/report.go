package ecosystem

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
)

// Summary counts results by status
type Summary struct {
	Pass  int `json:"pass"`
	Fail  int `json:"fail"`
	Warn  int `json:"warn"`
	Total int `json:"total"`
}

// Summarize aggregates results
func Summarize(results []VerificationResult) Summary {
	var s Summary
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			s.Pass++
		case StatusFail:
			s.Fail++
		case StatusWarn:
			s.Warn++
		}
	}
	s.Total = len(results)
	return s
}

// OK reports whether no check failed
func (s Summary) OK() bool {
	return s.Fail == 0
}

// Report is the machine-readable form of a verification pass
type Report struct {
	Results []VerificationResult `json:"results"`
	Summary Summary              `json:"summary"`
}

// NewReport builds a report from results
func NewReport(results []VerificationResult) Report {
	if results == nil {
		results = []VerificationResult{}
	}
	return Report{Results: results, Summary: Summarize(results)}
}

func statusIcon(s Status) string {
	switch s {
	case StatusPass:
		return "✅"
	case StatusFail:
		return "❌"
	case StatusWarn:
		return "⚠️ "
	}
	return "  "
}

// WriteText writes results as an aligned table followed by the summary line
func WriteText(w io.Writer, results []VerificationResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tCONTRACT\tCHECK\tDETAIL")
	for _, r := range results {
		fmt.Fprintf(tw, "%s %s\t%s\t%s\t%s\n", statusIcon(r.Status), r.Status, r.Contract, r.Check, r.Message)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	s := Summarize(results)
	_, err := fmt.Fprintf(w, "\n📊 %d passed, %d failed, %d warnings (%d checks)\n", s.Pass, s.Fail, s.Warn, s.Total)
	return err
}

// WriteJSON writes the report as indented JSON
func WriteJSON(w io.Writer, results []VerificationResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewReport(results))
}
