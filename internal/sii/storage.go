package sii

import (
	"encoding/json"
	"fmt"

	"github.com/Paulobirribarra/Facturas-App-Movil/internal/decode"
)

const maxErrorSample = 3

// StorageOutcome is how the backend reports what the sync did to its own
// invoice table.
type StorageOutcome struct {
	TotalProcessed decode.Int    `json:"total_procesadas"`
	NewlyInserted  decode.Int    `json:"nuevas_insertadas"`
	Updated        decode.Int    `json:"actualizadas"`
	ErrorCount     decode.Int    `json:"errores"`
	ErrorDetails   TextList      `json:"detalles_errores"`
}

// TextList is a list of messages; anything other than a list decodes as
// empty.
type TextList []decode.Text

func (l *TextList) UnmarshalJSON(raw []byte) error {
	var items []decode.Text
	if err := json.Unmarshal(raw, &items); err != nil {
		*l = nil
		return nil
	}
	*l = items
	return nil
}

type SyncClass string

const (
	// ClassUpdated means existing invoices were overwritten; manually
	// edited fields may need review.
	ClassUpdated SyncClass = "updated"
	// ClassAllNew means only new invoices were inserted.
	ClassAllNew SyncClass = "all_new"
	// ClassNoConflicts covers mixed results with nothing updated.
	ClassNoConflicts SyncClass = "no_conflicts"
	// ClassNothing means the backend processed no invoices.
	ClassNothing SyncClass = "nothing"
)

type Summary struct {
	Processed int64
	Inserted  int64
	Updated   int64
	Errors    int64

	Class   SyncClass
	Warning bool
	// Headline is a one-line status for the sync.
	Headline string
	// ErrorSample holds at most three error details; MoreErrors counts the rest.
	ErrorSample []string
	MoreErrors  int
}

func (s Summary) HasErrors() bool {
	return s.Errors > 0 || len(s.ErrorSample) > 0
}

func Summarize(outcome StorageOutcome) Summary {
	s := Summary{
		Processed: outcome.TotalProcessed.Value,
		Inserted:  outcome.NewlyInserted.Value,
		Updated:   outcome.Updated.Value,
		Errors:    outcome.ErrorCount.Value,
	}

	switch {
	case s.Updated > 0:
		s.Class = ClassUpdated
	case s.Processed == 0:
		s.Class = ClassNothing
	case s.Inserted == s.Processed:
		s.Class = ClassAllNew
	default:
		s.Class = ClassNoConflicts
	}

	details := make([]string, 0, len(outcome.ErrorDetails))
	for _, d := range outcome.ErrorDetails {
		if d.Value != "" {
			details = append(details, d.Value)
		}
	}
	if len(details) > maxErrorSample {
		s.ErrorSample = details[:maxErrorSample]
		s.MoreErrors = len(details) - maxErrorSample
	} else if len(details) > 0 {
		s.ErrorSample = details
	}

	s.Warning = s.Errors > 0 || s.Class == ClassUpdated || len(details) > 0

	switch {
	case s.Errors > 0:
		s.Headline = fmt.Sprintf("Procesadas: %d, errores: %d", s.Processed, s.Errors)
	case s.Updated > 0:
		s.Headline = fmt.Sprintf("Nuevas: %d, actualizadas: %d", s.Inserted, s.Updated)
	default:
		s.Headline = fmt.Sprintf("%d facturas procesadas correctamente", s.Processed)
	}

	return s
}
