// Package siiquery runs the SII flows: access validation and revocation,
// and the long sales/purchases queries guarded by the local access gate.
package siiquery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Paulobirribarra/Facturas-App-Movil/internal/api"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/gate"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/sii"

	"go.uber.org/zap"
)

// ConfirmOverwriteMessage is asked before every query: the sync can replace
// fields the user edited by hand.
const ConfirmOverwriteMessage = "La consulta SII puede actualizar datos de facturas existentes.\n\n" +
	"Si has editado manualmente información como:\n" +
	"• Estados de pago\n" +
	"• Métodos de pago\n" +
	"• Comentarios\n" +
	"• Números de operación\n\n" +
	"Estos cambios podrían perderse.\n\n" +
	"¿Deseas continuar con la consulta?"

var ErrEmptySecret = errors.New("sii secret is empty")

type Transport interface {
	QuerySales(ctx context.Context, companyID int64, month, year int) (api.Result, error)
	QueryPurchases(ctx context.Context, companyID int64, month, year int) (api.Result, error)
	ValidateAccess(ctx context.Context, companyID int64, secret string) (api.Result, error)
	AccessStatus(ctx context.Context, companyID int64) (api.Result, error)
	RevokeAccess(ctx context.Context, companyID int64) (api.Result, error)
}

type AccessGate interface {
	NeedsValidation(companyID int64) bool
	MarkValidated(ctx context.Context, companyID int64) error
	Revoke(ctx context.Context) error
	Status(companyID int64) gate.Status
}

// Prompt asks the user a yes/no question.
type Prompt interface {
	Ask(ctx context.Context, message string) bool
}

type PromptFunc func(ctx context.Context, message string) bool

func (f PromptFunc) Ask(ctx context.Context, message string) bool {
	return f(ctx, message)
}

type Status int

const (
	StatusNeedsRevalidation Status = iota + 1
	StatusCancelled
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusNeedsRevalidation:
		return "needs_revalidation"
	case StatusCancelled:
		return "cancelled"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Query struct {
	Kind      sii.QueryKind
	Month     int
	Year      int
	CompanyID int64
}

// Outcome is the terminal state of one query run. Records is non-nil on
// success, possibly empty; Failure is set only when Status is
// StatusFailed.
type Outcome struct {
	Status  Status
	Query   Query
	Records []sii.Record
	Shape   sii.Shape
	// Summary is set when the backend reported what it stored.
	Summary *sii.Summary
	Message string
	// Total is the backend's own count, when sent.
	Total   *int64
	Coerced int
	Elapsed time.Duration
	Failure *Failure
}

// Empty reports a successful query that found nothing.
func (o Outcome) Empty() bool {
	return o.Status == StatusSucceeded && len(o.Records) == 0
}

type Service struct {
	transport Transport
	gate      AccessGate
	prompt    Prompt
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(transport Transport, accessGate AccessGate, prompt Prompt, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		transport: transport,
		gate:      accessGate,
		prompt:    prompt,
		logger:    logger.Named("siiquery"),
		now:       time.Now,
	}
}

// WithPrompt returns a copy of s that confirms queries through prompt. A nil
// prompt skips confirmation.
func (s *Service) WithPrompt(prompt Prompt) *Service {
	clone := *s
	clone.prompt = prompt
	return &clone
}

// Run executes one sales or purchases query. It never returns an error:
// every terminal state is an Outcome. Only the gate's own revocation after
// an access denial changes local state.
func (s *Service) Run(ctx context.Context, kind sii.QueryKind, month, year int, companyID int64) Outcome {
	q := Query{Kind: kind, Month: month, Year: year, CompanyID: companyID}
	logger := s.logger.With(
		zap.String("kind", string(kind)),
		zap.Int("month", month),
		zap.Int("year", year),
		zap.Int64("company_id", companyID),
	)

	// The grant is per company, so only a missing company is reported
	// before the gate.
	if companyID <= 0 {
		logger.Warn("sii query rejected locally", zap.Error(api.ErrNoCompany))
		return failed(q, &Failure{Kind: FailureInvalid, Err: api.ErrNoCompany})
	}

	if s.gate.NeedsValidation(companyID) {
		logger.Info("sii query needs revalidation")
		return Outcome{Status: StatusNeedsRevalidation, Query: q}
	}

	if err := validateQuery(q); err != nil {
		logger.Warn("sii query rejected locally", zap.Error(err))
		return failed(q, &Failure{Kind: FailureInvalid, Err: err})
	}

	if s.prompt != nil && !s.prompt.Ask(ctx, ConfirmOverwriteMessage) {
		logger.Info("sii query cancelled by user")
		return Outcome{Status: StatusCancelled, Query: q}
	}

	logger.Info("sii query started")
	started := s.now()
	result, err := s.call(ctx, q)
	elapsed := s.now().Sub(started)

	if err != nil {
		failure := classifyError(err)
		logger.Warn("sii query transport failure",
			zap.String("failure", string(failure.Kind)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		outcome := failed(q, failure)
		outcome.Elapsed = elapsed
		return outcome
	}

	if result.StatusCode < 200 || result.StatusCode >= 300 || !result.Success || result.Body == nil {
		failure := classifyResult(result)
		if failure.Kind == FailureRevalidation {
			if err := s.gate.Revoke(ctx); err != nil {
				logger.Error("revoke sii grant after access denial", zap.Error(err))
			}
		}
		logger.Warn("sii query failed",
			zap.String("failure", string(failure.Kind)),
			zap.Int("status", result.StatusCode),
			zap.String("message", failure.Message),
			zap.Duration("elapsed", elapsed),
		)
		outcome := failed(q, failure)
		outcome.Elapsed = elapsed
		return outcome
	}

	outcome := succeeded(q, *result.Body)
	outcome.Elapsed = elapsed

	if outcome.Coerced > 0 {
		logger.Warn("sii fields defaulted while decoding",
			zap.Int("coerced", outcome.Coerced),
			zap.String("shape", string(outcome.Shape)),
		)
	}
	fields := []zap.Field{
		zap.Int("records", len(outcome.Records)),
		zap.String("shape", string(outcome.Shape)),
		zap.Duration("elapsed", elapsed),
	}
	if outcome.Summary != nil {
		fields = append(fields,
			zap.String("class", string(outcome.Summary.Class)),
			zap.Int64("processed", outcome.Summary.Processed),
			zap.Int64("updated", outcome.Summary.Updated),
			zap.Int64("errors", outcome.Summary.Errors),
		)
	}
	logger.Info("sii query finished", fields...)

	return outcome
}

func (s *Service) call(ctx context.Context, q Query) (api.Result, error) {
	switch q.Kind {
	case sii.KindPurchases:
		return s.transport.QueryPurchases(ctx, q.CompanyID, q.Month, q.Year)
	default:
		return s.transport.QuerySales(ctx, q.CompanyID, q.Month, q.Year)
	}
}

func succeeded(q Query, resp sii.Response) Outcome {
	normalized := sii.Normalize(resp.Payload(), q.Kind)
	outcome := Outcome{
		Status:  StatusSucceeded,
		Query:   q,
		Records: normalized.Records,
		Shape:   normalized.Shape,
		Message: strings.TrimSpace(resp.Message.Value),
		Total:   resp.Total.Ptr(),
		Coerced: normalized.Coerced,
	}
	if resp.Storage != nil {
		summary := sii.Summarize(*resp.Storage)
		outcome.Summary = &summary
	}
	return outcome
}

func failed(q Query, failure *Failure) Outcome {
	return Outcome{Status: StatusFailed, Query: q, Failure: failure}
}

func validateQuery(q Query) error {
	switch q.Kind {
	case sii.KindSales, sii.KindPurchases:
	default:
		return fmt.Errorf("unknown query kind %q", q.Kind)
	}
	if q.Month < 1 || q.Month > 12 {
		return fmt.Errorf("month %d out of range", q.Month)
	}
	if q.Year < 2000 || q.Year > 2100 {
		return fmt.Errorf("year %d out of range", q.Year)
	}
	if q.CompanyID <= 0 {
		return api.ErrNoCompany
	}
	return nil
}

// Validate sends the SII secret for companyID and, on success, opens the
// local grant for it.
func (s *Service) Validate(ctx context.Context, companyID int64, secret string) error {
	if strings.TrimSpace(secret) == "" {
		return ErrEmptySecret
	}
	if companyID <= 0 {
		return &Failure{Kind: FailureInvalid, Err: api.ErrNoCompany}
	}

	result, err := s.transport.ValidateAccess(ctx, companyID, secret)
	if err != nil {
		failure := classifyError(err)
		s.logger.Warn("sii validation transport failure",
			zap.Int64("company_id", companyID),
			zap.String("failure", string(failure.Kind)),
			zap.Error(err),
		)
		return failure
	}
	if !result.Success {
		failure := classifyResult(result)
		if failure.Kind == FailureRevalidation || failure.Kind == FailureForbidden {
			failure.Kind = FailureRejected
		}
		s.logger.Warn("sii validation refused",
			zap.Int64("company_id", companyID),
			zap.Int("status", result.StatusCode),
			zap.String("message", failure.Message),
		)
		return failure
	}

	if err := s.gate.MarkValidated(ctx, companyID); err != nil {
		return fmt.Errorf("record sii grant: %w", err)
	}
	return nil
}

// Revoke closes the backend SII session on a best-effort basis and always
// empties the local grant.
func (s *Service) Revoke(ctx context.Context, companyID int64) error {
	if companyID > 0 {
		result, err := s.transport.RevokeAccess(ctx, companyID)
		switch {
		case err != nil:
			s.logger.Warn("sii revoke call failed", zap.Int64("company_id", companyID), zap.Error(err))
		case !result.Success:
			s.logger.Warn("sii revoke refused",
				zap.Int64("company_id", companyID),
				zap.Int("status", result.StatusCode),
			)
		}
	}
	return s.gate.Revoke(ctx)
}

// Status is the local view of the grant.
func (s *Service) Status(companyID int64) gate.Status {
	return s.gate.Status(companyID)
}

// RemoteStatus asks the backend about its SII session for companyID. The
// answer is informational; the local gate is not changed.
func (s *Service) RemoteStatus(ctx context.Context, companyID int64) (bool, string, error) {
	result, err := s.transport.AccessStatus(ctx, companyID)
	if err != nil {
		return false, "", classifyError(err)
	}
	if result.StatusCode < 200 || result.StatusCode >= 300 {
		return false, "", classifyResult(result)
	}
	return result.Success, result.Message(), nil
}
