package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Paulobirribarra/Facturas-App-Movil/internal/api"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/sii"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/siiquery"
)

var errNeedsRevalidation = errors.New("sii access needs validation")

func (r *Runner) siiCommand(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("uso: facturas sii validate|revoke|status|query")
	}

	switch args[0] {
	case "validate":
		return r.siiValidate(ctx, args[1:])
	case "revoke":
		return r.siiRevoke(ctx, args[1:])
	case "status":
		return r.siiStatus(ctx, args[1:])
	case "query":
		return r.siiQuery(ctx, args[1:])
	default:
		return fmt.Errorf("subcomando sii desconocido: %s", args[0])
	}
}

func (r *Runner) selectedCompany() (int64, error) {
	if !r.session.IsLoggedIn() {
		return 0, api.ErrNoSession
	}
	companyID, ok := r.session.SelectedCompanyID()
	if !ok {
		return 0, api.ErrNoCompany
	}
	return companyID, nil
}

func (r *Runner) siiValidate(ctx context.Context, args []string) error {
	var secret string

	fs := r.newFlagSet("sii validate")
	fs.StringVar(&secret, "secret", "", "Clave SII (se pregunta si se omite)")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	companyID, err := r.selectedCompany()
	if err != nil {
		return err
	}
	if secret == "" {
		if secret, err = r.askSecret("Clave SII: "); err != nil {
			return fmt.Errorf("read sii secret: %w", err)
		}
	}

	fmt.Fprintln(r.out, "Validando clave SII...")
	if err := r.sii.Validate(ctx, companyID, secret); err != nil {
		return err
	}

	fmt.Fprintln(r.out, "Acceso SII validado correctamente.")
	fmt.Fprintln(r.out, r.sii.Status(companyID).Message())
	return nil
}

func (r *Runner) siiRevoke(ctx context.Context, args []string) error {
	fs := r.newFlagSet("sii revoke")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	companyID, _ := r.session.SelectedCompanyID()
	if err := r.sii.Revoke(ctx, companyID); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "Acceso SII revocado.")
	return nil
}

type siiStatusView struct {
	CompanyID        int64  `json:"empresa_id"`
	HasAccess        bool   `json:"has_access"`
	RemainingMinutes int    `json:"remaining_minutes"`
	Message          string `json:"message"`
	Remote           *bool  `json:"remote_active,omitempty"`
	RemoteMessage    string `json:"remote_message,omitempty"`
}

func (r *Runner) siiStatus(ctx context.Context, args []string) error {
	var remote bool

	fs := r.newFlagSet("sii status")
	fs.BoolVar(&remote, "remote", false, "Consultar también el estado en el servidor")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	companyID, err := r.selectedCompany()
	if err != nil {
		return err
	}
	status := r.sii.Status(companyID)
	view := siiStatusView{
		CompanyID:        companyID,
		HasAccess:        status.HasAccess,
		RemainingMinutes: status.RemainingMinutes,
		Message:          status.Message(),
	}
	if remote {
		active, message, err := r.sii.RemoteStatus(ctx, companyID)
		if err != nil {
			return err
		}
		view.Remote = &active
		view.RemoteMessage = message
	}

	if r.options.JSON {
		return r.writeJSON(view)
	}
	fmt.Fprintln(r.out, view.Message)
	if view.Remote != nil {
		state := "inactiva"
		if *view.Remote {
			state = "activa"
		}
		fmt.Fprintf(r.out, "Sesión SII en el servidor: %s\n", state)
		if view.RemoteMessage != "" {
			fmt.Fprintf(r.out, "- %s\n", view.RemoteMessage)
		}
	}
	return nil
}

type outcomeView struct {
	Status    string       `json:"status"`
	Kind      string       `json:"kind"`
	Month     int          `json:"month"`
	Year      int          `json:"year"`
	CompanyID int64        `json:"empresa_id"`
	Shape     string       `json:"shape,omitempty"`
	Records   []sii.Record `json:"records"`
	Total     *int64       `json:"total,omitempty"`
	Message   string       `json:"message,omitempty"`
	Coerced   int          `json:"coerced_fields"`
	ElapsedMS int64        `json:"elapsed_ms"`
	Summary   *summaryView `json:"summary,omitempty"`
	Failure   *failureView `json:"failure,omitempty"`
}

type summaryView struct {
	Processed   int64    `json:"processed"`
	Inserted    int64    `json:"inserted"`
	Updated     int64    `json:"updated"`
	Errors      int64    `json:"errors"`
	Class       string   `json:"class"`
	Warning     bool     `json:"warning"`
	Headline    string   `json:"headline"`
	ErrorSample []string `json:"error_sample,omitempty"`
	MoreErrors  int      `json:"more_errors,omitempty"`
}

type failureView struct {
	Kind       string `json:"kind"`
	StatusCode int    `json:"status_code,omitempty"`
	Message    string `json:"message"`
}

func newOutcomeView(o siiquery.Outcome) outcomeView {
	view := outcomeView{
		Status:    o.Status.String(),
		Kind:      string(o.Query.Kind),
		Month:     o.Query.Month,
		Year:      o.Query.Year,
		CompanyID: o.Query.CompanyID,
		Shape:     string(o.Shape),
		Records:   o.Records,
		Total:     o.Total,
		Message:   o.Message,
		Coerced:   o.Coerced,
		ElapsedMS: o.Elapsed.Milliseconds(),
	}
	if view.Records == nil {
		view.Records = []sii.Record{}
	}
	if s := o.Summary; s != nil {
		view.Summary = &summaryView{
			Processed:   s.Processed,
			Inserted:    s.Inserted,
			Updated:     s.Updated,
			Errors:      s.Errors,
			Class:       string(s.Class),
			Warning:     s.Warning,
			Headline:    s.Headline,
			ErrorSample: s.ErrorSample,
			MoreErrors:  s.MoreErrors,
		}
	}
	if f := o.Failure; f != nil {
		view.Failure = &failureView{
			Kind:       string(f.Kind),
			StatusCode: f.StatusCode,
			Message:    failureMessage(f),
		}
	}
	return view
}

func (r *Runner) siiQuery(ctx context.Context, args []string) error {
	var kindName string
	now := time.Now()
	month, year := int(now.Month()), now.Year()

	fs := r.newFlagSet("sii query")
	fs.StringVar(&kindName, "kind", "sales", "Tipo de consulta: sales|purchases")
	fs.IntVar(&month, "month", month, "Mes (1-12)")
	fs.IntVar(&year, "year", year, "Año")
	fs.BoolVar(&r.options.Yes, "yes", r.options.Yes, "No pedir confirmación")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	kind, err := sii.ParseKind(kindName)
	if err != nil {
		return fmt.Errorf("tipo de consulta inválido: %s", kindName)
	}
	companyID, err := r.selectedCompany()
	if err != nil {
		return err
	}

	svc := r.sii.WithPrompt(siiquery.PromptFunc(r.confirm))
	if r.options.Yes {
		svc = r.sii.WithPrompt(nil)
	}

	if !r.options.JSON {
		fmt.Fprintf(r.out, "Consultando %s de %s %d en el SII. Esto puede tomar varios minutos...\n",
			kind, monthName(month), year)
	}
	outcome := svc.Run(ctx, kind, month, year, companyID)

	if r.options.JSON {
		if err := r.writeJSON(newOutcomeView(outcome)); err != nil {
			return err
		}
		if outcome.Status == siiquery.StatusFailed {
			return outcome.Failure
		}
		if outcome.Status == siiquery.StatusNeedsRevalidation {
			return errNeedsRevalidation
		}
		return nil
	}

	switch outcome.Status {
	case siiquery.StatusNeedsRevalidation:
		return errNeedsRevalidation
	case siiquery.StatusCancelled:
		fmt.Fprintln(r.out, "Consulta cancelada.")
		return nil
	case siiquery.StatusFailed:
		return outcome.Failure
	}

	if outcome.Message != "" {
		fmt.Fprintln(r.out, outcome.Message)
	}
	if outcome.Empty() {
		fmt.Fprintln(r.out, "La consulta no encontró facturas para el período.")
	} else {
		fmt.Fprintf(r.out, "\n%d registros (%s):\n", len(outcome.Records), outcome.Shape)
		writeRecords(r.out, kind, outcome.Records)
	}
	if outcome.Summary != nil {
		writeSummary(r.out, *outcome.Summary)
	}
	fmt.Fprintf(r.out, "\nTiempo de consulta: %s\n", outcome.Elapsed.Round(time.Second))
	return nil
}
