package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Paulobirribarra/Facturas-App-Movil/internal/api"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/paging"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/session"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/sii"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/siiquery"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.MustParse("es-CL"))

// formatCLP renders a peso amount without decimals, e.g. $1.190.000.
func formatCLP(amount decimal.Decimal) string {
	rounded := amount.Round(0).IntPart()
	if rounded < 0 {
		return "-$" + printer.Sprintf("%d", -rounded)
	}
	return "$" + printer.Sprintf("%d", rounded)
}

var dateLayouts = []string{
	time.DateOnly,
	time.DateTime,
	time.RFC3339,
	"2006-01-02T15:04:05.000000Z",
	"02/01/2006",
	"02-01-2006",
}

// formatDate shows backend dates as dd/mm/yyyy and keeps anything it cannot
// parse as is.
func formatDate(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("02/01/2006")
		}
	}
	return value
}

func orDash(value *string) string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return "-"
	}
	return *value
}

func paidLabel(paid bool) string {
	if paid {
		return "Pagada"
	}
	return "Pendiente"
}

func friendlyError(err error) string {
	if failure, ok := siiquery.AsFailure(err); ok {
		return failureMessage(failure)
	}

	var apiErr *api.APIError
	switch {
	case errors.Is(err, errNeedsRevalidation):
		return "Requiere validación de clave SII. Ejecute 'facturas sii validate'."
	case errors.Is(err, api.ErrNoSession):
		return "No hay sesión activa. Ejecute 'facturas login'."
	case errors.Is(err, api.ErrNoCompany):
		return "No hay empresa seleccionada. Ejecute 'facturas use <id>'."
	case errors.Is(err, api.ErrUnauthorized):
		return "Sesión expirada o token inválido. Inicie sesión nuevamente."
	case errors.Is(err, api.ErrRateLimited):
		return "Demasiadas solicitudes. Intente más tarde."
	case errors.Is(err, api.ErrMissingCredential):
		return "Ingrese email y contraseña."
	case errors.Is(err, api.ErrSIIAccessRequired):
		return "Acceso SII expirado. Valide nuevamente su clave SII con 'facturas sii validate'."
	case errors.Is(err, session.ErrUnknownCompany):
		return "La empresa indicada no pertenece a su usuario."
	case errors.Is(err, siiquery.ErrEmptySecret):
		return "Ingrese su clave SII."
	case errors.Is(err, api.ErrRejected):
		marker := api.ErrRejected.Error() + ": "
		if _, message, ok := strings.Cut(err.Error(), marker); ok {
			return message
		}
		return "La solicitud fue rechazada por el servidor."
	case errors.As(err, &apiErr):
		return withDetail(fmt.Sprintf("Error del servidor (%d)", apiErr.StatusCode), bodyDetail(apiErr.Body))
	default:
		if err == nil {
			return ""
		}
		return err.Error()
	}
}

func failureMessage(f *siiquery.Failure) string {
	switch f.Kind {
	case siiquery.FailureTimeout:
		return "Timeout: La consulta SII está tomando más tiempo del esperado. Intente nuevamente."
	case siiquery.FailureUnavailable:
		return "Error de conexión. Verifique su conexión a internet."
	case siiquery.FailureUnauthorized:
		return "Error de autenticación (401): token inválido. Inicie sesión nuevamente."
	case siiquery.FailureRevalidation:
		return "Acceso SII expirado. Valide nuevamente su clave SII con 'facturas sii validate'."
	case siiquery.FailureForbidden:
		return withDetail("Error de permisos (403)", f.Message)
	case siiquery.FailureNotFound:
		return "Error (404): endpoint no encontrado."
	case siiquery.FailureServer:
		return withDetail(fmt.Sprintf("Error del servidor (%d)", f.StatusCode), f.Message)
	case siiquery.FailureRejected:
		if f.Message == "" {
			return "Error: sin datos"
		}
		return "Error: " + f.Message
	case siiquery.FailureInvalid:
		detail := f.Message
		if detail == "" && f.Err != nil {
			if errors.Is(f.Err, api.ErrNoCompany) {
				return "No hay empresa seleccionada. Ejecute 'facturas use <id>'."
			}
			detail = f.Err.Error()
		}
		return withDetail("Datos inválidos", detail)
	default:
		if f.StatusCode != 0 {
			return withDetail(fmt.Sprintf("Error en la consulta SII (%d)", f.StatusCode), f.Message)
		}
		if f.Err != nil {
			return "Error: " + f.Err.Error()
		}
		return "Error en la consulta SII"
	}
}

// bodyDetail keeps short plain error bodies and drops HTML pages.
func bodyDetail(body string) string {
	body = strings.TrimSpace(body)
	if strings.HasPrefix(body, "<") || len(body) > 200 {
		return ""
	}
	return body
}

func withDetail(head, detail string) string {
	if strings.TrimSpace(detail) == "" {
		return head
	}
	return head + ": " + detail
}

func writeInvoices(w io.Writer, items []api.Invoice, offset int) {
	if len(items) == 0 {
		fmt.Fprintln(w, "- (sin facturas)")
		return
	}
	for i, inv := range items {
		folio := "-"
		if inv.Folio.Valid {
			folio = fmt.Sprint(inv.Folio.Value)
		}
		fmt.Fprintf(w, "%d) #%d folio %s | %s (%s) | %s | %s | %s",
			offset+i+1, inv.ID, folio, inv.CustomerName, inv.CustomerTaxID,
			formatDate(inv.IssueDate), formatCLP(inv.TotalAmount.Value), paidLabel(inv.Paid.Value))
		if status := strings.TrimSpace(inv.StatusText); status != "" {
			fmt.Fprintf(w, " | %s", status)
		}
		fmt.Fprintln(w)
	}
}

func writePagination(w io.Writer, p paging.Pagination, shown int) {
	fmt.Fprintf(w, "\nPágina %d de %d, mostrando %d de %d facturas\n", p.CurrentPage, p.LastPage, shown, p.Total)
}

func writeDetail(w io.Writer, d api.InvoiceDetail) {
	folio := "-"
	if d.Folio.Valid {
		folio = fmt.Sprint(d.Folio.Value)
	}
	fmt.Fprintf(w, "Factura #%d\n", d.ID)
	fmt.Fprintf(w, "- folio: %s\n", folio)
	if d.DocumentName != "" {
		fmt.Fprintf(w, "- documento: %s\n", d.DocumentName)
	}
	fmt.Fprintf(w, "- cliente: %s (%s)\n", d.CustomerName, d.CustomerTaxID)
	fmt.Fprintf(w, "- emisión: %s\n", formatDate(d.IssueDate))
	if d.DueDate != nil {
		fmt.Fprintf(w, "- vencimiento: %s\n", formatDate(*d.DueDate))
	}
	fmt.Fprintf(w, "- neto: %s\n", formatCLP(d.NetAmount.Value))
	fmt.Fprintf(w, "- IVA: %s\n", formatCLP(d.VATAmount.Value))
	if !d.ExemptAmount.Value.IsZero() {
		fmt.Fprintf(w, "- exento: %s\n", formatCLP(d.ExemptAmount.Value))
	}
	fmt.Fprintf(w, "- total: %s\n", formatCLP(d.TotalAmount.Value))
	fmt.Fprintf(w, "- estado: %s (%s)\n", orDash(&d.Status), paidLabel(d.Paid.Value))
	if d.PaymentMethod != nil || d.PaymentDate != nil {
		fmt.Fprintf(w, "- pago: %s el %s\n", orDash(d.PaymentMethod), formatDate(orDash(d.PaymentDate)))
	}
	if d.OperationNumber != nil {
		fmt.Fprintf(w, "- operación: %s\n", *d.OperationNumber)
	}
	if d.Comment != nil {
		fmt.Fprintf(w, "- comentario: %s\n", *d.Comment)
	}
	switch {
	case d.Contact != nil:
		fmt.Fprintf(w, "- contacto: %s <%s>\n", d.Contact.Name, orDash(d.Contact.Email))
	case d.ContactName != nil:
		fmt.Fprintf(w, "- contacto: %s <%s>\n", *d.ContactName, orDash(d.ContactEmail))
	}
}

func writeRecords(w io.Writer, kind sii.QueryKind, records []sii.Record) {
	counterparty := "cliente"
	if kind == sii.KindPurchases {
		counterparty = "proveedor"
	}
	for i, rec := range records {
		fmt.Fprintf(w, "%d) folio %s | %s %s (%s) | %s | neto %s | IVA %s | total %s",
			i+1, rec.Folio, counterparty, rec.CounterpartyName, rec.CounterpartyTaxID,
			formatDate(rec.IssueDate), formatCLP(rec.NetAmount), formatCLP(rec.VATAmount), formatCLP(rec.TotalAmount))
		if rec.Status != "" {
			fmt.Fprintf(w, " | %s", rec.Status)
		}
		fmt.Fprintln(w)
	}
}

func writeSummary(w io.Writer, s sii.Summary) {
	fmt.Fprintf(w, "\nResultado de la sincronización: %s\n", s.Headline)
	switch s.Class {
	case sii.ClassUpdated:
		fmt.Fprintln(w, "Atención: se actualizaron facturas existentes; revise los cambios manuales.")
	case sii.ClassAllNew:
		fmt.Fprintln(w, "Todas las facturas eran nuevas.")
	case sii.ClassNothing:
		fmt.Fprintln(w, "No se procesaron facturas.")
	}
	for _, detail := range s.ErrorSample {
		fmt.Fprintf(w, "- %s\n", detail)
	}
	if s.MoreErrors > 0 {
		fmt.Fprintf(w, "- ... y %d errores más\n", s.MoreErrors)
	}
}

func monthName(month int) string {
	names := [...]string{
		"enero", "febrero", "marzo", "abril", "mayo", "junio",
		"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
	}
	if month < 1 || month > 12 {
		return fmt.Sprint(month)
	}
	return names[month-1]
}
