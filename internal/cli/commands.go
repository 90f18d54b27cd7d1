package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/Paulobirribarra/Facturas-App-Movil/internal/api"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/invoices"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/paging"

	"go.uber.org/zap"
)

func (r *Runner) login(ctx context.Context, args []string) error {
	var email, password string

	fs := r.newFlagSet("login")
	fs.StringVar(&email, "email", "", "Email del usuario")
	fs.StringVar(&password, "password", "", "Contraseña (se pregunta si se omite)")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	var err error
	if strings.TrimSpace(email) == "" {
		if email, err = r.ask("Email: "); err != nil {
			return fmt.Errorf("read email: %w", err)
		}
	}
	if password == "" {
		if password, err = r.askSecret("Contraseña: "); err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}

	resp, err := r.client.Login(ctx, email, password)
	if err != nil {
		return err
	}

	var companyID *int64
	if len(resp.User.Companies) > 0 {
		id := resp.User.Companies[0].ID
		companyID = &id
	}
	if err := r.session.Save(ctx, resp.Token, resp.User, companyID); err != nil {
		return err
	}

	if r.options.JSON {
		return r.writeJSON(resp.User)
	}
	fmt.Fprintf(r.out, "Sesión iniciada como %s (%s)\n", resp.User.Name, resp.User.Email)
	if company, ok := r.session.Company(); ok {
		fmt.Fprintf(r.out, "Empresa seleccionada: %s (%d)\n", company.LegalName, company.ID)
	} else {
		fmt.Fprintln(r.out, "El usuario no tiene empresas asociadas.")
	}
	return nil
}

// logout revokes the SII grant and closes the backend session before
// forgetting it locally. Backend failures do not keep the local session.
func (r *Runner) logout(ctx context.Context, _ []string) error {
	if !r.session.IsLoggedIn() {
		fmt.Fprintln(r.out, "No hay sesión activa.")
		return nil
	}

	companyID, _ := r.session.SelectedCompanyID()
	if err := r.sii.Revoke(ctx, companyID); err != nil {
		r.logger.Warn("revoke sii grant on logout", zap.Error(err))
	}
	if err := r.client.Logout(ctx); err != nil {
		r.logger.Warn("backend logout failed", zap.Error(err))
	}
	if err := r.session.Clear(ctx); err != nil {
		return err
	}

	fmt.Fprintln(r.out, "Sesión cerrada.")
	return nil
}

func (r *Runner) whoami(ctx context.Context, args []string) error {
	var remote bool

	fs := r.newFlagSet("whoami")
	fs.BoolVar(&remote, "remote", false, "Consultar el usuario en el servidor")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	if !r.session.IsLoggedIn() {
		return api.ErrNoSession
	}

	user, ok := r.session.User()
	if remote || !ok {
		fresh, err := r.client.CurrentUser(ctx)
		if err != nil {
			return err
		}
		companyID, selected := r.session.SelectedCompanyID()
		var keep *int64
		if selected {
			keep = &companyID
		}
		if err := r.session.Save(ctx, r.session.Token(), fresh, keep); err != nil {
			return err
		}
		user = fresh
	}

	if r.options.JSON {
		return r.writeJSON(user)
	}
	fmt.Fprintf(r.out, "%s (%s)\n", user.Name, user.Email)
	if user.Role != "" {
		fmt.Fprintf(r.out, "- rol: %s\n", user.Role)
	}
	if company, ok := r.session.Company(); ok {
		fmt.Fprintf(r.out, "- empresa: %s (%d)\n", company.LegalName, company.ID)
	} else {
		fmt.Fprintln(r.out, "- empresa: (ninguna)")
	}
	companyID, _ := r.session.SelectedCompanyID()
	fmt.Fprintf(r.out, "- SII: %s\n", r.sii.Status(companyID).Message())
	return nil
}

func (r *Runner) companies(ctx context.Context, args []string) error {
	fs := r.newFlagSet("companies")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	companies, err := r.client.Companies(ctx)
	if err != nil {
		return err
	}
	if r.options.JSON {
		return r.writeJSON(companies)
	}
	if len(companies) == 0 {
		fmt.Fprintln(r.out, "- (sin empresas)")
		return nil
	}

	selected, _ := r.session.SelectedCompanyID()
	for i, company := range companies {
		marker := " "
		if company.ID == selected {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %d) %s (id=%d", marker, i+1, company.LegalName, company.ID)
		if company.Role != "" {
			fmt.Fprintf(r.out, ", rol=%s", company.Role)
		}
		fmt.Fprintln(r.out, ")")
	}
	return nil
}

func (r *Runner) use(ctx context.Context, args []string) error {
	var remote bool

	fs := r.newFlagSet("use")
	fs.BoolVar(&remote, "remote", false, "Cambiar también la empresa actual en el servidor")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return errors.New("uso: facturas use <id> [--remote]")
	}
	companyID, err := strconv.ParseInt(positional[0], 10, 64)
	if err != nil || companyID <= 0 {
		return fmt.Errorf("id de empresa inválido: %s", positional[0])
	}

	if err := r.session.SetSelectedCompany(ctx, companyID); err != nil {
		return err
	}
	if remote {
		if err := r.client.SwitchCompany(ctx, companyID); err != nil {
			return err
		}
	}

	if company, ok := r.session.Company(); ok {
		fmt.Fprintf(r.out, "Empresa seleccionada: %s (%d)\n", company.LegalName, company.ID)
	} else {
		fmt.Fprintf(r.out, "Empresa seleccionada: %d\n", companyID)
	}
	fmt.Fprintf(r.out, "SII: %s\n", r.sii.Status(companyID).Message())
	return nil
}

type filterFlags struct {
	search string
	year   string
	month  string
	status string
}

func (f *filterFlags) bind(fs *flag.FlagSet) {
	fs.StringVar(&f.search, "search", "", "Texto a buscar (folio, cliente, RUT)")
	fs.StringVar(&f.year, "anio", "", "Año de emisión")
	fs.StringVar(&f.month, "mes", "", "Mes de emisión (1-12)")
	fs.StringVar(&f.status, "estado", "", "Estado de la factura")
}

func (f filterFlags) filters() paging.Filters {
	return invoices.NewFilters(f.search, f.year, f.month, f.status)
}

type invoiceList struct {
	Invoices   []api.Invoice     `json:"facturas"`
	Pagination paging.Pagination `json:"pagination"`
	Filters    []string          `json:"filters,omitempty"`
}

func (r *Runner) listInvoices(ctx context.Context, args []string) error {
	var (
		filters filterFlags
		page    int
		perPage int
	)

	fs := r.newFlagSet("invoices")
	filters.bind(fs)
	fs.IntVar(&page, "page", 1, "Página")
	fs.IntVar(&perPage, "per-page", 0, "Facturas por página")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	source := r.invoices
	if perPage > 0 {
		source = source.WithPageSize(perPage)
	} else if filters.search != "" {
		source = source.WithPageSize(invoices.SearchPageSize)
	}

	m := paging.NewManager[api.Invoice](source, r.logger)
	if err := m.LoadItems(ctx, filters.filters(), max(page, 1), false); err != nil {
		return err
	}

	p, _ := m.Pagination()
	if r.options.JSON {
		return r.writeJSON(invoiceList{Invoices: m.Items(), Pagination: p, Filters: m.Filters().Active()})
	}
	if active := m.Filters().Active(); len(active) > 0 {
		fmt.Fprintf(r.out, "Filtros: %s\n", strings.Join(active, ", "))
	}
	writeInvoices(r.out, m.Items(), max(p.CurrentPage-1, 0)*p.PerPage)
	writePagination(r.out, p, m.CurrentCount())
	return nil
}

func (r *Runner) invoice(ctx context.Context, args []string) error {
	fs := r.newFlagSet("invoice")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return errors.New("uso: facturas invoice <id>")
	}
	id, err := strconv.ParseInt(positional[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("id de factura inválido: %s", positional[0])
	}

	detail, err := r.invoices.Detail(ctx, id)
	if err != nil {
		return err
	}
	if r.options.JSON {
		return r.writeJSON(detail)
	}
	writeDetail(r.out, detail)
	return nil
}
