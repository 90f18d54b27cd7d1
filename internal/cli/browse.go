package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Paulobirribarra/Facturas-App-Movil/internal/api"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/invoices"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/paging"
)

const browseHelp = "[n] siguiente  [p] anterior  [r] recargar  [q] salir"

// browse keeps one paging manager alive for an interactive session: n
// appends the next page, p goes back one page, r reloads from page 1.
func (r *Runner) browse(ctx context.Context, args []string) error {
	var filters filterFlags

	fs := r.newFlagSet("browse")
	filters.bind(fs)
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}

	source := r.invoices
	if filters.search != "" {
		source = source.WithPageSize(invoices.SearchPageSize)
	}

	m := paging.NewManager[api.Invoice](source, r.logger)
	defer m.Reset()

	m.Observe(func(state paging.State[api.Invoice]) {
		switch {
		case state.Loading:
			fmt.Fprintln(r.out, "Cargando facturas...")
		case state.LoadingMore:
			fmt.Fprintln(r.out, "Cargando más facturas...")
		}
	})

	if err := m.Load(ctx, filters.filters()); err != nil {
		return err
	}
	r.showPage(m, 0)

	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprintf(r.out, "\n%s > ", browseHelp)
		line, err := r.readLine()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(r.out)
			return nil
		}
		if err != nil {
			return err
		}

		switch strings.ToLower(line) {
		case "n":
			if !m.CanLoadNext() {
				fmt.Fprintln(r.out, "No hay más facturas.")
				continue
			}
			shown := m.CurrentCount()
			if err := m.LoadNext(ctx); err != nil {
				fmt.Fprintln(r.out, friendlyError(err))
				continue
			}
			r.showPage(m, shown)
		case "p":
			if !m.CanLoadPrevious() {
				fmt.Fprintln(r.out, "Ya está en la primera página.")
				continue
			}
			if err := m.LoadPrevious(ctx); err != nil {
				fmt.Fprintln(r.out, friendlyError(err))
				continue
			}
			r.showPage(m, 0)
		case "r":
			if err := m.Refresh(ctx); err != nil {
				fmt.Fprintln(r.out, friendlyError(err))
				continue
			}
			r.showPage(m, 0)
		case "q":
			return nil
		case "":
		default:
			fmt.Fprintf(r.out, "Opción desconocida: %s\n", line)
		}
	}
}

// showPage prints the loaded items starting at from. Appended items are
// always the current page, so numbering follows it.
func (r *Runner) showPage(m *paging.Manager[api.Invoice], from int) {
	items := m.Items()
	from = min(from, len(items))
	p, ok := m.Pagination()
	if !ok {
		writeInvoices(r.out, items[from:], from)
		return
	}

	writeInvoices(r.out, items[from:], max(p.CurrentPage-1, 0)*p.PerPage)
	fmt.Fprintf(r.out, "\nPágina %d de %d, %d cargadas de %d (quedan %d)\n",
		p.CurrentPage, p.LastPage, m.CurrentCount(), m.TotalItems(), m.RemainingItems())
}
