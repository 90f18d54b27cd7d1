// Package invoices feeds the sales invoice list into a paging.Manager and
// looks up single invoices.
package invoices

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Paulobirribarra/Facturas-App-Movil/internal/api"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/paging"

	"go.uber.org/zap"
)

const (
	DashboardPageSize = 15
	SearchPageSize    = 20
)

// Filter keys understood by the invoice list endpoint.
const (
	FilterSearch = "search"
	FilterYear   = "anio"
	FilterMonth  = "mes"
	FilterStatus = "estado"
)

type Lister interface {
	ListInvoices(ctx context.Context, companyID int64, query api.InvoiceQuery) (api.InvoicePage, error)
	Invoice(ctx context.Context, companyID, invoiceID int64) (api.InvoiceDetail, error)
}

type CompanySelector interface {
	SelectedCompanyID() (int64, bool)
}

// Source lists invoices of the currently selected company.
type Source struct {
	lister    Lister
	companies CompanySelector
	perPage   int
	logger    *zap.Logger
}

var _ paging.DataSource[api.Invoice] = (*Source)(nil)

func NewSource(lister Lister, companies CompanySelector, perPage int, logger *zap.Logger) *Source {
	if perPage <= 0 {
		perPage = DashboardPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		lister:    lister,
		companies: companies,
		perPage:   perPage,
		logger:    logger.Named("invoices"),
	}
}

// WithPageSize returns a copy of s that asks for perPage invoices per page.
func (s *Source) WithPageSize(perPage int) *Source {
	clone := *s
	if perPage > 0 {
		clone.perPage = perPage
	}
	return &clone
}

func (s *Source) PageSize() int {
	return s.perPage
}

func (s *Source) LoadPage(ctx context.Context, page int, filters paging.Filters) ([]api.Invoice, paging.Pagination, error) {
	companyID, err := s.companyID()
	if err != nil {
		return nil, paging.Pagination{}, err
	}
	if err := ValidateFilters(filters); err != nil {
		return nil, paging.Pagination{}, err
	}

	result, err := s.lister.ListInvoices(ctx, companyID, api.InvoiceQuery{
		Page:    page,
		PerPage: s.perPage,
		Search:  filters.String(FilterSearch),
		Year:    filters.String(FilterYear),
		Month:   filters.String(FilterMonth),
		Status:  filters.String(FilterStatus),
	})
	if err != nil {
		return nil, paging.Pagination{}, fmt.Errorf("list invoices: %w", err)
	}

	s.logger.Debug("invoice page fetched",
		zap.Int64("company_id", companyID),
		zap.Int("page", result.Pagination.CurrentPage),
		zap.Int("count", len(result.Invoices)),
		zap.Int("total", result.Pagination.Total),
	)
	return result.Invoices, result.Pagination, nil
}

// Detail fetches one invoice of the selected company.
func (s *Source) Detail(ctx context.Context, invoiceID int64) (api.InvoiceDetail, error) {
	companyID, err := s.companyID()
	if err != nil {
		return api.InvoiceDetail{}, err
	}
	detail, err := s.lister.Invoice(ctx, companyID, invoiceID)
	if err != nil {
		return api.InvoiceDetail{}, fmt.Errorf("get invoice %d: %w", invoiceID, err)
	}
	return detail, nil
}

func (s *Source) companyID() (int64, error) {
	id, ok := s.companies.SelectedCompanyID()
	if !ok {
		return 0, api.ErrNoCompany
	}
	return id, nil
}

// NewFilters builds a filter set from the non-empty values.
func NewFilters(search, year, month, status string) paging.Filters {
	filters := paging.Filters{}
	for key, value := range map[string]string{
		FilterSearch: search,
		FilterYear:   year,
		FilterMonth:  month,
		FilterStatus: status,
	} {
		if value = strings.TrimSpace(value); value != "" {
			filters[key] = value
		}
	}
	return filters
}

// ValidateFilters checks the year and month filters, when set.
func ValidateFilters(filters paging.Filters) error {
	if year := filters.String(FilterYear); year != "" {
		if n, err := strconv.Atoi(year); err != nil || n < 2000 || n > 2100 {
			return fmt.Errorf("invalid year filter %q", year)
		}
	}
	if month := filters.String(FilterMonth); month != "" {
		if n, err := strconv.Atoi(month); err != nil || n < 1 || n > 12 {
			return fmt.Errorf("invalid month filter %q", month)
		}
	}
	return nil
}
