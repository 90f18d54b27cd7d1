package invoices

import (
	"context"
	"errors"
	"testing"

	"github.com/Paulobirribarra/Facturas-App-Movil/internal/api"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/paging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type selected struct {
	id int64
}

func (s selected) SelectedCompanyID() (int64, bool) { return s.id, s.id > 0 }

type fakeLister struct {
	queries   []api.InvoiceQuery
	companies []int64
	lastPage  int
	err       error
	detail    api.InvoiceDetail
}

func (f *fakeLister) ListInvoices(_ context.Context, companyID int64, query api.InvoiceQuery) (api.InvoicePage, error) {
	f.queries = append(f.queries, query)
	f.companies = append(f.companies, companyID)
	if f.err != nil {
		return api.InvoicePage{}, f.err
	}
	invoices := make([]api.Invoice, 0, query.PerPage)
	for i := 0; i < query.PerPage; i++ {
		invoices = append(invoices, api.Invoice{ID: int64((query.Page-1)*query.PerPage + i + 1)})
	}
	return api.InvoicePage{
		Invoices: invoices,
		Pagination: paging.Pagination{
			CurrentPage: query.Page,
			LastPage:    f.lastPage,
			PerPage:     query.PerPage,
			Total:       f.lastPage * query.PerPage,
		},
	}, nil
}

func (f *fakeLister) Invoice(_ context.Context, companyID, invoiceID int64) (api.InvoiceDetail, error) {
	f.companies = append(f.companies, companyID)
	if f.err != nil {
		return api.InvoiceDetail{}, f.err
	}
	detail := f.detail
	detail.ID = invoiceID
	return detail, nil
}

func TestSource_FeedsManager(t *testing.T) {
	lister := &fakeLister{lastPage: 3}
	source := NewSource(lister, selected{id: 5}, DashboardPageSize, zap.NewNop())
	m := paging.NewManager[api.Invoice](source, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, m.Load(ctx, NewFilters("acme", "2025", "", " ")))
	require.NoError(t, m.LoadNext(ctx))

	assert.Equal(t, 30, m.CurrentCount())
	assert.Equal(t, 45, m.TotalItems())
	assert.Equal(t, 15, m.RemainingItems())
	require.Len(t, lister.queries, 2)
	assert.Equal(t, api.InvoiceQuery{Page: 2, PerPage: 15, Search: "acme", Year: "2025"}, lister.queries[1])
	assert.Equal(t, []int64{5, 5}, lister.companies)
}

func TestSource_SearchPageSize(t *testing.T) {
	lister := &fakeLister{lastPage: 1}
	source := NewSource(lister, selected{id: 5}, 0, nil).WithPageSize(SearchPageSize)

	items, pagination, err := source.LoadPage(context.Background(), 1, nil)
	require.NoError(t, err)

	assert.Len(t, items, SearchPageSize)
	assert.Equal(t, SearchPageSize, pagination.PerPage)
	assert.Equal(t, SearchPageSize, source.PageSize())
}

func TestSource_NoCompanySelected(t *testing.T) {
	lister := &fakeLister{lastPage: 1}
	source := NewSource(lister, selected{}, DashboardPageSize, nil)

	_, _, err := source.LoadPage(context.Background(), 1, nil)
	assert.ErrorIs(t, err, api.ErrNoCompany)

	_, err = source.Detail(context.Background(), 11)
	assert.ErrorIs(t, err, api.ErrNoCompany)
	assert.Empty(t, lister.queries)
}

func TestSource_InvalidFilters(t *testing.T) {
	lister := &fakeLister{lastPage: 1}
	source := NewSource(lister, selected{id: 5}, DashboardPageSize, nil)

	tests := []paging.Filters{
		{FilterMonth: "13"},
		{FilterMonth: "marzo"},
		{FilterYear: "25"},
	}
	for _, filters := range tests {
		_, _, err := source.LoadPage(context.Background(), 1, filters)
		assert.Error(t, err, "%v", filters)
	}
	assert.Empty(t, lister.queries)

	assert.NoError(t, ValidateFilters(paging.Filters{FilterMonth: 3, FilterYear: 2024}))
}

func TestSource_ErrorKeepsManagerState(t *testing.T) {
	lister := &fakeLister{lastPage: 2}
	source := NewSource(lister, selected{id: 5}, 2, nil)
	m := paging.NewManager[api.Invoice](source, nil)
	ctx := context.Background()
	require.NoError(t, m.Load(ctx, nil))

	boom := errors.New("boom")
	lister.err = boom

	assert.ErrorIs(t, m.LoadNext(ctx), boom)
	assert.Equal(t, 1, m.CurrentPage())
	assert.Equal(t, 2, m.CurrentCount())
}

func TestSource_Detail(t *testing.T) {
	lister := &fakeLister{detail: api.InvoiceDetail{Status: "emitida"}}
	source := NewSource(lister, selected{id: 7}, DashboardPageSize, nil)

	detail, err := source.Detail(context.Background(), 11)
	require.NoError(t, err)

	assert.Equal(t, int64(11), detail.ID)
	assert.Equal(t, "emitida", detail.Status)
	assert.Equal(t, []int64{7}, lister.companies)
}

func TestNewFilters(t *testing.T) {
	filters := NewFilters(" ", "2025", "3", "pagada")

	assert.Equal(t, []string{"anio=2025", "estado=pagada", "mes=3"}, filters.Active())
	_, ok := filters[FilterSearch]
	assert.False(t, ok)
}
