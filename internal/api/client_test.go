package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Paulobirribarra/Facturas-App-Movil/internal/config"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/decode"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/sii"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCreds struct {
	token     string
	companyID int64
}

func (f fakeCreds) Token() string { return f.token }

func (f fakeCreds) SelectedCompanyID() (int64, bool) {
	return f.companyID, f.companyID > 0
}

func newTestClient(t *testing.T, handler http.HandlerFunc, creds Credentials) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.APIBaseURL = srv.URL + "/api/"
	cfg.Timeout = 5 * time.Second
	return NewClient(cfg, creds, zap.NewNop())
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := io.WriteString(w, body)
	assert.NoError(t, err)
}

func TestLogin(t *testing.T) {
	var got loginRequest
	var requestID string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/mobile/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		requestID = r.Header.Get(headerRequestID)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		writeJSON(t, w, http.StatusOK, `{
			"success": true, "message": "ok", "token": "12|secret-token", "token_type": "Bearer",
			"expires_at": "2025-04-01T00:00:00Z",
			"user": {"id": 3, "email": "ana@acme.cl", "name": "Ana", "role": "admin",
				"empresas": [{"id": 5, "razon_social": "ACME SpA", "rol": "owner"}, {"id": 7, "razon_social": "Beta", "rol": "viewer"}]}
		}`)
	}, fakeCreds{})

	resp, err := client.Login(context.Background(), " ana@acme.cl ", "pw")
	require.NoError(t, err)

	assert.Equal(t, loginRequest{Email: "ana@acme.cl", Password: "pw", DeviceName: "facturas-cli"}, got)
	_, err = uuid.Parse(requestID)
	assert.NoError(t, err, "every call carries a request id")
	assert.Equal(t, "12|secret-token", resp.Token)
	require.Len(t, resp.User.Companies, 2)
	assert.Equal(t, Company{ID: 5, LegalName: "ACME SpA", Role: "owner"}, resp.User.Companies[0])
}

func TestLogin_Rejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, `{"success": false, "message": "Credenciales inválidas"}`)
	}, fakeCreds{})

	_, err := client.Login(context.Background(), "ana@acme.cl", "bad")

	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "Credenciales inválidas")
}

func TestLogin_MissingCredentials(t *testing.T) {
	client := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	}, fakeCreds{})

	_, err := client.Login(context.Background(), " ", "pw")
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestAuthenticatedCallWithoutSession(t *testing.T) {
	client := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	}, fakeCreds{})
	ctx := context.Background()

	_, err := client.Companies(ctx)
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = client.QuerySales(ctx, 5, 3, 2025)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestListInvoices_NoCompany(t *testing.T) {
	client := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	}, fakeCreds{token: "tok"})

	_, err := client.ListInvoices(context.Background(), 0, InvoiceQuery{Page: 1})
	assert.ErrorIs(t, err, ErrNoCompany)
}

func TestListInvoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/mobile/facturas/ventas", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "5", r.Header.Get(headerCompanyID))

		q := r.URL.Query()
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "15", q.Get("per_page"))
		assert.Equal(t, "acme", q.Get("search"))
		assert.Equal(t, "2025", q.Get("anio"))
		assert.False(t, q.Has("mes"), "empty filters are not sent")
		assert.False(t, q.Has("estado"))

		writeJSON(t, w, http.StatusOK, `{
			"success": true,
			"facturas": [
				{"id": 11, "folio": 100, "fecha_emision": "2025-03-01", "rut_cliente": "1-9",
				 "razon_social_cliente": "ACME", "monto_neto": 1000, "monto_iva": "190", "monto_total": 1190,
				 "pagada": 1, "estado_text": "Pagada", "tipo_dte": 33, "contacto_nombre": null},
				{"id": 12, "folio": 101, "fecha_emision": "2025-03-02", "rut_cliente": "2-7",
				 "razon_social_cliente": "Beta", "monto_neto": "", "monto_iva": "", "monto_total": 500,
				 "pagada": false, "estado_text": "Pendiente", "tipo_dte": 33}
			],
			"pagination": {"current_page": 2, "last_page": 4, "per_page": 15, "total": 52, "from": 16, "to": 30},
			"filters_applied": {"empresa_id": 5, "search": "acme", "anio": "2025", "mes": null, "estado": null}
		}`)
	}, fakeCreds{token: "tok", companyID: 5})

	page, err := client.ListInvoices(context.Background(), 5, InvoiceQuery{
		Page: 2, PerPage: 15, Search: " acme ", Year: "2025",
	})
	require.NoError(t, err)

	require.Len(t, page.Invoices, 2)
	first := page.Invoices[0]
	assert.Equal(t, int64(11), first.ID)
	assert.Equal(t, int64(100), first.Folio.Value)
	assert.True(t, first.VATAmount.Value.Equal(decimal.NewFromInt(190)))
	assert.True(t, first.Paid.Value)
	assert.Nil(t, first.ContactName)

	second := page.Invoices[1]
	assert.True(t, second.NetAmount.Value.IsZero())
	assert.Equal(t, decode.Coerced, second.NetAmount.Outcome)
	assert.Equal(t, 2, page.Coerced)

	assert.Equal(t, 2, page.Pagination.CurrentPage)
	assert.Equal(t, 4, page.Pagination.LastPage)
	assert.Equal(t, 52, page.Pagination.Total)
	require.NotNil(t, page.Pagination.From)
	assert.Equal(t, 16, *page.Pagination.From)
	assert.Equal(t, "5", page.FiltersApplied.CompanyID.Value)
}

func TestInvoiceDetail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/mobile/facturas/ventas/11", r.URL.Path)
		writeJSON(t, w, http.StatusOK, `{"success": true, "factura": {
			"id": 11, "folio": 100, "tipo_dte": 33, "tipo_dte_string": "Factura Electrónica",
			"id_cliente": 4, "rut_cliente": "1-9", "razon_social_cliente": "ACME", "id_contacto": null,
			"fecha_emision": "2025-03-01", "fecha_recepcion": "2025-03-01",
			"monto_neto": 1000, "monto_iva": 190, "monto_total": 1190, "monto_exento": "",
			"tipo_venta": "del_giro", "estado": "emitida", "pagada": false,
			"cliente": {"id": 4, "rut": "1-9", "razon_social": "ACME", "correo": "pagos@acme.cl"},
			"contacto": null
		}}`)
	}, fakeCreds{token: "tok"})

	detail, err := client.Invoice(context.Background(), 5, 11)
	require.NoError(t, err)

	assert.Equal(t, "Factura Electrónica", detail.DocumentName)
	assert.False(t, detail.ContactID.Valid)
	assert.Equal(t, decode.Coerced, detail.ExemptAmount.Outcome)
	require.NotNil(t, detail.Customer)
	require.NotNil(t, detail.Customer.Email)
	assert.Equal(t, "pagos@acme.cl", *detail.Customer.Email)
	assert.Nil(t, detail.Contact)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"message":"Unauthenticated."}`, sentinel: ErrUnauthorized},
		{name: "sii marker", status: http.StatusForbidden, body: `{"error":"SII_ACCESS_REQUIRED"}`, sentinel: ErrSIIAccessRequired},
		{name: "plain forbidden", status: http.StatusForbidden, body: `{"message":"no"}`},
		{name: "server", status: http.StatusInternalServerError, body: `boom`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(t, w, tt.status, tt.body)
			}, fakeCreds{token: "tok"})

			_, err := client.CurrentUser(context.Background())
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			} else {
				assert.NotErrorIs(t, err, ErrUnauthorized)
				assert.NotErrorIs(t, err, ErrSIIAccessRequired)
			}
		})
	}
}

func TestQuerySales(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/mobile/sii/consultar-ventas", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("mes"))
		assert.Equal(t, "2025", r.URL.Query().Get("anio"))
		assert.Equal(t, "5", r.Header.Get(headerCompanyID))

		writeJSON(t, w, http.StatusOK, `{"success": true, "message": "ok", "total": 1,
			"data": {"ventas": {"detalle": [{"folio": 100, "rutCliente": "1-9", "razonSocial": "ACME",
				"montoNeto": 1000, "montoIva": 190, "montoTotal": 1190, "estado": "ok"}]}},
			"almacenamiento": {"total_procesadas": 1, "nuevas_insertadas": 1, "actualizadas": 0, "errores": 0, "detalles_errores": []}}`)
	}, fakeCreds{token: "tok"})

	result, err := client.QuerySales(context.Background(), 5, 3, 2025)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.True(t, result.Success)
	require.NotNil(t, result.Body)
	normalized := sii.Normalize(result.Body.Payload(), sii.KindSales)
	require.Len(t, normalized.Records, 1)
	assert.Equal(t, "100", normalized.Records[0].Folio)
	require.NotNil(t, result.Body.Storage)
	assert.Equal(t, int64(1), result.Body.Storage.NewlyInserted.Value)
}

func TestQuerySales_StorageNotAnObject(t *testing.T) {
	for _, storage := range []string{`[]`, `""`} {
		t.Run(storage, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(t, w, http.StatusOK, `{"success": true, "message": "ok",
					"data": {"ventas": {"detalle": [{"folio": 100, "montoTotal": 1190}]}},
					"almacenamiento": `+storage+`}`)
			}, fakeCreds{token: "tok"})

			result, err := client.QuerySales(context.Background(), 5, 3, 2025)
			require.NoError(t, err)

			assert.True(t, result.Success)
			assert.Empty(t, result.ErrorBody)
			require.NotNil(t, result.Body)
			assert.Nil(t, result.Body.Storage)
			normalized := sii.Normalize(result.Body.Payload(), sii.KindSales)
			require.Len(t, normalized.Records, 1)
			assert.Equal(t, "100", normalized.Records[0].Folio)
		})
	}
}

func TestQueryPurchases_AccessDenied(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/mobile/sii/consultar-compras", r.URL.Path)
		writeJSON(t, w, http.StatusForbidden, `{"success": false, "error": "SII_ACCESS_REQUIRED", "message": "Debe validar su clave SII"}`)
	}, fakeCreds{token: "tok"})

	result, err := client.QueryPurchases(context.Background(), 5, 3, 2025)
	require.NoError(t, err, "http failures are reported in the result")

	assert.Equal(t, http.StatusForbidden, result.StatusCode)
	assert.False(t, result.Success)
	assert.True(t, result.AccessDenied())
	assert.Equal(t, "Debe validar su clave SII", result.Message())
}

func TestQuerySII_NonJSONBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "<html>gateway</html>")
	}, fakeCreds{token: "tok"})

	result, err := client.QuerySales(context.Background(), 5, 3, 2025)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Nil(t, result.Body)
	assert.Equal(t, "<html>gateway</html>", result.ErrorBody)
}

func TestQuerySII_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	cfg := config.Default()
	cfg.APIBaseURL = srv.URL + "/api/"
	srv.Close()

	client := NewClient(cfg, fakeCreds{token: "tok"}, zap.NewNop())
	_, err := client.QuerySales(context.Background(), 5, 3, 2025)

	assert.Error(t, err)
}

func TestValidateAccess(t *testing.T) {
	var body validateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/mobile/sii/validar-acceso", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(t, w, http.StatusOK, `{"success": true, "message": "Acceso validado"}`)
	}, fakeCreds{token: "tok"})

	result, err := client.ValidateAccess(context.Background(), 5, "clave-sii")
	require.NoError(t, err)

	assert.Equal(t, "clave-sii", body.Secret)
	assert.True(t, result.Success)
	assert.Equal(t, "Acceso validado", result.Message())
}

func TestRevokeAccessAndLogout(t *testing.T) {
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		writeJSON(t, w, http.StatusOK, `{"success": true}`)
	}, fakeCreds{token: "tok"})
	ctx := context.Background()

	result, err := client.RevokeAccess(ctx, 5)
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.NoError(t, client.SwitchCompany(ctx, 7))
	require.NoError(t, client.Logout(ctx))

	assert.Equal(t, []string{
		"/api/mobile/sii/revocar-acceso",
		"/api/mobile/empresa/cambiar/7",
		"/api/mobile/logout",
	}, paths)
}
