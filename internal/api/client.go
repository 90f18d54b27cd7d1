package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Paulobirribarra/Facturas-App-Movil/internal/config"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/decode"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/logging"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	headerCompanyID = "X-Empresa-ID"
	headerRequestID = "X-Request-ID"

	// siiAccessMarker is the error code the backend sends with a 403 when
	// its SII session for the company is gone.
	siiAccessMarker = "SII_ACCESS_REQUIRED"
)

var (
	ErrNoSession         = errors.New("no active session")
	ErrNoCompany         = errors.New("no company selected")
	ErrUnauthorized      = errors.New("backend unauthorized")
	ErrSIIAccessRequired = errors.New("sii access required")
	ErrRateLimited       = errors.New("backend rate limited")
	ErrRejected          = errors.New("backend rejected request")
	ErrMissingCredential = errors.New("email and password are required")
)

type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend api error: %s", e.Status)
	}
	return fmt.Sprintf("backend api error: %s: %s", e.Status, e.Body)
}

// Credentials supplies the bearer token and the selected company for each
// call.
type Credentials interface {
	Token() string
	SelectedCompanyID() (int64, bool)
}

type Client struct {
	http       *resty.Client
	sii        *resty.Client
	creds      Credentials
	deviceName string
	logger     *zap.Logger
}

func NewClient(cfg config.Config, creds Credentials, logger *zap.Logger) *Client {
	c := &Client{
		creds:      creds,
		deviceName: cfg.DeviceName,
		logger:     logger.Named("api"),
	}

	c.http = c.newResty(cfg.APIBaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(1).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return resp != nil && resp.StatusCode() == http.StatusTooManyRequests
		})

	// SII queries run for minutes upstream: no retries, and every phase of
	// the call gets its own budget.
	c.sii = c.newResty(cfg.APIBaseURL).
		SetTransport(&http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.SIIConnectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   cfg.SIIConnectTimeout,
			ResponseHeaderTimeout: cfg.SIIReadTimeout,
			IdleConnTimeout:       90 * time.Second,
		}).
		SetTimeout(cfg.SIITotalTimeout)

	return c
}

func (c *Client) newResty(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			if req.Header.Get(headerRequestID) == "" {
				req.SetHeader(headerRequestID, uuid.NewString())
			}
			return nil
		}).
		OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
			c.logger.Debug("backend call",
				zap.String("method", resp.Request.Method),
				zap.String("url", resp.Request.URL),
				zap.Int("status", resp.StatusCode()),
				zap.Duration("elapsed", resp.Time()),
				zap.String("request_id", resp.Request.Header.Get(headerRequestID)),
				zap.String("token", logging.RedactToken(resp.Request.Token)),
			)
			return nil
		})
}

// Login does not need a session; the caller stores the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return LoginResponse{}, ErrMissingCredential
	}

	var out LoginResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(loginRequest{Email: email, Password: password, DeviceName: c.deviceName}).
		SetResult(&out).
		Post("mobile/login")
	if err != nil {
		return LoginResponse{}, fmt.Errorf("backend request: %w", err)
	}
	if resp.IsError() {
		return LoginResponse{}, apiErrorFromResponse(resp)
	}
	if !out.Success || strings.TrimSpace(out.Token) == "" {
		return LoginResponse{}, rejected(out.Message)
	}

	c.logger.Info("logged in",
		zap.Int64("user_id", out.User.ID),
		zap.Int("companies", len(out.User.Companies)),
		zap.String("token", logging.RedactToken(out.Token)),
	)
	return out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	var out envelope
	return c.do(c.authed(ctx).SetResult(&out), http.MethodPost, "mobile/logout", &out)
}

func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	var out userResponse
	if err := c.do(c.authed(ctx).SetResult(&out), http.MethodGet, "mobile/user", &out.envelope); err != nil {
		return User{}, err
	}
	return out.User, nil
}

func (c *Client) Companies(ctx context.Context) ([]Company, error) {
	var out companiesResponse
	if err := c.do(c.authed(ctx).SetResult(&out), http.MethodGet, "mobile/empresas", &out.envelope); err != nil {
		return nil, err
	}
	return out.Companies, nil
}

func (c *Client) CurrentCompany(ctx context.Context) (Company, error) {
	var out companyResponse
	if err := c.do(c.authed(ctx).SetResult(&out), http.MethodGet, "mobile/empresa/actual", &out.envelope); err != nil {
		return Company{}, err
	}
	return out.Company, nil
}

// SwitchCompany asks the backend to switch its notion of the current
// company. Local selection is kept by the session store.
func (c *Client) SwitchCompany(ctx context.Context, companyID int64) error {
	var out envelope
	path := fmt.Sprintf("mobile/empresa/cambiar/%d", companyID)
	return c.do(c.authed(ctx).SetResult(&out), http.MethodPost, path, &out)
}

func (c *Client) ListInvoices(ctx context.Context, companyID int64, query InvoiceQuery) (InvoicePage, error) {
	params := map[string]string{}
	if query.Page > 0 {
		params["page"] = strconv.Itoa(query.Page)
	}
	if query.PerPage > 0 {
		params["per_page"] = strconv.Itoa(query.PerPage)
	}
	for key, value := range map[string]string{
		"search": query.Search,
		"anio":   query.Year,
		"mes":    query.Month,
		"estado": query.Status,
	} {
		if value = strings.TrimSpace(value); value != "" {
			params[key] = value
		}
	}

	var out invoicesResponse
	req := c.companyScoped(ctx, companyID).SetQueryParams(params).SetResult(&out)
	if err := c.do(req, http.MethodGet, "mobile/facturas/ventas", &out.envelope); err != nil {
		return InvoicePage{}, err
	}

	var tally decode.Tally
	for _, invoice := range out.Invoices {
		tally.Observe(invoice.fields()...)
	}
	if tally.Coerced() > 0 {
		c.logger.Warn("invoice list fields defaulted",
			zap.Int64("company_id", companyID),
			zap.Int("coerced", tally.Coerced()),
		)
	}

	return InvoicePage{
		Invoices:       out.Invoices,
		Pagination:     out.Pagination,
		FiltersApplied: out.FiltersApplied,
		Coerced:        tally.Coerced(),
	}, nil
}

func (c *Client) Invoice(ctx context.Context, companyID, invoiceID int64) (InvoiceDetail, error) {
	var out invoiceResponse
	path := fmt.Sprintf("mobile/facturas/ventas/%d", invoiceID)
	req := c.companyScoped(ctx, companyID).SetResult(&out)
	if err := c.do(req, http.MethodGet, path, &out.envelope); err != nil {
		return InvoiceDetail{}, err
	}

	var tally decode.Tally
	tally.Observe(out.Invoice.fields()...)
	if tally.Coerced() > 0 {
		c.logger.Warn("invoice detail fields defaulted",
			zap.Int64("invoice_id", invoiceID),
			zap.Int("coerced", tally.Coerced()),
		)
	}
	return out.Invoice, nil
}

// request is a resty request that may already carry a setup error, such as
// a missing session.
type request struct {
	*resty.Request
	err error
}

func (r request) SetResult(v any) request {
	if r.Request != nil {
		r.Request.SetResult(v)
	}
	return r
}

func (r request) SetQueryParams(params map[string]string) request {
	if r.Request != nil {
		r.Request.SetQueryParams(params)
	}
	return r
}

func (c *Client) authed(ctx context.Context) request {
	return c.authedOn(ctx, c.http)
}

func (c *Client) authedOn(ctx context.Context, client *resty.Client) request {
	token := ""
	if c.creds != nil {
		token = strings.TrimSpace(c.creds.Token())
	}
	if token == "" {
		return request{err: ErrNoSession}
	}
	return request{Request: client.R().SetContext(ctx).SetAuthToken(token)}
}

func (c *Client) companyScoped(ctx context.Context, companyID int64) request {
	return c.companyScopedOn(ctx, c.http, companyID)
}

func (c *Client) companyScopedOn(ctx context.Context, client *resty.Client, companyID int64) request {
	req := c.authedOn(ctx, client)
	if req.err != nil {
		return req
	}
	if companyID <= 0 {
		return request{err: ErrNoCompany}
	}
	req.SetHeader(headerCompanyID, strconv.FormatInt(companyID, 10))
	return req
}

func (c *Client) do(req request, method, path string, env *envelope) error {
	if req.err != nil {
		return req.err
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("backend request: %w", err)
	}
	if resp.IsError() {
		return apiErrorFromResponse(resp)
	}
	if env != nil && !env.Success.Value {
		return rejected(env.Message)
	}
	return nil
}

func rejected(message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return ErrRejected
	}
	return fmt.Errorf("%w: %s", ErrRejected, message)
}

func apiErrorFromResponse(resp *resty.Response) error {
	body := strings.TrimSpace(resp.String())
	apiErr := &APIError{
		StatusCode: resp.StatusCode(),
		Status:     resp.Status(),
		Body:       body,
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", ErrUnauthorized, apiErr)
	case IsSIIAccessDenial(resp.StatusCode(), body):
		return fmt.Errorf("%w: %w", ErrSIIAccessRequired, apiErr)
	case resp.StatusCode() == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrRateLimited, apiErr)
	default:
		return apiErr
	}
}

// IsSIIAccessDenial reports whether a response means the backend dropped
// its SII session for the company.
func IsSIIAccessDenial(statusCode int, body string) bool {
	return statusCode == http.StatusForbidden && strings.Contains(body, siiAccessMarker)
}
