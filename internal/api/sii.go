package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Paulobirribarra/Facturas-App-Movil/internal/sii"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Result is the outcome of an SII endpoint call that reached the backend.
// Non-2xx statuses are reported here rather than as errors so that the
// caller can classify them.
type Result struct {
	StatusCode int
	// Success is the response-level success flag; false for non-2xx.
	Success bool
	// Body is the decoded envelope. It is nil when the body was not a JSON
	// object.
	Body *sii.Response
	// ErrorBody is the raw body of a failed call.
	ErrorBody string
}

// Message is the backend message, if any.
func (r Result) Message() string {
	if r.Body == nil {
		return ""
	}
	return strings.TrimSpace(r.Body.Message.Value)
}

// AccessDenied reports the 403 the backend sends once its SII session for
// the company is gone.
func (r Result) AccessDenied() bool {
	return IsSIIAccessDenial(r.StatusCode, r.ErrorBody)
}

// QuerySales pulls the sales register for month/year from the SII. It can
// take minutes.
func (c *Client) QuerySales(ctx context.Context, companyID int64, month, year int) (Result, error) {
	return c.querySII(ctx, companyID, "mobile/sii/consultar-ventas", month, year)
}

// QueryPurchases pulls the purchases register for month/year from the SII.
func (c *Client) QueryPurchases(ctx context.Context, companyID int64, month, year int) (Result, error) {
	return c.querySII(ctx, companyID, "mobile/sii/consultar-compras", month, year)
}

func (c *Client) querySII(ctx context.Context, companyID int64, path string, month, year int) (Result, error) {
	req := c.companyScopedOn(ctx, c.sii, companyID).SetQueryParams(map[string]string{
		"mes":  strconv.Itoa(month),
		"anio": strconv.Itoa(year),
	})
	return c.executeSII(req, http.MethodGet, path)
}

// ValidateAccess sends the company's SII secret to the backend, which opens
// its own SII session on success.
func (c *Client) ValidateAccess(ctx context.Context, companyID int64, secret string) (Result, error) {
	req := c.companyScoped(ctx, companyID)
	if req.Request != nil {
		req.SetBody(validateRequest{Secret: secret})
	}
	return c.executeSII(req, http.MethodPost, "mobile/sii/validar-acceso")
}

func (c *Client) AccessStatus(ctx context.Context, companyID int64) (Result, error) {
	return c.executeSII(c.companyScoped(ctx, companyID), http.MethodGet, "mobile/sii/estado-acceso")
}

func (c *Client) RevokeAccess(ctx context.Context, companyID int64) (Result, error) {
	return c.executeSII(c.companyScoped(ctx, companyID), http.MethodPost, "mobile/sii/revocar-acceso")
}

func (c *Client) executeSII(req request, method, path string) (Result, error) {
	if req.err != nil {
		return Result{}, req.err
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return Result{}, fmt.Errorf("backend request: %w", err)
	}

	result := resultFromResponse(resp)
	c.logger.Info("sii call finished",
		zap.String("path", path),
		zap.Int("status", result.StatusCode),
		zap.Bool("success", result.Success),
		zap.Duration("elapsed", resp.Time()),
	)
	return result, nil
}

func resultFromResponse(resp *resty.Response) Result {
	result := Result{StatusCode: resp.StatusCode()}
	body := resp.Body()

	if resp.IsError() {
		result.ErrorBody = strings.TrimSpace(string(body))
		if parsed, err := sii.ParseResponse(body); err == nil {
			result.Body = &parsed
		}
		return result
	}

	parsed, err := sii.ParseResponse(body)
	if err != nil {
		result.ErrorBody = strings.TrimSpace(string(body))
		return result
	}
	result.Body = &parsed
	result.Success = parsed.Success.Value
	return result
}
