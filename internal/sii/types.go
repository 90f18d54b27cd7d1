package sii

import (
	"fmt"
	"strings"

	"github.com/Paulobirribarra/Facturas-App-Movil/internal/decode"

	"github.com/shopspring/decimal"
)

type QueryKind string

const (
	KindSales     QueryKind = "ventas"
	KindPurchases QueryKind = "compras"
)

// ParseKind accepts the Spanish and English names of a query kind.
func ParseKind(value string) (QueryKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "ventas", "venta", "sales", "sale", "v":
		return KindSales, nil
	case "compras", "compra", "purchases", "purchase", "c":
		return KindPurchases, nil
	default:
		return "", fmt.Errorf("unknown sii query kind %q", value)
	}
}

// Record is the canonical invoice row every SII consumer reads, whatever
// wire shape it came from.
type Record struct {
	Folio             string          `json:"folio"`
	CounterpartyTaxID string          `json:"counterparty_tax_id"`
	CounterpartyName  string          `json:"counterparty_name"`
	IssueDate         string          `json:"issue_date"`
	NetAmount         decimal.Decimal `json:"net_amount"`
	VATAmount         decimal.Decimal `json:"vat_amount"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Status            string          `json:"status"`
}

// FlatRecord is one row of the legacy flat result list.
type FlatRecord struct {
	Folio        decode.Text   `json:"folio"`
	RutCliente   decode.Text   `json:"rut_cliente"`
	RazonSocial  decode.Text   `json:"razon_social"`
	FechaEmision decode.Text   `json:"fecha_emision"`
	MontoNeto    decode.Amount `json:"monto_neto"`
	MontoIva     decode.Amount `json:"monto_iva"`
	MontoTotal   decode.Amount `json:"monto_total"`
	Estado       decode.Text   `json:"estado"`
}

func (r FlatRecord) fields() []decode.Observed {
	return []decode.Observed{r.Folio, r.RutCliente, r.RazonSocial, r.FechaEmision, r.MontoNeto, r.MontoIva, r.MontoTotal, r.Estado}
}

// SalesDetail is one row of the nested sales register.
type SalesDetail struct {
	Folio                      decode.Int    `json:"folio"`
	TipoDte                    decode.Int    `json:"tipoDte"`
	TipoVenta                  decode.Text   `json:"tipoVenta"`
	RutCliente                 decode.Text   `json:"rutCliente"`
	RazonSocial                decode.Text   `json:"razonSocial"`
	FechaEmision               decode.Text   `json:"fechaEmision"`
	FechaRecepcion             decode.Text   `json:"fechaRecepcion"`
	FechaAcuseRecibo           decode.Text   `json:"fechaAcuseRecibo"`
	FechaReclamo               decode.Text   `json:"fechaReclamo"`
	MontoExento                decode.Amount `json:"montoExento"`
	MontoNeto                  decode.Amount `json:"montoNeto"`
	MontoIva                   decode.Amount `json:"montoIva"`
	MontoTotal                 decode.Amount `json:"montoTotal"`
	IvaRetenidoTotal           decode.Amount `json:"ivaRetenidoTotal"`
	IvaRetenidoParcial         decode.Amount `json:"ivaRetenidoParcial"`
	IvaNoRetenido              decode.Amount `json:"ivaNoRetenido"`
	IvaPropio                  decode.Amount `json:"ivaPropio"`
	IvaTerceros                decode.Amount `json:"ivaTerceros"`
	IvaFueraPlazo              decode.Amount `json:"ivaFueraPlazo"`
	RutEmisorLiquidacion       decode.Text   `json:"rutEmisorLiquidacion"`
	NetoComisionLiquidacion    decode.Amount `json:"netoComisionLiquidacion"`
	ExentoComisionLiquidacion  decode.Amount `json:"exentoComisionLiquidacion"`
	IvaComisionLiquidacion     decode.Amount `json:"ivaComisionLiquidacion"`
	ImpuestoZonaFranca         decode.Amount `json:"impuestoZonaFranca"`
	CreditoEmpresaConstructora decode.Amount `json:"creditoEmpresaConstructora"`
	GarantiaEnvases            decode.Amount `json:"garantiaEnvases"`
	MontoNoFacturable          decode.Amount `json:"montoNoFacturable"`
	MontoPeriodo               decode.Amount `json:"montoPeriodo"`
	OtroImpuestoCodigo         decode.Text   `json:"otroImpuestoCodigo"`
	OtroImpuestoValor          decode.Amount `json:"otroImpuestoValor"`
	OtroImpuestoTasa           decode.Amount `json:"otroImpuestoTasa"`
	Estado                     decode.Text   `json:"estado"`
}

func (d SalesDetail) fields() []decode.Observed {
	return []decode.Observed{
		d.Folio, d.TipoDte, d.TipoVenta, d.RutCliente, d.RazonSocial, d.FechaEmision,
		d.FechaRecepcion, d.FechaAcuseRecibo, d.FechaReclamo, d.MontoExento, d.MontoNeto,
		d.MontoIva, d.MontoTotal, d.IvaRetenidoTotal, d.IvaRetenidoParcial, d.IvaNoRetenido,
		d.IvaPropio, d.IvaTerceros, d.IvaFueraPlazo, d.RutEmisorLiquidacion,
		d.NetoComisionLiquidacion, d.ExentoComisionLiquidacion, d.IvaComisionLiquidacion,
		d.ImpuestoZonaFranca, d.CreditoEmpresaConstructora, d.GarantiaEnvases,
		d.MontoNoFacturable, d.MontoPeriodo, d.OtroImpuestoCodigo, d.OtroImpuestoValor,
		d.OtroImpuestoTasa, d.Estado,
	}
}

// PurchaseDetail is one row of the nested purchases register. Purchases
// carry recoverable VAT rather than the flat VAT of sales.
type PurchaseDetail struct {
	Folio                     decode.Int    `json:"folio"`
	TipoDte                   decode.Int    `json:"tipoDte"`
	TipoCompra                decode.Text   `json:"tipoCompra"`
	RutProveedor              decode.Text   `json:"rutProveedor"`
	RazonSocial               decode.Text   `json:"razonSocial"`
	FechaEmision              decode.Text   `json:"fechaEmision"`
	FechaRecepcion            decode.Text   `json:"fechaRecepcion"`
	FechaAcuse                decode.Text   `json:"fechaAcuse"`
	MontoExento               decode.Amount `json:"montoExento"`
	MontoNeto                 decode.Amount `json:"montoNeto"`
	MontoIvaRecuperable       decode.Amount `json:"montoIvaRecuperable"`
	MontoIvaNoRecuperable     decode.Amount `json:"montoIvaNoRecuperable"`
	CodigoIvaNoRecuperable    decode.Text   `json:"codigoIvaNoRecuperable"`
	MontoTotal                decode.Amount `json:"montoTotal"`
	MontoNetoActivoFijo       decode.Amount `json:"montoNetoActivoFijo"`
	IvaActivoFijo             decode.Amount `json:"ivaActivoFijo"`
	IvaUsoComun               decode.Amount `json:"ivaUsoComun"`
	ImpuestoSinDerechoCredito decode.Amount `json:"impuestoSinDerechoCredito"`
	IvaNoRetenido             decode.Amount `json:"ivaNoRetenido"`
	TabacosPuros              decode.Amount `json:"tabacosPuros"`
	TabacosCigarrillos        decode.Amount `json:"tabacosCigarrillos"`
	TabacosElaborados         decode.Amount `json:"tabacosElaborados"`
	NceNdeSobreFacturaCompra  decode.Amount `json:"nceNdeSobreFacturaCompra"`
	OtroImpuestoCodigo        decode.Text   `json:"otroImpuestoCodigo"`
	OtroImpuestoValor         decode.Amount `json:"otroImpuestoValor"`
	OtroImpuestoTasa          decode.Amount `json:"otroImpuestoTasa"`
	Estado                    decode.Text   `json:"estado"`
}

func (d PurchaseDetail) fields() []decode.Observed {
	return []decode.Observed{
		d.Folio, d.TipoDte, d.TipoCompra, d.RutProveedor, d.RazonSocial, d.FechaEmision,
		d.FechaRecepcion, d.FechaAcuse, d.MontoExento, d.MontoNeto, d.MontoIvaRecuperable,
		d.MontoIvaNoRecuperable, d.CodigoIvaNoRecuperable, d.MontoTotal, d.MontoNetoActivoFijo,
		d.IvaActivoFijo, d.IvaUsoComun, d.ImpuestoSinDerechoCredito, d.IvaNoRetenido,
		d.TabacosPuros, d.TabacosCigarrillos, d.TabacosElaborados, d.NceNdeSobreFacturaCompra,
		d.OtroImpuestoCodigo, d.OtroImpuestoValor, d.OtroImpuestoTasa, d.Estado,
	}
}
