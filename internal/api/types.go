package api

import (
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/decode"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/paging"
)

type Company struct {
	ID        int64  `json:"id"`
	LegalName string `json:"razon_social"`
	Role      string `json:"rol"`
}

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Companies []Company `json:"empresas"`
}

type LoginResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	User      User   `json:"user"`
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresAt string `json:"expires_at"`
}

// Invoice is a sales invoice as listed by the backend.
type Invoice struct {
	ID            int64         `json:"id"`
	Number        *string       `json:"numero_factura"`
	Folio         decode.Int    `json:"folio"`
	IssueDate     string        `json:"fecha_emision"`
	DueDate       *string       `json:"fecha_vencimiento"`
	CustomerTaxID string        `json:"rut_cliente"`
	CustomerName  string        `json:"razon_social_cliente"`
	NetAmount     decode.Amount `json:"monto_neto"`
	VATAmount     decode.Amount `json:"monto_iva"`
	TotalAmount   decode.Amount `json:"monto_total"`
	Paid          decode.Bool   `json:"pagada"`
	StatusText    string        `json:"estado_text"`
	DocumentType  decode.Int    `json:"tipo_dte"`
	ContactName   *string       `json:"contacto_nombre"`
}

func (i Invoice) fields() []decode.Observed {
	return []decode.Observed{i.Folio, i.NetAmount, i.VATAmount, i.TotalAmount, i.Paid, i.DocumentType}
}

type Customer struct {
	ID        int64   `json:"id"`
	TaxID     string  `json:"rut"`
	LegalName string  `json:"razon_social"`
	Address   *string `json:"direccion"`
	Phone     *string `json:"telefono"`
	Email     *string `json:"correo"`
	Manager   *string `json:"encargado"`
	Mobile    *string `json:"celular"`
}

type Contact struct {
	ID         int64   `json:"id"`
	CustomerID int64   `json:"id_cliente"`
	Name       string  `json:"nombre"`
	TaxID      *string `json:"rut_personal"`
	Email      *string `json:"correo_principal"`
	Phone      *string `json:"telefono_fijo"`
	Mobile     *string `json:"telefono_celular_1"`
	Sector     *string `json:"sector"`
}

// InvoiceDetail is the full invoice with its customer and contact, when the
// backend includes them.
type InvoiceDetail struct {
	ID              int64         `json:"id"`
	Folio           decode.Int    `json:"folio"`
	DocumentType    decode.Int    `json:"tipo_dte"`
	DocumentName    string        `json:"tipo_dte_string"`
	CustomerID      decode.Int    `json:"id_cliente"`
	CustomerTaxID   string        `json:"rut_cliente"`
	CustomerName    string        `json:"razon_social_cliente"`
	ContactID       decode.Int    `json:"id_contacto"`
	IssueDate       string        `json:"fecha_emision"`
	ReceptionDate   string        `json:"fecha_recepcion"`
	DueDate         *string       `json:"fecha_vencimiento"`
	NetAmount       decode.Amount `json:"monto_neto"`
	VATAmount       decode.Amount `json:"monto_iva"`
	TotalAmount     decode.Amount `json:"monto_total"`
	ExemptAmount    decode.Amount `json:"monto_exento"`
	SaleType        string        `json:"tipo_venta"`
	Status          string        `json:"estado"`
	Paid            decode.Bool   `json:"pagada"`
	PaymentMethod   *string       `json:"metodo_pago"`
	PaymentDate     *string       `json:"fecha_pago"`
	Comment         *string       `json:"comentario"`
	OperationNumber *string       `json:"numero_operacion"`
	Number          *string       `json:"numero_factura"`
	ContactName     *string       `json:"contacto_nombre"`
	ContactEmail    *string       `json:"contacto_correo"`
	Customer        *Customer     `json:"cliente"`
	Contact         *Contact      `json:"contacto"`
}

func (d InvoiceDetail) fields() []decode.Observed {
	return []decode.Observed{
		d.Folio, d.DocumentType, d.CustomerID, d.ContactID,
		d.NetAmount, d.VATAmount, d.TotalAmount, d.ExemptAmount, d.Paid,
	}
}

// InvoiceQuery selects one page of the invoice list. Empty filters are not
// sent.
type InvoiceQuery struct {
	Page    int
	PerPage int
	Search  string
	Year    string
	Month   string
	Status  string
}

type FiltersApplied struct {
	CompanyID decode.Text `json:"empresa_id"`
	Search    *string     `json:"search"`
	Year      decode.Text `json:"anio"`
	Month     decode.Text `json:"mes"`
	Status    *string     `json:"estado"`
}

type InvoicePage struct {
	Invoices       []Invoice
	Pagination     paging.Pagination
	FiltersApplied FiltersApplied
	// Coerced counts amount fields the decoder had to default.
	Coerced int
}

type envelope struct {
	Success decode.Bool `json:"success"`
	Message string      `json:"message"`
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	DeviceName string `json:"device_name"`
}

type userResponse struct {
	envelope
	User User `json:"user"`
}

type companiesResponse struct {
	envelope
	Companies []Company `json:"empresas"`
}

type companyResponse struct {
	envelope
	Company Company `json:"empresa"`
}

type invoicesResponse struct {
	envelope
	Invoices       []Invoice         `json:"facturas"`
	Pagination     paging.Pagination `json:"pagination"`
	FiltersApplied FiltersApplied    `json:"filters_applied"`
}

type invoiceResponse struct {
	envelope
	Invoice InvoiceDetail `json:"factura"`
}

type validateRequest struct {
	Secret string `json:"password_sii"`
}
