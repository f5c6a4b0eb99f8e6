package receipt

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/dynatos/pos-terminal/internal/domain"
)

// Width is the number of characters an 80mm thermal roll prints per line.
const Width = 48

const layout = `{{center .StoreName}}
{{if .StoreTaxID}}{{center (printf "NIT: %s" .StoreTaxID)}}
{{end}}{{rule}}
Fecha: {{.IssuedAt.Format "2006-01-02 15:04"}}
Factura: {{.SaleNumber}}
Cajero: {{.Cashier}}
{{if .Customer}}Cliente: {{.Customer}}
{{end}}{{rule}}
{{columns "CANT DESCRIPCION" "SUBTOTAL"}}
{{range .Lines}}{{item .}}
{{end}}{{rule}}
{{columns "BASE" (money .Tax.Base)}}
{{columns "IVA 19%" (money .Tax.Tax)}}
{{columns "TOTAL" (money .Tax.Total)}}
{{rule}}
Pago: {{method .Method}}
{{columns "Recibido" (money .Received)}}
{{columns "Cambio" (money .Change)}}
{{rule}}
{{center "Gracias por su compra"}}
`

var receiptTemplate = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"center":  center,
	"rule":    func() string { return strings.Repeat("-", Width) },
	"columns": columns,
	"money":   money,
	"item":    item,
	"method":  methodLabel,
}).Parse(layout))

// Render writes the fixed-width text receipt.
func Render(w io.Writer, r domain.Receipt) error {
	if err := receiptTemplate.Execute(w, r); err != nil {
		return fmt.Errorf("failed to render receipt %s: %w", r.SaleNumber, err)
	}
	return nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func center(s string) string {
	n := utf8.RuneCountInString(s)
	if n >= Width {
		return truncate(s, Width)
	}
	return strings.Repeat(" ", (Width-n)/2) + s
}

// columns puts left and right on one line, right-aligned to Width.
func columns(left, right string) string {
	gap := Width - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	if gap < 1 {
		left = truncate(left, Width-utf8.RuneCountInString(right)-1)
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func item(l domain.CartLine) string {
	qty := fmt.Sprintf("%4d ", l.Quantity)
	subtotal := money(l.Subtotal())
	name := truncate(l.Name, Width-len(qty)-len(subtotal)-1)
	head := columns(qty+name, subtotal)
	if l.Quantity == 1 {
		return head
	}
	return head + "\n     @ " + money(l.UnitPrice)
}

func methodLabel(m domain.PaymentMethod) string {
	switch m {
	case domain.PaymentCash:
		return "EFECTIVO"
	case domain.PaymentElectronic:
		return "QR / TRANSFERENCIA"
	}
	return string(m)
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
