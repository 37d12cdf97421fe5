package render

import (
	"html/template"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jmgilman/go/errors"

	"github.com/muandane/special-stack/invoicer/internal/invoice"
)

var invoiceTemplate = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"money": formatMoney,
	"date":  formatDate,
	"qty":   formatQuantity,
}).Parse(invoiceHTML))

// ComposeHTML writes the invoice markup handed to the conversion engine.
func ComposeHTML(w io.Writer, inv *invoice.Invoice) error {
	if err := invoiceTemplate.Execute(w, inv); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to compose invoice html")
	}
	return nil
}

func formatMoney(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + "$" + humanize.FormatFloat("#,###.##", float64(cents)/100)
}

func formatDate(t time.Time) string {
	return t.Format("January 2, 2006")
}

func formatQuantity(q float64) string {
	return humanize.FormatFloat("#,###.##", q)
}

const invoiceHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Invoice {{.Number}}</title>
<style>
@page { size: letter; margin: 0.6in; }
body { font-family: -apple-system, Helvetica, Arial, sans-serif; color: #1f2937; font-size: 12px; }
header { display: flex; justify-content: space-between; margin-bottom: 32px; }
h1 { font-size: 28px; margin: 0; color: #4338ca; }
.meta td { padding: 2px 8px 2px 0; }
.parties { display: flex; justify-content: space-between; margin-bottom: 24px; }
.parties h3 { font-size: 11px; text-transform: uppercase; color: #6b7280; margin-bottom: 4px; }
table.items { width: 100%; border-collapse: collapse; }
table.items th { text-align: left; background: #eef2ff; padding: 8px; }
table.items td { padding: 8px; border-bottom: 1px solid #e5e7eb; }
.num { text-align: right; }
.totals { margin-left: auto; margin-top: 16px; }
.totals td { padding: 4px 8px; }
.total { font-weight: bold; font-size: 14px; }
.status { padding: 2px 8px; border-radius: 4px; background: #f3f4f6; }
.notes { margin-top: 32px; color: #4b5563; }
</style>
</head>
<body>
<header>
  <div>
    <h1>INVOICE</h1>
    <table class="meta">
      <tr><td>Number</td><td>{{.Number}}</td></tr>
      <tr><td>Date</td><td>{{date .InvoiceDate}}</td></tr>
      <tr><td>Due</td><td>{{date .DueDate}}</td></tr>
    </table>
  </div>
  <div><span class="status">{{.Status}}</span></div>
</header>
<section class="parties">
  <div>
    <h3>From</h3>
    <strong>{{.Company.Name}}</strong><br>
    {{with .Company.Address}}{{.}}<br>{{end}}
    {{with .Company.City}}{{.}}<br>{{end}}
    {{with .Company.Phone}}{{.}}<br>{{end}}
    {{with .Company.Email}}{{.}}{{end}}
  </div>
  <div>
    <h3>Bill To</h3>
    <strong>{{.Client.Name}}</strong><br>
    {{with .Client.Address}}{{.}}<br>{{end}}
    {{with .Client.City}}{{.}}<br>{{end}}
    {{with .Client.Email}}{{.}}{{end}}
  </div>
</section>
<table class="items">
  <thead>
    <tr><th>Item</th><th class="num">Qty</th><th class="num">Rate</th><th class="num">Amount</th></tr>
  </thead>
  <tbody>
  {{range .Items}}
    <tr>
      <td>{{.Name}}{{with .Description}}<br><small>{{.}}</small>{{end}}</td>
      <td class="num">{{qty .Quantity}}</td>
      <td class="num">{{money .RateCents}}</td>
      <td class="num">{{money .AmountCents}}</td>
    </tr>
  {{end}}
  </tbody>
</table>
<table class="totals">
  <tr><td>Subtotal</td><td class="num">{{money .SubtotalCents}}</td></tr>
  <tr><td>Tax ({{qty .TaxRate}}%)</td><td class="num">{{money .TaxCents}}</td></tr>
  <tr class="total"><td>Total</td><td class="num">{{money .TotalCents}}</td></tr>
</table>
{{with .Notes}}<p class="notes">{{.}}</p>{{end}}
</body>
</html>
`
