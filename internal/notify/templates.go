package notify

import (
	"html/template"
	"strconv"
)

var reservationTemplate = template.Must(template.New("reservation").Funcs(template.FuncMap{
	"price": formatPrice,
}).Parse(`<h2>New reservation</h2>
<table>
  <tr><td><strong>Product</strong></td><td>{{.ProductName}}</td></tr>
  <tr><td><strong>Price</strong></td><td>{{price .ProductPrice}}</td></tr>
  <tr><td><strong>Quantity</strong></td><td>{{.Quantity}}</td></tr>
  {{- range $name, $value := .SelectedOptions}}
  <tr><td><strong>{{$name}}</strong></td><td>{{$value}}</td></tr>
  {{- end}}
  <tr><td><strong>Customer</strong></td><td>{{.CustomerName}}</td></tr>
  <tr><td><strong>Email</strong></td><td>{{.CustomerEmail}}</td></tr>
  <tr><td><strong>Phone</strong></td><td>{{.CustomerPhone}}</td></tr>
</table>
{{- if .ProductImage}}
<p><img src="{{.ProductImage}}" alt="{{.ProductName}}" width="240"></p>
{{- end}}
`))

var inviteTemplate = template.Must(template.New("invite").Parse(`<h2>Admin invitation</h2>
<p>{{if .InvitedBy}}{{.InvitedBy}} has invited you{{else}}You have been invited{{end}} to manage the store as {{.Email}}.</p>
<p>Sign in with this email address to accept: <a href="{{.LoginURL}}">{{.LoginURL}}</a></p>
`))

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
