package receipts

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/supserrr/vevurn-sub002/internal/sales"
	"github.com/supserrr/vevurn-sub002/pkg/enums"
	"github.com/supserrr/vevurn-sub002/pkg/money"
)

// Width is the character width of the thermal printer roll.
const Width = 40

// Kigali is the default receipt zone (CAT, UTC+2).
var Kigali = time.FixedZone("CAT", 2*60*60)

// Shop is the header printed on every receipt.
type Shop struct {
	Name    string
	Address string
	TIN     string
}

// Renderer formats sales as plain-text receipts.
type Renderer struct {
	shop     Shop
	vatRate  decimal.Decimal
	currency string
	format   money.Formatter
	loc      *time.Location
}

func NewRenderer(shop Shop, vatRate decimal.Decimal, currency string, places int32) *Renderer {
	return &Renderer{
		shop:     shop,
		vatRate:  vatRate,
		currency: strings.ToUpper(strings.TrimSpace(currency)),
		format:   money.NewFormatter(currency, places),
		loc:      Kigali,
	}
}

// In returns a copy of the renderer printing times in loc.
func (r *Renderer) In(loc *time.Location) *Renderer {
	if loc == nil {
		return r
	}
	out := *r
	out.loc = loc
	return &out
}

// Details are the names resolved for the sale's cashier and customer.
type Details struct {
	CashierName  string
	CustomerName string
}

// Render lays the sale out line by line at Width columns.
func (r *Renderer) Render(sale *sales.SaleDTO, details Details) string {
	var b strings.Builder
	rule := strings.Repeat("-", Width)

	center(&b, r.shop.Name)
	if r.shop.Address != "" {
		center(&b, r.shop.Address)
	}
	if r.shop.TIN != "" {
		center(&b, "TIN: "+r.shop.TIN)
	}
	if sale.Status == enums.SaleStatusVoided {
		center(&b, "*** VOIDED ***")
	}
	line(&b, rule)
	line(&b, "Sale: "+sale.SaleNumber)
	line(&b, "Date: "+sale.CreatedAt.In(r.loc).Format("2006-01-02 15:04"))
	if details.CashierName != "" {
		line(&b, "Cashier: "+details.CashierName)
	}
	if details.CustomerName != "" {
		line(&b, "Customer: "+details.CustomerName)
	}
	line(&b, rule)

	for _, item := range sale.Items {
		line(&b, item.Name)
		qty := fmt.Sprintf("  %d x %s", item.Quantity, r.format.Amount(item.UnitPrice))
		columns(&b, qty, r.format.Amount(item.TotalPrice))
		if item.Discount.IsPositive() {
			line(&b, "  was "+r.format.Amount(item.OriginalPrice))
		}
	}
	line(&b, rule)

	columns(&b, "Subtotal", r.format.Amount(sale.Subtotal))
	columns(&b, "VAT "+r.vatRate.Shift(2).String()+"%", r.format.Amount(sale.TaxAmount))
	if sale.DiscountAmount.IsPositive() {
		columns(&b, "Discount", "-"+r.format.Amount(sale.DiscountAmount))
	}
	columns(&b, "TOTAL", r.format.WithCurrency(sale.TotalAmount))
	line(&b, rule)

	columns(&b, "Payment", paymentLabel(sale.PaymentMethod))
	if sale.MomoPhone != nil {
		columns(&b, "MoMo", *sale.MomoPhone)
	}
	if sale.PaymentReference != nil {
		columns(&b, "Ref", *sale.PaymentReference)
	}
	if sale.CashReceived != nil {
		columns(&b, "Cash", r.format.Amount(*sale.CashReceived))
	}
	if sale.ChangeAmount != nil {
		columns(&b, "Change", r.format.Amount(*sale.ChangeAmount))
	}
	line(&b, rule)
	center(&b, "Murakoze! Thank you!")
	return b.String()
}

func paymentLabel(method enums.PaymentMethod) string {
	switch method {
	case enums.PaymentMethodCash:
		return "Cash"
	case enums.PaymentMethodMomoMTN:
		return "MTN MoMo"
	case enums.PaymentMethodMomoAirtel:
		return "Airtel Money"
	case enums.PaymentMethodBankTransfer:
		return "Bank transfer"
	case enums.PaymentMethodCard:
		return "Card"
	default:
		return method.String()
	}
}

func line(b *strings.Builder, text string) {
	b.WriteString(clip(text, Width))
	b.WriteByte('\n')
}

func center(b *strings.Builder, text string) {
	text = clip(strings.TrimSpace(text), Width)
	pad := (Width - len([]rune(text))) / 2
	line(b, strings.Repeat(" ", pad)+text)
}

// columns prints left and right justified text on one line, clipping the
// left side when both do not fit.
func columns(b *strings.Builder, left, right string) {
	right = clip(right, Width)
	room := Width - len([]rune(right)) - 1
	if room < 0 {
		room = 0
	}
	left = clip(left, room)
	gap := Width - len([]rune(left)) - len([]rune(right))
	if gap < 1 {
		gap = 1
	}
	line(b, left+strings.Repeat(" ", gap)+right)
}

func clip(text string, width int) string {
	runes := []rune(text)
	if len(runes) <= width {
		return text
	}
	return string(runes[:width])
}
