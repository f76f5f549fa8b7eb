// Package checkout turns the cart into a plain-text order message and a WhatsApp deep link.
// No order is stored; the shop owner confirms over chat.
package checkout

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/Skotchmaster/nolmart/internal/models"
)

var ErrEmptyCart = errors.New("cart is empty")

const (
	whatsAppBase = "https://wa.me/"
	closing      = "Please confirm availability and guide me on payment and delivery. Thank you!"
)

type Handoff struct {
	StoreName string
	Number    string
	Currency  string

	printer *message.Printer
}

func NewHandoff(storeName, number, currency string) *Handoff {
	return &Handoff{
		StoreName: storeName,
		Number:    strings.TrimPrefix(strings.ReplaceAll(number, " ", ""), "+"),
		Currency:  currency,
		printer:   message.NewPrinter(language.English),
	}
}

type Link struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}

// FormatPrice renders d with thousands separators and two decimals, prefixed by the currency.
// The digits come from the decimal itself, so large totals stay exact.
func (h *Handoff) FormatPrice(d decimal.Decimal) string {
	fixed := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")

	amount := sign + h.group(whole) + "." + frac
	if h.Currency == "" {
		return amount
	}
	return h.Currency + " " + amount
}

// group inserts thousands separators into a run of integer digits.
func (h *Handoff) group(whole string) string {
	if n, err := strconv.ParseInt(whole, 10, 64); err == nil {
		p := h.printer
		if p == nil {
			p = message.NewPrinter(language.English)
		}
		return p.Sprint(number.Decimal(n))
	}

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// OrderMessage itemizes every line with its quantity, unit price and line total, then the grand total.
func (h *Handoff) OrderMessage(lines []models.CartLine) (string, error) {
	if len(lines) == 0 {
		return "", ErrEmptyCart
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello, I'd like to place an order for the following items from %s:\n\n", h.StoreName)

	total := decimal.Zero
	for i, l := range lines {
		fmt.Fprintf(&b, "%d. %s\n", i+1, l.Name)
		fmt.Fprintf(&b, "   Quantity: %d\n", l.Quantity)
		fmt.Fprintf(&b, "   Unit Price: %s\n", h.FormatPrice(l.UnitPrice))
		fmt.Fprintf(&b, "   Item Total: %s\n\n", h.FormatPrice(l.Total()))
		total = total.Add(l.Total())
	}

	fmt.Fprintf(&b, "*Total Order Value: %s*\n\n", h.FormatPrice(total))
	b.WriteString(closing)
	return b.String(), nil
}

func (h *Handoff) BuyNowMessage(p models.Product) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello, I'd like to buy one unit of the following product from %s:\n\n", h.StoreName)
	fmt.Fprintf(&b, "Product: %s\n", p.Name)
	fmt.Fprintf(&b, "Price: %s\n", h.FormatPrice(p.Price))
	fmt.Fprintf(&b, "Product ID: %s\n\n", p.ID)
	b.WriteString(closing)
	return b.String()
}

// URL builds the wa.me link carrying msg as the prefilled text.
func (h *Handoff) URL(msg string) string {
	return whatsAppBase + h.Number + "?text=" + strings.ReplaceAll(url.QueryEscape(msg), "+", "%20")
}

func (h *Handoff) Order(lines []models.CartLine) (Link, error) {
	msg, err := h.OrderMessage(lines)
	if err != nil {
		return Link{}, err
	}
	return Link{Message: msg, URL: h.URL(msg)}, nil
}

func (h *Handoff) BuyNow(p models.Product) (Link, error) {
	if err := p.Validate(); err != nil {
		return Link{}, err
	}
	msg := h.BuyNowMessage(p)
	return Link{Message: msg, URL: h.URL(msg)}, nil
}
