package telegram

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// LabeledPrice is a portion of the price for goods or services, in the
// smallest units of the currency.
type LabeledPrice struct {
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
}

// Invoice contains basic information about an invoice.
type Invoice struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	StartParameter string `json:"start_parameter"`
	Currency       string `json:"currency"`
	TotalAmount    int64  `json:"total_amount"`
}

// Price returns the invoice total as a decimal amount of the currency.
func (i *Invoice) Price() decimal.Decimal { return AmountToDecimal(i.TotalAmount, i.Currency) }

// ShippingAddress is a shipping address.
type ShippingAddress struct {
	CountryCode string `json:"country_code"`
	State       string `json:"state"`
	City        string `json:"city"`
	StreetLine1 string `json:"street_line1"`
	StreetLine2 string `json:"street_line2"`
	PostCode    string `json:"post_code"`
}

// OrderInfo is information about an order.
type OrderInfo struct {
	Name            string           `json:"name,omitempty"`
	PhoneNumber     string           `json:"phone_number,omitempty"`
	Email           string           `json:"email,omitempty"`
	ShippingAddress *ShippingAddress `json:"shipping_address,omitempty"`
}

// ShippingOption is one shipping option.
type ShippingOption struct {
	ID     string         `json:"id"`
	Title  string         `json:"title"`
	Prices []LabeledPrice `json:"prices"`
}

// ShippingQuery is an incoming shipping query.
type ShippingQuery struct {
	ID              string          `json:"id"`
	From            User            `json:"from"`
	InvoicePayload  string          `json:"invoice_payload"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
}

// PreCheckoutQuery is an incoming pre-checkout query.
type PreCheckoutQuery struct {
	ID               string     `json:"id"`
	From             User       `json:"from"`
	Currency         string     `json:"currency"`
	TotalAmount      int64      `json:"total_amount"`
	InvoicePayload   string     `json:"invoice_payload"`
	ShippingOptionID string     `json:"shipping_option_id,omitempty"`
	OrderInfo        *OrderInfo `json:"order_info,omitempty"`
}

// Price returns the total as a decimal amount of the currency.
func (q *PreCheckoutQuery) Price() decimal.Decimal {
	return AmountToDecimal(q.TotalAmount, q.Currency)
}

// SuccessfulPayment contains basic information about a successful payment.
type SuccessfulPayment struct {
	Currency                string     `json:"currency"`
	TotalAmount             int64      `json:"total_amount"`
	InvoicePayload          string     `json:"invoice_payload"`
	ShippingOptionID        string     `json:"shipping_option_id,omitempty"`
	OrderInfo               *OrderInfo `json:"order_info,omitempty"`
	TelegramPaymentChargeID string     `json:"telegram_payment_charge_id"`
	ProviderPaymentChargeID string     `json:"provider_payment_charge_id"`
}

// Price returns the total as a decimal amount of the currency.
func (p *SuccessfulPayment) Price() decimal.Decimal {
	return AmountToDecimal(p.TotalAmount, p.Currency)
}

// currencyExponents lists currencies whose minor unit is not 1/100.
var currencyExponents = map[string]int32{
	"CLP": 0,
	"IDR": 0,
	"ISK": 0,
	"JPY": 0,
	"KRW": 0,
	"PYG": 0,
	"UGX": 0,
	"VND": 0,
	"XTR": 0,
	"BHD": 3,
	"JOD": 3,
	"KWD": 3,
	"OMR": 3,
	"TND": 3,
}

// CurrencySymbols maps common currency codes to their display symbols.
var CurrencySymbols = map[string]string{
	"SGD": "S$",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CNY": "¥",
	"MYR": "RM",
	"THB": "฿",
	"IDR": "Rp",
	"PHP": "₱",
	"VND": "₫",
	"KRW": "₩",
	"INR": "₹",
	"AUD": "A$",
	"NZD": "NZ$",
	"HKD": "HK$",
	"TWD": "NT$",
	"XTR": "⭐",
}

// CurrencyExponent returns the number of decimal digits of the currency's minor unit.
func CurrencyExponent(currency string) int32 {
	if exp, ok := currencyExponents[strings.ToUpper(currency)]; ok {
		return exp
	}
	return 2
}

// AmountToDecimal converts an amount in the smallest currency units to a decimal.
func AmountToDecimal(amount int64, currency string) decimal.Decimal {
	return decimal.New(amount, -CurrencyExponent(currency))
}

// DecimalToAmount converts a decimal price to the smallest currency units. It
// fails when the price has more fractional digits than the currency allows.
func DecimalToAmount(price decimal.Decimal, currency string) (int64, error) {
	exp := CurrencyExponent(currency)
	scaled := price.Shift(exp)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("price %s has more than %d decimal places for %s", price, exp, currency)
	}
	return scaled.IntPart(), nil
}

// FormatAmount renders an amount in the smallest currency units for display,
// e.g. "S$12.50".
func FormatAmount(amount int64, currency string) string {
	currency = strings.ToUpper(currency)
	d := AmountToDecimal(amount, currency)
	text := d.StringFixed(CurrencyExponent(currency))
	if sym, ok := CurrencySymbols[currency]; ok {
		return sym + text
	}
	return text + " " + currency
}
