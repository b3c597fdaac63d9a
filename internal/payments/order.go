package payments

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// OrderData is the immutable checkout intent handed to a payment call. Amount is the
// order total in rupees, shipping included, before any COD surcharge.
type OrderData struct {
	Amount          decimal.Decimal `json:"amount" validate:"money"`
	OrderID         string          `json:"orderId" validate:"required,max=64"`
	CustomerID      string          `json:"customerId,omitempty" validate:"max=128"`
	CustomerName    string          `json:"customerName" validate:"max=120"`
	CustomerEmail   string          `json:"customerEmail" validate:"omitempty,email"`
	CustomerPhone   string          `json:"customerPhone" validate:"omitempty,min=10,max=15"`
	ShippingAddress string          `json:"shippingAddress" validate:"max=500"`
	// RazorpayOrderID is the server-created Razorpay order, when the backend issued one.
	RazorpayOrderID string `json:"razorpayOrderId,omitempty" validate:"max=64"`
}

// MinorUnits returns the amount in paise.
func (o OrderData) MinorUnits() int64 {
	return o.Amount.Shift(2).Round(0).IntPart()
}

// Normalized trims free-text fields; it never touches Amount.
func (o OrderData) Normalized() OrderData {
	o.OrderID = strings.TrimSpace(o.OrderID)
	o.CustomerID = strings.TrimSpace(o.CustomerID)
	o.CustomerName = strings.TrimSpace(o.CustomerName)
	o.CustomerEmail = strings.TrimSpace(o.CustomerEmail)
	o.CustomerPhone = strings.TrimSpace(o.CustomerPhone)
	o.ShippingAddress = strings.TrimSpace(o.ShippingAddress)
	return o
}

var orderMessages = map[string]string{
	"Amount":          "amount must be a positive value with at most two decimal places",
	"OrderID":         "order id is required",
	"CustomerID":      "customer id is too long",
	"CustomerName":    "customer name is too long",
	"CustomerEmail":   "customer email is invalid",
	"CustomerPhone":   "customer phone must be 10 to 15 digits",
	"ShippingAddress": "shipping address is too long",
	"RazorpayOrderID": "razorpay order id is too long",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			return false
		}
		return d.IsPositive() && d.Equal(d.Round(2))
	})
	return v
}

// Validate checks the order and returns *ValidationError listing every bad field.
func (o OrderData) Validate() error {
	err := validate.Struct(o)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := newValidationError()
	for _, fe := range fieldErrs {
		msg, ok := orderMessages[fe.StructField()]
		if !ok {
			msg = strings.ToLower(fe.StructField()) + " is invalid"
		}
		verr.add(jsonName(fe.StructField()), msg)
	}
	return verr
}

func jsonName(structField string) string {
	if structField == "" {
		return structField
	}
	switch structField {
	case "OrderID":
		return "orderId"
	case "CustomerID":
		return "customerId"
	case "RazorpayOrderID":
		return "razorpayOrderId"
	}
	return strings.ToLower(structField[:1]) + structField[1:]
}
