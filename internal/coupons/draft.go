package coupons

import (
	"errors"
	"html"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"github.com/pinaka-makhana/storefront/internal/backend"
)

// Draft is the coupon form as the back office submits it.
type Draft struct {
	Code                  string            `json:"code" validate:"max=32"`
	Description           string            `json:"description" validate:"max=500"`
	DiscountType          DiscountType      `json:"discountType"`
	DiscountValue         float64           `json:"discountValue"`
	MinimumOrderAmount    float64           `json:"minimumOrderAmount" validate:"gte=0"`
	MaximumDiscountAmount *float64          `json:"maximumDiscountAmount" validate:"omitempty,gt=0"`
	StartDate             backend.Timestamp `json:"startDate"`
	EndDate               backend.Timestamp `json:"endDate"`
	UsageLimit            *int              `json:"usageLimit" validate:"omitempty,gt=0"`
	UserUsageLimit        *int              `json:"userUsageLimit" validate:"omitempty,gt=0"`
	Active                bool              `json:"active"`
	FirstTimeUserOnly     bool              `json:"firstTimeUserOnly"`
	FreeShipping          bool              `json:"freeShipping"`
}

// NewDraft seeds a form the way the admin screen opens it.
func NewDraft() Draft {
	return Draft{DiscountType: DiscountPercentage, Active: true}
}

// DraftFrom turns an existing coupon back into an editable form.
func DraftFrom(c Coupon) Draft {
	return Draft{
		Code:                  c.Code,
		Description:           c.Description,
		DiscountType:          DiscountType(c.DiscountType),
		DiscountValue:         c.DiscountValue,
		MinimumOrderAmount:    c.MinimumOrderAmount,
		MaximumDiscountAmount: c.MaximumDiscountAmount,
		StartDate:             c.StartDate,
		EndDate:               c.EndDate,
		UsageLimit:            c.UsageLimit,
		UserUsageLimit:        c.UserUsageLimit,
		Active:                c.Active,
		FirstTimeUserOnly:     c.FirstTimeUserOnly,
		FreeShipping:          c.FreeShipping,
	}
}

var (
	validate    = validator.New()
	plainPolicy = bluemonday.StrictPolicy()
)

var boundMessages = map[string]string{
	"Code":                  "Coupon code must be at most 32 characters",
	"Description":           "Description must be at most 500 characters",
	"MinimumOrderAmount":    "Minimum order amount cannot be negative",
	"MaximumDiscountAmount": "Maximum discount must be greater than 0",
	"UsageLimit":            "Usage limit must be greater than 0",
	"UserUsageLimit":        "Per-user limit must be greater than 0",
}

// ValidateDraft normalizes the draft and checks it. Errors are *ValidationError.
func ValidateDraft(d Draft) (Draft, error) {
	d.Code = NormalizeCode(d.Code)
	d.Description = sanitizeText(d.Description)
	if d.DiscountType == "" {
		d.DiscountType = DiscountPercentage
	}
	d.DiscountType = DiscountType(strings.ToUpper(string(d.DiscountType)))

	verr := newValidationError()
	if d.Code == "" {
		verr.add("code", "Coupon code is required")
	}
	if d.Description == "" {
		verr.add("description", "Description is required")
	}
	if !d.DiscountType.Valid() {
		verr.add("discountType", "Discount type must be PERCENTAGE, FIXED_AMOUNT or FREE_SHIPPING")
	}
	if d.DiscountValue <= 0 {
		verr.add("discountValue", "Discount value must be greater than 0")
	} else if d.DiscountType == DiscountPercentage && d.DiscountValue > 100 {
		verr.add("discountValue", "Percentage discount cannot exceed 100%")
	}
	if d.StartDate.IsZero() {
		verr.add("startDate", "Start date is required")
	}
	if d.EndDate.IsZero() {
		verr.add("endDate", "End date is required")
	}
	if !d.StartDate.IsZero() && !d.EndDate.IsZero() && d.StartDate.After(d.EndDate.Time) {
		verr.add("endDate", "End date must be after start date")
	}

	if err := validate.Struct(d); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return d, err
		}
		for _, fe := range fieldErrs {
			if msg, ok := boundMessages[fe.StructField()]; ok {
				verr.add(lowerFirst(fe.StructField()), msg)
			}
		}
	}

	if !verr.empty() {
		return d, verr
	}
	return d, nil
}

// Coupon converts a validated draft into the backend record.
func (d Draft) Coupon() Coupon {
	return Coupon{
		Code:                  d.Code,
		Description:           d.Description,
		DiscountType:          string(d.DiscountType),
		DiscountValue:         d.DiscountValue,
		MinimumOrderAmount:    d.MinimumOrderAmount,
		MaximumDiscountAmount: d.MaximumDiscountAmount,
		StartDate:             d.StartDate,
		EndDate:               d.EndDate,
		UsageLimit:            d.UsageLimit,
		UserUsageLimit:        d.UserUsageLimit,
		Active:                d.Active,
		FirstTimeUserOnly:     d.FirstTimeUserOnly,
		FreeShipping:          d.FreeShipping,
	}
}

// sanitizeText strips markup but keeps characters like "&" readable.
func sanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(plainPolicy.Sanitize(s)))
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
