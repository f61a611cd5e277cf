package middleware

import (
	"errors"
	"reflect"
	"strings"

	"github.com/erp/shopledger/internal/domain/sales"
	"github.com/erp/shopledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// SetupValidator registers the ledger's custom tags on gin's validator.
// It must run before the first request is bound.
func SetupValidator() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}
	return RegisterValidations(v)
}

// RegisterValidations adds the ledger tags to v
func RegisterValidations(v *validator.Validate) error {
	// Use JSON tag names for field names in errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})

	// Amounts are validated as their canonical decimal string
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	validations := map[string]validator.Func{
		"decimal_gt0":    decimalGreaterThanZero,
		"decimal_gte0":   decimalNotNegative,
		"payment_method": paymentMethod,
		"discount_type":  discountType,
	}
	for tag, fn := range validations {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

func fieldDecimal(fl validator.FieldLevel) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(fl.Field().String())
	return d, err == nil
}

func decimalGreaterThanZero(fl validator.FieldLevel) bool {
	d, ok := fieldDecimal(fl)
	return ok && d.IsPositive()
}

func decimalNotNegative(fl validator.FieldLevel) bool {
	d, ok := fieldDecimal(fl)
	return ok && !d.IsNegative()
}

func paymentMethod(fl validator.FieldLevel) bool {
	return sales.PaymentMethod(fl.Field().String()).IsValid()
}

func discountType(fl validator.FieldLevel) bool {
	return sales.DiscountType(fl.Field().String()).IsValid()
}

// FormatValidationErrors formats validation errors into a standard response.
// Anything that is not a field validation error is reported as malformed JSON.
func FormatValidationErrors(err error, requestID string) dto.Response {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return dto.NewErrorResponseWithRequestID(dto.ErrCodeInvalidJSON, "Malformed request body", requestID)
	}

	details := make([]dto.ValidationDetail, 0, len(validationErrors))
	for _, e := range validationErrors {
		details = append(details, dto.ValidationDetail{
			Field:   fieldPath(e),
			Message: getValidationMessage(e),
		})
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// fieldPath drops the struct name from the namespace: items[0].quantity
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return e.Field()
}

// getValidationMessage returns a human-readable validation message
func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		if e.Kind() == reflect.Slice {
			return "Must contain at least " + e.Param() + " item(s)"
		}
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "decimal_gt0":
		return "Must be a number greater than 0"
	case "decimal_gte0":
		return "Must be a number greater than or equal to 0"
	case "payment_method":
		return "Must be one of: cash, card, bank_transfer, cheque, mixed"
	case "discount_type":
		return "Must be one of: none, percentage, fixed"
	default:
		return "Invalid value"
	}
}
