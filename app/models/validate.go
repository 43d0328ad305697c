package models

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	namePattern  = `[A-ZÄÖÜ][a-zäöüß]+`
	emailPattern = `^[\w.%-]+@[\w.%-]+\.[A-Za-z]{2,4}$`
)

var (
	lastNameRe = regexp.MustCompile(`^((o'|von und zu|von der|von|van) ?)?` + namePattern + `(-` + namePattern + `)?$`)
	emailRe    = regexp.MustCompile(emailPattern)

	maxDiscount = decimal.RequireFromString("0.5")
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func engine() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("lastname", func(fl validator.FieldLevel) bool {
			return lastNameRe.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("mailaddress", func(fl validator.FieldLevel) bool {
			return emailRe.MatchString(fl.Field().String())
		})
		v.RegisterStructValidation(customerRules, Customer{})
		validate = v
	})
	return validate
}

// customerRules checks what struct tags cannot express: decimal ranges, the
// past-date rule and the variant payload.
func customerRules(sl validator.StructLevel) {
	c := sl.Current().Interface().(Customer)

	if c.Discount.IsNegative() || c.Discount.GreaterThan(maxDiscount) || !c.Discount.Equal(c.Discount.Round(4)) {
		sl.ReportError(c.Discount, "discount", "Discount", "discount", "")
	}
	if c.Revenue.IsNegative() || !c.Revenue.Equal(c.Revenue.Round(2)) || c.Revenue.Abs().GreaterThanOrEqual(decimal.New(1, 10)) {
		sl.ReportError(c.Revenue, "revenue", "Revenue", "revenue", "")
	}
	if !c.Since.IsZero() && c.Since.After(time.Now()) {
		sl.ReportError(c.Since, "since", "Since", "past", "")
	}
	if c.Kind == KindCorporate && !c.Private.IsZero() {
		sl.ReportError(c.Private, "private", "Private", "variant", "")
	}
}

// Violation describes one failed rule.
type Violation struct {
	Field string
	Rule  string
	Param string
}

// ValidationError lists every rule a value failed.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		if v.Param != "" {
			parts[i] = fmt.Sprintf("%s: %s=%s", v.Field, v.Rule, v.Param)
		} else {
			parts[i] = fmt.Sprintf("%s: %s", v.Field, v.Rule)
		}
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field failed any rule.
func (e *ValidationError) Has(field string) bool {
	for _, v := range e.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

// Validate checks v against its struct tags and registered rules. It returns
// nil or a *ValidationError.
func Validate(v interface{}) error {
	err := engine().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range fieldErrs {
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		out.Violations = append(out.Violations, Violation{Field: ns, Rule: fe.Tag(), Param: fe.Param()})
	}
	return out
}

// ValidateRegistration checks a new customer together with its identity.
func ValidateRegistration(c *Customer, id *Identity) error {
	var violations []Violation
	collect := func(err error, prefix string) error {
		var ve *ValidationError
		if errors.As(err, &ve) {
			for _, v := range ve.Violations {
				v.Field = prefix + v.Field
				violations = append(violations, v)
			}
			return nil
		}
		return err
	}

	if err := collect(Validate(c), ""); err != nil {
		return err
	}
	if id == nil {
		violations = append(violations, Violation{Field: "identity", Rule: "required"})
	} else if err := collect(Validate(id), "identity."); err != nil {
		return err
	}
	if !c.TermsAccepted {
		violations = append(violations, Violation{Field: "termsAccepted", Rule: "accepted"})
	}
	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}
