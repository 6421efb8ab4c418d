package quoteform

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// emailPattern is deliberately permissive: a local part, "@", and a domain
// containing a dot, with no whitespace anywhere.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const (
	reasonRequired = "is required"
	reasonEmail    = "must be a valid email address"
	reasonOption   = "must be one of the listed options"
)

// quoteRequest mirrors Record for struct-tag validation. The json tag carries
// the wire name so validator errors can be mapped back to a Field.
type quoteRequest struct {
	FullName        string `json:"fullName" validate:"trimmed"`
	Email           string `json:"email" validate:"trimmed,contact_email"`
	Phone           string `json:"phone" validate:"trimmed"`
	Company         string `json:"company"`
	ServiceInterest string `json:"serviceInterest" validate:"trimmed,enum=serviceInterest"`
	ProjectType     string `json:"projectType" validate:"trimmed,enum=projectType"`
	Timeline        string `json:"timeline" validate:"trimmed,enum=timeline"`
	BudgetRange     string `json:"budgetRange" validate:"omitempty,enum=budgetRange"`
	Location        string `json:"location" validate:"trimmed"`
	Message         string `json:"message" validate:"trimmed"`
	ContactMethod   string `json:"contactMethod" validate:"omitempty,enum=contactMethod"`
	HearAboutUs     string `json:"hearAboutUs" validate:"omitempty,enum=hearAboutUs"`
}

func newQuoteRequest(r Record) quoteRequest {
	return quoteRequest{
		FullName:        r.Get(FullName),
		Email:           r.Get(Email),
		Phone:           r.Get(Phone),
		Company:         r.Get(Company),
		ServiceInterest: r.Get(ServiceInterest),
		ProjectType:     r.Get(ProjectType),
		Timeline:        r.Get(Timeline),
		BudgetRange:     r.Get(BudgetRange),
		Location:        r.Get(Location),
		Message:         r.Get(Message),
		ContactMethod:   r.Get(ContactMethod),
		HearAboutUs:     r.Get(HearAboutUs),
	}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func formValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			return name
		})
		mustRegister(v, "trimmed", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		mustRegister(v, "contact_email", func(fl validator.FieldLevel) bool {
			return emailPattern.MatchString(strings.TrimSpace(fl.Field().String()))
		})
		mustRegister(v, "enum", func(fl validator.FieldLevel) bool {
			f, err := ParseField(fl.Param())
			if err != nil {
				return false
			}
			return f.Allows(fl.Field().String())
		})
		validate = v
	})
	return validate
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic("quoteform: register validation " + tag + ": " + err.Error())
	}
}

// ValidationResult is either valid or a list of every violated rule.
type ValidationResult struct {
	errs ValidationErrors
}

// OK reports whether the record may be submitted.
func (r ValidationResult) OK() bool {
	return len(r.errs) == 0
}

// Errors returns the violations in field declaration order.
func (r ValidationResult) Errors() ValidationErrors {
	return append(ValidationErrors(nil), r.errs...)
}

// Err returns the violations as an error, or nil when the result is valid.
func (r ValidationResult) Err() error {
	if r.OK() {
		return nil
	}
	return r.Errors()
}

// Validate checks r against the rule table. It has no side effects, and all
// rules run so every problem is reported at once.
func Validate(r Record) ValidationResult {
	err := formValidator().Struct(newQuoteRequest(r))
	if err == nil {
		return ValidationResult{}
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// Only reachable on programmer error (e.g. invalid struct tags).
		panic("quoteform: unexpected validator error: " + err.Error())
	}

	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		f, perr := ParseField(fe.Field())
		if perr != nil {
			continue
		}
		out = append(out, FieldError{Field: f, Reason: reasonFor(fe.Tag())})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return ValidationResult{errs: out}
}

func reasonFor(tag string) string {
	switch tag {
	case "contact_email":
		return reasonEmail
	case "enum":
		return reasonOption
	default:
		return reasonRequired
	}
}
