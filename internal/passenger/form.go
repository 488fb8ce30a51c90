package passenger

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/robertarktes/bus-booking-gateway/internal/domain"
)

var mobileRegex = regexp.MustCompile(`^[0-9]{10}$`)

// Form is one passenger per selected seat plus the shared contact fields.
type Form struct {
	Passengers []domain.PassengerRecord `json:"passengers" validate:"dive"`
	domain.Contact
}

// Normalize trims whitespace the browser form may carry.
func (f Form) Normalize() Form {
	out := Form{Contact: domain.Contact{
		Mobile: strings.TrimSpace(f.Mobile),
		Email:  strings.TrimSpace(f.Email),
	}}
	out.Passengers = make([]domain.PassengerRecord, len(f.Passengers))
	for i, p := range f.Passengers {
		out.Passengers[i] = domain.PassengerRecord{
			Name:   strings.TrimSpace(p.Name),
			Age:    p.Age,
			Gender: domain.Gender(strings.ToLower(strings.TrimSpace(string(p.Gender)))),
		}
	}
	return out
}

var messages = map[string]string{
	"required": "Required",
	"gt":       "Must be positive",
	"oneof":    "Required",
	"mobile10": "Must be a valid 10-digit mobile",
	"email":    "Invalid email",
}

type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("mobile10", func(fl validator.FieldLevel) bool {
		return mobileRegex.MatchString(fl.Field().String())
	}); err != nil {
		panic(errors.Wrap(err, "register mobile10 validation"))
	}
	return &Validator{v: v}
}

// Validate checks form against seatCount selected seats. It returns a
// *domain.ValidationError listing every failing field, or nil.
func (v *Validator) Validate(form Form, seatCount int) error {
	verr := &domain.ValidationError{}

	if len(form.Passengers) != seatCount {
		verr.Add("passengers", "Must fill all passengers")
	}

	if err := v.v.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return errors.Wrap(err, "validate passenger form")
		}
		for _, fe := range fieldErrs {
			verr.Add(fieldName(fe), message(fe.Tag()))
		}
	}

	if verr.Empty() {
		return nil
	}
	return verr
}

// fieldName turns "Form.passengers[0].name" into "passengers[0].name"; the
// embedded Contact contributes its own segment which is dropped too.
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.TrimPrefix(ns, "Contact.")
}

func message(tag string) string {
	if m, ok := messages[tag]; ok {
		return m
	}
	return "Invalid"
}
