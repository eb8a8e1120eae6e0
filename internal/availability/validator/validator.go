package validator

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"barberline/internal/catalog"
	"barberline/pkg/logger"
	"barberline/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Details flattens the errors into a field → message map for AppError details.
func (v ValidationErrors) Details() map[string]any {
	details := make(map[string]any, len(v))
	for _, err := range v {
		details[err.Field] = err.Message
	}
	return details
}

type AvailabilityValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewAvailabilityValidator(log *logger.Logger) *AvailabilityValidator {
	v := validator.New()

	if err := v.RegisterValidation("service_code", validateServiceCode); err != nil {
		log.Fatal("Failed to register 'service_code' validator",
			"error", err,
		)
	}

	log.Debug("Availability validator initialized successfully")

	return &AvailabilityValidator{
		validate: v,
		logger:   log,
	}
}

func validateServiceCode(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	if code == "" {
		return false
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && r != '_' {
			return false
		}
	}
	return true
}

func (v *AvailabilityValidator) ValidateDetails(details *model.AppointmentDetails) error {
	return v.structErrors(details)
}

func (v *AvailabilityValidator) ValidateAppointment(appt *model.Appointment) error {
	return v.structErrors(appt)
}

// ValidateCatalog checks field rules and the references between services,
// barbers and opening hours.
func (v *AvailabilityValidator) ValidateCatalog(cat *catalog.Catalog) error {
	if err := v.structErrors(cat); err != nil {
		return err
	}

	var errs ValidationErrors
	seenServices := map[string]bool{}
	for _, s := range cat.Services {
		if seenServices[s.ID] {
			errs = append(errs, ValidationError{Field: "Services", Message: fmt.Sprintf("duplicate service id %s", s.ID)})
		}
		seenServices[s.ID] = true
	}

	seenBarbers := map[string]bool{}
	for _, b := range cat.Barbers {
		if seenBarbers[b.ID] {
			errs = append(errs, ValidationError{Field: "Barbers", Message: fmt.Sprintf("duplicate barber id %s", b.ID)})
		}
		seenBarbers[b.ID] = true
		for _, id := range b.ServiceIDs {
			if !seenServices[id] {
				errs = append(errs, ValidationError{
					Field:   "Barbers",
					Message: fmt.Sprintf("barber %s offers unknown service %s", b.ID, id),
				})
			}
		}
	}

	for _, s := range cat.Services {
		if len(cat.QualifiedBarbers(s.ID)) == 0 {
			errs = append(errs, ValidationError{
				Field:   "Services",
				Message: fmt.Sprintf("no active barber offers %s", s.ID),
			})
		}
	}

	openMin, closeMin, err := cat.OpenClose()
	if err != nil {
		errs = append(errs, ValidationError{Field: "Hours", Message: err.Error()})
	} else if closeMin-openMin < model.SlotBlockMinutes {
		errs = append(errs, ValidationError{
			Field:   "Hours",
			Message: "close must be at least one slot block after open",
		})
	} else {
		longest := slices.MaxFunc(cat.Services, func(a, b model.Service) int { return a.DurationMin - b.DurationMin })
		if longest.DurationMin > closeMin-openMin {
			errs = append(errs, ValidationError{
				Field:   "Services",
				Message: fmt.Sprintf("%s is longer than the working day", longest.ID),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *AvailabilityValidator) structErrors(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *AvailabilityValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "e164":
			message = fmt.Sprintf("%s must be in E.164 format (e.g., +15551234567)", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "uuid4":
			message = fmt.Sprintf("%s must be a UUID", err.Field())
		case "uppercase", "service_code":
			message = fmt.Sprintf("%s must be an upper-case service code", err.Field())
		case "alphanum":
			message = fmt.Sprintf("%s must contain only letters and digits", err.Field())
		case "datetime":
			message = fmt.Sprintf("%s must be a clock time like %s", err.Field(), err.Param())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
