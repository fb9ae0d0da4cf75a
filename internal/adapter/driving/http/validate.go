package httphandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ericfisherdev/tracklink/internal/domain/model"
)

// maxRequestBody caps JSON request bodies other than webhooks.
const maxRequestBody = 1 << 20

// requestValidator wraps go-playground/validator for request bodies.
type requestValidator struct {
	validator *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails for an empty tag or a nil func.
	_ = v.RegisterValidation("task_status", func(fl validator.FieldLevel) bool {
		return model.TaskStatus(fl.Field().String()).IsValid()
	})
	return &requestValidator{validator: v}
}

func taskStatusList() string {
	all := model.AllTaskStatuses()
	names := make([]string, 0, len(all))
	for _, s := range all {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

// check returns a client-facing message for the first failing field.
func (v *requestValidator) check(i any) error {
	if err := v.validator.Struct(i); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fe := validationErrors[0]
			if fe.Tag() == "task_status" {
				return fmt.Errorf("field %s must be one of %s", fe.Field(), taskStatusList())
			}
			return fmt.Errorf("field %s failed on '%s' validation", fe.Field(), fe.Tag())
		}
		return err
	}
	return nil
}

// decode reads a JSON body into dst and validates it. It writes the 400
// response itself and reports whether the handler should continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}

	if err := h.validate.check(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}

	return true
}
