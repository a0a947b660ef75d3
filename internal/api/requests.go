package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/slidecraft/slides-cli/internal/output"
)

// LoginRequest authenticates a user or admin.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest creates an account from an invite code.
type RegisterRequest struct {
	InviteCode string `json:"invite_code" validate:"required"`
	Username   string `json:"username" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// RedeemRequest redeems a score code.
type RedeemRequest struct {
	Code string `json:"code" validate:"required"`
}

// PasswordRequest changes the current user's password.
type PasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,nefield=OldPassword"`
}

// CreatePresentationRequest starts a new presentation.
type CreatePresentationRequest struct {
	Topic string `json:"topic" validate:"required"`
}

// RenamePresentationRequest changes a presentation's title.
type RenamePresentationRequest struct {
	Title string `json:"title" validate:"required"`
}

// SetActiveVersionRequest selects a slide version.
type SetActiveVersionRequest struct {
	VersionID string `json:"version_id" validate:"required"`
}

// CreateUserRequest is an admin-created account.
type CreateUserRequest struct {
	Username      string `json:"username" validate:"required"`
	Password      string `json:"password" validate:"required"`
	InitialScores int    `json:"initial_scores" validate:"gte=0"`
}

// ConfigUpdateRequest changes score settings. Nil fields are left alone.
type ConfigUpdateRequest struct {
	ScoresPerSlide      *int `json:"scores_per_slide,omitempty" validate:"omitempty,gte=1"`
	RegisterBonusScores *int `json:"register_bonus_scores,omitempty" validate:"omitempty,gte=0"`
}

// InviteCodesRequest generates invite codes.
type InviteCodesRequest struct {
	Count int `json:"count" validate:"gte=1,lte=100"`
}

// RedemptionCodesRequest generates score codes.
type RedemptionCodesRequest struct {
	Scores int `json:"scores" validate:"gte=1"`
	Count  int `json:"count" validate:"gte=1,lte=100"`
}

// emptyBody is sent for POSTs that take no parameters.
type emptyBody struct{}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest checks a request body before it is sent.
func validateRequest(body any) error {
	v := reflect.ValueOf(body)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	err := validate.Struct(body)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return output.ErrUsage(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "nefield":
		return fmt.Sprintf("%s must differ from the current password", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
}
