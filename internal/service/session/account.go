package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"go.uber.org/zap"

	"github.com/BhargavCodes/ai-vault/internal/apperr"
	"github.com/BhargavCodes/ai-vault/internal/backend"
)

var validate = newValidator()

func newValidator() func(any) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return func(in any) error {
		err := v.Struct(in)
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		return errors.New(strings.Join(msgs, "; "))
	}
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required", "notblank":
		return field + " is required"
	case "gt", "gte":
		return fmt.Sprintf("%s must be at least %s", field, bumpIfGT(fe))
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "nefield":
		return field + " must differ from the current password"
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}

func bumpIfGT(fe validator.FieldError) string {
	if fe.Tag() == "gt" && fe.Param() == "0" {
		return "1"
	}
	return fe.Param()
}

type loginInput struct {
	Name     string `validate:"required,notblank"`
	Password string `validate:"required"`
}

// SignupInput is a new account request.
type SignupInput struct {
	Name     string `validate:"required,notblank"`
	Age      int    `validate:"gt=0,lte=150"`
	Password string `validate:"required,notblank"`
}

type resetInput struct {
	Token       string `validate:"required,notblank"`
	NewPassword string `validate:"required,notblank"`
}

type changeInput struct {
	OldPassword string `validate:"required"`
	NewPassword string `validate:"required,notblank,nefield=OldPassword"`
}

// Signup registers an account. It does not log in.
func (s *Service) Signup(ctx context.Context, in SignupInput) error {
	const op = "signup"
	in.Name = strings.TrimSpace(in.Name)
	if err := validate(in); err != nil {
		return apperr.Precondition(op, err.Error())
	}
	tracker := s.notifier.Start(op, "Creating account...")
	err := s.backend.Signup(ctx, backend.SignupRequest{Name: in.Name, Age: in.Age, Password: in.Password})
	if err != nil {
		tracker.Failure(failureText(err, "Signup failed"), err)
		return apperr.New(apperr.KindAccount, op, err)
	}
	tracker.Success("Account created! Please log in.")
	return nil
}

// ForgotPassword requests a reset token. The backend may return it directly; an
// empty string means it was delivered out of band or the user is unknown.
func (s *Service) ForgotPassword(ctx context.Context, name string) (string, error) {
	const op = "forgot password"
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Precondition(op, "name is required")
	}
	tracker := s.notifier.Start(op, "Requesting reset...")
	token, err := s.backend.ForgotPassword(ctx, name)
	if err != nil {
		tracker.Failure(failureText(err, "Could not start password reset"), err)
		return "", apperr.New(apperr.KindAccount, op, err)
	}
	tracker.Success("If the user exists, a reset process has been initiated.")
	return token, nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	const op = "reset password"
	in := resetInput{Token: strings.TrimSpace(token), NewPassword: newPassword}
	if err := validate(in); err != nil {
		return apperr.Precondition(op, err.Error())
	}
	tracker := s.notifier.Start(op, "Resetting password...")
	if err := s.backend.ResetPassword(ctx, in.Token, in.NewPassword); err != nil {
		tracker.Failure(failureText(err, "Invalid or expired token"), err)
		return apperr.New(apperr.KindAccount, op, err)
	}
	tracker.Success("Password reset successfully! Please login.")
	return nil
}

func (s *Service) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	const op = "change password"
	if _, err := s.RequireUser(op); err != nil {
		return err
	}
	in := changeInput{OldPassword: oldPassword, NewPassword: newPassword}
	if err := validate(in); err != nil {
		return apperr.Precondition(op, err.Error())
	}
	tracker := s.notifier.Start(op, "Updating password...")
	if err := s.backend.ChangePassword(ctx, in.OldPassword, in.NewPassword); err != nil {
		tracker.Failure(failureText(err, "Failed to update password"), err)
		return apperr.New(apperr.KindAccount, op, err)
	}
	tracker.Success("Password updated successfully!")
	return nil
}

// UpdateAvatar uploads a profile image and then refreshes the identity so the new
// picture URL is visible.
func (s *Service) UpdateAvatar(ctx context.Context, data []byte, filename string) error {
	const op = "update avatar"
	if _, err := s.RequireUser(op); err != nil {
		return err
	}
	if len(data) == 0 {
		return apperr.Precondition(op, "image is empty")
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return apperr.Precondition(op, "profile picture must be an image, got "+mt.String())
	}
	if strings.TrimSpace(filename) == "" {
		filename = "avatar" + mt.Extension()
	}

	tracker := s.notifier.Start(op, "Updating profile picture...")
	url, err := s.backend.UploadAvatar(ctx, backend.Payload{
		Filename: filename,
		MIMEType: mt.String(),
		Data:     bytes.NewReader(data),
	})
	if err != nil {
		tracker.Failure("Failed to update image", err)
		return apperr.New(apperr.KindAccount, op, err)
	}
	s.logger.Debug("avatar uploaded", zap.String("url", url))
	s.Refresh(ctx)
	tracker.Success("Profile picture updated!")
	return nil
}
