package comments

import (
	"errors"
	"strings"

	"github.com/UkralStul/taskboard-comments/internal/domain"
	"github.com/go-playground/validator/v10"
)

// MaxContentLength is the longest comment body accepted, in characters.
const MaxContentLength = 2000

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// AddCommentInput is the caller-supplied part of a new comment.
type AddCommentInput struct {
	Content           string `validate:"required,notblank,max=2000"`
	ParentCommentID   *string
	FileAttachmentURL *string `validate:"omitempty,url"`
}

// UpdateCommentInput replaces the author-mutable fields of a comment.
type UpdateCommentInput struct {
	Content           string  `validate:"required,notblank,max=2000"`
	FileAttachmentURL *string `validate:"omitempty,url"`
}

// check runs the struct tags and turns the first failure into a ValidationError.
func check(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	switch fe.Field() {
	case "Content":
		if fe.Tag() == "max" {
			return domain.NewValidationError("Comment content must be at most %d characters.", MaxContentLength)
		}
		return domain.NewValidationError("Comment content is required.")
	case "FileAttachmentURL":
		return domain.NewValidationError("File attachment URL must be a valid URL.")
	}
	return domain.NewValidationError("Invalid %s.", fe.Field())
}

// blankToNil treats an empty optional string as absent.
func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
