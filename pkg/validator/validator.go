package validator

import (
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"videopath-backend/internal/models"
)

var (
	validate  *validator.Validate
	sanitizer *bluemonday.Policy
	spaces    = regexp.MustCompile(`\s+`)
)

func Init() {
	validate = validator.New()

	sanitizer = bluemonday.StrictPolicy()

	registerCustomValidations(validate)

	if engine, ok := binding.Validator.Engine().(*validator.Validate); ok {
		registerCustomValidations(engine)
	}
}

func registerCustomValidations(v *validator.Validate) {
	v.RegisterValidation("question_type", validateQuestionType)
}

func Validate(s interface{}) error {
	if validate == nil {
		Init()
	}
	return validate.Struct(s)
}

// SanitizeString strips every tag from s and collapses runs of whitespace.
func SanitizeString(s string) string {
	policy := sanitizer
	if policy == nil {
		policy = bluemonday.StrictPolicy()
	}
	return NormalizeSpaces(strings.TrimSpace(policy.Sanitize(s)))
}

func NormalizeSpaces(s string) string {
	return spaces.ReplaceAllString(s, " ")
}

func validateQuestionType(fl validator.FieldLevel) bool {
	return models.QuestionType(strings.TrimSpace(fl.Field().String())).Valid()
}
