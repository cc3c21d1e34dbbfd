package e

import (
	"fmt"
	"strings"
)

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// 400 Bad Request
	ErrStatusBadRequest     = fmt.Errorf("bad request")
	ErrInvalidPrice         = fmt.Errorf("invalid price")
	ErrPricePrecision       = fmt.Errorf("price must have at most 2 decimal places")
	ErrExpectedMultipart    = fmt.Errorf("expected multipart/form-data")
	ErrNoImages             = fmt.Errorf("no images provided")
	ErrFileTooLarge         = fmt.Errorf("file too large")
	ErrUnsupportedMediaType = fmt.Errorf("unsupported media type")
	ErrDatabase             = fmt.Errorf("data integrity violation")

	// 401 Unauthorized
	ErrUnauthenticated = fmt.Errorf("unauthenticated")
	ErrBadCredentials  = fmt.Errorf("bad credentials")

	// 403 Forbidden
	ErrForbidden = fmt.Errorf("access denied")

	// 404 Not Found
	ErrResourceNotFound = fmt.Errorf("resource not found")

	// 422 Unprocessable Entity
	ErrValidation = fmt.Errorf("invalid data")

	// 500 Internal Server Error
	ErrInternalServerError = fmt.Errorf("internal server error")

	// Конфигурация
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}

// NotFoundError сообщает, какая сущность не найдена. Сравнивается с ErrResourceNotFound через errors.Is.
type NotFoundError struct {
	Kind string
	ID   int64
}

// NotFound возвращает ErrResourceNotFound с указанием сущности и её идентификатора.
func NotFound(kind string, id int64) error {
	return &NotFoundError{Kind: kind, ID: id}
}

func (n *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s %d", ErrResourceNotFound.Error(), n.Kind, n.ID)
}

func (n *NotFoundError) Unwrap() error {
	return ErrResourceNotFound
}

// FieldMessage описывает ошибку валидации одного поля.
type FieldMessage struct {
	FieldName string `json:"fieldName"`
	Message   string `json:"message"`
}

// ValidationError накапливает ошибки валидации полей запроса.
type ValidationError struct {
	Fields []FieldMessage
}

func NewValidationError() *ValidationError {
	return &ValidationError{}
}

// Add добавляет ошибку для поля.
func (v *ValidationError) Add(field, message string) {
	v.Fields = append(v.Fields, FieldMessage{FieldName: field, Message: message})
}

// OrNil возвращает nil, если ошибок не накоплено.
func (v *ValidationError) OrNil() error {
	if len(v.Fields) == 0 {
		return nil
	}

	return v
}

func (v *ValidationError) Error() string {
	parts := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		parts = append(parts, f.FieldName+": "+f.Message)
	}

	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (v *ValidationError) Unwrap() error {
	return ErrValidation
}
