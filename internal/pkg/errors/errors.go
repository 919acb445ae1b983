package errors

import "errors"

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда запись или ресурс не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized используется для ошибок авторизации (неверный токен, нет прав).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden используется, когда у пользователя недостаточно прав для действия.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation используется для ошибок валидации входных данных.
	// Выход за контрактные границы не клампится молча, а возвращается как эта ошибка,
	// потому что молчаливый клампинг прячет баг в вызывающей подсистеме.
	ErrValidation = errors.New("validation failed")

	// ErrConflict используется для конфликтов состояния, в том числе когда
	// optimistic-concurrency обновление DifficultyState исчерпало все попытки.
	ErrConflict = errors.New("resource state conflict")
)
