package repository

import "time"

// CacheRepository определяет методы для работы с кешем.
// Используется hot-path чтением рекомендованной сложности; отказ кеша
// не фатален — сервис деградирует до чтения из Postgres.
type CacheRepository interface {
	Set(key string, value interface{}, expiration time.Duration) error
	Get(key string) (string, error)
	Delete(key string) error
	SetJSON(key string, value interface{}, expiration time.Duration) error
	GetJSON(key string, dest interface{}) error
}
