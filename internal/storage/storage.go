package storage

import (
	"context"
	"errors"
)

// Предел внутренних повторов Transact при конкурентных записях. После
// исчерпания ошибка уходит вызывающему как недоступность хранилища.
const maxTxAttempts = 100

// ErrTxRetryLimit возвращается, когда транзакция не зафиксировалась за
// maxTxAttempts попыток.
var ErrTxRetryLimit = errors.New("transaction retry limit reached")

// TransactFunc применяется к текущему значению ключа и возвращает новое.
// current равен nil, если ключа нет. Функция должна быть чистой: при
// конфликте записей она вызывается повторно.
type TransactFunc func(current []byte) ([]byte, error)

// Store — хранилище с адресацией по ключу. Записи — JSON-значения.
//
// Transact — единственный примитив координации между запросами:
// оптимистичная транзакция чтение-изменение-запись по одному ключу.
// Бэкенд гарантирует, что фиксация происходит только если ключ не был
// изменен другим писателем после чтения, и молча повторяет fn при
// конфликте. Для вызывающего видна ровно одна зафиксированная попытка.
type Store interface {
	// Read читает значение ключа в dest. Возвращает false, если ключа нет.
	Read(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set записывает значение ключа без контроля версий. Применяется
	// только там, где у ключа один владеющий писатель.
	Set(ctx context.Context, key string, value interface{}) error

	// List возвращает значения всех ключей с данным префиксом.
	List(ctx context.Context, prefix string) (map[string][]byte, error)

	// Transact атомарно применяет fn к текущему значению ключа и
	// возвращает зафиксированное значение.
	Transact(ctx context.Context, key string, fn TransactFunc) ([]byte, error)
}
