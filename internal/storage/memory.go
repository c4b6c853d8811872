package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// MemoryStore реализует Store в памяти процесса. Используется в тестах
// и для локального запуска без внешнего хранилища. Транзакции
// сериализуются мьютексом, поэтому fn выполняется без повторов.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Read(ctx context.Context, key string, dest interface{}) (bool, error) {
	s.mu.Lock()
	data, ok := s.data[key]
	s.mu.Unlock()

	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (s *MemoryStore) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for key %s: %w", key, err)
	}

	s.mu.Lock()
	s.data[key] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string][]byte)
	for key, data := range s.data {
		if strings.HasPrefix(key, prefix) {
			result[key] = append([]byte(nil), data...)
		}
	}
	return result, nil
}

func (s *MemoryStore) Transact(ctx context.Context, key string, fn TransactFunc) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current []byte
	if data, ok := s.data[key]; ok {
		current = append([]byte(nil), data...)
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}

	s.data[key] = next
	return next, nil
}
