package httpapi

import (
	"sync"

	"github.com/DoyleJ11/codive/pkg/types"
)

// AnswerStore keeps submissions in memory in arrival order.
type AnswerStore struct {
	mu      sync.Mutex
	answers []types.Answer
	nextID  int
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{}
}

func (s *AnswerStore) Add(a types.Answer) types.Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	a.ID = s.nextID
	s.answers = append(s.answers, a)
	return a
}

func (s *AnswerStore) All() []types.Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Answer{}, s.answers...)
}
