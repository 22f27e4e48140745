package app

import (
	"sync"

	"github.com/dkeye/Mosaic/internal/domain"
	"github.com/rs/zerolog/log"
)

// CandidateQueue buffers ICE candidates whose target endpoint does not exist yet,
// keyed by session and endpoint index.
type CandidateQueue struct {
	mu      sync.Mutex
	pending map[domain.SessionID]map[int][]domain.IceCandidate
}

func NewCandidateQueue() *CandidateQueue {
	return &CandidateQueue{
		pending: make(map[domain.SessionID]map[int][]domain.IceCandidate),
	}
}

func (q *CandidateQueue) Enqueue(sid domain.SessionID, index int, c domain.IceCandidate) {
	q.mu.Lock()
	defer q.mu.Unlock()
	byIndex, ok := q.pending[sid]
	if !ok {
		byIndex = make(map[int][]domain.IceCandidate)
		q.pending[sid] = byIndex
	}
	byIndex[index] = append(byIndex[index], c)
	log.Debug().Str("module", "app.candidates").Str("sid", string(sid)).Int("index", index).Int("queued", len(byIndex[index])).Msg("candidate queued")
}

// Drain removes and returns the candidates buffered for (sid, index) in arrival order.
func (q *CandidateQueue) Drain(sid domain.SessionID, index int) []domain.IceCandidate {
	q.mu.Lock()
	defer q.mu.Unlock()
	byIndex, ok := q.pending[sid]
	if !ok {
		return nil
	}
	out := byIndex[index]
	delete(byIndex, index)
	if len(byIndex) == 0 {
		delete(q.pending, sid)
	}
	return out
}

func (q *CandidateQueue) Clear(sid domain.SessionID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, sid)
}

func (q *CandidateQueue) Len(sid domain.SessionID) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, cs := range q.pending[sid] {
		n += len(cs)
	}
	return n
}
