package usecase

import (
	"sync"

	"github.com/DevRickLin/chatguard/internal/biz/domain"
)

// TrustConfig contains trust ledger configuration
type TrustConfig struct {
	Penalty        int // deducted per suspicious message
	BlockThreshold int // sender is blocked once score <= threshold
}

// DefaultTrustConfig returns default trust configuration
func DefaultTrustConfig() TrustConfig {
	return TrustConfig{
		Penalty:        domain.DefaultTrustPenalty,
		BlockThreshold: domain.DefaultBlockThreshold,
	}
}

// TrustLedger tracks a reputation score per sender. Blocking is one-way
// for the life of the process.
type TrustLedger struct {
	mu     sync.Mutex
	config TrustConfig
	scores map[string]*domain.TrustScore
}

// NewTrustLedger creates a new trust ledger
func NewTrustLedger(config TrustConfig) *TrustLedger {
	return &TrustLedger{
		config: config,
		scores: make(map[string]*domain.TrustScore),
	}
}

// Penalize deducts amount from the sender's score, clamping at zero.
// The returned score has Blocked set once it falls to the threshold.
func (l *TrustLedger) Penalize(sender string, amount int) domain.TrustScore {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.get(sender)
	s.Score -= amount
	if s.Score < 0 {
		s.Score = 0
	}
	if s.Score > domain.InitialTrust {
		s.Score = domain.InitialTrust
	}
	if s.Score <= l.config.BlockThreshold {
		s.Blocked = true
	}
	return *s
}

// PenalizeDefault applies the configured penalty
func (l *TrustLedger) PenalizeDefault(sender string) domain.TrustScore {
	return l.Penalize(sender, l.config.Penalty)
}

// IsBlocked reports whether the sender has been blocked
func (l *TrustLedger) IsBlocked(sender string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.scores[sender]
	return ok && s.Blocked
}

// Score returns the sender's current score, InitialTrust for unknown senders
func (l *TrustLedger) Score(sender string) domain.TrustScore {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.scores[sender]; ok {
		return *s
	}
	return domain.TrustScore{Sender: sender, Score: domain.InitialTrust}
}

// Len returns the number of scored senders
func (l *TrustLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.scores)
}

func (l *TrustLedger) get(sender string) *domain.TrustScore {
	s, ok := l.scores[sender]
	if !ok {
		s = &domain.TrustScore{Sender: sender, Score: domain.InitialTrust}
		l.scores[sender] = s
	}
	return s
}
