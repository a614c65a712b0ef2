package data

import (
	"go.uber.org/zap"

	"github.com/DevRickLin/chatguard/internal/biz/repo"
)

// Repositories contains all repositories
type Repositories struct {
	Store     *Store
	Transport repo.Transport
	Responder repo.ChatResponder
}

// Options configures NewRepositories
type Options struct {
	DBPath        string
	DefaultPrefix string
	SendRate      int
	HistorySize   int
}

// NewRepositories creates all repositories.
// completer may be nil, in which case the chatbot has no responder.
func NewRepositories(opts Options, feishuAPI FeishuAPI, completer Completer, log *zap.Logger) (*Repositories, error) {
	store, err := NewStore(opts.DBPath, opts.DefaultPrefix)
	if err != nil {
		return nil, err
	}

	repos := &Repositories{
		Store:     store,
		Transport: NewFeishuTransport(feishuAPI, opts.SendRate, log),
	}
	if completer != nil {
		repos.Responder = NewChatResponder(completer, opts.HistorySize)
	}
	return repos, nil
}

// Close releases the underlying database
func (r *Repositories) Close() error {
	return r.Store.Close()
}
