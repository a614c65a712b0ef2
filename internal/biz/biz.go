package biz

import (
	"github.com/DevRickLin/chatguard/internal/biz/domain"
	"github.com/DevRickLin/chatguard/internal/biz/usecase"
)

// Config groups the settings of every stateful component
type Config struct {
	CacheCapacity int
	Spam          usecase.SpamConfig
	Trust         usecase.TrustConfig
	Vault         usecase.VaultConfig
	Presence      usecase.PresenceConfig
}

// Usecases contains all usecases
type Usecases struct {
	Features    *usecase.FeatureRegistry
	DeleteCache *usecase.MessageCache
	EditCache   *usecase.MessageCache
	StatusCache *usecase.MessageCache
	Spam        *usecase.SpamTracker
	Trust       *usecase.TrustLedger
	Vault       *usecase.MediaVault
	Presence    *usecase.PresenceDebouncer
}

// NewUsecases creates all usecases. The presence emitter is wired later by
// the engine through Presence.SetEmitter.
func NewUsecases(cfg Config, clock domain.Clock) *Usecases {
	return &Usecases{
		Features:    usecase.NewFeatureRegistry(),
		DeleteCache: usecase.NewMessageCache(cfg.CacheCapacity),
		EditCache:   usecase.NewMessageCache(cfg.CacheCapacity),
		StatusCache: usecase.NewMessageCache(cfg.CacheCapacity),
		Spam:        usecase.NewSpamTracker(cfg.Spam),
		Trust:       usecase.NewTrustLedger(cfg.Trust),
		Vault:       usecase.NewMediaVault(cfg.Vault, clock),
		Presence:    usecase.NewPresenceDebouncer(cfg.Presence, clock, nil),
	}
}
