package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/chatguard/internal/biz"
	"github.com/DevRickLin/chatguard/internal/biz/domain"
	"github.com/DevRickLin/chatguard/internal/biz/usecase"
	"github.com/DevRickLin/chatguard/internal/metrics"
	fake "github.com/DevRickLin/chatguard/internal/testutil"
)

type bytesFetcher []byte

func (b bytesFetcher) FetchMedia(ctx context.Context, msg *domain.MessageReceived) ([]byte, error) {
	return b, nil
}

func TestMaintenanceScheduler_SweepVault(t *testing.T) {
	clock := fake.FixedClock()
	uc := biz.NewUsecases(biz.Config{
		CacheCapacity: 10,
		Spam:          usecase.DefaultSpamConfig(),
		Trust:         usecase.DefaultTrustConfig(),
		Vault:         usecase.DefaultVaultConfig(t.TempDir()),
		Presence:      usecase.DefaultPresenceConfig(),
	}, clock)
	m := metrics.New()
	s := NewMaintenanceScheduler(uc, clock, time.Hour, 2*time.Hour, nil, m)

	capture := func(id string) {
		msg := &domain.MessageReceived{ID: id, Chat: "oc_1", Sender: "ou_a", ViewOnce: &domain.ViewOnceMedia{Kind: domain.MediaImage}}
		media, err := uc.Vault.Capture(context.Background(), msg, bytesFetcher("img"))
		require.NoError(t, err)
		require.NotNil(t, media)
	}

	capture("old")
	clock.Advance(90 * time.Minute)
	capture("new")
	clock.Advance(45 * time.Minute)

	s.SweepVault()

	entries := uc.Vault.List()
	require.Len(t, entries, 1)
	assert.Equal(t, "new", entries[0].ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VaultSwept))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VaultEntries))
}

func TestMaintenanceScheduler_PruneSpam(t *testing.T) {
	clock := fake.FixedClock()
	uc := biz.NewUsecases(biz.Config{
		Spam:     usecase.DefaultSpamConfig(),
		Trust:    usecase.DefaultTrustConfig(),
		Vault:    usecase.DefaultVaultConfig(t.TempDir()),
		Presence: usecase.DefaultPresenceConfig(),
	}, clock)
	s := NewMaintenanceScheduler(uc, clock, time.Hour, time.Hour, nil, nil)

	uc.Spam.Observe("ou_a", "hi", clock.Now())
	clock.Advance(5 * time.Second)
	uc.Spam.Observe("ou_b", "hi", clock.Now())
	clock.Advance(6 * time.Second)

	s.PruneSpam()

	assert.Equal(t, 1, uc.Spam.Len())
	_, ok := uc.Spam.State("ou_b")
	assert.True(t, ok)
}

func TestMaintenanceScheduler_StartStop(t *testing.T) {
	clock := fake.FixedClock()
	uc := biz.NewUsecases(biz.Config{
		Spam:     usecase.DefaultSpamConfig(),
		Vault:    usecase.DefaultVaultConfig(t.TempDir()),
		Presence: usecase.DefaultPresenceConfig(),
	}, clock)
	s := NewMaintenanceScheduler(uc, clock, time.Millisecond, time.Hour, nil, nil)

	s.Start(context.Background())
	time.Sleep(10 * time.Millisecond)
	s.Stop()
}
