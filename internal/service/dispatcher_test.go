package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/chatguard/internal/biz/domain"
)

func waitTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for events")
	}
}

func TestDispatcher_PerChatOrdering(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string][]string)
	var wg sync.WaitGroup

	d := NewDispatcher(DispatcherConfig{Workers: 4, QueueSize: 4, LaneIdle: time.Second}, func(ctx context.Context, ev domain.ChatEvent) {
		defer wg.Done()
		msg := ev.(*domain.MessageReceived)
		mu.Lock()
		seen[msg.Chat] = append(seen[msg.Chat], msg.ID)
		mu.Unlock()
	}, nil)
	defer d.Stop()

	const perChat = 50
	chats := []string{"oc_1", "oc_2", "oc_3"}
	wg.Add(perChat * len(chats))
	for i := 0; i < perChat; i++ {
		for _, chat := range chats {
			require.True(t, d.Submit(&domain.MessageReceived{ID: fmt.Sprintf("%s-%03d", chat, i), Chat: chat}))
		}
	}
	waitTimeout(t, &wg, 5*time.Second)

	mu.Lock()
	defer mu.Unlock()
	for _, chat := range chats {
		require.Len(t, seen[chat], perChat)
		for i, id := range seen[chat] {
			assert.Equal(t, fmt.Sprintf("%s-%03d", chat, i), id)
		}
	}
}

func TestDispatcher_SlowChatDoesNotBlockOthers(t *testing.T) {
	release := make(chan struct{})
	fast := make(chan string, 1)

	d := NewDispatcher(DefaultDispatcherConfig(), func(ctx context.Context, ev domain.ChatEvent) {
		if ev.ChatID() == "oc_slow" {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return
		}
		fast <- ev.ChatID()
	}, nil)
	defer d.Stop()
	defer close(release)

	d.Submit(&domain.MessageReceived{ID: "1", Chat: "oc_slow"})
	d.Submit(&domain.MessageReceived{ID: "2", Chat: "oc_fast"})

	select {
	case chat := <-fast:
		assert.Equal(t, "oc_fast", chat)
	case <-time.After(2 * time.Second):
		t.Fatal("fast chat was blocked by slow chat")
	}
}

func TestDispatcher_IdleLanesExit(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	d := NewDispatcher(DispatcherConfig{Workers: 1, QueueSize: 1, LaneIdle: 20 * time.Millisecond}, func(ctx context.Context, ev domain.ChatEvent) {
		wg.Done()
	}, nil)
	defer d.Stop()

	d.Submit(&domain.CallReceived{CallID: "c", From: "ou_a"})
	waitTimeout(t, &wg, time.Second)

	assert.Eventually(t, func() bool { return d.Lanes() == 0 }, time.Second, 10*time.Millisecond)

	wg.Add(1)
	assert.True(t, d.Submit(&domain.CallReceived{CallID: "c2", From: "ou_a"}), "a new lane is created on demand")
	waitTimeout(t, &wg, time.Second)
}

func TestDispatcher_PanicIsContained(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(2)
	d := NewDispatcher(DefaultDispatcherConfig(), func(ctx context.Context, ev domain.ChatEvent) {
		defer wg.Done()
		if ev.(*domain.MessageReceived).ID == "boom" {
			panic("boom")
		}
	}, nil)
	defer d.Stop()

	d.Submit(&domain.MessageReceived{ID: "boom", Chat: "oc_1"})
	d.Submit(&domain.MessageReceived{ID: "ok", Chat: "oc_1"})
	waitTimeout(t, &wg, time.Second)
}

func TestDispatcher_SubmitAfterStop(t *testing.T) {
	d := NewDispatcher(DefaultDispatcherConfig(), func(ctx context.Context, ev domain.ChatEvent) {}, nil)
	d.Stop()

	assert.False(t, d.Submit(&domain.MessageReceived{ID: "1", Chat: "oc_1"}))
	assert.False(t, d.Submit(nil))
}
