package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cardhouse/linesman/chatmod/cooldown"
	"github.com/cardhouse/linesman/chatmod/ledger"
	"github.com/cardhouse/linesman/chatmod/windowstore"
)

// FakePlatform records every platform call, for assertions in tests. Failure
// flags let tests exercise the best-effort paths.
type FakePlatform struct {
	mu sync.Mutex

	Channels map[string]string // name -> id
	Roles    map[string]string // name -> id

	Deleted     []string // "channelID/messageID"
	ChannelMsgs map[string][]string
	Directs     map[string][]string
	Markings    []string // "userID:roleID"
	Removed     []string

	FailDelete bool
	FailDirect bool
	FailRemove bool
}

func NewFakePlatform() *FakePlatform {
	return &FakePlatform{
		Channels:    make(map[string]string),
		Roles:       make(map[string]string),
		ChannelMsgs: make(map[string][]string),
		Directs:     make(map[string][]string),
	}
}

func (f *FakePlatform) SendChannel(ctx context.Context, channelID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ChannelMsgs[channelID] = append(f.ChannelMsgs[channelID], content)
	return nil
}

func (f *FakePlatform) SendDirect(ctx context.Context, userID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailDirect {
		return fmt.Errorf("user has direct messages disabled")
	}
	f.Directs[userID] = append(f.Directs[userID], content)
	return nil
}

func (f *FakePlatform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailDelete {
		return fmt.Errorf("message already gone")
	}
	f.Deleted = append(f.Deleted, channelID+"/"+messageID)
	return nil
}

func (f *FakePlatform) AddMarking(ctx context.Context, communityID, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Markings = append(f.Markings, userID+":"+roleID)
	return nil
}

func (f *FakePlatform) RemoveMember(ctx context.Context, communityID, userID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailRemove {
		return fmt.Errorf("insufficient privilege")
	}
	f.Removed = append(f.Removed, userID)
	return nil
}

func (f *FakePlatform) ChannelByName(ctx context.Context, communityID, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Channels[name], nil
}

func (f *FakePlatform) RoleByName(ctx context.Context, communityID, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Roles[name], nil
}

// EngineTestFixture builds an engine on in-memory stores and a FakePlatform,
// with the stock policy and a 60s confirm cooldown.
func EngineTestFixture() (*Engine, *FakePlatform) {
	fake := NewFakePlatform()
	fake.Channels["warn-log"] = "chan-warn"
	fake.Channels["spam-log"] = "chan-spam"
	fake.Channels["ban-log"] = "chan-ban"
	fake.Roles["Yellow Card"] = "role-yellow"
	fake.Roles["Black Card"] = "role-black"

	eng := &Engine{
		Logger:   slog.Default(),
		Policy:   DefaultPolicy(),
		Windows:  windowstore.NewMemWindowStore(),
		Ledger:   ledger.NewMemLedger(),
		Gate:     cooldown.NewMemGate(1000, 60*time.Second),
		Platform: fake,
		SelfID:   "bot-1",
	}
	return eng, fake
}
