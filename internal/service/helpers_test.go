package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/flagr/internal/domain"
	"github.com/Rrens/flagr/internal/llm"
	"github.com/Rrens/flagr/internal/repository/memory"
	"github.com/Rrens/flagr/internal/session"
)

var testNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

const testUserID = "user-1"

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("id-%d", n.Add(1))
	}
}

type fixture struct {
	kv       *memory.Store
	clock    clockwork.Clock
	sessions *session.Manager
	store    *session.Store
	router   *llm.Router
}

func newFixture(t *testing.T, providers ...llm.Provider) *fixture {
	t.Helper()

	kv := memory.NewStore()
	clock := clockwork.NewFakeClockAt(testNow)
	mgr := session.NewManager(kv, session.WithClock(clock), session.WithIDGenerator(sequentialIDs()))

	st, err := mgr.Open(context.Background(), domain.NewUser(testUserID, "jane@example.com"))
	require.NoError(t, err)

	router := llm.NewRouter("groq")
	for _, p := range providers {
		router.RegisterProvider(p)
	}

	return &fixture{kv: kv, clock: clock, sessions: mgr, store: st, router: router}
}
