package server

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionRegistry(t *testing.T) {
	r := NewSessionRegistry()

	assert.False(t, r.IsOnline("alice"), "expected unknown user to be offline")
	assert.Empty(t, r.SessionsOf("alice"), "expected no sessions for unknown user")
	assert.NotNil(t, r.SessionsOf("alice"), "expected an empty list rather than nil")

	assert.True(t, r.Register("alice", "s1"), "expected first session to bring alice online")
	assert.False(t, r.Register("alice", "s2"), "expected second session to not change presence")
	assert.False(t, r.Register("alice", "s2"), "expected duplicate register to be a no-op")
	assert.True(t, r.Register("bob", "s3"))

	assert.Equal(t, []string{"s1", "s2"}, r.SessionsOf("alice"))
	assert.Equal(t, []string{"alice", "bob"}, r.OnlineUsers())

	assert.False(t, r.Unregister("alice", "unknown"), "expected unknown session to be ignored")
	assert.False(t, r.Unregister("carol", "s1"), "expected unknown user to be ignored")
	assert.False(t, r.Unregister("alice", "s1"), "expected alice to stay online with s2")
	assert.True(t, r.IsOnline("alice"))
	assert.True(t, r.Unregister("alice", "s2"), "expected last session to take alice offline")
	assert.False(t, r.IsOnline("alice"))
	assert.False(t, r.Unregister("alice", "s2"), "expected repeated unregister to be a no-op")

	assert.Equal(t, []string{"bob"}, r.OnlineUsers())
}

func TestSessionRegistryConcurrent(t *testing.T) {
	r := NewSessionRegistry()

	const sessions = 50
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		onlines  int
		offlines int
	)
	for i := 0; i < sessions; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Register("alice", fmt.Sprintf("s%d", i)) {
				mu.Lock()
				onlines++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, onlines, "expected exactly one online transition")
	assert.Len(t, r.SessionsOf("alice"), sessions)

	for i := 0; i < sessions; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Unregister("alice", fmt.Sprintf("s%d", i)) {
				mu.Lock()
				offlines++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, offlines, "expected exactly one offline transition")
	assert.False(t, r.IsOnline("alice"))
}
