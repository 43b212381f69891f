package cli

import (
	"bytes"
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowpad/flowpad/graph"
)

// syncBuffer is a bytes.Buffer safe for the push loop and the test to share.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPushFile(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	created, err := c.Create(ctx, graph.Document{Title: graph.DefaultTitle})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, pushFile(ctx, c, &out, created.ID, writeSeed(t, demoSeed)))
	assert.Contains(t, out.String(), `"Checkout" (3 nodes, 2 edges)`)

	f, err := c.Fetch(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Checkout", f.Title)
	assert.Len(t, f.Data.Nodes, 3)
}

func TestPushFile_UnknownID(t *testing.T) {
	c := newTestClient(t)
	err := pushFile(context.Background(), c, &bytes.Buffer{}, "missing", writeSeed(t, demoSeed))
	require.Error(t, err)
}

func TestWatchAndPush(t *testing.T) {
	c := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	created, err := c.Create(ctx, graph.Document{Title: graph.DefaultTitle})
	require.NoError(t, err)
	path := writeSeed(t, demoSeed)

	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- watchAndPush(ctx, c, out, created.ID, path, 20*time.Millisecond, zerolog.Nop())
	}()

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "Watching") }, 2*time.Second, 10*time.Millisecond)

	// A broken edit is reported and the flowchart keeps its last good state.
	require.NoError(t, os.WriteFile(path, []byte(`title = `), 0644))
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "Warning:") }, 2*time.Second, 10*time.Millisecond)

	renamed := strings.Replace(demoSeed, `"Checkout"`, `"Checkout v2"`, 1)
	require.NoError(t, os.WriteFile(path, []byte(renamed), 0644))

	require.Eventually(t, func() bool {
		f, err := c.Fetch(context.Background(), created.ID)
		return err == nil && f.Title == "Checkout v2"
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watchAndPush did not return after cancel")
	}
}
