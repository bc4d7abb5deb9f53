package settings

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_ReloadsExternalEdit(t *testing.T) {
	s := openStore(t, "settings.json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads atomic.Int32
	go s.Watch(ctx, func(*Settings) { reloads.Add(1) })
	time.Sleep(100 * time.Millisecond)

	doc := `{"prefix":"!","ownerNumbers":["+15550001111"],"public":false}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(doc), 0o644))

	require.Eventually(t, func() bool {
		return s.Snapshot().EffectivePrefix() == "!"
	}, 5*time.Second, 50*time.Millisecond)
	assert.False(t, s.Snapshot().IsPublic())
	assert.GreaterOrEqual(t, reloads.Load(), int32(1))
}

func TestWatch_InvalidEditKeepsCurrent(t *testing.T) {
	s := openStore(t, "settings.json")
	_, err := s.SetToggle("antilink", true)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Watch(ctx, nil)
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"prefix":"too long"}`), 0o644))
	time.Sleep(600 * time.Millisecond)

	snap := s.Snapshot()
	assert.Equal(t, "#", snap.EffectivePrefix())
	assert.True(t, snap.GroupFlag("antilink"))
}
