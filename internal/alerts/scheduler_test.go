package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScheduler_RegistersCheckJob(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(newFakeStore())

	s, err := NewScheduler(eng, 10*time.Minute, quietLogger())
	require.NoError(t, err)
	assert.Len(t, s.Entries(), 1)
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(newFakeStore())

	s, err := NewScheduler(eng, time.Hour, quietLogger())
	require.NoError(t, err)

	s.Start()
	stopCtx := s.Stop()

	select {
	case <-stopCtx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for scheduler to stop")
	}
}
