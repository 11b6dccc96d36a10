package capture

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyntheticJitter(t *testing.T) {
	t.Parallel()

	frames := make(chan Frame, FrameBufferSize)
	src := NewSynthetic(frames,
		WithInterval(time.Millisecond),
		WithRand(rand.New(rand.NewPCG(1, 2))))
	src.SetExpectedFrequency(440)

	require.NoError(t, src.Start())
	require.NoError(t, src.Start())
	assert.True(t, src.Running())

	for i := 0; i < 20; i++ {
		f := receive(t, frames)
		require.NotNil(t, f.Pitch)
		assert.Equal(t, uint64(i), f.Seq)
		assert.Equal(t, 36, f.Pitch.Note)
		// Jitter stays within a sixth of a semitone
		assert.InDelta(t, 0, f.Pitch.Cent, 17)
		assert.InDelta(t, 440, f.Pitch.Frequency, 440*jitterSpan/6+1e-9)
	}

	src.Stop()
	assert.False(t, src.Running())
	src.Stop()
}

func TestSyntheticFollowsExpectedFrequency(t *testing.T) {
	t.Parallel()

	frames := make(chan Frame, 1)
	src := NewSynthetic(frames, WithInterval(time.Millisecond))

	require.NoError(t, src.Start())
	defer src.Stop()

	f := receive(t, frames)
	require.NotNil(t, f.Pitch)
	assert.Equal(t, 24, f.Pitch.Note, "default is A3")

	src.SetExpectedFrequency(110)
	deadline := time.Now().Add(time.Second)
	for {
		f := receive(t, frames)
		if f.Pitch != nil && f.Pitch.Note == 12 {
			break
		}
		require.True(t, time.Now().Before(deadline), "never switched to A2")
	}
}

func TestSyntheticBelowRangeIsSilence(t *testing.T) {
	t.Parallel()

	frames := make(chan Frame, FrameBufferSize)
	src := NewSynthetic(frames, WithInterval(time.Millisecond))
	src.SetExpectedFrequency(20)

	require.NoError(t, src.Start())
	defer src.Stop()

	f := receive(t, frames)
	assert.True(t, f.Silent())
}
