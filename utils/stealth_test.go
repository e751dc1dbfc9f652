package utils

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"review-scraper/internal/types"
)

func TestNewIdentity(t *testing.T) {
	config := types.DefaultConfig()
	rng := rand.New(rand.NewPCG(1, 2))

	identity := NewIdentity(config, rng)

	assert.Contains(t, UserAgents(), identity.UserAgent)
	assert.Equal(t, 1920, identity.WindowWidth)
	assert.Equal(t, 1080, identity.WindowHeight)

	config.UserAgent = "custom-agent/1.0"
	assert.Equal(t, "custom-agent/1.0", NewIdentity(config, rng).UserAgent)
}

func TestPacer_StaysWithinBounds(t *testing.T) {
	pacer := NewPacer(2*time.Second, 6*time.Second, rand.New(rand.NewPCG(3, 4)))

	for i := 0; i < 200; i++ {
		d := pacer.Next()
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.LessOrEqual(t, d, 6*time.Second)
	}
}

func TestPacer_InvertedBounds(t *testing.T) {
	pacer := NewPacer(3*time.Second, time.Second, NewRand())

	min, max := pacer.Bounds()

	assert.Equal(t, 3*time.Second, min)
	assert.Equal(t, 3*time.Second, max)
	assert.Equal(t, 3*time.Second, pacer.Next())
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestScrollByScript(t *testing.T) {
	assert.Equal(t, "window.scrollBy(0, -120);", scrollByScript(-120))
}
