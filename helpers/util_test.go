package helpers

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolveURL(t *testing.T) {
	base := "https://linux.do/"
	assert.Equal(t, "https://linux.do/t/topic/1", ResolveURL(base, "/t/topic/1"))
	assert.Equal(t, "https://linux.do/t/topic/1", ResolveURL(base, "t/topic/1"))
	assert.Equal(t, "https://other.example/x", ResolveURL(base, "https://other.example/x"))
	assert.Equal(t, "", ResolveURL(base, "   "))
}

func TestRandomRanges(t *testing.T) {
	rnd := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 200; i++ {
		n := RandomInt(rnd, 550, 650)
		assert.GreaterOrEqual(t, n, 550)
		assert.LessOrEqual(t, n, 650)

		d := RandomDuration(rnd, 2*time.Second, 4*time.Second)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.LessOrEqual(t, d, 4*time.Second)
	}

	assert.Equal(t, 7, RandomInt(rnd, 7, 7))
	assert.Equal(t, time.Second, RandomDuration(rnd, time.Second, 0))
}

func TestBrowserHeadersIsCopy(t *testing.T) {
	headers := BrowserHeaders()
	headers["Accept-Language"] = "changed"
	assert.NotEqual(t, "changed", BrowserHeaders()["Accept-Language"])
	assert.NotEmpty(t, RandomUserAgent(nil))
}
