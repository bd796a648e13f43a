package outbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffSecondsIsExponential(t *testing.T) {
	assert.Equal(t, 2.0, backoffSeconds(1))
	assert.Equal(t, 4.0, backoffSeconds(2))
	assert.Equal(t, 8.0, backoffSeconds(3))
	assert.Equal(t, 16.0, backoffSeconds(4))
}

func TestBackoffSecondsCapsAtSixty(t *testing.T) {
	assert.Equal(t, 60.0, backoffSeconds(10))
	assert.Equal(t, 60.0, backoffSeconds(100))
}

func TestNewDefaultsMaxAttempts(t *testing.T) {
	w := New(nil, nil, 0, time.Second)
	assert.Equal(t, 3, w.MaxAttempts)

	w2 := New(nil, nil, 5, time.Second)
	assert.Equal(t, 5, w2.MaxAttempts)
}
