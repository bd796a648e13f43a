package sweeper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaultsInterval(t *testing.T) {
	s := New(nil, nil, 0)
	assert.Equal(t, time.Minute, s.Interval)

	s2 := New(nil, nil, 5*time.Second)
	assert.Equal(t, 5*time.Second, s2.Interval)
}
