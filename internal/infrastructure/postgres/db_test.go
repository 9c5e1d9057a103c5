package postgres

import (
	"testing"
	"time"
)

func TestPoolOptions_Defaults(t *testing.T) {
	got := PoolOptions{}.withDefaults()
	if got.MaxConns != 10 || got.MinConns != 2 || got.ConnectTimeout != 5*time.Second {
		t.Errorf("defaults = %+v", got)
	}

	got = PoolOptions{MaxConns: 1, MinConns: 4}.withDefaults()
	if got.MinConns != 1 {
		t.Errorf("MinConns = %d, want clamped to 1", got.MinConns)
	}
}
