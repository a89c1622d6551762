package cache

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache() (*Cache[string, int], *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return New[string, int]().WithClock(clk.now), clk
}

func TestGetOrSet_CachedWithinTTL(t *testing.T) {
	c, clk := newTestCache()
	calls := 0
	fetch := func() (int, error) {
		calls++
		return 42, nil
	}

	v, err := c.GetOrSet("phases", time.Minute, fetch)
	if err != nil || v != 42 {
		t.Fatalf("first GetOrSet = (%d, %v), want (42, nil)", v, err)
	}
	clk.advance(59 * time.Second)
	v, err = c.GetOrSet("phases", time.Minute, fetch)
	if err != nil || v != 42 {
		t.Fatalf("second GetOrSet = (%d, %v), want (42, nil)", v, err)
	}
	if calls != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}
}

func TestGetOrSet_RefetchAfterExpiry(t *testing.T) {
	c, clk := newTestCache()
	calls := 0
	fetch := func() (int, error) {
		calls++
		return calls, nil
	}

	c.GetOrSet("k", time.Minute, fetch)
	clk.advance(time.Minute)
	v, _ := c.GetOrSet("k", time.Minute, fetch)
	if calls != 2 {
		t.Errorf("fetch called %d times, want 2", calls)
	}
	if v != 2 {
		t.Errorf("value after expiry = %d, want 2", v)
	}
}

func TestGetOrSet_ErrorNotCached(t *testing.T) {
	c, _ := newTestCache()
	boom := errors.New("boom")

	if _, err := c.GetOrSet("k", time.Minute, func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("failed fetch should not populate the cache")
	}
	v, err := c.GetOrSet("k", time.Minute, func() (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Errorf("GetOrSet after error = (%d, %v), want (7, nil)", v, err)
	}
}

func TestDeleteAndClear(t *testing.T) {
	c, _ := newTestCache()
	c.Set("a", 1, time.Hour)
	c.Set("b", 2, time.Hour)

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("a should be deleted")
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Errorf("b = (%d, %v), want (2, true)", v, ok)
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", c.Len())
	}
}

func TestSeparateKeys(t *testing.T) {
	c, _ := newTestCache()
	c.Set("a", 1, time.Hour)
	if _, ok := c.Get("b"); ok {
		t.Error("unset key should miss")
	}
}
