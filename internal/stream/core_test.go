package stream

import (
	"context"
	"errors"
	"testing"
	"time"
)

func ctxTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestDefaultStreamEnqueueReadSequence(t *testing.T) {
	core, ctrl := NewDefaultStream(DefaultSource{
		Start: func(c *DefaultController) error {
			if err := c.Enqueue("a"); err != nil {
				return err
			}
			if err := c.Enqueue("b"); err != nil {
				return err
			}
			return c.Close()
		},
	})
	_ = ctrl

	reader, err := core.GetReader()
	if err != nil {
		t.Fatalf("GetReader: %v", err)
	}
	ctx := ctxTimeout(t)

	want := []string{"a", "b"}
	for _, w := range want {
		res, err := reader.Read(ctx)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if res.Done {
			t.Fatalf("Read: unexpected done before %q", w)
		}
		if res.Value != w {
			t.Fatalf("Read: got %v, want %q", res.Value, w)
		}
	}
	res, err := reader.Read(ctx)
	if err != nil {
		t.Fatalf("Read after close: %v", err)
	}
	if !res.Done {
		t.Fatalf("Read after close: expected done, got %v", res)
	}
}

func TestDefaultControllerDesiredSize(t *testing.T) {
	core, ctrl := NewDefaultStream(DefaultSource{HighWaterMark: 3})
	size, ok := ctrl.DesiredSize()
	if !ok || size != 3 {
		t.Fatalf("DesiredSize before enqueue = %v,%v want 3,true", size, ok)
	}
	if err := ctrl.Enqueue("x"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	size, ok = ctrl.DesiredSize()
	if !ok || size != 2 {
		t.Fatalf("DesiredSize after enqueue = %v,%v want 2,true", size, ok)
	}
	if err := core.Cancel(nil); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	size, ok = ctrl.DesiredSize()
	if !ok || size != 0 {
		t.Fatalf("DesiredSize after cancel(closed) = %v,%v want 0,true", size, ok)
	}
}

func TestDesiredSizeNullWhenErrored(t *testing.T) {
	core, ctrl := NewDefaultStream(DefaultSource{})
	boom := errors.New("boom")
	ctrl.Error(boom)
	_, ok := ctrl.DesiredSize()
	if ok {
		t.Fatalf("DesiredSize after error: expected ok=false (null)")
	}
	reader, err := core.GetReader()
	if err != nil {
		t.Fatalf("GetReader: %v", err)
	}
	_, err = reader.Read(ctxTimeout(t))
	if !errors.Is(err, boom) {
		t.Fatalf("Read after error = %v, want %v", err, boom)
	}
}

func TestPullThrottling(t *testing.T) {
	pullCount := 0
	core, _ := NewDefaultStream(DefaultSource{
		HighWaterMark: 1,
		Pull: func(ctx context.Context, c *DefaultController) error {
			pullCount++
			return c.Enqueue(pullCount)
		},
	})
	reader, err := core.GetReader()
	if err != nil {
		t.Fatalf("GetReader: %v", err)
	}
	ctx := ctxTimeout(t)
	for i := 0; i < 3; i++ {
		if _, err := reader.Read(ctx); err != nil {
			t.Fatalf("Read %d: %v", i, err)
		}
	}
	if pullCount != 3 {
		t.Fatalf("pullCount = %d, want 3", pullCount)
	}
}

func TestCancelIdempotentOnClosedStream(t *testing.T) {
	core, ctrl := NewDefaultStream(DefaultSource{})
	if err := ctrl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := core.Cancel("reason"); err != nil {
		t.Fatalf("Cancel on closed stream should resolve immediately, got %v", err)
	}
}

func TestGetReaderFailsWhenLocked(t *testing.T) {
	core, _ := NewDefaultStream(DefaultSource{})
	r1, err := core.GetReader()
	if err != nil {
		t.Fatalf("first GetReader: %v", err)
	}
	_, err = core.GetReader()
	if err == nil {
		t.Fatalf("second GetReader: expected lock error")
	}
	r1.ReleaseLock()
	if _, err := core.GetReader(); err != nil {
		t.Fatalf("GetReader after release: %v", err)
	}
}

func TestValuesIteratesToExhaustion(t *testing.T) {
	core, _ := NewDefaultStream(DefaultSource{
		Start: func(c *DefaultController) error {
			if err := c.Enqueue("a"); err != nil {
				return err
			}
			if err := c.Enqueue("b"); err != nil {
				return err
			}
			return c.Close()
		},
	})
	it := core.Values(false)
	ctx := ctxTimeout(t)

	for _, want := range []string{"a", "b"} {
		v, done, err := it.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if done {
			t.Fatalf("Next: unexpected done before %q", want)
		}
		if v != want {
			t.Fatalf("Next = %v, want %q", v, want)
		}
	}
	_, done, err := it.Next(ctx)
	if err != nil {
		t.Fatalf("Next after close: %v", err)
	}
	if !done {
		t.Fatalf("Next after close: expected done")
	}
}

func TestValuesAcquiresReaderLazily(t *testing.T) {
	core, _ := NewDefaultStream(DefaultSource{})
	it := core.Values(false)
	if core.Locked() {
		t.Fatalf("Values() should not lock the stream before Next is called")
	}
	go func() {
		time.Sleep(10 * time.Millisecond)
		_, _, _ = it.Next(ctxTimeout(t))
	}()
	time.Sleep(20 * time.Millisecond)
	if !core.Locked() {
		t.Fatalf("stream should be locked once Next has run")
	}
}

func TestValuesReturnCancelsUnlessPrevented(t *testing.T) {
	core, _ := NewDefaultStream(DefaultSource{})
	it := core.Values(false)
	ctx := ctxTimeout(t)
	go func() { _, _, _ = it.Next(ctx) }()
	time.Sleep(10 * time.Millisecond)
	if err := it.Return("bye"); err != nil {
		t.Fatalf("Return: %v", err)
	}
	if core.State() != Closed {
		t.Fatalf("State = %v, want Closed after Return without preventCancel", core.State())
	}
}

func TestValuesReturnPreventCancel(t *testing.T) {
	core, _ := NewDefaultStream(DefaultSource{})
	it := core.Values(true)
	ctx := ctxTimeout(t)
	go func() { _, _, _ = it.Next(ctx) }()
	time.Sleep(10 * time.Millisecond)
	if err := it.Return(nil); err != nil {
		t.Fatalf("Return: %v", err)
	}
	if core.State() == Closed {
		t.Fatalf("State should not be Closed when preventCancel is set")
	}
	if core.Locked() {
		t.Fatalf("Return should still release the reader's lock")
	}
}

func TestFromIterableAdaptsSlice(t *testing.T) {
	values := []any{"x", "y", "z"}
	i := 0
	core := From(Iterable{
		Next: func(ctx context.Context) (any, bool, error) {
			if i >= len(values) {
				return nil, false, nil
			}
			v := values[i]
			i++
			return v, true, nil
		},
	})
	reader, err := core.GetReader()
	if err != nil {
		t.Fatalf("GetReader: %v", err)
	}
	ctx := ctxTimeout(t)
	for _, want := range values {
		res, err := reader.Read(ctx)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if res.Value != want {
			t.Fatalf("Read = %v, want %v", res.Value, want)
		}
	}
	res, err := reader.Read(ctx)
	if err != nil {
		t.Fatalf("Read at exhaustion: %v", err)
	}
	if !res.Done {
		t.Fatalf("Read at exhaustion: expected done")
	}
}

func TestFromIterableCancelInvokesClose(t *testing.T) {
	closed := false
	next := make(chan struct{})
	core := From(Iterable{
		Next: func(ctx context.Context) (any, bool, error) {
			<-next
			return nil, false, nil
		},
		Close: func() error {
			closed = true
			close(next)
			return nil
		},
	})
	if err := core.Cancel("stop"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if !closed {
		t.Fatalf("Cancel should have invoked the iterable's Close")
	}
}

func TestLockedInvariant(t *testing.T) {
	core, _ := NewDefaultStream(DefaultSource{})
	if core.Locked() {
		t.Fatalf("fresh stream should not be locked")
	}
	r, err := core.GetReader()
	if err != nil {
		t.Fatalf("GetReader: %v", err)
	}
	if !core.Locked() {
		t.Fatalf("stream with reader should be locked")
	}
	r.ReleaseLock()
	if core.Locked() {
		t.Fatalf("stream should unlock after ReleaseLock")
	}
}
