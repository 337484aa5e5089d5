package stream

import (
	"context"
	"testing"
)

func TestByteStreamBYOBAlignment(t *testing.T) {
	step := 0
	core, _ := NewByteStream(ByteSource{
		AutoAllocateChunkSize: 8,
		Pull: func(ctx context.Context, c *ByteController) error {
			step++
			switch step {
			case 1:
				return c.Enqueue([]byte{1, 2, 3})
			case 2:
				return c.Enqueue([]byte{4, 5, 6, 7, 8})
			}
			return nil
		},
	})

	reader, err := core.GetBYOBReader()
	if err != nil {
		t.Fatalf("GetBYOBReader: %v", err)
	}
	buf := make([]byte, 8)
	res, err := reader.Read(ctxTimeout(t), buf, 8)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(res.View) != 8 {
		t.Fatalf("Read view length = %d, want 8", len(res.View))
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	for i, b := range want {
		if res.View[i] != b {
			t.Fatalf("Read view[%d] = %d, want %d", i, res.View[i], b)
		}
	}
}

func TestByteControllerEnqueueZeroLengthRejected(t *testing.T) {
	_, ctrl := NewByteStream(ByteSource{})
	if err := ctrl.Enqueue(nil); err == nil {
		t.Fatalf("Enqueue(nil): expected error")
	}
	if err := ctrl.Enqueue([]byte{}); err == nil {
		t.Fatalf("Enqueue(empty): expected error")
	}
}

func TestByteControllerGetReaderRequiresByteStream(t *testing.T) {
	core, _ := NewDefaultStream(DefaultSource{})
	if _, err := core.GetBYOBReader(); err == nil {
		t.Fatalf("GetBYOBReader on a default stream: expected error")
	}
}

func TestBYOBRequestRespond(t *testing.T) {
	var req *BYOBRequest
	ready := make(chan struct{})
	core, _ := NewByteStream(ByteSource{
		Pull: func(ctx context.Context, c *ByteController) error {
			req = c.ByobRequest()
			if req == nil {
				return nil
			}
			v := req.View()
			copy(v, []byte{9, 9})
			close(ready)
			return nil
		},
	})
	reader, err := core.GetBYOBReader()
	if err != nil {
		t.Fatalf("GetBYOBReader: %v", err)
	}
	buf := make([]byte, 2)
	out := make(chan IntoResult, 1)
	errCh := make(chan error, 1)
	go func() {
		res, err := reader.Read(ctxTimeout(t), buf, 2)
		if err != nil {
			errCh <- err
			return
		}
		out <- res
	}()

	<-ready
	if req == nil {
		t.Fatalf("expected a BYOB request to be exposed during pull")
	}
	if err := req.Respond(2); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	select {
	case err := <-errCh:
		t.Fatalf("Read errored: %v", err)
	case res := <-out:
		if len(res.View) != 2 || res.View[0] != 9 || res.View[1] != 9 {
			t.Fatalf("Read result = %v, want [9 9]", res.View)
		}
	}
}

func TestDefaultReadAutoAllocatesOnByteStream(t *testing.T) {
	core, _ := NewByteStream(ByteSource{
		AutoAllocateChunkSize: 4,
		Pull: func(ctx context.Context, c *ByteController) error {
			req := c.ByobRequest()
			if req == nil {
				return nil
			}
			v := req.View()
			n := copy(v, []byte{1, 2, 3, 4})
			return req.Respond(n)
		},
	})
	reader, err := core.GetReader()
	if err != nil {
		t.Fatalf("GetReader: %v", err)
	}
	res, err := reader.Read(ctxTimeout(t))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	chunk, ok := res.Value.([]byte)
	if !ok {
		t.Fatalf("Read value type = %T, want []byte", res.Value)
	}
	want := []byte{1, 2, 3, 4}
	if len(chunk) != len(want) {
		t.Fatalf("Read value = %v, want %v", chunk, want)
	}
	for i, b := range want {
		if chunk[i] != b {
			t.Fatalf("Read value[%d] = %d, want %d", i, chunk[i], b)
		}
	}
}

func TestDefaultReadDrainsQueuedEntryWithoutAutoAllocate(t *testing.T) {
	core, ctrl := NewByteStream(ByteSource{})
	if err := ctrl.Enqueue([]byte{7, 8, 9}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	reader, err := core.GetReader()
	if err != nil {
		t.Fatalf("GetReader: %v", err)
	}
	res, err := reader.Read(ctxTimeout(t))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	chunk, ok := res.Value.([]byte)
	if !ok || len(chunk) != 3 || chunk[0] != 7 {
		t.Fatalf("Read value = %v, want [7 8 9]", res.Value)
	}
}

func TestDefaultReadOnByteStreamClose(t *testing.T) {
	core, ctrl := NewByteStream(ByteSource{})
	reader, err := core.GetReader()
	if err != nil {
		t.Fatalf("GetReader: %v", err)
	}
	if err := ctrl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	res, err := reader.Read(ctxTimeout(t))
	if err != nil {
		t.Fatalf("Read after close: %v", err)
	}
	if !res.Done {
		t.Fatalf("Read after close: expected done")
	}
}

func TestCloseResolvesPendingBYOBRead(t *testing.T) {
	core, ctrl := NewByteStream(ByteSource{})
	reader, err := core.GetBYOBReader()
	if err != nil {
		t.Fatalf("GetBYOBReader: %v", err)
	}
	_ = reader
	buf := make([]byte, 4)
	out := make(chan IntoResult, 1)
	go func() {
		res, _ := reader.Read(ctxTimeout(t), buf, 4)
		out <- res
	}()

	// Close while the BYOB read is pending; the descriptor should resolve
	// as an empty, done view rather than hang.
	if err := ctrl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case res := <-out:
		if !res.Done {
			t.Fatalf("expected done=true after close, got %+v", res)
		}
	case <-ctxTimeout(t).Done():
		t.Fatalf("timed out waiting for pending BYOB read to resolve on close")
	}
}
