package stream

import (
	"context"
	"fmt"
)

// ByteSink is the native resource side of a StreamBridge. WriteSync
// returns the sentinel values the host ops contract specifies: -1 means
// the resource already closed, -2 means back-pressured ("full"); any
// other non-negative value is bytes accepted.
type ByteSink interface {
	WriteSync(p []byte) int
	WriteAsync(ctx context.Context, p []byte) error
	Close()
}

const (
	sinkClosed = -1
	sinkFull   = -2
)

// Bridge pumps a ReadableStream's chunks into a native byte-stream
// resource. It acquires its own default reader, so the stream must not
// already be locked.
type Bridge struct {
	core   *Core
	reader *DefaultReader
	sink   ByteSink
}

// NewBridge acquires a default reader on core and returns a Bridge ready
// to Run.
func NewBridge(core *Core, sink ByteSink) (*Bridge, error) {
	reader, err := core.GetReader()
	if err != nil {
		return nil, err
	}
	return &Bridge{core: core, reader: reader, sink: sink}, nil
}

// Run pumps chunks until the stream closes/errors or the sink reports
// closed, at which point both are closed exactly once.
func (b *Bridge) Run(ctx context.Context) error {
	defer b.reader.ReleaseLock()
	for {
		res, err := b.reader.Read(ctx)
		if err != nil {
			b.fail(err)
			return err
		}
		if res.Done {
			b.sink.Close()
			return nil
		}
		chunk, err := toBytes(res.Value)
		if err != nil {
			b.fail(err)
			return err
		}
		if len(chunk) == 0 {
			continue
		}
		if err := b.write(ctx, chunk); err != nil {
			b.fail(err)
			return err
		}
	}
}

func (b *Bridge) write(ctx context.Context, chunk []byte) error {
	n := b.sink.WriteSync(chunk)
	switch {
	case n == sinkClosed:
		return fmt.Errorf("stream bridge: resource closed")
	case n == sinkFull:
		return b.sink.WriteAsync(ctx, chunk)
	default:
		return nil
	}
}

func (b *Bridge) fail(reason error) {
	_ = b.reader.Cancel(reason)
	b.sink.Close()
}

// toBytes coerces a chunk produced by a default controller (string,
// []byte, or anything with a String() method) into bytes before handing
// it to a native op.
func toBytes(v any) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	case fmt.Stringer:
		return []byte(t.String()), nil
	default:
		return nil, fmt.Errorf("stream bridge: unsupported chunk type %T", v)
	}
}
