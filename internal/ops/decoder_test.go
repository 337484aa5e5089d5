package ops

import (
	"bytes"
	"compress/gzip"
	"io"
	"testing"

	"github.com/andybalholm/brotli"
)

func TestDecodedBodyStreamPlain(t *testing.T) {
	d := newDecodedBodyStream(io.NopCloser(bytes.NewReader([]byte("hello world"))))
	var got []byte
	for {
		chunk, err := d.Read()
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if chunk == nil {
			break
		}
		got = append(got, chunk...)
	}
	if string(got) != "hello world" {
		t.Fatalf("got %q, want hello world", got)
	}
}

func TestDecodedBodyStreamGzip(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, _ = gw.Write([]byte("compressed payload"))
	_ = gw.Close()

	d := newDecodedBodyStream(io.NopCloser(bytes.NewReader(buf.Bytes())))
	if err := d.SetEncoding("gzip"); err != nil {
		t.Fatalf("SetEncoding: %v", err)
	}
	var got []byte
	for {
		chunk, err := d.Read()
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if chunk == nil {
			break
		}
		got = append(got, chunk...)
	}
	if string(got) != "compressed payload" {
		t.Fatalf("got %q, want compressed payload", got)
	}
}

func TestDecodedBodyStreamBrotli(t *testing.T) {
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	_, _ = bw.Write([]byte("brotli payload"))
	_ = bw.Close()

	d := newDecodedBodyStream(io.NopCloser(bytes.NewReader(buf.Bytes())))
	if err := d.SetEncoding("br"); err != nil {
		t.Fatalf("SetEncoding: %v", err)
	}
	chunk, err := d.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(chunk) != "brotli payload" {
		t.Fatalf("got %q, want brotli payload", chunk)
	}
}

func TestDecodedBodyStreamUnsupportedEncoding(t *testing.T) {
	d := newDecodedBodyStream(io.NopCloser(bytes.NewReader(nil)))
	if err := d.SetEncoding("compress"); err == nil {
		t.Fatalf("expected error for unsupported encoding")
	}
}

func TestDecodedBodyStreamCloseIsIdempotent(t *testing.T) {
	d := newDecodedBodyStream(io.NopCloser(bytes.NewReader([]byte("x"))))
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	chunk, err := d.Read()
	if err != nil || chunk != nil {
		t.Fatalf("Read after close = %v, %v; want nil, nil", chunk, err)
	}
}
