package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/ncecere/voice_gateway/internal/config"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := newLocalStore(config.StorageConfig{LocalDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	return store
}

func TestLocalPutGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	payload := []byte("fake audio bytes")
	info, err := store.Put(ctx, "question.wav", bytes.NewReader(payload), PutOptions{ContentType: "audio/wav"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.URL == "" || !strings.Contains(info.URL, "question.wav") {
		t.Fatalf("unexpected URL %q", info.URL)
	}
	if info.Size != int64(len(payload)) {
		t.Fatalf("unexpected size %d", info.Size)
	}

	reader, got, err := store.Get(ctx, "question.wav")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatal("payload mismatch after round trip")
	}
	if got.Size != info.Size {
		t.Fatalf("size mismatch: %d vs %d", got.Size, info.Size)
	}
}

func TestLocalGetMissingKey(t *testing.T) {
	store := newTestStore(t)
	if _, _, err := store.Get(context.Background(), "missing.mp3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalPutRejectsTraversal(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Put(context.Background(), "../escape.mp3", strings.NewReader("x"), PutOptions{})
	if err == nil {
		t.Fatal("expected error for traversal key")
	}
}

func TestLocalPutDoesNotOverwriteDistinctKeys(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	first, err := store.Put(ctx, "response_1700000000.mp3", strings.NewReader("one"), PutOptions{})
	if err != nil {
		t.Fatalf("put first: %v", err)
	}
	second, err := store.Put(ctx, "response_1700000001.mp3", strings.NewReader("two"), PutOptions{})
	if err != nil {
		t.Fatalf("put second: %v", err)
	}
	if first.URL == second.URL {
		t.Fatal("distinct timestamped keys must produce distinct URLs")
	}
}

func TestS3URLShape(t *testing.T) {
	s := &s3Store{bucket: "voice-bucket", region: "us-west-2"}
	got := s.URL("response_1700000000.mp3")
	want := "https://voice-bucket.s3.us-west-2.amazonaws.com/response_1700000000.mp3"
	if got != want {
		t.Fatalf("URL = %q, want %q", got, want)
	}
}
