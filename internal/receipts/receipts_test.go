package receipts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	cases := map[string]string{
		"bill.pdf":           "receipts/u1/1700000000123_bill.pdf",
		"../../etc/passwd":   "receipts/u1/1700000000123_passwd",
		"C:\\scans\\a b.png": "receipts/u1/1700000000123_a_b.png",
		"":                   "receipts/u1/1700000000123_receipt",
		".hidden":            "receipts/u1/1700000000123_hidden",
	}
	for in, want := range cases {
		if got := Key("u1", now, in); got != want {
			t.Errorf("Key(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestURLRoundTripAndOwnership(t *testing.T) {
	key := "receipts/u1/1_a.png"
	got, ok := KeyFromURL(URLFor(key))
	if !ok || got != key {
		t.Fatalf("round trip failed: %q %v", got, ok)
	}
	if _, ok := KeyFromURL("https://example.com/a.png"); ok {
		t.Fatalf("foreign URL must not resolve to a key")
	}
	if !OwnedBy(key, "u1") || OwnedBy(key, "u") || OwnedBy("receipts/u1/../u2/x", "u1") {
		t.Fatalf("ownership checks wrong")
	}
}

func TestLocalPutOpenDelete(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(t.TempDir(), 1024)
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	key := "receipts/u1/1_a.txt"
	if err := l.Put(ctx, key, Upload{Filename: "a.txt", Body: strings.NewReader("hello")}); err != nil {
		t.Fatalf("put: %v", err)
	}
	rc, err := l.Open(ctx, key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if string(body) != "hello" {
		t.Fatalf("unexpected body %q", body)
	}
	if err := l.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := l.Open(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := l.Delete(ctx, key); err != nil {
		t.Fatalf("deleting a missing receipt should succeed, got %v", err)
	}
}

func TestLocalRejectsOversizedUpload(t *testing.T) {
	root := t.TempDir()
	l, _ := NewLocal(root, 4)
	key := "receipts/u1/1_big.bin"
	err := l.Put(context.Background(), key, Upload{Body: bytes.NewReader(make([]byte, 5))})
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(root, filepath.FromSlash(key))); !os.IsNotExist(statErr) {
		t.Fatalf("oversized upload must leave nothing behind")
	}
	entries, _ := os.ReadDir(filepath.Join(root, "receipts", "u1"))
	if len(entries) != 0 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestLimitReaderExactSize(t *testing.T) {
	data, err := io.ReadAll(LimitReader(strings.NewReader("abcd"), 4))
	if err != nil || string(data) != "abcd" {
		t.Fatalf("exact-size read failed: %q %v", data, err)
	}
}

func TestLocalRejectsEscapingKeys(t *testing.T) {
	l, _ := NewLocal(t.TempDir(), 0)
	if err := l.Put(context.Background(), "../outside", Upload{Body: strings.NewReader("x")}); err == nil {
		t.Fatalf("expected error for escaping key")
	}
}
