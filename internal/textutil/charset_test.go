package textutil

import (
	"io"
	"strings"
	"testing"
)

func TestDecodeLatin1(t *testing.T) {
	// "Gebührenbescheid" with ü encoded as 0xFC.
	raw := []byte("Geb\xfchrenbescheid")
	got, err := Decode("ISO-8859-1", raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got != "Gebührenbescheid" {
		t.Fatalf("unexpected decode result %q", got)
	}
}

func TestDecodeUTF8Passthrough(t *testing.T) {
	got, err := Decode("UTF-8", []byte("plain"))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got != "plain" {
		t.Fatalf("unexpected result %q", got)
	}
}

func TestDecodeUnknownCharset(t *testing.T) {
	if _, err := Decode("x-not-a-charset", []byte("data")); err == nil {
		t.Fatal("expected error for unknown charset")
	}
}

func TestCharsetReader(t *testing.T) {
	r, err := CharsetReader("iso-8859-1", strings.NewReader("caf\xe9"))
	if err != nil {
		t.Fatalf("CharsetReader failed: %v", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "café" {
		t.Fatalf("unexpected decoded data %q", data)
	}
}
