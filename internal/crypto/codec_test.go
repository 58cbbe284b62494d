package crypto

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestNewCodecRejectsBadKey(t *testing.T) {
	if _, err := NewCodec([]byte("short")); err == nil {
		t.Fatal("expected error for short key")
	}
	if _, err := NewCodec(testKey()); err != nil {
		t.Fatalf("32-byte key should be accepted: %v", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	codec, err := NewCodec(testKey())
	if err != nil {
		t.Fatal(err)
	}
	vectors := [][]float64{
		{0.1, -0.2, 0.3333333333333333, 12345.6789},
		{0},
		{},
		{1e-300, -1e300, 0.5},
	}
	for _, vec := range vectors {
		blob, err := codec.Encrypt(vec)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		got, err := codec.Decrypt(blob)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if len(got) != len(vec) {
			t.Fatalf("length mismatch: got %d want %d", len(got), len(vec))
		}
		for i := range vec {
			if got[i] != vec[i] {
				t.Fatalf("element %d: got %v want %v", i, got[i], vec[i])
			}
		}
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	codec, _ := NewCodec(testKey())
	vec := []float64{0.25, 0.5, 0.75}
	a, err := codec.Encrypt(vec)
	if err != nil {
		t.Fatal(err)
	}
	b, err := codec.Encrypt(vec)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("two encryptions of the same vector produced identical blobs")
	}
}

func TestDecryptRejectsTamperedBlob(t *testing.T) {
	codec, _ := NewCodec(testKey())
	blob, err := codec.Encrypt([]float64{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		t.Fatal(err)
	}
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)
	if _, err := codec.Decrypt(tampered); !errors.Is(err, ErrInvalidBlob) {
		t.Fatalf("tampered blob must fail authentication, got %v", err)
	}
}

func TestDecryptRejectsMalformedBlob(t *testing.T) {
	codec, _ := NewCodec(testKey())
	for _, blob := range []string{"", "not base64!!!", base64.StdEncoding.EncodeToString([]byte("tiny"))} {
		if _, err := codec.Decrypt(blob); !errors.Is(err, ErrInvalidBlob) {
			t.Fatalf("blob %q: expected ErrInvalidBlob, got %v", blob, err)
		}
	}
}

func TestDecryptWithDifferentKeyFails(t *testing.T) {
	codec, _ := NewCodec(testKey())
	other, _ := NewCodec(bytes.Repeat([]byte{0x99}, 32))
	blob, err := codec.Encrypt([]float64{0.5})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Decrypt(blob); !errors.Is(err, ErrInvalidBlob) {
		t.Fatalf("wrong key must fail closed, got %v", err)
	}
}
