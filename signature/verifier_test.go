package signature

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestVerifyRoundTrip(t *testing.T) {
	bodies := [][]byte{
		[]byte(`{"project_name":"site","project_path":"apps/site"}`),
		[]byte(""),
		[]byte("\x00\x01\xff binary"),
	}
	for _, algo := range []Algorithm{SHA1, SHA256} {
		for _, body := range bodies {
			v := New("s3cr3t")
			sig := Sign("s3cr3t", body, algo)
			if !strings.HasPrefix(sig, string(algo)+"=") {
				t.Fatalf("unexpected prefix in %q", sig)
			}
			if !v.Verify(body, sig) {
				t.Fatalf("expected %s signature to verify for %q", algo, body)
			}
		}
	}
}

func TestVerifyRejectsSingleBitMutation(t *testing.T) {
	body := []byte(`{"project_name":"site"}`)
	v := New("s3cr3t")
	sig := Sign("s3cr3t", body, SHA1)
	prefix, digest, _ := strings.Cut(sig, "=")
	raw, err := hex.DecodeString(digest)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	for i := 0; i < len(raw)*8; i++ {
		mutated := append([]byte(nil), raw...)
		mutated[i/8] ^= 1 << (i % 8)
		candidate := prefix + "=" + hex.EncodeToString(mutated)
		if v.Verify(body, candidate) {
			t.Fatalf("mutated bit %d still verified", i)
		}
	}
}

func TestVerifyFailsClosed(t *testing.T) {
	body := []byte("payload")
	valid := Sign("s3cr3t", body, SHA256)

	cases := []struct {
		name      string
		verifier  *Verifier
		signature string
	}{
		{"missing signature", New("s3cr3t"), ""},
		{"empty secret", New(""), Sign("", body, SHA256)},
		{"nil verifier", nil, valid},
		{"wrong secret", New("other"), valid},
		{"unknown algorithm", New("s3cr3t"), "md5=" + strings.TrimPrefix(valid, "sha256=")},
		{"no prefix", New("s3cr3t"), strings.TrimPrefix(valid, "sha256=")},
		{"bad hex", New("s3cr3t"), "sha256=zz"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.verifier.Verify(body, tc.signature) {
				t.Fatalf("expected verification to fail")
			}
		})
	}
}

func TestVerifyDetectsBodyChange(t *testing.T) {
	v := New("s3cr3t")
	sig := Sign("s3cr3t", []byte("original"), SHA256)
	if v.Verify([]byte("original!"), sig) {
		t.Fatalf("expected tampered body to fail")
	}
}
