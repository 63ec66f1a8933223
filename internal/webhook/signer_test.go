package webhook

import "testing"

func TestSignAndVerify(t *testing.T) {
	secret := []byte("s3cr3t")
	body := []byte(`{"hello":"world"}`)

	sig := Sign(secret, body)
	if sig == "" {
		t.Fatal("expected non-empty signature")
	}
	if !Verify(secret, body, sig) {
		t.Fatal("expected signature to verify against the same secret/body")
	}
}

func TestVerify_WrongSecretFails(t *testing.T) {
	body := []byte(`{"hello":"world"}`)
	sig := Sign([]byte("secret-a"), body)

	if Verify([]byte("secret-b"), body, sig) {
		t.Fatal("expected verification to fail with a different secret")
	}
}

func TestVerify_TamperedBodyFails(t *testing.T) {
	secret := []byte("s3cr3t")
	sig := Sign(secret, []byte(`{"hello":"world"}`))

	if Verify(secret, []byte(`{"hello":"mallory"}`), sig) {
		t.Fatal("expected verification to fail against a tampered body")
	}
}

func TestVerify_MalformedSignatureFails(t *testing.T) {
	if Verify([]byte("secret"), []byte("body"), "not-hex!!") {
		t.Fatal("expected verification to fail on a malformed hex signature")
	}
}

func TestBackoff(t *testing.T) {
	cases := []struct {
		attempt  int
		expectMS int64
	}{
		{1, 1000},
		{2, 2000},
		{3, 4000},
		{4, 8000},
		{5, 16000},
		{6, 30000}, // would be 32000 uncapped, clamped to MaxBackoffMS
		{10, 30000},
	}
	for _, c := range cases {
		got := backoff(c.attempt).Milliseconds()
		if got != c.expectMS {
			t.Errorf("backoff(%d) = %dms, want %dms", c.attempt, got, c.expectMS)
		}
	}
}
