package csrf

import (
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	token, err := Issue("sid-1", "secret", time.Minute)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if err := Verify(token, "sid-1", "secret"); err != nil {
		t.Errorf("valid token rejected: %v", err)
	}
}

func TestVerifyRejectsForeignSession(t *testing.T) {
	token, err := Issue("sid-1", "secret", time.Minute)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if err := Verify(token, "sid-2", "secret"); err == nil {
		t.Error("token for another session accepted")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := Issue("sid-1", "secret", time.Minute)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if err := Verify(token, "sid-1", "other-secret"); err == nil {
		t.Error("token signed with another secret accepted")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	token, err := Issue("sid-1", "secret", -time.Minute)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if err := Verify(token, "sid-1", "secret"); err == nil {
		t.Error("expired token accepted")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	if err := Verify("not-a-token", "sid-1", "secret"); err == nil {
		t.Error("garbage token accepted")
	}
	if err := Verify("", "sid-1", "secret"); err == nil {
		t.Error("empty token accepted")
	}
}
