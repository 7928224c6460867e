package cmdutil

import "testing"

func TestEnvString(t *testing.T) {
	const key = "ZENTINEL_TEST_STRING"

	if got := EnvString(key, "fallback"); got != "fallback" {
		t.Fatalf("unset: got %q", got)
	}
	t.Setenv(key, "  /run/agent.sock  ")
	if got := EnvString(key, "fallback"); got != "/run/agent.sock" {
		t.Fatalf("set: got %q", got)
	}
	t.Setenv(key, "   ")
	if got := EnvString(key, "fallback"); got != "fallback" {
		t.Fatalf("blank: got %q", got)
	}
}

func TestEnvBool(t *testing.T) {
	const key = "ZENTINEL_TEST_BOOL"

	if got := EnvBool(key, true); !got {
		t.Fatalf("unset: want fallback true")
	}
	t.Setenv(key, "false")
	if got := EnvBool(key, true); got {
		t.Fatalf("false: want false")
	}
	t.Setenv(key, "1")
	if got := EnvBool(key, false); !got {
		t.Fatalf("1: want true")
	}
	t.Setenv(key, "not-a-bool")
	if got := EnvBool(key, true); !got {
		t.Fatalf("garbage: want fallback true")
	}
}
