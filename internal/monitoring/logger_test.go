package monitoring

import (
	"fmt"
	"testing"
)

func captureLogs(t *testing.T) *[]string {
	t.Helper()
	original := Logf
	t.Cleanup(func() { Logf = original })

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestSetLogger(t *testing.T) {
	lines := captureLogs(t)

	Logf("hello %d", 1)
	if len(*lines) != 1 || (*lines)[0] != "hello 1" {
		t.Fatalf("unexpected captured lines: %v", *lines)
	}

	// nil installs a no-op logger
	SetLogger(nil)
	Logf("dropped")
	if len(*lines) != 1 {
		t.Errorf("no-op logger should not record, got %v", *lines)
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logf panicked: %v", r)
		}
	}()
	Logf("test message: %s", "value")
}

func TestPrefixed(t *testing.T) {
	tests := []struct {
		component string
		want      string
	}{
		{"Sampler", "[Sampler] cycle 3"},
		{"[gRPC]", "[gRPC] cycle 3"},
		{"  Window ", "[Window] cycle 3"},
		{"", "cycle 3"},
	}

	for _, tt := range tests {
		t.Run(tt.component, func(t *testing.T) {
			lines := captureLogs(t)
			Prefixed(tt.component).Printf("cycle %d", 3)
			if len(*lines) != 1 {
				t.Fatalf("expected one line, got %v", *lines)
			}
			if (*lines)[0] != tt.want {
				t.Errorf("got %q, want %q", (*lines)[0], tt.want)
			}
		})
	}
}

func TestPrefixed_FollowsSetLogger(t *testing.T) {
	log := Prefixed("Display")
	lines := captureLogs(t)

	log.Printf("late binding")
	if len(*lines) != 1 || (*lines)[0] != "[Display] late binding" {
		t.Errorf("logger created before SetLogger should use the new sink, got %v", *lines)
	}
}
