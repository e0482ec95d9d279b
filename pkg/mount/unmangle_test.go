package mount

import "testing"

func TestUnmangleDecodesOctalEscape(t *testing.T) {
	got := unmangle(`root\040fs`)
	want := "root fs"
	if got != want {
		t.Fatalf("expected %q but got %q", want, got)
	}
}

func TestUnmanglePassesThroughPlainText(t *testing.T) {
	got := unmangle("/dev/sda1")
	if got != "/dev/sda1" {
		t.Fatalf("expected unchanged string, got %q", got)
	}
}

func TestUnmangleHandlesMultipleEscapes(t *testing.T) {
	got := unmangle(`a\040b\011c`)
	want := "a b\tc"
	if got != want {
		t.Fatalf("expected %q but got %q", want, got)
	}
}

func TestUnmangleLeavesTrailingBackslashAlone(t *testing.T) {
	got := unmangle(`foo\`)
	if got != `foo\` {
		t.Fatalf("expected unchanged trailing backslash, got %q", got)
	}
}
