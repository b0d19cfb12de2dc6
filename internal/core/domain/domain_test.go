package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureType
	}{
		{"fetch", fmt.Errorf("page 2: %w", ErrFetch), FailureTypeRPC},
		{"decode", fmt.Errorf("bad json: %w", ErrDecode), FailureTypeParsing},
		{"persistence", fmt.Errorf("upsert: %w", ErrPersistence), FailureTypeDatabase},
		{"plain", errors.New("boom"), FailureTypeUnknown},
		{"nil", nil, FailureTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyFailure(tt.err); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestTruncateMessage(t *testing.T) {
	short := "timeout"
	if got := TruncateMessage(short); got != short {
		t.Errorf("expected %q unchanged, got %q", short, got)
	}

	long := strings.Repeat("a", MaxFailureMessageLen+10)
	if got := TruncateMessage(long); len(got) != MaxFailureMessageLen {
		t.Errorf("expected %d bytes, got %d", MaxFailureMessageLen, len(got))
	}

	// Multi-byte rune straddling the limit must not be split
	multi := strings.Repeat("a", MaxFailureMessageLen-1) + "é"
	got := TruncateMessage(multi)
	if !utf8.ValidString(got) {
		t.Fatal("truncated message is not valid UTF-8")
	}
	if len(got) != MaxFailureMessageLen-1 {
		t.Errorf("expected %d bytes, got %d", MaxFailureMessageLen-1, len(got))
	}
}

func TestTruncateMessage_InvalidUTF8(t *testing.T) {
	got := TruncateMessage("upstream \xff\xfe error")
	if !utf8.ValidString(got) {
		t.Fatalf("expected valid UTF-8, got %q", got)
	}
	if got != "upstream \uFFFD error" {
		t.Errorf("unexpected message: %q", got)
	}

	long := strings.Repeat("\xff", MaxFailureMessageLen)
	got = TruncateMessage(long)
	if !utf8.ValidString(got) || len(got) > MaxFailureMessageLen {
		t.Errorf("expected valid message within %d bytes, got %d bytes", MaxFailureMessageLen, len(got))
	}
}

func TestNewFailedBlock(t *testing.T) {
	fb := NewFailedBlock(42, fmt.Errorf("http 500: %w", ErrFetch))
	if fb.BlockNumber != 42 {
		t.Errorf("expected block 42, got %d", fb.BlockNumber)
	}
	if fb.FailureType != FailureTypeRPC {
		t.Errorf("expected rpc failure, got %s", fb.FailureType)
	}
	if fb.Message != "http 500: fetch failed" {
		t.Errorf("unexpected message: %q", fb.Message)
	}
}
