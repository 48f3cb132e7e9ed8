package clock

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func fixedNow() time.Time {
	return time.Date(2025, time.March, 14, 9, 26, 53, 0, time.UTC)
}

func TestExecuteLocalTime(t *testing.T) {
	tool := New(WithNow(fixedNow))
	result, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(result.Content, "Friday, March 14, 2025") {
		t.Errorf("content = %q, want date for fixed clock", result.Content)
	}
	if !strings.Contains(result.Content, "9:26 AM") {
		t.Errorf("content = %q, want time for fixed clock", result.Content)
	}
}

func TestExecuteTimezone(t *testing.T) {
	tool := New(WithNow(fixedNow))
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"timezone":"Asia/Tokyo"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// UTC 09:26 is 18:26 in Tokyo.
	if !strings.Contains(result.Content, "6:26 PM JST") {
		t.Errorf("content = %q, want Tokyo time", result.Content)
	}
}

func TestExecuteUnknownTimezone(t *testing.T) {
	tool := New(WithNow(fixedNow))
	if _, err := tool.Execute(context.Background(), json.RawMessage(`{"timezone":"Mars/Olympus"}`)); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestExecuteEmptyArgs(t *testing.T) {
	tool := New(WithNow(fixedNow))
	if _, err := tool.Execute(context.Background(), nil); err != nil {
		t.Fatalf("Execute with nil args: %v", err)
	}
}
