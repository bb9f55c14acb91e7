package domain

import (
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func newTestPostback(maxAttempts int, now time.Time) *Postback {
	cfg := PostbackConfig{
		URL:         "https://partner.example.com/cb",
		Method:      MethodGet,
		MaxAttempts: maxAttempts,
	}
	pb := NewPostback("conv-1", cfg.URL, cfg, now)
	pb.ID = "pb-1"
	return pb
}

func TestParseStatusFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Status
		wantErr bool
	}{
		{name: "valid uppercase", input: "SENT", want: StatusSent},
		{name: "valid lowercase with spaces", input: " retrying ", want: StatusRetrying},
		{name: "invalid", input: "retry", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseStatusFromString(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseStatusFromString(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStatusFromString() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseStatusFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseMethodFromString(t *testing.T) {
	t.Parallel()

	got, err := ParseMethodFromString(" post ")
	if err != nil {
		t.Fatalf("ParseMethodFromString() unexpected error = %v", err)
	}
	if got != MethodPost {
		t.Fatalf("ParseMethodFromString() = %s, want %s", got, MethodPost)
	}

	if _, err := ParseMethodFromString("DELETE"); err == nil {
		t.Fatal("DELETE should be rejected")
	}
}

func TestNewPostbackIsImmediatelyDue(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0).UTC()
	pb := newTestPostback(3, now)

	if pb.Status != StatusPending {
		t.Fatalf("status = %s, want PENDING", pb.Status)
	}
	if pb.AttemptCount != 0 {
		t.Fatalf("attemptCount = %d, want 0", pb.AttemptCount)
	}
	if pb.NextAttemptAt == nil || !pb.NextAttemptAt.Equal(now) {
		t.Fatalf("nextAttemptAt = %v, want %v", pb.NextAttemptAt, now)
	}
	if !pb.IsDueNow(now) {
		t.Fatal("new postback should be due immediately")
	}
}

func TestRecordAttemptSuccessFirstTry(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0).UTC()
	pb := newTestPostback(3, now)

	pb.RecordAttempt(intPtr(200), "ok", "", now)

	if pb.Status != StatusSent {
		t.Fatalf("status = %s, want SENT", pb.Status)
	}
	if pb.AttemptCount != 1 {
		t.Fatalf("attemptCount = %d, want 1", pb.AttemptCount)
	}
	if pb.NextAttemptAt != nil {
		t.Fatalf("nextAttemptAt = %v, want nil", pb.NextAttemptAt)
	}
	if pb.CompletedAt == nil || !pb.CompletedAt.Equal(now) {
		t.Fatalf("completedAt = %v, want %v", pb.CompletedAt, now)
	}
	if pb.ResponseBody != "ok" {
		t.Fatalf("responseBody = %q, want ok", pb.ResponseBody)
	}
}

func TestRecordAttemptExhaustion(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0).UTC()
	pb := newTestPostback(3, now)

	for i := 0; i < 3; i++ {
		pb.RecordAttempt(intPtr(503), "error", "", now)
	}

	if pb.Status != StatusFailed {
		t.Fatalf("status = %s, want FAILED", pb.Status)
	}
	if pb.AttemptCount != 3 {
		t.Fatalf("attemptCount = %d, want 3", pb.AttemptCount)
	}
	if pb.NextAttemptAt != nil {
		t.Fatalf("nextAttemptAt = %v, want nil", pb.NextAttemptAt)
	}
	if pb.CompletedAt == nil {
		t.Fatal("completedAt should be set on exhaustion")
	}
}

func TestRecordAttemptBackoffSchedule(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0).UTC()
	pb := newTestPostback(5, now)

	// 2^(n-1) minutes after the n-th failed attempt.
	wantDelays := []time.Duration{
		1 * time.Minute,
		2 * time.Minute,
		4 * time.Minute,
		8 * time.Minute,
	}

	for n, wantDelay := range wantDelays {
		pb.RecordAttempt(intPtr(500), "", "", now)

		if pb.Status != StatusRetrying {
			t.Fatalf("attempt %d: status = %s, want RETRYING", n+1, pb.Status)
		}
		if pb.NextAttemptAt == nil {
			t.Fatalf("attempt %d: nextAttemptAt should be set", n+1)
		}
		gotDelay := pb.NextAttemptAt.Sub(*pb.LastAttemptAt)
		if gotDelay != wantDelay {
			t.Fatalf("attempt %d: backoff = %v, want %v", n+1, gotDelay, wantDelay)
		}
	}
}

func TestRecordAttemptTransportError(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0).UTC()
	pb := newTestPostback(5, now)

	pb.RecordAttempt(nil, "", "connection refused", now)

	if pb.Status != StatusRetrying {
		t.Fatalf("status = %s, want RETRYING", pb.Status)
	}
	if pb.ResponseCode != nil {
		t.Fatalf("responseCode = %v, want nil", pb.ResponseCode)
	}
	if pb.ErrorMessage != "connection refused" {
		t.Fatalf("errorMessage = %q, want connection refused", pb.ErrorMessage)
	}

	wantNext := now.Add(time.Minute)
	if !pb.NextAttemptAt.Equal(wantNext) {
		t.Fatalf("nextAttemptAt = %v, want %v", pb.NextAttemptAt, wantNext)
	}
	if pb.IsDueNow(now) {
		t.Fatal("postback should not be due right after a failed attempt")
	}
	if !pb.IsDueNow(now.Add(61 * time.Second)) {
		t.Fatal("postback should be due 61s after a 1-minute backoff")
	}
}

func TestRecordAttemptTerminalImmutability(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0).UTC()
	pb := newTestPostback(3, now)
	pb.RecordAttempt(intPtr(204), "", "", now)

	if pb.Status != StatusSent {
		t.Fatalf("status = %s, want SENT", pb.Status)
	}

	pb.RecordAttempt(intPtr(500), "late", "ignored", now.Add(time.Hour))

	if pb.Status != StatusSent {
		t.Fatalf("terminal status changed to %s", pb.Status)
	}
	if pb.AttemptCount != 1 {
		t.Fatalf("attemptCount = %d, want 1 after terminal no-op", pb.AttemptCount)
	}
	if pb.NextAttemptAt != nil {
		t.Fatalf("nextAttemptAt = %v, want nil", pb.NextAttemptAt)
	}
	if pb.IsDueNow(now.Add(24 * time.Hour)) {
		t.Fatal("terminal postback must never be due")
	}
}

func TestRecordAttemptCeilingNeverExceeded(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0).UTC()
	pb := newTestPostback(4, now)

	for i := 0; i < 10; i++ {
		pb.RecordAttempt(nil, "", "timeout", now)
		if pb.AttemptCount > pb.MaxAttempts {
			t.Fatalf("attemptCount %d exceeds maxAttempts %d", pb.AttemptCount, pb.MaxAttempts)
		}
	}

	if pb.Status != StatusFailed {
		t.Fatalf("status = %s, want FAILED after exhaustion", pb.Status)
	}
	if pb.AttemptCount != 4 {
		t.Fatalf("attemptCount = %d, want 4", pb.AttemptCount)
	}
}

func TestPostbackClone(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0).UTC()
	pb := newTestPostback(3, now)
	pb.Payload = map[string]string{"k": "v"}
	pb.RecordAttempt(intPtr(500), "body", "", now)

	clone := pb.Clone()
	clone.Payload["k"] = "changed"
	*clone.NextAttemptAt = clone.NextAttemptAt.Add(time.Hour)
	clone.RecordAttempt(intPtr(200), "ok", "", now)

	if pb.Payload["k"] != "v" {
		t.Fatal("clone payload mutation leaked into original")
	}
	if !pb.NextAttemptAt.Equal(now.Add(time.Minute)) {
		t.Fatal("clone timestamp mutation leaked into original")
	}
	if pb.Status != StatusRetrying {
		t.Fatalf("original status = %s, want RETRYING", pb.Status)
	}
}
