package timestamp

import (
	"testing"
	"time"
)

func TestParseFromText_ISO8601(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name  string
		input string
	}{
		{"RFC3339", "2024-01-15T10:30:45Z some log message"},
		{"RFC3339Nano", "2024-01-15T10:30:45.123456789Z some log message"},
		{"RFC3339 offset", "2024-01-15T10:30:45+05:00 some message"},
		{"space separated", "2024-01-15 10:30:45 some log message"},
		{"millis", "2024-01-15 10:30:45.123 some log message"},
		{"micros", "2024-01-15 10:30:45.123456 some log message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := p.ParseFromText(tt.input)
			if !result.Found {
				t.Errorf("ParseFromText(%q) did not find timestamp", tt.input)
			}
			if result.Timestamp.IsZero() {
				t.Errorf("ParseFromText(%q) returned zero timestamp", tt.input)
			}
		})
	}
}

func TestParseFromText_Syslog(t *testing.T) {
	p := NewParser()

	result := p.ParseFromText("Jan 15 10:30:45 some syslog message")
	if !result.Found {
		t.Error("syslog format not parsed")
	}
}

func TestParseFromText_TimeOnly(t *testing.T) {
	p := NewParser()

	result := p.ParseFromText("10:30:45.123 some log message")
	if !result.Found {
		t.Error("time-only format not parsed")
	}
}

func TestParseFromText_NoTimestamp(t *testing.T) {
	p := NewParser()

	result := p.ParseFromText("just a regular log message")
	if result.Found {
		t.Error("should not find timestamp in plain text")
	}
	if result.Remaining != "just a regular log message" {
		t.Errorf("remaining = %q, want original text", result.Remaining)
	}
}

func TestParseFromText_CommaDecimal(t *testing.T) {
	p := NewParser()

	result := p.ParseFromText("2024-01-15 10:30:45,123 international format")
	if !result.Found {
		t.Error("comma decimal format not parsed")
	}
}

func TestParseFromText_Bracketed(t *testing.T) {
	p := NewParser()

	result := p.ParseFromText("[2025-06-01T12:00:00.250Z] API call failed: GET /rest/v1/rooms")
	if !result.Found {
		t.Fatal("bracketed timestamp not parsed")
	}
	want := time.Date(2025, 6, 1, 12, 0, 0, 250e6, time.UTC)
	if !result.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", result.Timestamp, want)
	}
	if result.Remaining != "API call failed: GET /rest/v1/rooms" {
		t.Errorf("remaining = %q", result.Remaining)
	}
}

func TestParseFromText_BracketWithoutTimestamp(t *testing.T) {
	p := NewParser()

	result := p.ParseFromText("[gateway] upstream closed")
	if result.Found {
		t.Error("should not treat a plain bracket tag as a timestamp")
	}
}

func TestParseFromText_SyslogUsesCurrentYear(t *testing.T) {
	p := NewParser()
	p.Location = time.UTC
	p.Now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

	result := p.ParseFromText("Jan 15 10:30:45 host sshd[1]: accepted")
	if !result.Found {
		t.Fatal("syslog format not parsed")
	}
	if result.Timestamp.Year() != 2026 || result.Timestamp.Day() != 15 {
		t.Errorf("syslog timestamp = %v", result.Timestamp)
	}
	if result.Remaining != "host sshd[1]: accepted" {
		t.Errorf("remaining = %q", result.Remaining)
	}
}

func TestParseTimestamp_String(t *testing.T) {
	p := NewParser()

	ts, ok := p.ParseTimestamp("2024-01-15T10:30:45Z")
	if !ok {
		t.Fatal("ParseTimestamp string failed")
	}
	if ts.Year() != 2024 || ts.Month() != time.January || ts.Day() != 15 {
		t.Errorf("ParseTimestamp date = %v, want 2024-01-15", ts)
	}
}

func TestParseTimestamp_UnixSeconds(t *testing.T) {
	p := NewParser()

	// 946684800 = 2000-01-01T00:00:00Z
	ts, ok := p.ParseTimestamp(float64(946684800))
	if !ok {
		t.Fatal("ParseTimestamp unix seconds failed")
	}
	if ts.Year() != 2000 {
		t.Errorf("unix seconds year = %d, want 2000", ts.Year())
	}
}

func TestParseTimestamp_UnixMillis(t *testing.T) {
	p := NewParser()

	// 1.6e12 ms = 2020-09-13
	ts, ok := p.ParseTimestamp(float64(1600000000000))
	if !ok {
		t.Fatal("ParseTimestamp unix millis failed")
	}
	if ts.Year() != 2020 || ts.Month() != time.September {
		t.Errorf("unix millis = %v, want 2020-09", ts)
	}
}

func TestParseTimestamp_UnixMicros(t *testing.T) {
	p := NewParser()

	ts, ok := p.ParseTimestamp(int64(1600000000000000))
	if !ok {
		t.Fatal("ParseTimestamp unix micros failed")
	}
	if ts.Year() != 2020 {
		t.Errorf("unix micros year = %d, want 2020", ts.Year())
	}
}

func TestParseTimestamp_UnixNanos(t *testing.T) {
	p := NewParser()

	// 1.6e18 ns = 1.6e9 seconds, year 2020
	ts, ok := p.ParseTimestamp(float64(1600000000000000000))
	if !ok {
		t.Fatal("ParseTimestamp unix nanos failed")
	}
	if ts.Year() != 2020 {
		t.Errorf("unix nanos year = %d, want 2020", ts.Year())
	}
}

func TestParseTimestamp_NumericString(t *testing.T) {
	p := NewParser()

	ts, ok := p.ParseTimestamp("946684800")
	if !ok {
		t.Fatal("ParseTimestamp numeric string failed")
	}
	if ts.Year() != 2000 {
		t.Errorf("numeric string year = %d, want 2000", ts.Year())
	}
}

func TestParseTimestamp_Int64(t *testing.T) {
	p := NewParser()

	ts, ok := p.ParseTimestamp(int64(946684800))
	if !ok {
		t.Fatal("ParseTimestamp int64 failed")
	}
	if ts.Year() != 2000 {
		t.Errorf("int64 year = %d, want 2000", ts.Year())
	}
}

func TestParseTimestamp_EmptyString(t *testing.T) {
	p := NewParser()

	_, ok := p.ParseTimestamp("")
	if ok {
		t.Error("ParseTimestamp empty string should return false")
	}
}

func TestExtractLogMessage(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name     string
		input    string
		contains string
	}{
		{"with timestamp", "2024-01-15T10:30:45Z INFO: server started", "server started"},
		{"with severity", "ERROR: connection refused", "connection refused"},
		{"plain message", "some log message", "some log message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := p.ExtractLogMessage(tt.input)
			if msg != tt.contains {
				t.Errorf("ExtractLogMessage(%q) = %q, want %q", tt.input, msg, tt.contains)
			}
		})
	}
}
