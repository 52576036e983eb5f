package normalize

import (
	"testing"
	"time"

	"gumtree-scraper/models"
)

var refNow = time.Date(2024, time.June, 10, 14, 30, 0, 0, time.UTC)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"today", "2024-06-10"},
		{"Today", "2024-06-10"},
		{"just now", "2024-06-10"},
		{"yesterday", "2024-06-09"},
		{"3 days ago", "2024-06-07"},
		{"1 day ago", "2024-06-09"},
		{"a day ago", "2024-06-09"},
		{"2 weeks ago", "2024-05-27"},
		{"5 hours ago", "2024-06-10"},
		{"15 hours ago", "2024-06-09"},
		{"30 minutes ago", "2024-06-10"},
		{"2 months ago", "2024-04-11"},
		{"an hour ago", "2024-06-10"},
		{"Listed 3 days ago", "2024-06-07"},
		{"Date Listed: 12/05/2024", "2024-05-12"},
		{"12/05/2024", "2024-05-12"},
		{"1-2-24", "2024-02-01"},
		{"12 May 2024", "2024-05-12"},
		{"3rd March, 2024", "2024-03-03"},
		{"21 Sept 2023", "2023-09-21"},
		{"2024-01-31", "2024-01-31"},
	}

	for _, tt := range tests {
		got, ok := ParseDate(tt.in, refNow)
		if !ok {
			t.Errorf("ParseDate(%q) = unknown; want %s", tt.in, tt.want)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("ParseDate(%q) = %s; want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseDateUnknown(t *testing.T) {
	for _, in := range []string{"", "sometime", "31/02/2024", "12 Foo 2024", "ages ago", "13/13/2024"} {
		if got, ok := ParseDate(in, refNow); ok {
			t.Errorf("ParseDate(%q) = %s; want unknown", in, got)
		}
	}
}

func TestParseDatePtr(t *testing.T) {
	if p := ParseDatePtr("sometime", refNow); p != nil {
		t.Errorf("ParseDatePtr(sometime) = %v; want nil", p)
	}
	p := ParseDatePtr("today", refNow)
	if p == nil || *p != (models.Date{Year: 2024, Month: time.June, Day: 10}) {
		t.Errorf("ParseDatePtr(today) = %v; want 2024-06-10", p)
	}
}

func TestExtractPhone(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		exists bool
	}{
		{"Call 0412 345 678 after 5pm", "0412345678", true},
		{"0412345678", "0412345678", true},
		{"ph (02) 9876 5432", "0298765432", true},
		{"+61 412 345 678", "+61412345678", true},
		{"+61 (0) 3 9123 4567", "+61391234567", true},
		{"1300 123 456", "1300123456", true},
		{"1800-123-456", "1800123456", true},
		{"13 14 50", "131450", true},
		{"ad id 06224313", "", false},
		{"ref 12345678", "", false},
		{"no phone here", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, exists := ExtractPhone(tt.in)
		if got != tt.want || exists != tt.exists {
			t.Errorf("ExtractPhone(%q) = (%q, %v); want (%q, %v)", tt.in, got, exists, tt.want, tt.exists)
		}
	}
}

func TestNormalizeAUPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"tel:0412345678", "0412345678", true},
		{"+61412345678", "+61412345678", true},
		{"+610412345678", "+61412345678", true},
		{"+44 20 7946 0958", "", false},
		{"61412345678", "+61412345678", true},
		{"0512345678", "", false},
		{"1234567", "", false},
	}

	for _, tt := range tests {
		got, ok := NormalizeAUPhone(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizeAUPhone(%q) = (%q, %v); want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"spring-plains", "Spring Plains"},
		{"agronomy-farm-services", "Agronomy Farm Services"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := TitleCase(tt.in); got != tt.want {
			t.Errorf("TitleCase(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestText(t *testing.T) {
	if got := Text("  Farm \n\t hand  "); got != "Farm hand" {
		t.Errorf("Text = %q; want %q", got, "Farm hand")
	}
}
