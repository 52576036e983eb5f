package models

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date with no time-of-day component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// NewDate builds a Date, rejecting impossible days such as 31/02.
func NewDate(year int, month time.Month, day int) (Date, bool) {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return Date{}, false
	}
	return Date{Year: year, Month: month, Day: day}, true
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	t, err := time.Parse(dateLayout, strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("date %q: %w", string(b), err)
	}
	*d = DateOf(t)
	return nil
}

// Stub is what a results page tells us about a listing before its detail page is fetched.
type Stub struct {
	JobID        string
	Title        string
	URL          string
	Location     string
	CategoryName string
}

// Listing is one scraped classified ad. Empty strings and nil dates mean "absent".
type Listing struct {
	JobID             string    `json:"job_id"`
	Title             string    `json:"title"`
	URL               string    `json:"url"`
	Location          string    `json:"location"`
	CategoryName      string    `json:"category_name"`
	CreationDate      *Date     `json:"creation_date"`
	Description       string    `json:"description"`
	Phone             string    `json:"phone"`
	PhoneNumberExists bool      `json:"phone_number_exists"`
	PhoneRevealURL    string    `json:"phone_reveal_url,omitempty"`
	LastEdited        *Date     `json:"last_edited"`
	ScrapedAt         time.Time `json:"scraped_at"`
	Success           bool      `json:"success"`
}

// FromStub builds the fallback record kept when detail enrichment fails.
func FromStub(s Stub, scrapedAt time.Time) Listing {
	return Listing{
		JobID:        s.JobID,
		Title:        s.Title,
		URL:          s.URL,
		Location:     s.Location,
		CategoryName: s.CategoryName,
		ScrapedAt:    scrapedAt,
		Success:      false,
	}
}

// MergeStub fills fields the detail page did not provide from the stub.
func (l *Listing) MergeStub(s Stub) {
	if l.JobID == "" {
		l.JobID = s.JobID
	}
	if l.Title == "" {
		l.Title = s.Title
	}
	if l.URL == "" {
		l.URL = s.URL
	}
	if l.Location == "" {
		l.Location = s.Location
	}
	if l.CategoryName == "" {
		l.CategoryName = s.CategoryName
	}
}
