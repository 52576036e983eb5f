package models

import "time"

// CrawlRequest describes one crawl invocation. Nil limits mean "not supplied".
type CrawlRequest struct {
	CategoryTarget string `json:"category_url"`
	MaxPages       *int   `json:"max_pages"`
	MaxListings    *int   `json:"max_listings"`
	Location       string `json:"location"`
	PersistToStore bool   `json:"save_to_sheets"`
}

// Stop reasons reported by a crawl.
const (
	StopExhausted     = "exhausted"
	StopPageLimit     = "page_limit"
	StopItemLimit     = "item_limit"
	StopPageFailed    = "page_failed"
	StopQuotaExceeded = "quota_exceeded"
	StopCancelled     = "cancelled"
)

// Statistics summarises the listings of one run.
type Statistics struct {
	TotalItems            int            `json:"total_items"`
	SuccessfulItems       int            `json:"successful_items"`
	FailedItems           int            `json:"failed_items"`
	ItemsWithLocation     int            `json:"items_with_location"`
	ItemsWithDescription  int            `json:"items_with_description"`
	ItemsWithPhone        int            `json:"items_with_phone"`
	ItemsWithPhoneReveal  int            `json:"items_with_phone_reveal"`
	ItemsWithCreationDate int            `json:"items_with_creation_date"`
	ListingsByLocation    map[string]int `json:"listings_by_location"`
	ListingsByCategory    map[string]int `json:"listings_by_category"`
}

// RunResult is the outcome of one crawl invocation.
type RunResult struct {
	RunID         string      `json:"run_id"`
	Success       bool        `json:"success"`
	ListingsCount int         `json:"listings_count"`
	Listings      []Listing   `json:"listings"`
	StartedAt     time.Time   `json:"started_at"`
	FinishedAt    time.Time   `json:"finished_at"`
	ScrapedAt     time.Time   `json:"scraped_at"`
	StoreSaved    bool        `json:"store_saved"`
	AppendedCount int         `json:"appended_count"`
	Complete      bool        `json:"complete"`
	StopReason    string      `json:"stop_reason"`
	Statistics    *Statistics `json:"statistics,omitempty"`
	Warning       string      `json:"warning,omitempty"`
}

// RunSummary is the compact form of a RunResult kept in the run history.
type RunSummary struct {
	RunID          string    `json:"run_id"`
	CategoryTarget string    `json:"category_url"`
	ListingsCount  int       `json:"listings_count"`
	AppendedCount  int       `json:"appended_count"`
	StoreSaved     bool      `json:"store_saved"`
	Complete       bool      `json:"complete"`
	StopReason     string    `json:"stop_reason"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Warning        string    `json:"warning,omitempty"`
}

// Summary condenses r for the run history.
func (r *RunResult) Summary(category string) RunSummary {
	return RunSummary{
		RunID:          r.RunID,
		CategoryTarget: category,
		ListingsCount:  r.ListingsCount,
		AppendedCount:  r.AppendedCount,
		StoreSaved:     r.StoreSaved,
		Complete:       r.Complete,
		StopReason:     r.StopReason,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		Warning:        r.Warning,
	}
}
