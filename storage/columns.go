package storage

import (
	"strconv"
	"time"

	"gumtree-scraper/models"
)

// Columns is the header shared by the CSV export, the sheet and the listings table.
var Columns = []string{
	"job_id",
	"title",
	"url",
	"location",
	"category_name",
	"creation_date",
	"description",
	"phone",
	"phone_number_exists",
	"phone_reveal_url",
	"last_edited",
	"scraped_at",
	"success",
}

// Cells renders a listing in Columns order. Absent values become empty strings.
func Cells(l models.Listing) []string {
	return []string{
		l.JobID,
		l.Title,
		l.URL,
		l.Location,
		l.CategoryName,
		dateCell(l.CreationDate),
		l.Description,
		l.Phone,
		strconv.FormatBool(l.PhoneNumberExists),
		l.PhoneRevealURL,
		dateCell(l.LastEdited),
		l.ScrapedAt.Format(time.RFC3339),
		strconv.FormatBool(l.Success),
	}
}

func dateCell(d *models.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}
