package services

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gumtree-scraper/models"
	"gumtree-scraper/utils"
)

type StatisticsService struct {
	logger *utils.Logger
	out    io.Writer
}

func NewStatisticsService(logger *utils.Logger) *StatisticsService {
	return &StatisticsService{logger: logger, out: os.Stdout}
}

func (s *StatisticsService) Generate(listings []models.Listing) *models.Statistics {
	st := &models.Statistics{
		ListingsByLocation: make(map[string]int),
		ListingsByCategory: make(map[string]int),
	}

	st.TotalItems = len(listings)
	for _, l := range listings {
		if l.Success {
			st.SuccessfulItems++
		} else {
			st.FailedItems++
		}
		if l.Location != "" {
			st.ItemsWithLocation++
			st.ListingsByLocation[l.Location]++
		}
		if l.CategoryName != "" {
			st.ListingsByCategory[l.CategoryName]++
		}
		if l.Description != "" {
			st.ItemsWithDescription++
		}
		if l.Phone != "" {
			st.ItemsWithPhone++
		}
		if l.PhoneRevealURL != "" {
			st.ItemsWithPhoneReveal++
		}
		if l.CreationDate != nil {
			st.ItemsWithCreationDate++
		}
	}
	return st
}

func (s *StatisticsService) Print(st *models.Statistics) {
	w := s.out
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 GUMTREE SCRAPE STATISTICS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total listings scraped : \033[1m%d\033[0m\n", st.TotalItems)
	fmt.Fprintf(w, "  Fully enriched         : \033[1m%d\033[0m\n", st.SuccessfulItems)
	fmt.Fprintf(w, "  Stub only              : \033[1m%d\033[0m\n", st.FailedItems)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Field Coverage\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Location      : %s\n", coverage(st.ItemsWithLocation, st.TotalItems))
	fmt.Fprintf(w, "  Description   : %s\n", coverage(st.ItemsWithDescription, st.TotalItems))
	fmt.Fprintf(w, "  Phone         : %s\n", coverage(st.ItemsWithPhone, st.TotalItems))
	fmt.Fprintf(w, "  Reveal only   : %s\n", coverage(st.ItemsWithPhoneReveal, st.TotalItems))
	fmt.Fprintf(w, "  Creation date : %s\n", coverage(st.ItemsWithCreationDate, st.TotalItems))
	fmt.Fprintln(w)

	printCounts(w, "Listings by Location", st.ListingsByLocation, thin)
	printCounts(w, "Listings by Category", st.ListingsByCategory, thin)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func printCounts(w io.Writer, title string, counts map[string]int, thin string) {
	fmt.Fprintf(w, "\033[1;33m  %s\033[0m\n", title)
	fmt.Fprintf(w, "  %s\n", thin)
	if len(counts) == 0 {
		fmt.Fprintf(w, "  No data\n")
		return
	}

	type nameCount struct {
		name  string
		count int
	}
	var rows []nameCount
	for name, cnt := range counts {
		rows = append(rows, nameCount{name, cnt})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].name < rows[j].name
	})
	for _, r := range rows {
		bar := strings.Repeat("█", min(r.count, 40))
		fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(r.name, 28), bar, r.count)
	}
	fmt.Fprintln(w)
}

func coverage(n, total int) string {
	if total == 0 {
		return "0"
	}
	return fmt.Sprintf("%d (%.0f%%)", n, float64(n)*100/float64(total))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
