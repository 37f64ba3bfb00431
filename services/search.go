package services

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/parkwatch/parking-backend/models"
	"github.com/parkwatch/parking-backend/shared"
	"github.com/sirupsen/logrus"
)

const defaultMaxDetailWorkers = 5

// Known elements on the results page.
const (
	errorLabelSelector = "#lblErrorTag"
	totalDueSelector   = "#lbl_totaldue_vTag"

	noResultsFallbackMessage = "No results table found."
)

// CitationSearchService drives the end-to-end tag search: landing page, tag
// search postback, results parsing, concurrent detail fetches, merge.
type CitationSearchService struct {
	session    *shared.PortalSession
	executor   *PostbackExecutor
	fetcher    *DetailFetcher
	cache      *CacheService
	maxWorkers int
}

// NewCitationSearchService wires the search pipeline around the shared
// portal session. A nil cache disables result caching; maxWorkers <= 0
// falls back to the default cap of 5.
func NewCitationSearchService(session *shared.PortalSession, cache *CacheService, maxWorkers int) *CitationSearchService {
	executor := NewPostbackExecutor(session)
	if maxWorkers <= 0 {
		maxWorkers = defaultMaxDetailWorkers
	}
	return &CitationSearchService{
		session:    session,
		executor:   executor,
		fetcher:    NewDetailFetcher(executor),
		cache:      cache,
		maxWorkers: maxWorkers,
	}
}

// SearchByTag runs the full pipeline for one vehicle tag. The three valid
// completions are: no results table (message attached), an empty results
// table, and a merged record set. Only a search-phase transport or protocol
// failure is returned as an error; detail-phase failures are contained per
// citation.
func (s *CitationSearchService) SearchByTag(ctx context.Context, tagNumber string) (*models.SearchResult, error) {
	tag := models.NormalizeTag(tagNumber)
	logger := logrus.WithFields(logrus.Fields{
		"component": "CitationSearchService",
		"tag":       tag,
	})

	if s.cache != nil {
		if cached, ok := s.cache.GetSearchResult(tag); ok {
			logger.Debug("Serving search result from cache")
			return cached, nil
		}
	}

	logger.Info("Loading portal landing page")
	landingPage, err := s.session.GetPage(ctx)
	if err != nil {
		return nil, err
	}

	fields := BuildPostbackFields(landingPage, eventTargetTagSearch, "")
	fields[controlTagInput] = tag
	if value, ok := fields[controlStateDropdown]; ok && value == "" {
		fields[controlStateDropdown] = defaultStateCode
	}
	if _, ok := fields[controlTabSelector]; ok {
		fields[controlTabSelector] = tabModeTag
	}
	if _, ok := fields[controlCitationInput]; ok {
		fields[controlCitationInput] = ""
	}

	logger.Info("Submitting tag search")
	resultsPage, err := s.executor.SubmitFieldSet(ctx, fields)
	if err != nil {
		return nil, err
	}

	table, found := FindResultsTable(resultsPage)
	if !found {
		message := strings.TrimSpace(resultsPage.Find(errorLabelSelector).Text())
		if message == "" {
			message = noResultsFallbackMessage
		}
		logger.WithField("message", message).Info("Portal returned no results table")

		result := models.NewEmptySearchResult(tag, nil)
		result.Message = message
		return result, nil
	}

	rows := ParseSummaryRows(table)

	var totalDue *string
	if element := resultsPage.Find(totalDueSelector); element.Length() > 0 {
		text := strings.TrimSpace(element.First().Text())
		totalDue = &text
	}

	if len(rows) == 0 {
		logger.Info("Results table contains no citations")
		return models.NewEmptySearchResult(tag, totalDue), nil
	}

	logger.WithField("citations", len(rows)).Info("Fetching citation details concurrently")
	records := s.fetchDetails(ctx, rows, fields)

	// Collection order is nondeterministic; restore determinism here.
	sort.Slice(records, func(i, j int) bool {
		return records[i].Summary.Citation < records[j].Summary.Citation
	})

	paid := make([]models.CitationRecord, 0, len(records))
	open := make([]models.CitationRecord, 0, len(records))
	degraded := false
	for _, record := range records {
		if record.Error != "" {
			degraded = true
		}
		if record.NeedsPayment {
			open = append(open, record)
		} else {
			paid = append(paid, record)
		}
	}

	result := &models.SearchResult{
		TagNumber: tag,
		Summary: models.SearchSummary{
			TotalCitations: len(records),
			TotalPaid:      len(paid),
			TotalOpen:      len(open),
			TotalDue:       totalDue,
		},
		PaidCitations: paid,
		OpenCitations: open,
	}

	logger.WithFields(logrus.Fields{
		"total_citations": result.Summary.TotalCitations,
		"total_paid":      result.Summary.TotalPaid,
		"total_open":      result.Summary.TotalOpen,
	}).Info("Tag search completed")

	if s.cache != nil && !degraded {
		s.cache.SetSearchResult(tag, result)
	}
	return result, nil
}

// fetchDetails fans out one detail fetch per row over a bounded worker pool
// and collects results as they finish. The baseline field set is shared
// read-only across workers; each fetch clones it before mutating.
func (s *CitationSearchService) fetchDetails(ctx context.Context, rows []models.SummaryRow, baseFields models.FormFieldSet) []models.CitationRecord {
	workers := s.maxWorkers
	if len(rows) < workers {
		workers = len(rows)
	}

	semaphore := make(chan struct{}, workers)
	results := make(chan models.CitationRecord, len(rows))

	var wg sync.WaitGroup
	for _, row := range rows {
		wg.Add(1)
		go func(row models.SummaryRow) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			results <- s.fetcher.FetchRecord(ctx, row, baseFields)
		}(row)
	}
	wg.Wait()
	close(results)

	records := make([]models.CitationRecord, 0, len(rows))
	for record := range results {
		records = append(records, record)
	}
	return records
}
