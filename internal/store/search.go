package store

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// SearchResult pairs a record with its combined relevance score.
type SearchResult struct {
	*Record
	Score float64
}

// Search finds records matching the query and ranks them by a blend of
// text match quality, current strength, and significance, with recency
// as the tiebreak. Search never touches the access clock — a hit is not
// an access until the caller reads the full record with Get.
//
// The FTS5 index is tried first; if it is unavailable or corrupt the
// store logs a warning and falls back to a LIKE scan rather than failing
// the operation.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	now := time.Now()

	results, err := db.searchFTS(query, now)
	if err != nil {
		log.Printf("warning: text index unavailable, falling back to scan: %v", err)
		results, err = db.searchScan(query, now)
		if err != nil {
			return nil, fmt.Errorf("search fallback: %w", err)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (db *DB) searchFTS(query string, now time.Time) ([]SearchResult, error) {
	// Quote the query so FTS5 operators in user input cannot break the
	// match expression.
	safe := `"` + strings.ReplaceAll(query, `"`, `""`) + `"`

	// Subquery instead of a JOIN: the FTS table exposes title/body/tags
	// too, and unqualified selects against both relations are ambiguous.
	rows, err := db.Query(selectRecord+`
		WHERE records.rowid IN (SELECT rowid FROM records_fts WHERE records_fts MATCH ?)
	`, safe)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records, err := scanRecords(rows, now)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(records))
	for _, r := range records {
		results = append(results, SearchResult{
			Record: r,
			Score:  combinedScore(matchQuality(r, query), r),
		})
	}
	return results, nil
}

// searchScan is the LIKE fallback used when the FTS index fails.
func (db *DB) searchScan(query string, now time.Time) ([]SearchResult, error) {
	like := "%" + query + "%"
	rows, err := db.Query(selectRecord+`
		WHERE title LIKE ? OR body LIKE ? OR tags LIKE ?
	`, like, like, like)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records, err := scanRecords(rows, now)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(records))
	for _, r := range records {
		results = append(results, SearchResult{
			Record: r,
			Score:  combinedScore(matchQuality(r, query), r),
		})
	}
	return results, nil
}

// matchQuality scores how well a record's text matches the query terms:
// title hits weigh most, then tags, then body.
func matchQuality(r *Record, query string) float64 {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return 0
	}
	title := strings.ToLower(r.Title)
	body := strings.ToLower(r.Body)
	tags := strings.ToLower(strings.Join(r.Tags, " "))

	var score float64
	for _, term := range terms {
		if strings.Contains(title, term) {
			score += 1.0
		}
		if strings.Contains(tags, term) {
			score += 0.6
		}
		if strings.Contains(body, term) {
			score += 0.4
		}
	}
	return score / float64(len(terms)) / 2.0 // normalise to roughly [0,1]
}

// combinedScore blends match quality with current strength and
// significance: well-remembered, important records surface first among
// comparable matches.
func combinedScore(match float64, r *Record) float64 {
	return 0.5*match + 0.3*r.Strength + 0.2*float64(r.Significance)/10.0
}
