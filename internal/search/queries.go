package search

import (
	"loan-intake/internal/models"
)

// sortFields maps list sort keys to indexed fields.
var sortFields = map[string]string{
	"createdAt":        "createdAt",
	"updatedAt":        "updatedAt",
	"loanAmount":       "loanAmount",
	"documentProgress": "documentProgress",
	"priority":         "priorityRank",
	"applicantName":    "applicantName.raw",
}

// buildFilter returns the bool query shared by list and tab counts.
func buildFilter(text string, status models.ApplicationStatus, priority models.Priority) map[string]interface{} {
	mustClauses := []interface{}{}
	filterClauses := []interface{}{}

	if text != "" {
		mustClauses = append(mustClauses, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  text,
				"fields": []string{"applicantName^3", "email^2", "id"},
				"type":   "best_fields",
			},
		})
	}
	if status != "" {
		filterClauses = append(filterClauses, map[string]interface{}{
			"term": map[string]interface{}{"status": string(status)},
		})
	}
	if priority != "" {
		filterClauses = append(filterClauses, map[string]interface{}{
			"term": map[string]interface{}{"priority": string(priority)},
		})
	}

	if len(mustClauses) == 0 {
		mustClauses = append(mustClauses, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	boolQuery := map[string]interface{}{"must": mustClauses}
	if len(filterClauses) > 0 {
		boolQuery["filter"] = filterClauses
	}
	return map[string]interface{}{"bool": boolQuery}
}

// buildListQuery builds the paged admin list search. q must be normalized.
func buildListQuery(q models.ListQuery) map[string]interface{} {
	field := sortFields[q.Sort]
	return map[string]interface{}{
		"query":            buildFilter(q.Search, q.Status, q.Priority),
		"from":             (q.Page - 1) * q.PageSize,
		"size":             q.PageSize,
		"track_total_hits": true,
		"sort": []interface{}{
			map[string]interface{}{field: map[string]interface{}{"order": q.Order}},
			map[string]interface{}{"id": map[string]interface{}{"order": "asc"}},
		},
	}
}

func buildTabsQuery(text string) map[string]interface{} {
	return map[string]interface{}{
		"query":            buildFilter(text, "", ""),
		"size":             0,
		"track_total_hits": true,
		"aggs": map[string]interface{}{
			"by_status": map[string]interface{}{
				"terms": map[string]interface{}{"field": "status", "size": len(models.AllStatuses)},
			},
		},
	}
}

func buildStatsQuery() map[string]interface{} {
	return map[string]interface{}{
		"size":             0,
		"track_total_hits": true,
		"aggs": map[string]interface{}{
			"by_status": map[string]interface{}{
				"terms": map[string]interface{}{"field": "status", "size": len(models.AllStatuses)},
			},
			"by_priority": map[string]interface{}{
				"terms": map[string]interface{}{"field": "priority", "size": len(models.AllPriorities)},
			},
			"avg_loan_amount": map[string]interface{}{
				"avg": map[string]interface{}{"field": "loanAmount"},
			},
			"avg_progress": map[string]interface{}{
				"avg": map[string]interface{}{"field": "documentProgress"},
			},
			"submitted_last_7d": map[string]interface{}{
				"filter": map[string]interface{}{
					"bool": map[string]interface{}{
						"must_not": []interface{}{
							map[string]interface{}{"term": map[string]interface{}{"status": string(models.StatusDraft)}},
						},
						"filter": []interface{}{
							map[string]interface{}{"range": map[string]interface{}{
								"updatedAt": map[string]interface{}{"gte": "now-7d/d"},
							}},
						},
					},
				},
			},
		},
	}
}
