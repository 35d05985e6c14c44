package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	elastic "github.com/elastic/go-elasticsearch/v8"

	"github.com/banking/compliance-engine/internal/config"
	"github.com/banking/compliance-engine/internal/domain"
)

// SearchRepository mirrors compliance decisions and regulatory reports into
// Elasticsearch for investigator search. Indexing is best effort; postgres
// stays the system of record.
type SearchRepository struct {
	client        *elastic.Client
	decisionIndex string
	reportIndex   string
}

// NewSearchRepository creates a new search repository
func NewSearchRepository(cfg config.ElasticsearchConfig) (*SearchRepository, error) {
	client, err := elastic.NewClient(elastic.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	// Verify connection
	_, err = client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to elasticsearch: %w", err)
	}

	return &SearchRepository{
		client:        client,
		decisionIndex: cfg.DecisionIndex,
		reportIndex:   cfg.ReportIndex,
	}, nil
}

// decisionDocument is the searchable projection of a check. It carries the
// decision facts, not the sanctions-match rationale.
type decisionDocument struct {
	CheckID        string   `json:"check_id"`
	OrganizationID string   `json:"organization_id"`
	CustomerID     string   `json:"customer_id"`
	Status         string   `json:"status"`
	Reason         string   `json:"reason,omitempty"`
	RiskScore      int      `json:"risk_score"`
	RiskLevel      string   `json:"risk_level"`
	RiskFactors    []string `json:"risk_factors,omitempty"`
	Amount         string   `json:"amount"`
	Currency       string   `json:"currency"`
	CreatedAt      string   `json:"created_at"`
}

// IndexDecision indexes a compliance check decision for search.
func (r *SearchRepository) IndexDecision(ctx context.Context, check *domain.ComplianceCheck) error {
	doc := decisionDocument{
		CheckID:        check.CheckID.String(),
		OrganizationID: check.OrganizationID.String(),
		CustomerID:     check.CustomerID.String(),
		Status:         string(check.Status),
		Reason:         check.Reason,
		RiskScore:      check.RiskScore,
		RiskLevel:      string(check.RiskLevel),
		Amount:         check.Amount.String(),
		Currency:       check.Currency,
		CreatedAt:      check.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if check.Breakdown != nil {
		doc.RiskFactors = check.Breakdown.RiskFactors
	}
	return r.index(ctx, r.decisionIndex, doc.CheckID, doc)
}

// reportDocument is the searchable projection of a regulatory report.
// Subject identification numbers never reach the index.
type reportDocument struct {
	ReportID       string `json:"report_id"`
	OrganizationID string `json:"organization_id"`
	ReportType     string `json:"report_type"`
	Status         string `json:"status"`
	Priority       string `json:"priority"`
	TotalAmount    string `json:"total_amount"`
	Currency       string `json:"currency"`
	FilingID       string `json:"filing_identifier,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// IndexReport indexes a regulatory report for search.
func (r *SearchRepository) IndexReport(ctx context.Context, report *domain.RegulatoryReport) error {
	doc := reportDocument{
		ReportID:       report.ReportID.String(),
		OrganizationID: report.OrganizationID.String(),
		ReportType:     string(report.ReportType),
		Status:         string(report.Status),
		Priority:       string(report.Priority),
		TotalAmount:    report.TotalAmount.String(),
		Currency:       report.Currency,
		FilingID:       report.FilingIdentifier,
		CreatedAt:      report.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	return r.index(ctx, r.reportIndex, doc.ReportID, doc)
}

func (r *SearchRepository) index(ctx context.Context, index, docID string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	res, err := r.client.Index(
		index,
		bytes.NewReader(data),
		r.client.Index.WithContext(ctx),
		r.client.Index.WithDocumentID(docID),
	)
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch error: %s", res.String())
	}

	return nil
}

// SearchDecisions performs a query-string search over indexed decisions.
func (r *SearchRepository) SearchDecisions(ctx context.Context, query string, from, size int) ([]map[string]interface{}, int64, error) {
	return r.search(ctx, r.decisionIndex, query, from, size)
}

// SearchReports performs a query-string search over indexed reports.
func (r *SearchRepository) SearchReports(ctx context.Context, query string, from, size int) ([]map[string]interface{}, int64, error) {
	return r.search(ctx, r.reportIndex, query, from, size)
}

func (r *SearchRepository) search(ctx context.Context, index, query string, from, size int) ([]map[string]interface{}, int64, error) {
	esQuery := map[string]interface{}{
		"from": from,
		"size": size,
		"query": map[string]interface{}{
			"query_string": map[string]interface{}{
				"query": query,
			},
		},
		"sort": []map[string]interface{}{
			{"created_at": "desc"},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, 0, fmt.Errorf("failed to encode query: %w", err)
	}

	res, err := r.client.Search(
		r.client.Search.WithContext(ctx),
		r.client.Search.WithIndex(index),
		r.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to perform search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, 0, fmt.Errorf("elasticsearch search error: %s", res.String())
	}

	var result map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, 0, fmt.Errorf("failed to decode response: %w", err)
	}

	// { "hits": { "total": { "value": ... }, "hits": [ { "_source": ... } ] } }
	hitsMap, ok := result["hits"].(map[string]interface{})
	if !ok {
		return nil, 0, nil
	}

	var total int64
	if totalMap, ok := hitsMap["total"].(map[string]interface{}); ok {
		if val, ok := totalMap["value"].(float64); ok {
			total = int64(val)
		}
	}

	hitsList, ok := hitsMap["hits"].([]interface{})
	if !ok {
		return nil, total, nil
	}

	var docs []map[string]interface{}
	for _, hit := range hitsList {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		if source, ok := hitMap["_source"].(map[string]interface{}); ok {
			docs = append(docs, source)
		}
	}
	return docs, total, nil
}
