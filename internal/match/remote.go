package match

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mchanga/chamaflow/internal/common"
	"github.com/mchanga/chamaflow/internal/model"
)

// RemoteMatcher delegates scoring to an external matching service over HTTP.
// The wire contract mirrors the local ladder: one result per transaction, in
// input order, with confidence in [0,1].
type RemoteMatcher struct {
	httpClient *http.Client
	baseURL    string
}

// NewRemoteMatcher creates a matcher backed by the scoring service at baseURL.
func NewRemoteMatcher(baseURL string, timeout time.Duration) (*RemoteMatcher, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: matching.remote_url", common.ErrMissingConfig)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &RemoteMatcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

type remoteTransaction struct {
	ClientTranID    string   `json:"client_tran_id"`
	Date            string   `json:"tran_date"`
	Particulars     string   `json:"particulars"`
	TransactionCode string   `json:"transaction_code"`
	Phones          []string `json:"phones"`
	Credit          string   `json:"credit"`
}

type remoteMember struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	MemberCode string `json:"member_code"`
	ID         int64  `json:"id"`
}

type remoteMatch struct {
	ClientTranID      string   `json:"client_tran_id"`
	MatchReason       string   `json:"match_reason"`
	MatchTokens       []string `json:"match_tokens"`
	CandidateMemberID *int64   `json:"candidate_member_id"`
	Confidence        float64  `json:"confidence"`
}

// MatchTransaction scores a single transaction by delegating to MatchBatch.
func (m *RemoteMatcher) MatchTransaction(ctx context.Context, txn model.Transaction, members []model.Member) (model.MatchResult, error) {
	results, err := m.MatchBatch(ctx, []model.Transaction{txn}, members)
	if err != nil {
		return model.MatchResult{}, err
	}
	return results[0], nil
}

// MatchBatch posts the batch to the scoring service and maps the response
// back into input order using the per-row client ids.
func (m *RemoteMatcher) MatchBatch(ctx context.Context, txns []model.Transaction, members []model.Member) ([]model.MatchResult, error) {
	payload := struct {
		Transactions []remoteTransaction `json:"transactions"`
		Members      []remoteMember      `json:"members"`
	}{
		Transactions: make([]remoteTransaction, len(txns)),
		Members:      make([]remoteMember, len(members)),
	}

	for i, txn := range txns {
		phones := txn.Phones
		if phones == nil {
			phones = []string{}
		}
		payload.Transactions[i] = remoteTransaction{
			ClientTranID:    "t_" + strconv.Itoa(i),
			Date:            txn.Date.Format("2006-01-02"),
			Particulars:     txn.Description,
			TransactionCode: txn.TransactionCode,
			Phones:          phones,
			Credit:          txn.Credit.StringFixed(2),
		}
	}
	for i, member := range members {
		payload.Members[i] = remoteMember{
			ID:         member.ID,
			Name:       member.Name,
			Phone:      member.Phone,
			MemberCode: member.MemberCode,
		}
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal match request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/match-batch", strings.NewReader(string(jsonBody)))
	if err != nil {
		return nil, fmt.Errorf("failed to create match request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("matching service request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read matching service response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("matching service error (status %d): %s", resp.StatusCode, string(body))
	}

	var matches []remoteMatch
	if err := json.Unmarshal(body, &matches); err != nil {
		return nil, fmt.Errorf("failed to parse matching service response: %w", err)
	}

	byID := make(map[string]remoteMatch, len(matches))
	for _, match := range matches {
		byID[match.ClientTranID] = match
	}

	results := make([]model.MatchResult, len(txns))
	for i := range txns {
		match, ok := byID["t_"+strconv.Itoa(i)]
		if !ok {
			results[i] = model.MatchResult{
				MatchedTokens: []string{},
				Reason:        NoMatchReason,
			}
			continue
		}
		tokens := match.MatchTokens
		if tokens == nil {
			tokens = []string{}
		}
		results[i] = model.MatchResult{
			CandidateMemberID: match.CandidateMemberID,
			Confidence:        match.Confidence,
			MatchedTokens:     tokens,
			Reason:            match.MatchReason,
		}
	}
	return results, nil
}

// Healthy reports whether the scoring service responds on its health
// endpoint. Used at startup to fail fast on misconfiguration.
func (m *RemoteMatcher) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}
