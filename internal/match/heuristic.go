package match

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mchanga/chamaflow/internal/model"
	"github.com/mchanga/chamaflow/internal/phone"
)

// phoneSuffixLen is the number of trailing digits compared by the partial
// phone strategy; statements often mask all but the last few digits.
const phoneSuffixLen = 6

// HeuristicMatcher scores transactions with a layered strategy ladder.
// Strategies are evaluated in order and the first success wins:
//
//  1. exact phone match
//  2. transaction/member code containment
//  3. fuzzy name similarity
//  4. partial phone suffix match
//
// The matcher is pure: it never touches storage and has no hidden state, so
// identical inputs always produce identical results.
type HeuristicMatcher struct {
	thresholds Thresholds
}

// NewHeuristicMatcher creates a local matcher with the given thresholds.
func NewHeuristicMatcher(thresholds Thresholds) *HeuristicMatcher {
	return &HeuristicMatcher{thresholds: thresholds}
}

// MatchTransaction scores one transaction against the member set.
func (m *HeuristicMatcher) MatchTransaction(_ context.Context, txn model.Transaction, members []model.Member) (model.MatchResult, error) {
	txnPhones := m.transactionPhones(txn)

	if result, ok := m.exactPhone(txnPhones, members); ok {
		return result, nil
	}
	if result, ok := m.codeContainment(txn, members); ok {
		return result, nil
	}
	if result, ok := m.fuzzyName(txn, members); ok {
		return result, nil
	}
	if result, ok := m.phoneSuffix(txnPhones, members); ok {
		return result, nil
	}

	return model.MatchResult{
		Confidence:    0,
		MatchedTokens: []string{},
		Reason:        NoMatchReason,
	}, nil
}

// MatchBatch scores a batch of transactions, preserving input order. Rows are
// scored concurrently; recombination by index keeps the output aligned with
// the input.
func (m *HeuristicMatcher) MatchBatch(ctx context.Context, txns []model.Transaction, members []model.Member) ([]model.MatchResult, error) {
	results := make([]model.MatchResult, len(txns))

	var wg sync.WaitGroup
	sem := make(chan struct{}, 8)
	for i := range txns {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx], _ = m.MatchTransaction(ctx, txns[idx], members)
		}(i)
	}
	wg.Wait()

	return results, nil
}

// transactionPhones gathers every phone on the transaction: explicit numbers
// supplied by the extractor plus any found in the description, all canonical.
func (m *HeuristicMatcher) transactionPhones(txn model.Transaction) []string {
	phones := []string{}
	seen := make(map[string]bool)

	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			phones = append(phones, p)
		}
	}

	for _, raw := range txn.Phones {
		add(phone.Normalize(raw))
	}
	for _, extracted := range phone.Extract(txn.Description) {
		add(extracted)
	}
	return phones
}

func (m *HeuristicMatcher) exactPhone(txnPhones []string, members []model.Member) (model.MatchResult, bool) {
	if len(txnPhones) == 0 {
		return model.MatchResult{}, false
	}

	for i := range members {
		memberPhone := phone.Normalize(members[i].Phone)
		if memberPhone == "" {
			continue
		}
		for _, p := range txnPhones {
			if p == memberPhone {
				id := members[i].ID
				return model.MatchResult{
					CandidateMemberID: &id,
					Confidence:        m.thresholds.ExactPhone,
					MatchedTokens:     []string{p},
					Reason:            "Exact phone match",
				}, true
			}
		}
	}
	return model.MatchResult{}, false
}

func (m *HeuristicMatcher) codeContainment(txn model.Transaction, members []model.Member) (model.MatchResult, bool) {
	code := strings.ToLower(strings.TrimSpace(txn.TransactionCode))
	if code == "" {
		return model.MatchResult{}, false
	}

	for i := range members {
		memberCode := strings.ToLower(strings.TrimSpace(members[i].MemberCode))
		if memberCode == "" {
			continue
		}
		if strings.Contains(code, memberCode) || strings.Contains(memberCode, code) {
			id := members[i].ID
			return model.MatchResult{
				CandidateMemberID: &id,
				Confidence:        m.thresholds.CodeContainment,
				MatchedTokens:     []string{code, memberCode},
				Reason:            "Member code match",
			}, true
		}
	}
	return model.MatchResult{}, false
}

func (m *HeuristicMatcher) fuzzyName(txn model.Transaction, members []model.Member) (model.MatchResult, bool) {
	desc := phone.NormalizeName(txn.Description)
	if desc == "" {
		return model.MatchResult{}, false
	}
	descTokens := phone.NameTokens(txn.Description)

	bestScore := 0.0
	bestMember := -1
	bestToken := ""

	for i := range members {
		fullName := phone.NormalizeName(members[i].Name)
		if fullName == "" {
			continue
		}

		candidates := append([]string{fullName}, phone.NameTokens(members[i].Name)...)
		for _, candidate := range candidates {
			score := Similarity(desc, candidate)
			for _, descToken := range descTokens {
				if s := Similarity(descToken, candidate); s > score {
					score = s
				}
			}
			// Strictly-greater keeps ties on the first-encountered member.
			if score > bestScore {
				bestScore = score
				bestMember = i
				bestToken = candidate
			}
		}
	}

	if bestMember < 0 || bestScore < m.thresholds.FuzzyNameMin {
		return model.MatchResult{}, false
	}

	confidence := 0.5 + 0.35*bestScore
	if confidence > m.thresholds.FuzzyNameCap {
		confidence = m.thresholds.FuzzyNameCap
	}

	id := members[bestMember].ID
	return model.MatchResult{
		CandidateMemberID: &id,
		Confidence:        confidence,
		MatchedTokens:     []string{bestToken},
		Reason:            fmt.Sprintf("Name similarity (%.0f%%)", bestScore*100),
	}, true
}

func (m *HeuristicMatcher) phoneSuffix(txnPhones []string, members []model.Member) (model.MatchResult, bool) {
	if len(txnPhones) == 0 {
		return model.MatchResult{}, false
	}

	for i := range members {
		memberPhone := phone.Normalize(members[i].Phone)
		if memberPhone == "" {
			continue
		}
		memberSuffix := phone.Suffix(memberPhone, phoneSuffixLen)
		for _, p := range txnPhones {
			if phone.Suffix(p, phoneSuffixLen) == memberSuffix {
				id := members[i].ID
				return model.MatchResult{
					CandidateMemberID: &id,
					Confidence:        m.thresholds.PhoneSuffix,
					MatchedTokens:     []string{memberSuffix},
					Reason:            "Partial phone match (last 6 digits)",
				}, true
			}
		}
	}
	return model.MatchResult{}, false
}
