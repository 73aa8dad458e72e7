package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maccolaco/claimsense/internal/evaluate"
	"github.com/maccolaco/claimsense/internal/model"
	"github.com/maccolaco/claimsense/internal/review"
	"github.com/maccolaco/claimsense/internal/rules"
)

// mockRevalidator implements Revalidator
type mockRevalidator struct {
	fail  map[string]bool
	calls int32
	delay time.Duration
}

func (m *mockRevalidator) Revalidate(c *model.Claim, actor string) error {
	atomic.AddInt32(&m.calls, 1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.fail[c.ID] {
		return errors.New("revalidate error")
	}
	c.Queue = model.QueueWarningsOnly
	return nil
}

func testClaims(n int) []*model.Claim {
	claims := make([]*model.Claim, n)
	for i := range claims {
		claims[i] = &model.Claim{ID: string(rune('a' + i)), Status: model.StatusUploaded}
	}
	return claims
}

func TestBatchProcessor_ProcessClaims(t *testing.T) {
	rv := &mockRevalidator{fail: map[string]bool{"c": true}}
	processor := NewBatchProcessor(rv, 2, 0, 0, nil)

	claims := testClaims(5)
	results := processor.ProcessClaims(context.Background(), claims)

	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}

	for i, res := range results {
		if res.Position != i || res.Claim != claims[i] {
			t.Errorf("result %d is out of order: position %d, claim %s", i, res.Position, res.Claim.ID)
		}
		if res.Claim.ID == "c" {
			if res.Error == nil {
				t.Error("expected an error for claim c")
			}
			continue
		}
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.Claim.ID, res.Error)
		}
	}

	if atomic.LoadInt32(&rv.calls) != 5 {
		t.Errorf("expected 5 revalidations, got %d", rv.calls)
	}
}

func TestBatchProcessor_EmptyBatch(t *testing.T) {
	results := NewBatchProcessor(&mockRevalidator{}, 2, 0, 0, nil).ProcessClaims(context.Background(), nil)
	if results == nil || len(results) != 0 {
		t.Errorf("expected empty non-nil results, got %#v", results)
	}
}

func TestBatchProcessor_AbandonedBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rv := &mockRevalidator{}
	claims := testClaims(4)
	results := NewBatchProcessor(rv, 2, 0, 0, nil).ProcessClaims(ctx, claims)

	if len(results) != 4 {
		t.Fatalf("expected one result per claim, got %d", len(results))
	}
	for _, res := range results {
		if !errors.Is(res.Error, context.Canceled) {
			t.Errorf("expected context.Canceled for %s, got %v", res.Claim.ID, res.Error)
		}
		if res.Claim.Status != model.StatusUploaded {
			t.Errorf("abandoned claim %s was modified", res.Claim.ID)
		}
	}
	if atomic.LoadInt32(&rv.calls) != 0 {
		t.Errorf("expected no revalidations, got %d", rv.calls)
	}
}

func TestBatchProcessor_WithRealEvaluator(t *testing.T) {
	svc := review.NewService(evaluate.NewEvaluator(rules.Default(rules.DefaultOptions()), 2, nil), nil)

	claims := []*model.Claim{
		svc.NewClaim("clean.pdf", model.ExtractedData{
			CPTCodes: []string{"99213"}, Charges: []float64{150},
			ServiceDates: []string{"2024-01-15"}, DiagnosisCodes: []string{"J06.9"},
		}),
		svc.NewClaim("bad.pdf", model.ExtractedData{
			CPTCodes: []string{"99999"}, Charges: []float64{150},
			ServiceDates: []string{"2024-02-30"},
		}),
	}

	results := NewBatchProcessor(svc, 4, 1000, 10, nil).ProcessClaims(context.Background(), claims)

	if results[0].Claim.Queue != model.QueueApprovedClaims {
		t.Errorf("expected clean claim approved, got %s", results[0].Claim.Queue)
	}
	if results[1].Claim.Queue != model.QueueCriticalErrors {
		t.Errorf("expected bad claim in CriticalErrors, got %s", results[1].Claim.Queue)
	}
	for _, res := range results {
		if res.Claim.Status != model.StatusProcessed {
			t.Errorf("expected Processed, got %s", res.Claim.Status)
		}
		if len(res.Claim.Events) != 1 || res.Claim.Events[0].Actor != BatchActor {
			t.Errorf("expected one batch audit event, got %+v", res.Claim.Events)
		}
	}
}

func TestReadDocumentsFromFile(t *testing.T) {
	dir := t.TempDir()

	single := filepath.Join(dir, "single.json")
	_ = os.WriteFile(single, []byte(`{"filename": "a.pdf", "extracted_data": {"cpt_codes": ["99213"], "charges": [150]}}`), 0644)

	array := filepath.Join(dir, "array.json")
	_ = os.WriteFile(array, []byte(`[{"filename": "a.pdf"}, {"filename": "b.pdf", "extracted_data": {"dates": ["2024-02-30"]}}]`), 0644)

	lines := filepath.Join(dir, "claims.jsonl")
	_ = os.WriteFile(lines, []byte("# exported 2024-03-01\n{\"filename\": \"a.pdf\"}\n\n{\"filename\": \"b.pdf\"}\n"), 0644)

	tests := []struct {
		path  string
		count int
	}{
		{single, 1},
		{array, 2},
		{lines, 2},
	}

	for _, tt := range tests {
		docs, err := ReadDocumentsFromFile(tt.path)
		if err != nil {
			t.Fatalf("ReadDocumentsFromFile(%s) failed: %v", filepath.Base(tt.path), err)
		}
		if len(docs) != tt.count {
			t.Errorf("%s: expected %d documents, got %d", filepath.Base(tt.path), tt.count, len(docs))
		}
	}

	docs, _ := ReadDocumentsFromFile(single)
	if docs[0].Data.CPTCodes[0] != "99213" || docs[0].Data.Charges[0] != 150 {
		t.Errorf("unexpected document: %+v", docs[0])
	}

	docs, _ = ReadDocumentsFromFile(array)
	if docs[1].Data.ServiceDates[0] != "2024-02-30" {
		t.Errorf("raw date must be kept as extracted, got %+v", docs[1].Data.ServiceDates)
	}
}

func TestReadDocumentsFromFile_Errors(t *testing.T) {
	if _, err := ReadDocumentsFromFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.jsonl")
	_ = os.WriteFile(bad, []byte("{\"filename\": \"a.pdf\"}\nnot json\n"), 0644)
	if _, err := ReadDocumentsFromFile(bad); err == nil {
		t.Error("expected parse error")
	}
}

func TestBatchProcessor_PayerRates(t *testing.T) {
	processor := NewBatchProcessor(&mockRevalidator{}, 1, 0, 0, nil)
	processor.SetPayerRates(map[string]float64{"Slow Payer": 0.0001}, 1)

	claims := testClaims(4)
	claims[0].Data.Payer = "slow payer"
	claims[1].Data.Payer = " Slow Payer "
	claims[2].Data.Payer = "Fast Payer"
	claims[3].Data.Payer = "Fast Payer"

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	results := processor.ProcessClaims(ctx, claims)

	if results[0].Error != nil {
		t.Errorf("first claim for the slow payer should use its burst: %v", results[0].Error)
	}
	if results[1].Error == nil {
		t.Error("second claim for the slow payer should be throttled past the deadline")
	}
	for _, res := range results[2:] {
		if res.Error != nil {
			t.Errorf("unlisted payer should not be limited: %v", res.Error)
		}
	}
}
