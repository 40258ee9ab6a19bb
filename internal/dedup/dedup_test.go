package dedup_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"

	"jobsweep-engine/internal/dedup"
	"jobsweep-engine/internal/domain"
	"jobsweep-engine/internal/mocks"
	"jobsweep-engine/internal/util"
)

func TestKeyPrefersExternalID(t *testing.T) {
	a := domain.RawCandidate{ExternalID: " JOB-1 ", Company: "Acme", Title: "SRE", Location: "Austin"}
	b := domain.RawCandidate{ExternalID: "job-1", Company: "Other", Title: "Other", Location: "Else"}
	if dedup.Key(a) != dedup.Key(b) {
		t.Fatalf("expected same key for same external id: %q vs %q", dedup.Key(a), dedup.Key(b))
	}
	if got := dedup.Key(a); got != "id:job-1" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestKeyNormalizesFallbackFields(t *testing.T) {
	a := domain.RawCandidate{Company: "ACME  Corp", Title: "Senior\tSRE", Location: " Austin, TX "}
	b := domain.RawCandidate{Company: "acme corp", Title: "senior sre", Location: "austin, tx"}
	if dedup.Key(a) != dedup.Key(b) {
		t.Fatalf("expected normalized keys to match: %q vs %q", dedup.Key(a), dedup.Key(b))
	}
	if !strings.HasPrefix(dedup.Key(a), "otl:") {
		t.Fatalf("expected org/title/location key, got %q", dedup.Key(a))
	}
}

func TestKeyIsIdempotent(t *testing.T) {
	raw := domain.RawCandidate{Company: "  Wayne Enterprises ", Title: "DATA  Scientist", Location: "Gotham,  NJ"}
	normalized := domain.RawCandidate{
		Company:  util.Fold(raw.Company),
		Title:    util.Fold(raw.Title),
		Location: util.Fold(raw.Location),
	}
	if dedup.Key(raw) != dedup.Key(normalized) {
		t.Fatalf("key not idempotent: %q vs %q", dedup.Key(raw), dedup.Key(normalized))
	}
}

func TestMemoryAdmitsExactlyOnceUnderContention(t *testing.T) {
	idx := dedup.NewMemory()
	const workers = 64

	var admitted int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := idx.Admit(context.Background(), "id:same")
			if err != nil {
				t.Errorf("Admit: %v", err)
				return
			}
			if ok {
				atomic.AddInt64(&admitted, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if admitted != 1 {
		t.Fatalf("expected exactly one admission, got %d", admitted)
	}
	if idx.Len() != 1 {
		t.Fatalf("expected one stored key, got %d", idx.Len())
	}
}

func TestRedisAdmitUsesRunScopedFingerprint(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	store := mocks.NewMockSetNXer(ctrl)
	idx := dedup.NewRedisWithStore(store, "jobsweep:seen:", "run-1", time.Hour)
	wantKey := "jobsweep:seen:run-1:" + dedup.Fingerprint("id:job-1")

	gomock.InOrder(
		store.EXPECT().SetNX(gomock.Any(), wantKey, "1", time.Hour).Return(true, nil),
		store.EXPECT().SetNX(gomock.Any(), wantKey, "1", time.Hour).Return(false, nil),
	)

	ok, err := idx.Admit(context.Background(), "id:job-1")
	if err != nil || !ok {
		t.Fatalf("expected first admit, got ok=%v err=%v", ok, err)
	}
	ok, err = idx.Admit(context.Background(), "id:job-1")
	if err != nil || ok {
		t.Fatalf("expected duplicate rejection, got ok=%v err=%v", ok, err)
	}
}

func TestRedisAdmitPropagatesErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	store := mocks.NewMockSetNXer(ctrl)
	store.EXPECT().SetNX(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("connection refused"))
	store.EXPECT().Close().Return(nil)

	idx := dedup.NewRedisWithStore(store, "p:", "r", time.Minute)
	if _, err := idx.Admit(context.Background(), "k"); err == nil {
		t.Fatal("expected error from store")
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
