package workflow

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/buildhub/datasync_backend/models"
)

func fakeSteps(domains ...models.SyncDomain) []syncStep {
	steps := make([]syncStep, 0, len(domains))
	for _, d := range domains {
		steps = append(steps, syncStep{Domain: d})
	}
	return steps
}

func TestRunSyncStepsIsolatesFailures(t *testing.T) {
	steps := fakeSteps(
		models.SyncDomainInventory,
		models.SyncDomainAccounting,
		models.SyncDomainProject,
		models.SyncDomainProviders,
		models.SyncDomainInvoice,
		models.SyncDomainLoyalty,
	)
	for _, parallel := range []bool{false, true} {
		var calls int32
		exec := func(ctx context.Context, step syncStep) (bool, error) {
			atomic.AddInt32(&calls, 1)
			switch step.Domain {
			case models.SyncDomainProject:
				return false, errors.New("project PR9 not found")
			case models.SyncDomainLoyalty:
				panic("profile cache exploded")
			}
			return step.Domain == models.SyncDomainInventory, nil
		}

		result := newSyncResult("ORDER_CREATED", "O1", runSyncSteps(context.Background(), steps, parallel, exec))

		if calls != 6 {
			t.Fatalf("parallel=%v: ran %d steps, want 6", parallel, calls)
		}
		if result.Success {
			t.Fatalf("parallel=%v: expected failure", parallel)
		}
		want := []string{"inventory", "accounting", "providers", "invoice"}
		if strings.Join(result.SyncedDomains, ",") != strings.Join(want, ",") {
			t.Fatalf("parallel=%v: synced %v, want %v", parallel, result.SyncedDomains, want)
		}
		if len(result.Errors) != 2 || !strings.HasPrefix(result.Errors[0], "project: ") || !strings.HasPrefix(result.Errors[1], "loyalty: panic") {
			t.Fatalf("parallel=%v: unexpected errors %v", parallel, result.Errors)
		}
		if len(result.AlreadyApplied) != 1 || result.AlreadyApplied[0] != "inventory" {
			t.Fatalf("parallel=%v: already applied %v", parallel, result.AlreadyApplied)
		}
	}
}

func TestSyncResultSuccessOnlyWithoutErrors(t *testing.T) {
	ok := newSyncResult("PROJECT_CREATED", "PR1", []stepOutcome{
		{domain: models.SyncDomainFinancials},
		{domain: models.SyncDomainProjectInventory},
		{domain: models.SyncDomainTasks},
	})
	if !ok.Success || len(ok.Errors) != 0 || len(ok.SyncedDomains) != 3 {
		t.Fatalf("unexpected result %+v", ok)
	}
	if !ok.Synced(models.SyncDomainTasks) || ok.Synced(models.SyncDomainInvoice) {
		t.Fatalf("Synced lookup wrong for %v", ok.SyncedDomains)
	}

	empty := newSyncResult("PROJECT_CREATED", "PR1", nil)
	if !empty.Success || empty.SyncedDomains == nil || empty.Errors == nil {
		t.Fatalf("empty result should succeed with non-nil lists: %+v", empty)
	}
}
