package workflow

import (
	"fmt"

	"github.com/buildhub/datasync_backend/models"
)

// SyncResult reports a best-effort fan-out. Success is true only when no
// step failed; a partial result must be reconciled later, not replayed blindly.
type SyncResult struct {
	EventType      string   `json:"event_type"`
	ReferenceId    string   `json:"reference_id"`
	Success        bool     `json:"success"`
	SyncedDomains  []string `json:"synced_domains"`
	AlreadyApplied []string `json:"already_applied,omitempty"`
	Errors         []string `json:"errors"`
}

type stepOutcome struct {
	domain  models.SyncDomain
	skipped bool
	err     error
}

func newSyncResult(eventType, referenceId string, outcomes []stepOutcome) *SyncResult {
	r := &SyncResult{
		EventType:     eventType,
		ReferenceId:   referenceId,
		SyncedDomains: []string{},
		Errors:        []string{},
	}
	for _, o := range outcomes {
		if o.err != nil {
			r.Errors = append(r.Errors, fmt.Sprintf("%s: %s", o.domain, o.err.Error()))
			continue
		}
		r.SyncedDomains = append(r.SyncedDomains, string(o.domain))
		if o.skipped {
			r.AlreadyApplied = append(r.AlreadyApplied, string(o.domain))
		}
	}
	r.Success = len(r.Errors) == 0
	return r
}

func (r *SyncResult) Synced(domain models.SyncDomain) bool {
	for _, d := range r.SyncedDomains {
		if d == string(domain) {
			return true
		}
	}
	return false
}
