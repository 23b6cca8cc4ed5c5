package schedule

import (
	"errors"
	"strings"
	"time"

	appLog "liturgyd/internal/log"
	"liturgyd/internal/model"
)

// roleSynonyms maps each closed role onto the free-text spellings the store
// has been observed to hold. Adding a spelling is a data change here, not a
// code change elsewhere.
var roleSynonyms = map[model.Role][]string{
	model.RolePrimary:   {"primary", "liturgist"},
	model.RoleSecondary: {"secondary", "liturgist2", "liturgist 2", "second liturgist"},
	model.RoleBackup:    {"backup", "backup liturgist"},
}

// synonymIndex is the inverted, normalized form of roleSynonyms.
var synonymIndex = func() map[string]model.Role {
	idx := make(map[string]model.Role)
	for role, tags := range roleSynonyms {
		for _, tag := range tags {
			idx[normalizeTag(tag)] = role
		}
	}
	return idx
}()

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// NormalizeRole maps a free-text role tag onto the closed role set.
// Matching is case- and whitespace-insensitive.
func NormalizeRole(tag string) (model.Role, bool) {
	role, ok := synonymIndex[normalizeTag(tag)]
	return role, ok
}

// Reconcile merges the generated scaffold with the store's assignment
// records, keyed by date. Records whose date has no generated instance are
// outside the requested window and are discarded, never synthesized into a
// new instance. Records with unrecognized role tags are skipped.
//
// The input instances are not mutated; reconciling the same inputs twice
// yields identical views.
func Reconcile(instances []model.ServiceInstance, assignments []model.Assignment) model.ReconciledView {
	merged := make([]model.ServiceInstance, len(instances))
	byDate := make(map[string]int, len(instances))
	for i, inst := range instances {
		copied := inst
		copied.Slots = make(map[model.Role]*model.Assignment, len(inst.Slots))
		for role, a := range inst.Slots {
			copied.Slots[role] = a
		}
		merged[i] = copied
		byDate[inst.DateKey] = i
	}

	for i := range assignments {
		a := assignments[i]

		role, ok := NormalizeRole(a.RoleTag)
		if !ok {
			appLog.Debug("reconcile: skipping record with unknown role tag",
				"record_id", a.RecordID, "role_tag", a.RoleTag, "date", a.Date)
			continue
		}

		idx, ok := byDate[a.Date]
		if !ok {
			appLog.Debug("reconcile: discarding record outside window",
				"record_id", a.RecordID, "date", a.Date)
			continue
		}

		// The claim coordinator should make this impossible; if the store
		// holds two records for one slot it is a data-integrity problem,
		// not a crash. Last record in iteration order wins.
		if existing := merged[idx].Slots[role]; existing != nil {
			appLog.Error("reconcile: duplicate assignment for slot",
				errors.New("slot already filled"),
				"date", a.Date, "role", string(role),
				"kept_record", a.RecordID, "displaced_record", existing.RecordID)
		}
		merged[idx].Slots[role] = &a
	}

	return model.ReconciledView{
		Instances:   merged,
		GeneratedAt: time.Now(),
	}
}
