// Package claim implements the server-side gate against double-booking a
// role slot. Clients act on polled state that may be stale by design, so
// the coordinator re-reads the store immediately before every commit.
package claim

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	appLog "liturgyd/internal/log"
	"liturgyd/internal/model"
	"liturgyd/internal/schedule"
	"liturgyd/internal/store"
)

// ValidationError reports a request rejected before any store I/O.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid claim: " + e.Reason
}

// ConflictError reports a claim lost to an existing assignment. Holder is
// the name of the person currently occupying the slot.
type ConflictError struct {
	Date   string
	Role   model.Role
	Holder string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("role %s for %s is already taken by %s", e.Role, e.Date, e.Holder)
}

// Request is one claim attempt.
type Request struct {
	Date         string // ISO date of the service
	DisplayLabel string
	RoleTag      string // free-text role, normalized before use
	Name         string
	Email        string
	Phone        string
	Notes        string
}

// storeTags holds the canonical spelling written back to the store per role.
// Reads stay tolerant of the historical variants (see schedule.NormalizeRole).
var storeTags = map[model.Role]string{
	model.RolePrimary:   "Liturgist",
	model.RoleSecondary: "Liturgist2",
	model.RoleBackup:    "Backup",
}

// Coordinator serializes nothing; it relies on a fresh read immediately
// before the write. The check-then-create pair is not atomic against the
// external store, so two claims racing inside one store round trip can both
// pass the check. The store offers no conditional writes, so that residual
// window is an accepted limitation rather than something to paper over with
// a process-local lock that would not survive a second instance.
type Coordinator struct {
	store store.Store
}

func NewCoordinator(s store.Store) *Coordinator {
	return &Coordinator{store: s}
}

// Claim validates the request, re-checks the slot against the live store,
// and commits. Returns the created assignment, a *ValidationError, a
// *ConflictError naming the current holder, or a store error.
func (c *Coordinator) Claim(ctx context.Context, req Request) (model.Assignment, error) {
	role, err := validate(&req)
	if err != nil {
		return model.Assignment{}, err
	}

	// Authoritative re-check: fresh read, never the cached view.
	current, err := c.store.List(ctx)
	if err != nil {
		appLog.Error("claim: pre-commit read failed", err, "date", req.Date, "role", string(role))
		return model.Assignment{}, err
	}

	if holder, taken := holderFor(current, req.Date, role); taken {
		appLog.Info("claim rejected, slot taken",
			"date", req.Date, "role", string(role), "holder", holder, "claimant", req.Name)
		return model.Assignment{}, &ConflictError{Date: req.Date, Role: role, Holder: holder}
	}

	created, err := c.store.Create(ctx, model.Assignment{
		Date:         req.Date,
		DisplayLabel: req.DisplayLabel,
		RoleTag:      storeTags[role],
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Notes:        req.Notes,
		SubmittedAt:  time.Now().UTC(),
	})
	if err != nil {
		appLog.Error("claim: create failed", err, "date", req.Date, "role", string(role), "claimant", req.Name)
		return model.Assignment{}, err
	}

	appLog.Info("claim committed",
		"record_id", created.RecordID, "date", created.Date, "role", string(role), "name", created.Name)
	return created, nil
}

// Cancel releases a claimed slot and returns the prior assignment so the
// caller can notify and propagate. A missing record surfaces as
// store.ErrNotFound.
func (c *Coordinator) Cancel(ctx context.Context, recordID string) (model.Assignment, error) {
	prior, err := c.store.Find(ctx, recordID)
	if err != nil {
		return model.Assignment{}, err
	}
	if err := c.store.Delete(ctx, recordID); err != nil {
		appLog.Error("cancel: delete failed", err, "record_id", recordID)
		return model.Assignment{}, err
	}

	appLog.Info("claim cancelled",
		"record_id", recordID, "date", prior.Date, "role", prior.RoleTag, "name", prior.Name)
	return prior, nil
}

func holderFor(assignments []model.Assignment, date string, role model.Role) (string, bool) {
	for _, a := range assignments {
		if a.Date != date {
			continue
		}
		r, ok := schedule.NormalizeRole(a.RoleTag)
		if !ok || r != role {
			continue
		}
		return a.Name, true
	}
	return "", false
}

var (
	// Strict pattern: local@domain.tld with a mandatory alphabetic TLD.
	// A trailing dot after the domain or a missing TLD does not match.
	emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9-]+(\.[A-Za-z0-9-]+)*\.[A-Za-z]{2,}$`)
	// Phone may only carry digits and common formatting characters.
	phonePattern = regexp.MustCompile(`^[0-9()+\-.\s]+$`)
	digitPattern = regexp.MustCompile(`[0-9]`)
)

// validate checks the request and returns the normalized role. It trims the
// name in place so downstream consumers see the cleaned value.
func validate(req *Request) (model.Role, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return "", &ValidationError{Reason: "name is required"}
	}

	if _, err := time.Parse(model.DateLayout, req.Date); err != nil {
		return "", &ValidationError{Reason: fmt.Sprintf("invalid service date %q", req.Date)}
	}
	if req.DisplayLabel == "" {
		return "", &ValidationError{Reason: "display label is required"}
	}

	role, ok := schedule.NormalizeRole(req.RoleTag)
	if !ok {
		return "", &ValidationError{Reason: fmt.Sprintf("unknown role %q", req.RoleTag)}
	}

	req.Email = strings.TrimSpace(req.Email)
	if !emailPattern.MatchString(req.Email) {
		return "", &ValidationError{Reason: "invalid email address"}
	}

	req.Phone = strings.TrimSpace(req.Phone)
	if req.Phone != "" {
		if !phonePattern.MatchString(req.Phone) {
			return "", &ValidationError{Reason: "phone contains invalid characters"}
		}
		if len(digitPattern.FindAllString(req.Phone, -1)) < 10 {
			return "", &ValidationError{Reason: "phone must contain at least 10 digits"}
		}
	}

	return role, nil
}
