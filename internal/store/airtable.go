package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"liturgyd/internal/config"
	appLog "liturgyd/internal/log"
	"liturgyd/internal/model"
)

// Airtable is a Store backed by the Airtable REST API. Records live in a
// single table whose columns match the sign-up sheet the congregation has
// used all along: "Service Date", "Display Date", "Name", "Email", "Phone",
// "Role", "Notes", "Submitted At".
type Airtable struct {
	client  *http.Client
	baseURL string
	token   string
	baseID  string
	table   string
}

// NewAirtable creates an Airtable-backed store from config.
func NewAirtable(cfg config.StoreConfig) *Airtable {
	return &Airtable{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		baseID:  cfg.BaseID,
		table:   cfg.Table,
	}
}

// airtableRecord is the wire shape of one record.
type airtableRecord struct {
	ID          string         `json:"id,omitempty"`
	CreatedTime time.Time      `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

type airtableList struct {
	Records []airtableRecord `json:"records"`
	Offset  string           `json:"offset,omitempty"`
}

func (s *Airtable) tableURL() string {
	return s.baseURL + "/" + url.PathEscape(s.baseID) + "/" + url.PathEscape(s.table)
}

// List fetches every record, following pagination offsets until exhausted.
func (s *Airtable) List(ctx context.Context) ([]model.Assignment, error) {
	var out []model.Assignment
	offset := ""

	for {
		u := s.tableURL()
		if offset != "" {
			u += "?offset=" + url.QueryEscape(offset)
		}

		var page airtableList
		if err := s.do(ctx, http.MethodGet, u, nil, &page); err != nil {
			return nil, err
		}

		for _, rec := range page.Records {
			out = append(out, fromFields(rec))
		}

		if page.Offset == "" {
			return out, nil
		}
		offset = page.Offset
	}
}

// Create persists one record and returns it with the assigned id.
func (s *Airtable) Create(ctx context.Context, a model.Assignment) (model.Assignment, error) {
	payload := struct {
		Records []airtableRecord `json:"records"`
	}{
		Records: []airtableRecord{{Fields: toFields(a)}},
	}

	var resp airtableList
	if err := s.do(ctx, http.MethodPost, s.tableURL(), payload, &resp); err != nil {
		return model.Assignment{}, err
	}
	if len(resp.Records) == 0 {
		return model.Assignment{}, fmt.Errorf("%w: create returned no records", ErrUnavailable)
	}
	return fromFields(resp.Records[0]), nil
}

// Find fetches a single record by id.
func (s *Airtable) Find(ctx context.Context, recordID string) (model.Assignment, error) {
	var rec airtableRecord
	if err := s.do(ctx, http.MethodGet, s.tableURL()+"/"+url.PathEscape(recordID), nil, &rec); err != nil {
		return model.Assignment{}, err
	}
	return fromFields(rec), nil
}

// Delete removes a single record by id.
func (s *Airtable) Delete(ctx context.Context, recordID string) error {
	return s.do(ctx, http.MethodDelete, s.tableURL()+"/"+url.PathEscape(recordID), nil, nil)
}

// do performs one API round trip. Network errors and server-side statuses
// map onto ErrUnavailable; a 404 maps onto ErrNotFound. The bearer token is
// never logged.
func (s *Airtable) do(ctx context.Context, method, u string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		appLog.Error("store request failed", err, "method", method, "table", s.table)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		appLog.Error("store answered with failure status", fmt.Errorf("status %s", resp.Status),
			"method", method, "table", s.table, "status", resp.StatusCode)
		return fmt.Errorf("%w: status %s", ErrUnavailable, resp.Status)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("store: unexpected status %s: %s", resp.Status, bytes.TrimSpace(data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("store: decoding response: %w", err)
	}
	return nil
}

func toFields(a model.Assignment) map[string]any {
	submitted := a.SubmittedAt
	if submitted.IsZero() {
		submitted = time.Now().UTC()
	}
	return map[string]any{
		"Service Date": a.Date,
		"Display Date": a.DisplayLabel,
		"Name":         a.Name,
		"Email":        a.Email,
		"Phone":        a.Phone,
		"Role":         a.RoleTag,
		"Notes":        a.Notes,
		"Submitted At": submitted.Format(time.RFC3339),
	}
}

func fromFields(rec airtableRecord) model.Assignment {
	a := model.Assignment{
		RecordID:     rec.ID,
		Date:         stringField(rec.Fields, "Service Date"),
		DisplayLabel: stringField(rec.Fields, "Display Date"),
		Name:         stringField(rec.Fields, "Name"),
		Email:        stringField(rec.Fields, "Email"),
		Phone:        stringField(rec.Fields, "Phone"),
		RoleTag:      stringField(rec.Fields, "Role"),
		Notes:        stringField(rec.Fields, "Notes"),
	}
	if ts := stringField(rec.Fields, "Submitted At"); ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			a.SubmittedAt = parsed
		}
	}
	if a.SubmittedAt.IsZero() {
		a.SubmittedAt = rec.CreatedTime
	}
	return a
}

func stringField(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	str, ok := v.(string)
	if !ok {
		return ""
	}
	return str
}
