package feed

import (
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liturgyd/internal/model"
	"liturgyd/internal/schedule"
)

func TestBuild(t *testing.T) {
	instances, err := schedule.Generate(schedule.Window{Quarter: 4, Year: 2025}, time.UTC)
	require.NoError(t, err)

	view := schedule.Reconcile(instances, []model.Assignment{
		{RecordID: "rec1", Date: "2025-11-30", RoleTag: "Liturgist", Name: "Sarah Johnson", Email: "sarah@example.com"},
		{RecordID: "rec2", Date: "2025-12-24", RoleTag: "Backup", Name: "John Smith", Email: "john@example.com"},
	})

	doc := Build(view)

	// One VEVENT per instance, parseable by the same library.
	parsed, err := ics.ParseCalendar(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Len(t, parsed.Events(), len(view.Instances))

	assert.Contains(t, doc, "Liturgist: Sarah Johnson")
	assert.Contains(t, doc, "Liturgist needed")
	assert.Contains(t, doc, "Christmas Eve Service")
	assert.Contains(t, doc, "Backup: John Smith")
}
