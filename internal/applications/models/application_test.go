package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "nietos/pkg/domain"
	dErrors "nietos/pkg/domain-errors"
)

var now = time.Date(2024, time.March, 12, 9, 0, 0, 0, time.UTC)

func validDraft() Draft {
	return Draft{FirstName: "  Ana ", LastName: " García ", ProcedureDate: NewDate(2024, time.March, 10)}
}

func TestNewApplication(t *testing.T) {
	t.Run("trims names and defaults flags", func(t *testing.T) {
		a, err := NewApplication(id.NewApplicationID(), validDraft(), "hash", now)
		require.NoError(t, err)
		assert.Equal(t, "Ana", a.FirstName)
		assert.Equal(t, "García", a.LastName)
		assert.False(t, a.ConfirmationEmailReceived)
		assert.False(t, a.AdditionalDocumentationRequested)
		assert.False(t, a.ResolutionReceived)
		assert.True(t, a.IsPending())
		assert.Equal(t, now, a.CreatedAt)
		assert.Equal(t, a.CreatedAt, a.UpdatedAt)
	})

	cases := []struct {
		name   string
		mutate func(*Draft)
		appID  id.ApplicationID
		hash   string
	}{
		{name: "blank first name", mutate: func(d *Draft) { d.FirstName = "   " }, appID: id.NewApplicationID(), hash: "h"},
		{name: "missing date", mutate: func(d *Draft) { d.ProcedureDate = Date{} }, appID: id.NewApplicationID(), hash: "h"},
		{name: "overlong last name", mutate: func(d *Draft) { d.LastName = strings.Repeat("x", MaxNameLength+1) }, appID: id.NewApplicationID(), hash: "h"},
		{name: "nil id", mutate: func(*Draft) {}, hash: "h"},
		{name: "missing token hash", mutate: func(*Draft) {}, appID: id.NewApplicationID()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := validDraft()
			tc.mutate(&d)
			_, err := NewApplication(tc.appID, d, tc.hash, now)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		})
	}
}

func TestApplicationJSONHidesTokenHash(t *testing.T) {
	a, err := NewApplication(id.NewApplicationID(), validDraft(), "$2a$10$secret", now)
	require.NoError(t, err)

	out, err := json.Marshal(a)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "secret")
	assert.Contains(t, string(out), `"procedureDate":"2024-03-10"`)

	created, err := json.Marshal(Created{Application: a, EditToken: "tok"})
	require.NoError(t, err)
	assert.Contains(t, string(created), `"editToken":"tok"`)
	assert.Contains(t, string(created), `"firstName":"Ana"`)
}

func TestPatchApplyTo(t *testing.T) {
	base, err := NewApplication(id.NewApplicationID(), validDraft(), "hash", now)
	require.NoError(t, err)
	later := now.Add(time.Hour)

	t.Run("applies only touched fields", func(t *testing.T) {
		resolved := true
		name := " Ana María "
		next, err := Patch{FirstName: &name, ResolutionReceived: &resolved}.ApplyTo(base, later)
		require.NoError(t, err)
		assert.Equal(t, "Ana María", next.FirstName)
		assert.True(t, next.ResolutionReceived)
		assert.Equal(t, base.LastName, next.LastName)
		assert.Equal(t, base.EditTokenHash, next.EditTokenHash)
		assert.Equal(t, base.CreatedAt, next.CreatedAt)
		assert.Equal(t, later, next.UpdatedAt)
		assert.Equal(t, "Ana", base.FirstName, "original must not change")
	})

	t.Run("rejects blanking a required field", func(t *testing.T) {
		blank := " "
		_, err := Patch{FirstName: &blank}.ApplyTo(base, later)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Equal(t, "Ana", base.FirstName)
	})

	t.Run("parses procedure date", func(t *testing.T) {
		d := "2024-05-01"
		next, err := Patch{ProcedureDate: &d}.ApplyTo(base, later)
		require.NoError(t, err)
		assert.Equal(t, "2024-05-01", next.ProcedureDate.String())

		bad := "May first"
		_, err = Patch{ProcedureDate: &bad}.ApplyTo(base, later)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Contains(t, err.Error(), "procedureDate")
	})

	t.Run("lists touched fields", func(t *testing.T) {
		flag := true
		d := "2024-05-01"
		p := Patch{ProcedureDate: &d, ConfirmationEmailReceived: &flag}
		assert.Equal(t, []string{"procedureDate", "confirmationEmailReceived"}, p.Fields())
		assert.False(t, p.IsEmpty())
		assert.True(t, Patch{}.IsEmpty())
	})
}

func TestSummarize(t *testing.T) {
	mk := func(resolved, confirmed, docs bool) *Application {
		return &Application{ResolutionReceived: resolved, ConfirmationEmailReceived: confirmed, AdditionalDocumentationRequested: docs}
	}
	apps := []*Application{
		mk(false, false, false),
		mk(true, true, false),
		mk(false, true, true),
		mk(true, false, true),
		mk(false, false, false),
	}

	s := Summarize(apps)
	assert.Equal(t, Stats{Total: 5, Pending: 3, Resolved: 2, WithConfirmation: 2, WithExtraDocs: 2}, s)
	assert.Equal(t, s.Total, s.Pending+s.Resolved)

	assert.Equal(t, Stats{}, Summarize(nil))
}
