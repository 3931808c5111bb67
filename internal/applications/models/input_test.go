package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "nietos/pkg/domain-errors"
)

func TestCreateInputDraft(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		d, err := CreateInput{FirstName: " Ana ", ProcedureDate: "2024-03-10", ConfirmationEmailReceived: true}.Draft()
		require.NoError(t, err)
		assert.Equal(t, "Ana", d.FirstName)
		assert.Equal(t, "2024-03-10", d.ProcedureDate.String())
		assert.True(t, d.ConfirmationEmailReceived)
	})

	cases := map[string]struct {
		in   CreateInput
		frag string
	}{
		"missing first name": {CreateInput{ProcedureDate: "2024-03-10"}, "firstName"},
		"blank first name":   {CreateInput{FirstName: "\t ", ProcedureDate: "2024-03-10"}, "firstName"},
		"missing date":       {CreateInput{FirstName: "Ana"}, "procedureDate is required"},
		"bad date":           {CreateInput{FirstName: "Ana", ProcedureDate: "10/03/2024"}, "invalid procedureDate"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tc.in.Draft()
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Contains(t, err.Error(), tc.frag)
		})
	}
}
