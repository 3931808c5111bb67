package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"nietos/internal/applications/models"
	"nietos/internal/applications/secrets"
	"nietos/internal/applications/service"
	"nietos/internal/applications/store"
	dErrors "nietos/pkg/domain-errors"
	"nietos/pkg/testutil"
)

func newService() *service.Service {
	return service.New(store.NewInMemory(), service.WithHasher(secrets.NewHasher(bcrypt.MinCost)))
}

func TestScenarioSubmittingARecord(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	testutil.Given(t, "an existing dashboard", func(t *testing.T) {
		before, err := svc.List(ctx, models.ListQuery{})
		require.NoError(t, err)

		testutil.When(t, "Ana submits her procedure date", func(t *testing.T) {
			_, err := svc.Create(ctx, models.CreateInput{FirstName: "Ana", ProcedureDate: "2024-03-10"})
			require.NoError(t, err)

			testutil.Then(t, "total and pending each grow by one", func(t *testing.T) {
				after, err := svc.List(ctx, models.ListQuery{})
				require.NoError(t, err)
				assert.Equal(t, before.Stats.Total+1, after.Stats.Total)
				assert.Equal(t, before.Stats.Pending+1, after.Stats.Pending)
			})
		})
	})
}

func TestScenarioEditingWithSomeoneElsesToken(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	testutil.Given(t, "a record owned by Ana", func(t *testing.T) {
		created, err := svc.Create(ctx, models.CreateInput{FirstName: "Ana", ProcedureDate: "2024-03-10"})
		require.NoError(t, err)

		testutil.When(t, "someone updates it with a wrong token", func(t *testing.T) {
			x := "X"
			_, err := svc.Update(ctx, created.ID.String(), "not-the-token", models.Patch{FirstName: &x})

			testutil.Then(t, "the update is forbidden and the name is unchanged", func(t *testing.T) {
				assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
				got, err := svc.Get(ctx, created.ID.String())
				require.NoError(t, err)
				assert.Equal(t, "Ana", got.FirstName)
			})
		})
	})
}
