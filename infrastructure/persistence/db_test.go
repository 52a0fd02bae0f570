package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/helixml/damkit/domain/repository"
	"github.com/helixml/damkit/domain/tenant"
	"github.com/helixml/damkit/domain/verification"
	"github.com/helixml/damkit/infrastructure/persistence"
	"github.com/helixml/damkit/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSchema(t *testing.T) {
	db := testdb.New(t)
	require.NoError(t, persistence.ValidateSchema(db))
}

func TestAutoMigrate_Idempotent(t *testing.T) {
	db, _ := testdb.NewFile(t)
	require.NoError(t, persistence.AutoMigrate(db))
}

func TestProfileStore(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewProfileStore(testdb.New(t))

	_, err := store.Save(ctx, tenant.NewProfile("u1", "t1", "a@example.com", "Ada"))
	require.NoError(t, err)

	got, err := store.FindOne(ctx, repository.WithID("u1"))
	require.NoError(t, err)
	assert.Equal(t, "t1", got.TenantID())
}

func TestVerificationStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewVerificationStore(testdb.New(t))

	in := verification.Result{
		ID:          "v1",
		UserID:      "u1",
		TenantID:    "t1",
		ContentType: verification.ContentText,
		ContentText: "The moon is made of cheese",
		Verdict: verification.Verdict{
			IsFake:          true,
			ConfidenceScore: 92,
			DetectedIssues:  []string{"Misinformation"},
			AnalysisSummary: "Implausible claim",
			Recommendations: "Do not share",
		},
		CreatedAt: time.Now().UTC(),
	}
	_, err := store.Save(ctx, in)
	require.NoError(t, err)

	found, err := store.Find(ctx, repository.WithTenantID("t1"))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, in.Verdict, found[0].Verdict)
	assert.Equal(t, verification.ContentText, found[0].ContentType)
}
