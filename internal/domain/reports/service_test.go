package reports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stradapos/internal/core/id"
)

type fakeRepo struct {
	salesCalls    int
	conflictCalls int
}

func (r *fakeRepo) SalesSummary(_ context.Context, period Period, _ *id.ID) (*SalesSummary, error) {
	r.salesCalls++
	return &SalesSummary{Period: period}, nil
}

func (r *fakeRepo) ConflictSummary(_ context.Context, period Period) (*ConflictSummary, error) {
	r.conflictCalls++
	return &ConflictSummary{Period: period}, nil
}

func TestSalesSummary_ValidatesPeriod(t *testing.T) {
	repo := &fakeRepo{}
	service := NewService(repo, nil)
	ctx := context.Background()

	from := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	_, err := service.SalesSummary(ctx, Period{From: from, To: to}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.salesCalls)

	// Inverted period never reaches the repository.
	_, err = service.SalesSummary(ctx, Period{From: to, To: from}, nil)
	require.Error(t, err)
	assert.Equal(t, 1, repo.salesCalls)

	// Open-ended periods are allowed.
	_, err = service.SalesSummary(ctx, Period{From: from}, nil)
	require.NoError(t, err)
	_, err = service.SalesSummary(ctx, Period{}, nil)
	require.NoError(t, err)
}

func TestConflictSummary_ValidatesPeriod(t *testing.T) {
	repo := &fakeRepo{}
	service := NewService(repo, nil)
	ctx := context.Background()

	from := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)

	_, err := service.ConflictSummary(ctx, Period{From: from, To: from.AddDate(0, 0, 7)})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.conflictCalls)

	_, err = service.ConflictSummary(ctx, Period{From: from, To: from.AddDate(0, 0, -1)})
	require.Error(t, err)
	assert.Equal(t, 1, repo.conflictCalls)
}
