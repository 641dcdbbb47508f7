package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edt-api/internal/models"
	appErrors "github.com/noah-isme/edt-api/pkg/errors"
)

func TestRegistryResolveCaller(t *testing.T) {
	w := newSchedulingWorld()

	_, err := w.registry.ResolveCaller(context.Background(), models.Caller{})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = w.registry.ResolveCaller(context.Background(), models.Caller{UserID: 999, Role: models.RoleDepartmentHead})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	trainer, err := w.registry.ResolveCaller(context.Background(), chiefInfo)
	require.NoError(t, err)
	assert.Equal(t, int64(10), trainer.ID)
}

func TestRegistryAuthorizeSchedulingChecksEveryDepartment(t *testing.T) {
	w := newSchedulingWorld()
	ctx := context.Background()
	year := w.years.items[1]

	trainer, err := w.registry.AuthorizeScheduling(ctx, chiefInfo, &year, []models.CompetencyDetail{w.competencies.items[101], w.competencies.items[102]})
	require.NoError(t, err)
	assert.Equal(t, int64(10), trainer.ID)

	_, err = w.registry.AuthorizeScheduling(ctx, chiefInfo, &year, []models.CompetencyDetail{w.competencies.items[101], w.competencies.items[201]})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	assert.Contains(t, err.Error(), "department 2")

	gestion := w.years.items[2]
	_, err = w.registry.AuthorizeScheduling(ctx, chiefInfo, &gestion, nil)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestRegistryAuthorizeSchedulingWithoutDerivedDepartment(t *testing.T) {
	w := newSchedulingWorld()
	ctx := context.Background()

	_, err := w.registry.AuthorizeScheduling(ctx, chiefInfo, nil, nil)
	assert.NoError(t, err)

	_, err = w.registry.AuthorizeScheduling(ctx, plainTrainer, nil, nil)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestRegistryLoadCompetenciesRejectsUnknownIDs(t *testing.T) {
	w := newSchedulingWorld()

	_, err := w.registry.LoadCompetencies(context.Background(), []int64{101, 999})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Contains(t, err.Error(), "unknown competencies: 999")

	comps, err := w.registry.LoadCompetencies(context.Background(), []int64{101, 101, 102})
	require.NoError(t, err)
	assert.Len(t, comps, 2)
}

func TestRegistryVisibleDepartments(t *testing.T) {
	w := newSchedulingWorld()
	ctx := context.Background()

	_, all, err := w.registry.VisibleDepartments(ctx, adminCaller)
	require.NoError(t, err)
	assert.True(t, all)

	ids, all, err := w.registry.VisibleDepartments(ctx, chiefInfo)
	require.NoError(t, err)
	assert.False(t, all)
	assert.Equal(t, []int64{1}, ids)

	_, _, err = w.registry.VisibleDepartments(ctx, plainTrainer)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestRegistryLookupsReturnNotFound(t *testing.T) {
	w := newSchedulingWorld()
	ctx := context.Background()

	_, err := w.registry.Year(ctx, 42)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = w.registry.Trade(ctx, 42)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = w.registry.Department(ctx, 42)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
