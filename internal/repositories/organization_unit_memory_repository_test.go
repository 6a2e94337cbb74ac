package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"region-system/internal/entities"
	apperrors "region-system/pkg/errors"
	"region-system/pkg/types"
)

func createMemUnit(t *testing.T, repo *OrganizationUnitMemoryRepository, unit entities.OrganizationUnit) entities.OrganizationUnit {
	t.Helper()
	_, err := repo.Create(context.Background(), &unit)
	require.NoError(t, err)
	return unit
}

func TestMemoryRepository_EnforcesStorageConstraints(t *testing.T) {
	repo := NewOrganizationUnitMemoryRepository()
	ctx := context.Background()
	province := createMemUnit(t, repo, entities.OrganizationUnit{Name: "北京市", Code: "110000", Level: entities.LevelProvince})

	_, err := repo.Create(ctx, &entities.OrganizationUnit{Name: "北京", Code: "110000", Level: entities.LevelProvince})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateCode)

	createMemUnit(t, repo, entities.OrganizationUnit{Name: "东城区", Code: "110000", Level: entities.LevelDistrict, ParentID: &province.ID})
	_, err = repo.Create(ctx, &entities.OrganizationUnit{Name: "东城区", Code: "110000", Level: entities.LevelDistrict, ParentID: &province.ID})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateSiblingName)

	missing := uint64(77)
	_, err = repo.Create(ctx, &entities.OrganizationUnit{Name: "西城区", Code: "110000", Level: entities.LevelDistrict, ParentID: &missing})
	assert.ErrorIs(t, err, apperrors.ErrParentNotFound)
}

func TestMemoryRepository_ChildrenOrderAndDescendants(t *testing.T) {
	repo := NewOrganizationUnitMemoryRepository()
	ctx := context.Background()
	province := createMemUnit(t, repo, entities.OrganizationUnit{Name: "北京市", Code: "110000", Level: entities.LevelProvince, SortOrder: 1})
	county := createMemUnit(t, repo, entities.OrganizationUnit{Name: "密云县", Code: "110000", Level: entities.LevelCounty, ParentID: &province.ID, SortOrder: 4})
	city := createMemUnit(t, repo, entities.OrganizationUnit{Name: "北京市辖区", Code: "110000", Level: entities.LevelCity, ParentID: &province.ID, SortOrder: 2})
	district := createMemUnit(t, repo, entities.OrganizationUnit{Name: "东城区", Code: "110000", Level: entities.LevelDistrict, ParentID: &city.ID, SortOrder: 3})

	children, err := repo.FindChildren(ctx, &province.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, city.ID, children[0].ID)
	assert.Equal(t, county.ID, children[1].ID)

	siblings, err := repo.FindSiblings(ctx, &province.ID, city.ID)
	require.NoError(t, err)
	require.Len(t, siblings, 1)
	assert.Equal(t, county.ID, siblings[0].ID)

	roots, err := repo.FindChildren(ctx, nil)
	require.NoError(t, err)
	require.Len(t, roots, 1)

	has, err := repo.HasChildren(ctx, city.ID)
	require.NoError(t, err)
	assert.True(t, has)
	has, err = repo.HasChildren(ctx, district.ID)
	require.NoError(t, err)
	assert.False(t, has)

	descendants, err := repo.FindDescendants(ctx, province.ID)
	require.NoError(t, err)
	assert.Len(t, descendants, 3)
}

func TestMemoryRepository_UpdateSubtreeCodeAndDelete(t *testing.T) {
	repo := NewOrganizationUnitMemoryRepository()
	ctx := context.Background()
	province := createMemUnit(t, repo, entities.OrganizationUnit{Name: "北京市", Code: "110000", Level: entities.LevelProvince})
	city := createMemUnit(t, repo, entities.OrganizationUnit{Name: "北京市辖区", Code: "110000", Level: entities.LevelCity, ParentID: &province.ID})
	district := createMemUnit(t, repo, entities.OrganizationUnit{Name: "东城区", Code: "110000", Level: entities.LevelDistrict, ParentID: &city.ID})

	affected, err := repo.UpdateSubtreeCode(ctx, province.ID, "110100")
	require.NoError(t, err)
	assert.EqualValues(t, 2, affected)

	got, err := repo.FindByID(ctx, district.ID)
	require.NoError(t, err)
	assert.Equal(t, "110100", got.Code)

	removed, err := repo.Delete(ctx, city.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{city.ID, district.ID}, removed)

	_, err = repo.FindByID(ctx, district.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = repo.Delete(ctx, city.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMemoryRepository_GetAllFilters(t *testing.T) {
	repo := NewOrganizationUnitMemoryRepository()
	ctx := context.Background()
	beijing := createMemUnit(t, repo, entities.OrganizationUnit{Name: "北京市", Code: "110000", Level: entities.LevelProvince, Active: true})
	createMemUnit(t, repo, entities.OrganizationUnit{Name: "北京市辖区", Code: "110000", Level: entities.LevelCity, ParentID: &beijing.ID, Active: true})
	createMemUnit(t, repo, entities.OrganizationUnit{Name: "密云县", Code: "110000", Level: entities.LevelCounty, ParentID: &beijing.ID, Active: false})
	createMemUnit(t, repo, entities.OrganizationUnit{Name: "河北省", Code: "130000", Level: entities.LevelProvince, Active: true})

	units, total, err := repo.GetAll(ctx, types.Filter{Filter: map[string]interface{}{"active": "false"}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "密云县", units[0].Name)

	units, _, err = repo.GetAll(ctx, types.Filter{Filter: map[string]interface{}{"level": "province,county"}})
	require.NoError(t, err)
	assert.Len(t, units, 3)

	units, _, err = repo.GetAll(ctx, types.Filter{Filter: map[string]interface{}{"name": "北京"}})
	require.NoError(t, err)
	assert.Len(t, units, 2)

	units, _, err = repo.GetAll(ctx, types.Filter{Search: "1300"})
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "河北省", units[0].Name)

	units, total, err = repo.GetAll(ctx, types.Filter{Filter: map[string]interface{}{"parent_id": uintString(beijing.ID)}, Limit: 1, Offset: 1, WithPagination: true})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, units, 1)

	_, _, err = repo.GetAll(ctx, types.Filter{Filter: map[string]interface{}{"active": "maybe"}})
	var inputErr *apperrors.InvalidInputError
	assert.ErrorAs(t, err, &inputErr)
}

func TestMemoryTxManager_RollsBackOnError(t *testing.T) {
	repo := NewOrganizationUnitMemoryRepository()
	tx := NewMemoryTxManager(repo)
	ctx := context.Background()

	err := tx.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := repo.Create(ctx, &entities.OrganizationUnit{Name: "北京市", Code: "110000", Level: entities.LevelProvince})
		require.NoError(t, err)
		return apperrors.ErrDuplicateSiblingName
	})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateSiblingName)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	// идентификатор тоже откатывается
	unit := createMemUnit(t, repo, entities.OrganizationUnit{Name: "北京市", Code: "110000", Level: entities.LevelProvince})
	assert.EqualValues(t, 1, unit.ID)
}

func TestMemoryTxManager_SerializesWriters(t *testing.T) {
	repo := NewOrganizationUnitMemoryRepository()
	tx := NewMemoryTxManager(repo)
	ctx := context.Background()

	// ровно один писатель успевает занять код
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = tx.RunInTransaction(ctx, func(ctx context.Context) error {
				if _, err := repo.FindRootByCode(ctx, "110000"); err == nil {
					return apperrors.ErrDuplicateCode
				}
				time.Sleep(time.Millisecond)
				_, err := repo.Create(ctx, &entities.OrganizationUnit{Name: "北京市", Code: "110000", Level: entities.LevelProvince})
				return err
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, apperrors.ErrDuplicateCode)
		}
	}
	assert.Equal(t, 1, ok)
}
