package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"region-system/internal/dto"
	"region-system/internal/entities"
	"region-system/internal/events"
	"region-system/internal/listeners"
	"region-system/internal/repositories"
	"region-system/pkg/eventbus"
	apperrors "region-system/pkg/errors"
	"region-system/pkg/types"
	"region-system/pkg/utils"
)

type testEnv struct {
	service *OrganizationUnitService
	repo    *repositories.OrganizationUnitMemoryRepository
	cache   *repositories.MemoryCacheRepository
	bus     *eventbus.Bus
	audit   *listeners.AuditListener
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithCache(t, repositories.NewMemoryCacheRepository())
}

func newTestEnvWithCache(t *testing.T, cache repositories.CacheRepositoryInterface) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	repo := repositories.NewOrganizationUnitMemoryRepository()
	bus := eventbus.New(logger)
	audit := listeners.NewAuditListener(logger)
	audit.Register(bus)

	checker := NewAncestryChecker(repo, logger)
	service := NewOrganizationUnitService(
		repositories.NewMemoryTxManager(repo),
		repo,
		NewUnitValidator(repo, checker),
		NewHierarchicalIndexService(repo, cache, logger, time.Hour),
		NewTreeCache(repo, cache, logger, time.Hour),
		bus,
		logger,
	)

	env := &testEnv{service: service, repo: repo, bus: bus, audit: audit}
	if memCache, ok := cache.(*repositories.MemoryCacheRepository); ok {
		env.cache = memCache
	}
	return env
}

func (e *testEnv) createRoot(t *testing.T, name, code, level string) *dto.OrganizationUnitDTO {
	t.Helper()
	unit, err := e.service.CreateUnit(context.Background(), dto.CreateOrganizationUnitDTO{Name: name, Code: code, Level: level})
	require.NoError(t, err)
	return unit
}

func (e *testEnv) createChild(t *testing.T, parentID uint64, name, level string) *dto.OrganizationUnitDTO {
	t.Helper()
	unit, err := e.service.CreateUnit(context.Background(), dto.CreateOrganizationUnitDTO{
		Name:     name,
		Level:    level,
		ParentID: null.Uint64From(parentID),
	})
	require.NoError(t, err)
	return unit
}

func assertKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperrors.KindOf(err), "unexpected error: %v", err)
}

func TestCreateUnit_DerivesCodeAndDefaults(t *testing.T) {
	env := newTestEnv(t)

	province := env.createRoot(t, "北京市", "110000", "province")
	city, err := env.service.CreateUnit(context.Background(), dto.CreateOrganizationUnitDTO{
		Name:     "北京市辖区",
		Code:     "999999",
		Level:    "市级",
		ParentID: null.Uint64From(province.ID),
	})
	require.NoError(t, err)

	assert.Equal(t, "110000", city.Code, "код наследуется от корня, а не берётся из запроса")
	assert.Equal(t, "city", city.Level)
	assert.Equal(t, "市级", city.LevelLabel)
	assert.Equal(t, entities.LevelCity.Order(), city.SortOrder)
	assert.True(t, city.Active)
	assert.Equal(t, "1.1", city.HierarchicalIndex)
	require.NotNil(t, city.ParentID)
	assert.Equal(t, province.ID, *city.ParentID)
	assert.NotEmpty(t, city.CreatedAt)
}

func TestCreateUnit_ExplicitSortOrderAndActive(t *testing.T) {
	env := newTestEnv(t)
	unit, err := env.service.CreateUnit(context.Background(), dto.CreateOrganizationUnitDTO{
		Name:      "河北省",
		Code:      "130000",
		Level:     "1",
		Active:    null.BoolFrom(false),
		SortOrder: null.IntFrom(10),
	})
	require.NoError(t, err)
	assert.False(t, unit.Active)
	assert.Equal(t, 10, unit.SortOrder)
	assert.Equal(t, "province", unit.Level)
}

func TestHierarchicalIndex_RankChain(t *testing.T) {
	env := newTestEnv(t)

	env.createRoot(t, "北京市", "110000", "province")
	a := env.createRoot(t, "天津市", "120000", "province")
	b := env.createChild(t, a.ID, "天津市辖区", "city")
	env.createChild(t, b.ID, "和平区", "district")
	env.createChild(t, b.ID, "河东区", "district")
	u := env.createChild(t, b.ID, "河西区", "district")

	assert.Equal(t, "2.1.3", u.HierarchicalIndex)

	got, err := env.service.GetUnit(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "2.1.3", got.HierarchicalIndex)
}

func TestHierarchicalIndex_SortOrderWinsOverCode(t *testing.T) {
	env := newTestEnv(t)

	first := env.createRoot(t, "北京市", "110000", "province")
	second, err := env.service.CreateUnit(context.Background(), dto.CreateOrganizationUnitDTO{
		Name: "天津市", Code: "120000", Level: "province", SortOrder: null.IntFrom(0),
	})
	require.NoError(t, err)
	assert.Equal(t, "1", second.HierarchicalIndex)

	got, err := env.service.GetUnit(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, "2", got.HierarchicalIndex, "индекс пересчитан после записи соседа")
}

func TestCreateUnit_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.CreateUnit(context.Background(), dto.CreateOrganizationUnitDTO{Code: "110000", Level: "province"})
	assertKind(t, err, apperrors.KindMissingField)
	assert.True(t, errors.Is(err, apperrors.ErrMissingField))

	_, err = env.service.CreateUnit(context.Background(), dto.CreateOrganizationUnitDTO{Name: "北京市", Code: "110000"})
	assertKind(t, err, apperrors.KindMissingField)

	_, err = env.service.CreateUnit(context.Background(), dto.CreateOrganizationUnitDTO{Name: "   ", Code: "110000", Level: "province"})
	assertKind(t, err, apperrors.KindMissingField)
}

func TestCreateUnit_ParentNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.service.CreateUnit(context.Background(), dto.CreateOrganizationUnitDTO{
		Name: "朝阳区", Level: "district", ParentID: null.Uint64From(404),
	})
	assertKind(t, err, apperrors.KindParentNotFound)
}

func TestCreateUnit_InvalidLevelTransition(t *testing.T) {
	env := newTestEnv(t)
	province := env.createRoot(t, "北京市", "110000", "province")
	city := env.createChild(t, province.ID, "北京市辖区", "city")
	district := env.createChild(t, city.ID, "东城区", "district")

	_, err := env.service.CreateUnit(context.Background(), dto.CreateOrganizationUnitDTO{
		Name: "错误省", Level: "province", ParentID: null.Uint64From(district.ID),
	})
	assertKind(t, err, apperrors.KindInvalidLevelTransition)

	_, err = env.service.CreateUnit(context.Background(), dto.CreateOrganizationUnitDTO{
		Name: "密云县", Level: "county", ParentID: null.Uint64From(district.ID),
	})
	assertKind(t, err, apperrors.KindInvalidLevelTransition)

	_, err = env.service.CreateUnit(context.Background(), dto.CreateOrganizationUnitDTO{
		Name: "另一个市", Level: "city", ParentID: null.Uint64From(city.ID),
	})
	assertKind(t, err, apperrors.KindInvalidLevelTransition)

	_, err = env.service.CreateUnit(context.Background(), dto.CreateOrganizationUnitDTO{
		Name: "未知", Level: "village", Code: "120000",
	})
	assertKind(t, err, apperrors.KindInvalidLevelTransition)
}

func TestCreateUnit_RootCodeRules(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.CreateUnit(context.Background(), dto.CreateOrganizationUnitDTO{Name: "北京市", Code: "12345", Level: "province"})
	assertKind(t, err, apperrors.KindInvalidCodeFormat)

	_, err = env.service.CreateUnit(context.Background(), dto.CreateOrganizationUnitDTO{Name: "北京市", Code: "11000a", Level: "province"})
	assertKind(t, err, apperrors.KindInvalidCodeFormat)

	_, err = env.service.CreateUnit(context.Background(), dto.CreateOrganizationUnitDTO{Name: "北京市", Code: "１１００００", Level: "province"})
	assertKind(t, err, apperrors.KindInvalidCodeFormat)

	_, err = env.service.CreateUnit(context.Background(), dto.CreateOrganizationUnitDTO{Name: "北京市", Level: "province"})
	assertKind(t, err, apperrors.KindInvalidCodeFormat)

	env.createRoot(t, "北京市", "110000", "province")
	_, err = env.service.CreateUnit(context.Background(), dto.CreateOrganizationUnitDTO{Name: "北京", Code: "110000", Level: "province"})
	assertKind(t, err, apperrors.KindDuplicateCode)
}

func TestCreateUnit_DuplicateSiblingName(t *testing.T) {
	env := newTestEnv(t)
	beijing := env.createRoot(t, "北京市", "110000", "province")
	hebei := env.createRoot(t, "河北省", "130000", "province")

	env.createChild(t, beijing.ID, "市辖区", "city")
	_, err := env.service.CreateUnit(context.Background(), dto.CreateOrganizationUnitDTO{
		Name: "市辖区", Level: "city", ParentID: null.Uint64From(beijing.ID),
	})
	assertKind(t, err, apperrors.KindDuplicateSiblingName)

	// у другого родителя то же название допустимо
	env.createChild(t, hebei.ID, "市辖区", "city")

	_, err = env.service.CreateUnit(context.Background(), dto.CreateOrganizationUnitDTO{Name: "北京市", Code: "120000", Level: "province"})
	assertKind(t, err, apperrors.KindDuplicateSiblingName)
}

func TestUpdateUnit_CycleDetected(t *testing.T) {
	env := newTestEnv(t)
	province := env.createRoot(t, "北京市", "110000", "province")
	city := env.createChild(t, province.ID, "北京市辖区", "city")

	_, err := env.service.UpdateUnit(context.Background(), province.ID, dto.UpdateOrganizationUnitDTO{ParentID: utils.ToPtr(city.ID)})
	assertKind(t, err, apperrors.KindCycleDetected)

	_, err = env.service.UpdateUnit(context.Background(), city.ID, dto.UpdateOrganizationUnitDTO{ParentID: utils.ToPtr(city.ID)})
	assertKind(t, err, apperrors.KindCycleDetected)

	// ничего не записано
	stored, err := env.repo.FindByID(context.Background(), province.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ParentID)
}

func TestUpdateUnit_LevelPolicyAppliesToUpdates(t *testing.T) {
	env := newTestEnv(t)
	province := env.createRoot(t, "北京市", "110000", "province")
	city := env.createChild(t, province.ID, "北京市辖区", "city")
	district := env.createChild(t, province.ID, "东城区", "district")
	other := env.createChild(t, province.ID, "西城区", "district")

	_, err := env.service.UpdateUnit(context.Background(), city.ID, dto.UpdateOrganizationUnitDTO{Level: utils.ToPtr("province")})
	assertKind(t, err, apperrors.KindInvalidLevelTransition)

	// перенос под уровень, который не допускает детей
	_, err = env.service.UpdateUnit(context.Background(), district.ID, dto.UpdateOrganizationUnitDTO{ParentID: utils.ToPtr(other.ID)})
	assertKind(t, err, apperrors.KindInvalidLevelTransition)

	stored, err := env.repo.FindByID(context.Background(), city.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.LevelCity, stored.Level)

	// лист может сменить уровень на допустимый под тем же родителем
	updated, err := env.service.UpdateUnit(context.Background(), city.ID, dto.UpdateOrganizationUnitDTO{Level: utils.ToPtr("county")})
	require.NoError(t, err)
	assert.Equal(t, "county", updated.Level)
}

func TestUpdateUnit_LevelChangeBlockedUntilChildrenRemoved(t *testing.T) {
	env := newTestEnv(t)
	province := env.createRoot(t, "北京市", "110000", "province")
	city := env.createChild(t, province.ID, "北京市辖区", "city")
	district := env.createChild(t, city.ID, "东城区", "district")

	_, err := env.service.UpdateUnit(context.Background(), city.ID, dto.UpdateOrganizationUnitDTO{Level: utils.ToPtr("county")})
	assertKind(t, err, apperrors.KindLevelChangeBlocked)

	require.NoError(t, env.service.DeleteUnit(context.Background(), district.ID))

	updated, err := env.service.UpdateUnit(context.Background(), city.ID, dto.UpdateOrganizationUnitDTO{Level: utils.ToPtr("county")})
	require.NoError(t, err)
	assert.Equal(t, "county", updated.Level)
}

func TestUpdateUnit_MoveRewritesSubtreeCode(t *testing.T) {
	env := newTestEnv(t)
	beijing := env.createRoot(t, "北京市", "110000", "province")
	hebei := env.createRoot(t, "河北省", "130000", "province")
	city := env.createChild(t, beijing.ID, "石家庄市", "city")
	district := env.createChild(t, city.ID, "长安区", "district")

	moved, err := env.service.UpdateUnit(context.Background(), city.ID, dto.UpdateOrganizationUnitDTO{ParentID: utils.ToPtr(hebei.ID)})
	require.NoError(t, err)
	assert.Equal(t, "130000", moved.Code)
	assert.Equal(t, "2.1", moved.HierarchicalIndex)

	child, err := env.service.GetUnit(context.Background(), district.ID)
	require.NoError(t, err)
	assert.Equal(t, "130000", child.Code)
	assert.Equal(t, "2.1.1", child.HierarchicalIndex)
}

func TestUpdateUnit_RootCodeChangePropagates(t *testing.T) {
	env := newTestEnv(t)
	province := env.createRoot(t, "北京市", "110000", "province")
	city := env.createChild(t, province.ID, "北京市辖区", "city")
	env.createRoot(t, "天津市", "120000", "province")

	_, err := env.service.UpdateUnit(context.Background(), province.ID, dto.UpdateOrganizationUnitDTO{Code: utils.ToPtr("120000")})
	assertKind(t, err, apperrors.KindDuplicateCode)

	_, err = env.service.UpdateUnit(context.Background(), province.ID, dto.UpdateOrganizationUnitDTO{Code: utils.ToPtr("1100")})
	assertKind(t, err, apperrors.KindInvalidCodeFormat)

	updated, err := env.service.UpdateUnit(context.Background(), province.ID, dto.UpdateOrganizationUnitDTO{Code: utils.ToPtr("110100")})
	require.NoError(t, err)
	assert.Equal(t, "110100", updated.Code)

	child, err := env.service.GetUnit(context.Background(), city.ID)
	require.NoError(t, err)
	assert.Equal(t, "110100", child.Code)
}

func TestUpdateUnit_RenameKeepsSiblingUniqueness(t *testing.T) {
	env := newTestEnv(t)
	province := env.createRoot(t, "北京市", "110000", "province")
	env.createChild(t, province.ID, "东城区", "district")
	west := env.createChild(t, province.ID, "西城区", "district")

	_, err := env.service.UpdateUnit(context.Background(), west.ID, dto.UpdateOrganizationUnitDTO{Name: utils.ToPtr("东城区")})
	assertKind(t, err, apperrors.KindDuplicateSiblingName)

	// собственное имя не конфликтует само с собой
	same, err := env.service.UpdateUnit(context.Background(), west.ID, dto.UpdateOrganizationUnitDTO{Name: utils.ToPtr("西城区"), SortOrder: utils.ToPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, 1, same.SortOrder)
	assert.Equal(t, "1.1", same.HierarchicalIndex)
}

func TestUpdateUnit_NotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.service.UpdateUnit(context.Background(), 42, dto.UpdateOrganizationUnitDTO{Name: utils.ToPtr("x")})
	assertKind(t, err, apperrors.KindNotFound)
}

func TestDeleteUnit_Cascades(t *testing.T) {
	env := newTestEnv(t)
	province := env.createRoot(t, "北京市", "110000", "province")
	city := env.createChild(t, province.ID, "北京市辖区", "city")
	district := env.createChild(t, city.ID, "东城区", "district")

	require.NoError(t, env.service.DeleteUnit(context.Background(), province.ID))

	for _, id := range []uint64{province.ID, city.ID, district.ID} {
		_, err := env.service.GetUnit(context.Background(), id)
		assertKind(t, err, apperrors.KindNotFound)
	}

	err := env.service.DeleteUnit(context.Background(), province.ID)
	assertKind(t, err, apperrors.KindNotFound)
}

func TestListTree_ReflectsCreateAfterCachedRead(t *testing.T) {
	env := newTestEnv(t)
	env.createRoot(t, "北京市", "110000", "province")

	before, err := env.service.ListTree(context.Background(), "", false)
	require.NoError(t, err)
	require.Len(t, before, 1)
	assert.Positive(t, env.cache.Len())

	env.createRoot(t, "天津市", "120000", "province")

	after, err := env.service.ListTree(context.Background(), "", false)
	require.NoError(t, err)
	assert.Len(t, after, 2)
}

func TestListTree_ServesCacheUntilForceRefresh(t *testing.T) {
	env := newTestEnv(t)
	env.createRoot(t, "北京市", "110000", "province")

	_, err := env.service.ListTree(context.Background(), "", false)
	require.NoError(t, err)

	// запись в обход сервиса не инвалидирует кеш
	_, err = env.repo.Create(context.Background(), &entities.OrganizationUnit{Name: "天津市", Code: "120000", Level: entities.LevelProvince, Active: true, SortOrder: 1})
	require.NoError(t, err)

	cached, err := env.service.ListTree(context.Background(), "", false)
	require.NoError(t, err)
	assert.Len(t, cached, 1)

	fresh, err := env.service.ListTree(context.Background(), "", true)
	require.NoError(t, err)
	assert.Len(t, fresh, 2)

	// forceRefresh записал свежий результат обратно
	again, err := env.service.ListTree(context.Background(), "", false)
	require.NoError(t, err)
	assert.Len(t, again, 2)
}

func TestListTree_SearchKeepsAncestorsOnly(t *testing.T) {
	env := newTestEnv(t)
	province := env.createRoot(t, "测试省", "510000", "province")
	city := env.createChild(t, province.ID, "测试城市", "city")
	env.createChild(t, city.ID, "测试区", "district")
	env.createChild(t, province.ID, "其他城市", "city")
	env.createRoot(t, "无关省", "520000", "province")

	forest, err := env.service.ListTree(context.Background(), "测试城市", false)
	require.NoError(t, err)

	require.Len(t, forest, 1)
	assert.Equal(t, "测试省", forest[0].Name)
	require.Len(t, forest[0].Children, 1)
	assert.Equal(t, "测试城市", forest[0].Children[0].Name)
	assert.Empty(t, forest[0].Children[0].Children)
	assert.Equal(t, "1.1", forest[0].Children[0].HierarchicalIndex)
}

func TestListTree_TreeOrderByLevelThenCode(t *testing.T) {
	env := newTestEnv(t)
	province := env.createRoot(t, "北京市", "110000", "province")
	env.createChild(t, province.ID, "密云县", "county")
	env.createChild(t, province.ID, "北京市辖区", "city")

	forest, err := env.service.ListTree(context.Background(), "", false)
	require.NoError(t, err)
	require.Len(t, forest, 1)
	require.Len(t, forest[0].Children, 2)
	assert.Equal(t, entities.LevelCity, forest[0].Children[0].Level)
	assert.Equal(t, entities.LevelCounty, forest[0].Children[1].Level)
}

func TestListTree_WorksWithoutCache(t *testing.T) {
	env := newTestEnvWithCache(t, brokenCache{})
	env.createRoot(t, "北京市", "110000", "province")

	forest, err := env.service.ListTree(context.Background(), "", false)
	require.NoError(t, err)
	assert.Len(t, forest, 1)

	got, err := env.service.GetUnit(context.Background(), forest[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "1", got.HierarchicalIndex)
}

func TestAvailableChildLevels(t *testing.T) {
	env := newTestEnv(t)
	province := env.createRoot(t, "北京市", "110000", "province")
	city := env.createChild(t, province.ID, "北京市辖区", "city")
	district := env.createChild(t, city.ID, "东城区", "district")

	levels, err := env.service.AvailableChildLevels(context.Background(), province.ID)
	require.NoError(t, err)
	assert.Equal(t, []dto.LevelOptionDTO{
		{Value: "city", Label: "市级", Order: 2},
		{Value: "district", Label: "区级", Order: 3},
		{Value: "county", Label: "县级", Order: 4},
	}, levels)

	levels, err = env.service.AvailableChildLevels(context.Background(), district.ID)
	require.NoError(t, err)
	assert.Empty(t, levels)

	_, err = env.service.AvailableChildLevels(context.Background(), 999)
	assertKind(t, err, apperrors.KindNotFound)
}

func TestFullPathAndDescendants(t *testing.T) {
	env := newTestEnv(t)
	province := env.createRoot(t, "北京市", "110000", "province")
	city := env.createChild(t, province.ID, "北京市辖区", "city")
	district := env.createChild(t, city.ID, "东城区", "district")
	env.createChild(t, city.ID, "西城区", "district")

	path, err := env.service.FullPath(context.Background(), district.ID)
	require.NoError(t, err)
	assert.Equal(t, "北京市 / 北京市辖区 / 东城区", path.FullPath)
	require.Len(t, path.Chain, 3)
	assert.Equal(t, province.ID, path.Chain[0].ID)

	descendants, err := env.service.Descendants(context.Background(), city.ID)
	require.NoError(t, err)
	require.Len(t, descendants, 3)
	assert.Equal(t, city.ID, descendants[0].ID)
}

func TestListUnits_FiltersAndPaginates(t *testing.T) {
	env := newTestEnv(t)
	beijing := env.createRoot(t, "北京市", "110000", "province")
	env.createChild(t, beijing.ID, "北京市辖区", "city")
	env.createChild(t, beijing.ID, "密云县", "county")
	hebei := env.createRoot(t, "河北省", "130000", "province")
	env.createChild(t, hebei.ID, "石家庄市", "city")

	units, total, err := env.service.ListUnits(context.Background(), types.Filter{
		Filter:         map[string]interface{}{"level": "city"},
		Sort:           map[string]string{"code": "desc"},
		Limit:          1,
		WithPagination: true,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, units, 1)
	assert.Equal(t, "石家庄市", units[0].Name)
	assert.Equal(t, "2.1", units[0].HierarchicalIndex)

	units, _, err = env.service.ListUnits(context.Background(), types.Filter{
		Filter: map[string]interface{}{"parent_id": "null"},
	})
	require.NoError(t, err)
	assert.Len(t, units, 2)

	_, _, err = env.service.ListUnits(context.Background(), types.Filter{Filter: map[string]interface{}{"level": "village"}})
	var inputErr *apperrors.InvalidInputError
	assert.ErrorAs(t, err, &inputErr)
}

func TestWritesPublishEvents(t *testing.T) {
	env := newTestEnv(t)
	province := env.createRoot(t, "北京市", "110000", "province")
	city := env.createChild(t, province.ID, "北京市辖区", "city")
	require.NoError(t, env.service.DeleteUnit(context.Background(), province.ID))

	env.bus.Wait()
	journal := env.audit.Recent()
	require.Len(t, journal, 3)

	actions := map[string]int{}
	for _, e := range journal {
		actions[e.Action]++
		if e.Action == events.ActionDeleted {
			assert.ElementsMatch(t, []uint64{province.ID, city.ID}, e.AffectedIDs)
			assert.Nil(t, e.Unit)
		}
	}
	assert.Equal(t, map[string]int{events.ActionCreated: 2, events.ActionDeleted: 1}, actions)
}

func TestExportTree_WritesWorkbook(t *testing.T) {
	env := newTestEnv(t)
	province := env.createRoot(t, "北京市", "110000", "province")
	env.createChild(t, province.ID, "北京市辖区", "city")

	var buf bytes.Buffer
	require.NoError(t, env.service.ExportTree(context.Background(), "", &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Индекс", rows[0][0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "北京市", rows[1][1])
	assert.Equal(t, "1.1", rows[2][0])
	assert.Equal(t, "    北京市辖区", rows[2][1])

	width, err := f.GetColWidth(exportSheet, "B")
	require.NoError(t, err)
	assert.Equal(t, 40.0, width)

	styleID, err := f.GetCellStyle(exportSheet, "A1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)
}

// brokenCache имитирует недоступный Redis.
type brokenCache struct{}

var errCacheDown = errors.New("cache down")

func (brokenCache) Set(context.Context, string, interface{}, time.Duration) error { return errCacheDown }
func (brokenCache) Get(context.Context, string) (string, error)                  { return "", errCacheDown }
func (brokenCache) Del(context.Context, ...string) error                         { return errCacheDown }
func (brokenCache) Incr(context.Context, string) (int64, error)                  { return 0, errCacheDown }
