package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"region-system/internal/hierarchy"
)

const exportSheet = "Подразделения"

var exportHeaders = []interface{}{"Индекс", "Название", "Код", "Уровень", "Уровень (метка)", "Активно", "Порядок", "ID", "ID родителя"}

// ExportTree выгружает дерево (с учётом поиска) в xlsx. Строки идут в порядке обхода в глубину,
// название сдвинуто отступом по глубине узла.
func (s *OrganizationUnitService) ExportTree(ctx context.Context, search string, w io.Writer) error {
	forest, err := s.treeCache.ListTree(ctx, search, false)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() {
		if errClose := f.Close(); errClose != nil {
			s.logger.Warn("ExportTree: не удалось закрыть книгу", zap.Error(errClose))
		}
	}()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("не удалось переименовать лист: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeaders); err != nil {
		return fmt.Errorf("не удалось записать заголовки: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("не удалось создать стиль заголовка: %w", err)
	}
	if err := f.SetCellStyle(exportSheet, "A1", "I1", style); err != nil {
		return fmt.Errorf("не удалось применить стиль заголовка: %w", err)
	}

	rowNum := 2
	var walk func(nodes []*hierarchy.Node, depth int) error
	walk = func(nodes []*hierarchy.Node, depth int) error {
		for _, node := range nodes {
			cell, err := excelize.CoordinatesToCellName(1, rowNum)
			if err != nil {
				return err
			}
			row := exportRow(node, depth)
			if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
				return fmt.Errorf("не удалось записать строку %d: %w", rowNum, err)
			}
			rowNum++
			if err := walk(node.Children, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(forest, 0); err != nil {
		return err
	}

	for _, col := range []struct {
		from, to string
		width    float64
	}{{"A", "A", 12}, {"B", "B", 40}, {"C", "E", 15}} {
		if err := f.SetColWidth(exportSheet, col.from, col.to, col.width); err != nil {
			return fmt.Errorf("не удалось задать ширину колонок %s:%s: %w", col.from, col.to, err)
		}
	}

	s.logger.Info("Дерево подразделений выгружено в xlsx", zap.String("search", search), zap.Int("rows", rowNum-2))
	return f.Write(w)
}

func exportRow(node *hierarchy.Node, depth int) []interface{} {
	var parentID interface{} = ""
	if node.ParentID != nil {
		parentID = *node.ParentID
	}
	active := "Нет"
	if node.Active {
		active = "Да"
	}
	return []interface{}{
		node.HierarchicalIndex,
		strings.Repeat("    ", depth) + node.Name,
		node.Code,
		node.Level.String(),
		node.LevelLabel,
		active,
		node.SortOrder,
		node.ID,
		parentID,
	}
}
