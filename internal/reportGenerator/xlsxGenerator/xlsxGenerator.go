package xlsxGenerator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/borsaapp/portfolio_backend/internal/model"
	"github.com/borsaapp/portfolio_backend/utils"
)

const (
	walletSheet  = "Wallet"
	tradesSheet  = "Trades"
	historySheet = "History"

	dateLayout = "2006-01-02 15:04"
)

type XLSXGenerator struct{}

func New() *XLSXGenerator {
	return &XLSXGenerator{}
}

// Generate renders the full portfolio report: one sheet per ledger plus
// the reconstructed valuation history.
func (g *XLSXGenerator) Generate(ctx context.Context, report model.PortfolioReport) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXGenerator.Generate"

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	if err := g.fillWalletSheet(f, report.CashEvents); err != nil {
		return nil, "", err
	}
	if err := g.fillTradesSheet(f, report.TradeEvents); err != nil {
		return nil, "", err
	}
	if err := g.fillHistorySheet(f, report.History); err != nil {
		return nil, "", err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		slog.Error("got error while deleting Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XLSXGenerator) headerStyle(f *excelize.File, color string) (int, error) {
	return f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{color},
		},
	})
}

func (g *XLSXGenerator) writeHeader(f *excelize.File, sheet, color string, headers []string) error {
	styleID, err := g.headerStyle(f, color)
	if err != nil {
		return err
	}

	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		_ = f.SetCellStr(sheet, cell, header)
		if err := f.SetCellStyle(sheet, cell, cell, styleID); err != nil {
			return fmt.Errorf("apply header style: %w", err)
		}
	}

	return nil
}

func (g *XLSXGenerator) fillWalletSheet(f *excelize.File, events []model.CashEvent) error {
	if _, err := f.NewSheet(walletSheet); err != nil {
		return err
	}

	if err := g.writeHeader(f, walletSheet, "#cfe2f3", []string{"id", "date", "kind", "amount"}); err != nil {
		return err
	}

	for i, e := range events {
		row := i + 2
		_ = f.SetCellValue(walletSheet, fmt.Sprintf("A%d", row), e.ID)
		_ = f.SetCellStr(walletSheet, fmt.Sprintf("B%d", row), e.Date.Format(dateLayout))
		_ = f.SetCellStr(walletSheet, fmt.Sprintf("C%d", row), string(e.Kind))
		_ = f.SetCellValue(walletSheet, fmt.Sprintf("D%d", row), e.Amount.InexactFloat64())
	}

	return nil
}

func (g *XLSXGenerator) fillTradesSheet(f *excelize.File, events []model.TradeEvent) error {
	if _, err := f.NewSheet(tradesSheet); err != nil {
		return err
	}

	headers := []string{"id", "date", "symbol", "side", "quantity", "price", "total cost", "commission"}
	if err := g.writeHeader(f, tradesSheet, "#d9ead3", headers); err != nil {
		return err
	}

	for i, e := range events {
		row := i + 2
		_ = f.SetCellValue(tradesSheet, fmt.Sprintf("A%d", row), e.ID)
		_ = f.SetCellStr(tradesSheet, fmt.Sprintf("B%d", row), e.Date.Format(dateLayout))
		_ = f.SetCellStr(tradesSheet, fmt.Sprintf("C%d", row), e.Symbol)
		_ = f.SetCellStr(tradesSheet, fmt.Sprintf("D%d", row), string(e.Side))
		_ = f.SetCellValue(tradesSheet, fmt.Sprintf("E%d", row), e.Quantity.InexactFloat64())
		_ = f.SetCellValue(tradesSheet, fmt.Sprintf("F%d", row), e.Price.InexactFloat64())
		_ = f.SetCellValue(tradesSheet, fmt.Sprintf("G%d", row), e.TotalCost.InexactFloat64())
		_ = f.SetCellValue(tradesSheet, fmt.Sprintf("H%d", row), e.TotalCommission.InexactFloat64())
	}

	return nil
}

func (g *XLSXGenerator) fillHistorySheet(f *excelize.File, points []model.ChartPoint) error {
	if _, err := f.NewSheet(historySheet); err != nil {
		return err
	}

	if err := g.writeHeader(f, historySheet, "#fff2cc", []string{"date", "value", "invested"}); err != nil {
		return err
	}

	for i, p := range points {
		row := i + 2
		_ = f.SetCellStr(historySheet, fmt.Sprintf("A%d", row), p.Date)
		_ = f.SetCellValue(historySheet, fmt.Sprintf("B%d", row), p.Value)
		_ = f.SetCellValue(historySheet, fmt.Sprintf("C%d", row), p.Invested)
	}

	return nil
}
