// internal/export/export.go
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/snipe-engine/internal/storage"
	"github.com/rovshanmuradov/snipe-engine/internal/storage/models"
)

// Format represents the export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

const pageSize = 500

// ErrNothingToExport is returned when no swap matches the filters.
var ErrNothingToExport = errors.New("no swaps match the export criteria")

// Options configures the export behavior
type Options struct {
	Format      Format
	UserID      int64
	StartTime   time.Time
	EndTime     time.Time
	MintFilter  string // matches either side of the swap
	OnlySuccess bool
	OutputDir   string
}

// HistoryExporter writes a user's swap history to disk.
type HistoryExporter struct {
	store  storage.Storage
	logger *zap.Logger
	now    func() time.Time
}

func NewHistoryExporter(store storage.Storage, logger *zap.Logger) *HistoryExporter {
	return &HistoryExporter{
		store:  store,
		logger: logger.Named("history-export"),
		now:    time.Now,
	}
}

// Export loads the whole history of options.UserID, filters it and writes
// the result. It returns the path of the written file.
func (e *HistoryExporter) Export(ctx context.Context, options Options) (string, error) {
	if options.Format != FormatCSV && options.Format != FormatJSON {
		return "", fmt.Errorf("unsupported format: %s", options.Format)
	}

	swaps, err := e.load(ctx, options.UserID)
	if err != nil {
		return "", err
	}
	filtered := Filter(swaps, options)
	if len(filtered) == 0 {
		return "", ErrNothingToExport
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})

	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(options.OutputDir, e.filename(options))

	switch options.Format {
	case FormatCSV:
		err = writeCSV(filtered, outputPath)
	case FormatJSON:
		err = e.writeJSON(filtered, outputPath)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("Swap history exported",
		zap.String("file", outputPath),
		zap.Int64("user_id", options.UserID),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))
	return outputPath, nil
}

func (e *HistoryExporter) load(ctx context.Context, userID int64) ([]*models.Swap, error) {
	var all []*models.Swap
	for offset := 0; ; offset += pageSize {
		page, err := e.store.ListSwaps(ctx, userID, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("list swaps: %w", err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

// Filter applies the time, mint and status filters of options.
func Filter(swaps []*models.Swap, options Options) []*models.Swap {
	var filtered []*models.Swap
	for _, s := range swaps {
		if !options.StartTime.IsZero() && s.CreatedAt.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && s.CreatedAt.After(options.EndTime) {
			continue
		}
		if options.MintFilter != "" && s.InputMint != options.MintFilter && s.OutputMint != options.MintFilter {
			continue
		}
		if options.OnlySuccess && s.Status != models.SwapStatusConfirmed {
			continue
		}
		filtered = append(filtered, s)
	}
	return filtered
}

func (e *HistoryExporter) filename(options Options) string {
	prefix := fmt.Sprintf("swaps_%d", options.UserID)
	if options.MintFilter != "" {
		mint := options.MintFilter
		if len(mint) > 8 {
			mint = mint[:8]
		}
		prefix += "_" + mint
	}
	return fmt.Sprintf("%s_%s.%s", prefix, e.now().Format("20060102_150405"), options.Format)
}

var csvHeaders = []string{
	"time", "source", "status", "signature", "wallet",
	"input_mint", "output_mint", "amount", "amount_in", "fee_amount",
	"execution_time_s", "error",
}

func csvRow(s *models.Swap) []string {
	return []string{
		s.CreatedAt.UTC().Format(time.RFC3339),
		s.Source,
		s.Status,
		s.Signature,
		s.WalletAddress,
		s.InputMint,
		s.OutputMint,
		strconv.FormatFloat(s.Amount, 'f', -1, 64),
		strconv.FormatUint(s.AmountIn, 10),
		strconv.FormatUint(s.FeeAmount, 10),
		strconv.FormatFloat(s.ExecutionTime, 'f', 3, 64),
		s.ErrorMessage,
	}
}

func writeCSV(swaps []*models.Swap, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeaders); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, s := range swaps {
		if err := writer.Write(csvRow(s)); err != nil {
			return fmt.Errorf("failed to write swap %d: %w", s.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func (e *HistoryExporter) writeJSON(swaps []*models.Swap, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	data := struct {
		ExportTime time.Time      `json:"export_time"`
		Summary    Summary        `json:"summary"`
		Swaps      []*models.Swap `json:"swaps"`
	}{
		ExportTime: e.now(),
		Summary:    Summarize(swaps),
		Swaps:      swaps,
	}
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// Summary contains aggregate statistics for exported swaps
type Summary struct {
	TotalSwaps     int             `json:"total_swaps"`
	Confirmed      int             `json:"confirmed"`
	Failed         int             `json:"failed"`
	UniqueMints    int             `json:"unique_mints"`
	SOLSpent       decimal.Decimal `json:"sol_spent"`
	FeesLamports   uint64          `json:"fees_lamports"`
	AvgExecutionS  float64         `json:"avg_execution_s"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`
	SwapsBySource  map[string]int  `json:"swaps_by_source"`
	FailuresByKind map[string]int  `json:"failures_by_kind,omitempty"`
}

// Summarize expects swaps ordered by creation time.
func Summarize(swaps []*models.Swap) Summary {
	summary := Summary{
		TotalSwaps:     len(swaps),
		SOLSpent:       decimal.Zero,
		SwapsBySource:  map[string]int{},
		FailuresByKind: map[string]int{},
	}
	if len(swaps) == 0 {
		return summary
	}
	summary.StartDate = swaps[0].CreatedAt
	summary.EndDate = swaps[len(swaps)-1].CreatedAt

	sol := solana.SolMint.String()
	mints := make(map[string]struct{})
	var execTotal float64
	for _, s := range swaps {
		summary.SwapsBySource[s.Source]++
		for _, mint := range []string{s.InputMint, s.OutputMint} {
			if mint != sol {
				mints[mint] = struct{}{}
			}
		}
		if s.Status != models.SwapStatusConfirmed {
			summary.Failed++
			kind, _, _ := strings.Cut(s.ErrorMessage, ":")
			summary.FailuresByKind[kind]++
			continue
		}
		summary.Confirmed++
		summary.FeesLamports += s.FeeAmount
		execTotal += s.ExecutionTime
		if s.InputMint == sol {
			summary.SOLSpent = summary.SOLSpent.Add(decimal.NewFromFloat(s.Amount))
		}
	}
	summary.UniqueMints = len(mints)
	if summary.Confirmed > 0 {
		summary.AvgExecutionS = execTotal / float64(summary.Confirmed)
	}
	return summary
}
