package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/opsgrid-api/internal/models"
	"github.com/noah-isme/opsgrid-api/internal/scheduler"
	"github.com/noah-isme/opsgrid-api/pkg/export"
	"github.com/noah-isme/opsgrid-api/pkg/storage"
)

type exportPlanReader interface {
	FindByID(ctx context.Context, id string) (*models.SchedulePlan, error)
}

type exportEntryReader interface {
	ListByPlan(ctx context.Context, planID string) ([]models.PlanEntry, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders plans to files and signs download links for them.
type ExportService struct {
	plans   exportPlanReader
	entries exportEntryReader
	storage fileStorage
	csv     datasetRenderer
	pdf     datasetRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(plans exportPlanReader, entries exportEntryReader, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv, pdf datasetRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVRenderer()
	}
	if pdf == nil {
		pdf = export.NewPDFRenderer()
	}
	return &ExportService{
		plans:   plans,
		entries: entries,
		storage: store,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// Generate renders the job's plan and stores the file under a signed token.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	plan, err := s.plans.FindByID(ctx, job.PlanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("plan %s not found", job.PlanID)
		}
		return nil, fmt.Errorf("load plan: %w", err)
	}
	rows, err := s.entries.ListByPlan(ctx, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("load plan entries: %w", err)
	}
	dataset := BuildPlanDataset(plan, rows)

	var payload []byte
	switch job.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset)
	default:
		err = fmt.Errorf("unsupported format %s", job.Format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(buildExportFilename(plan, job.Format), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Debug("plan export rendered",
		zap.String("job_id", job.ID),
		zap.String("plan_id", plan.ID),
		zap.String("path", relPath),
		zap.Int("bytes", len(payload)),
	)
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// BuildPlanDataset lays out a plan as a summary block followed by one row per entry.
// Task and site names are resolved from the stored request when available.
func BuildPlanDataset(plan *models.SchedulePlan, rows []models.PlanEntry) export.Dataset {
	taskNames := map[string]string{}
	siteNames := map[string]string{}
	var input scheduler.Request
	if len(plan.Input) > 0 && plan.Input.Unmarshal(&input) == nil {
		for _, task := range input.Tasks {
			taskNames[task.ID] = task.Name
		}
		for _, site := range input.Sites {
			siteNames[site.ID] = site.Name
		}
	}

	summary := []export.Field{
		{Label: "Domain", Value: string(plan.Domain)},
		{Label: "Status", Value: string(plan.Status)},
		{Label: "Outcome", Value: plan.Outcome},
		{Label: "Diagnostics", Value: plan.Message},
	}
	var stats scheduler.Stats
	if len(plan.Stats) > 0 && plan.Stats.Unmarshal(&stats) == nil && stats.TotalAvailable > 0 {
		summary = append(summary,
			export.Field{Label: "Placed", Value: fmt.Sprintf("%d of %d required", stats.TotalPlaced, stats.TotalRequired)},
			export.Field{Label: "Utilization", Value: fmt.Sprintf("%.1f%%", stats.Utilization*100)},
			export.Field{Label: "Fairness", Value: fmt.Sprintf("%.1f", stats.FairnessScore)},
		)
	}
	if len(plan.UnassignedTasks) > 0 {
		summary = append(summary, export.Field{Label: "Unassigned", Value: strings.Join(plan.UnassignedTasks, ", ")})
	}

	headers := []string{"#", "Day", "Time Slot", "Site", "Task", "Resource"}
	data := make([]map[string]string, 0, len(rows))
	for i, row := range rows {
		data = append(data, map[string]string{
			"#":         strconv.Itoa(i + 1),
			"Day":       row.Day,
			"Time Slot": row.TimeSlot,
			"Site":      labelOr(siteNames[row.SiteID], row.SiteID),
			"Task":      labelOr(taskNames[row.TaskID], row.TaskID),
			"Resource":  row.ResourceName,
		})
	}

	return export.Dataset{
		Title:   fmt.Sprintf("%s v%d", plan.Name, plan.Version),
		Summary: summary,
		Headers: headers,
		Rows:    data,
	}
}

func labelOr(name, id string) string {
	if name == "" {
		return id
	}
	return name
}

func buildExportFilename(plan *models.SchedulePlan, format models.ExportFormat) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	dir := sanitizeFilename(string(plan.Domain))
	return fmt.Sprintf("%s/%s_v%d_%s.%s", dir, sanitizeFilename(plan.Name), plan.Version, timestamp, format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
