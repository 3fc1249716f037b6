// Package importer orchestrates spreadsheet import runs: it validates
// submissions synchronously, then executes batched, failure-isolated
// writes asynchronously while reporting progress.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/rpattn/sheetimport/internal/coerce"
	"github.com/rpattn/sheetimport/internal/derive"
	"github.com/rpattn/sheetimport/internal/domain"
	"github.com/rpattn/sheetimport/internal/mapping"
	"github.com/rpattn/sheetimport/internal/progress"
	"github.com/rpattn/sheetimport/internal/reader"
	"github.com/rpattn/sheetimport/internal/repository"

	"github.com/google/uuid"
)

// Service is the batch import executor.
type Service struct {
	records repository.RecordRepository
	logs    repository.ImportLogRepository
	store   progress.Store
	catalog domain.FieldCatalog

	calendar   *derive.Calendar
	batchSize  int
	jobTimeout time.Duration
	maxErrors  int
	batchPause time.Duration
	now        func() time.Time

	workerCancels sync.Map // map[string]context.CancelFunc
}

// Option customizes executor tunables.
type Option func(*Service)

// WithBatchSize sets how many rows one bulk write covers.
func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithJobTimeout caps the wall-clock duration of one run.
func WithJobTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.jobTimeout = timeout
		}
	}
}

// WithMaxErrors caps how many row errors are retained in the result.
// Overflow errors are still counted; the job runs to completion.
func WithMaxErrors(cap int) Option {
	return func(s *Service) {
		if cap > 0 {
			s.maxErrors = cap
		}
	}
}

// WithBatchPause inserts a pause between batches so sustained imports
// do not saturate the destination store.
func WithBatchPause(pause time.Duration) Option {
	return func(s *Service) {
		if pause >= 0 {
			s.batchPause = pause
		}
	}
}

// WithCalendar overrides the derived-field calculator (locale labels).
func WithCalendar(calendar *derive.Calendar) Option {
	return func(s *Service) {
		if calendar != nil {
			s.calendar = calendar
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires the executor. The log repository may be nil; row
// errors are then only reported through the ImportResult.
func NewService(
	records repository.RecordRepository,
	logs repository.ImportLogRepository,
	store progress.Store,
	catalog domain.FieldCatalog,
	opts ...Option,
) *Service {
	service := &Service{
		records:    records,
		logs:       logs,
		store:      store,
		catalog:    catalog.Normalize(),
		calendar:   derive.NewCalendar(nil),
		batchSize:  2000,
		jobTimeout: 2 * time.Hour,
		maxErrors:  100,
		batchPause: 50 * time.Millisecond,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// SubmitRequest describes one import submission.
type SubmitRequest struct {
	JobID    string
	Target   string
	FileName string
	Mapping  domain.ColumnMapping
	Data     io.Reader
}

// Submit validates the upload and mapping synchronously, registers the
// job and starts the batch worker. The caller receives the job id
// immediately and polls Status for the outcome.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if strings.TrimSpace(req.Target) == "" {
		return "", errors.New("target is required")
	}
	if strings.TrimSpace(req.FileName) == "" {
		return "", errors.New("file name is required")
	}
	if req.Data == nil {
		return "", errors.New("data reader is required")
	}

	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return "", fmt.Errorf("%w: read upload: %v", domain.ErrMalformedInput, err)
	}

	doc, err := reader.Read(req.FileName, payload)
	if err != nil {
		return "", err
	}

	if err := mapping.Validate(req.Mapping, s.catalog); err != nil {
		return "", err
	}
	resolved, err := mapping.Resolve(req.Mapping, s.catalog)
	if err != nil {
		return "", err
	}

	jobID := strings.TrimSpace(req.JobID)
	if jobID == "" {
		jobID = uuid.New().String()
	}

	job := domain.ImportJob{
		ID:         jobID,
		Target:     req.Target,
		SourceName: req.FileName,
		TotalRows:  len(doc.Rows),
		Step:       "pending",
	}
	if err := s.store.Create(ctx, job); err != nil {
		return "", err
	}

	s.launchWorker(job, doc, resolved)
	return jobID, nil
}

// Status returns the job snapshot for polling callers.
func (s *Service) Status(ctx context.Context, jobID string) (domain.ImportJob, error) {
	return s.store.Get(ctx, jobID)
}

// Catalog returns the destination field catalog.
func (s *Service) Catalog() domain.FieldCatalog {
	return s.catalog
}

func (s *Service) launchWorker(job domain.ImportJob, doc domain.SourceDocument, resolved domain.ResolvedMapping) {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	s.workerCancels.Store(job.ID, cancel)

	go func() {
		defer func() {
			cancel()
			s.workerCancels.Delete(job.ID)
		}()
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[import] panic while processing job %s: %v", job.ID, rec)
				s.finishPanicked(job, fmt.Errorf("panic: %v", rec))
			}
		}()
		s.run(ctx, job, doc, resolved)
	}()
}

// finishPanicked attaches a failure result so a panicking worker never
// leaves the job state ambiguous.
func (s *Service) finishPanicked(job domain.ImportJob, err error) {
	result := &domain.ImportResult{
		Success:    false,
		TotalRows:  job.TotalRows,
		Errors:     []domain.RowError{{Row: 0, Message: truncateError(err)}},
		ErrorCount: 1,
		SessionID:  uuid.New().String(),
	}
	if updateErr := s.store.Update(context.Background(), job.ID, 100, "failed", true, result); updateErr != nil {
		log.Printf("[import] failed to mark job %s failed: %v", job.ID, updateErr)
		s.releaseJob(job.ID)
	}
}

// releaseJob frees the job and source keys when the terminal update
// could not be recorded; a job stuck active would block every future
// import of the same source.
func (s *Service) releaseJob(jobID string) {
	if err := s.store.Release(context.Background(), jobID); err != nil {
		log.Printf("[import] job %s release failed: %v", jobID, err)
	}
}

type runState struct {
	job      domain.ImportJob
	resolved domain.ResolvedMapping
	headers  map[string]int
	anchor   string
	session  string
	started  time.Time

	written    int
	errorCount int
	errors     []domain.RowError
	timedOut   bool
}

// pendingRecord keeps the 1-based data row number next to the built
// record so fallback failures are reported against the right row.
type pendingRecord struct {
	row    int
	record domain.Record
}

func (s *Service) run(ctx context.Context, job domain.ImportJob, doc domain.SourceDocument, resolved domain.ResolvedMapping) {
	state := &runState{
		job:      job,
		resolved: resolved,
		headers:  headerIndex(doc.Headers),
		anchor:   s.anchorField(resolved),
		session:  uuid.New().String(),
		started:  s.now(),
	}

	log.Printf("[import] job %s started (source=%s rows=%d)", job.ID, job.SourceName, len(doc.Rows))
	s.updateStep(ctx, state, 0, "removing previous import")

	if removed, err := s.records.DeleteBySource(ctx, job.Target, job.SourceName); err != nil {
		// The dedup delete failing is fatal: writing would duplicate
		// records from the prior import of this source.
		s.addError(ctx, state, domain.RowError{Row: 0, Message: fmt.Sprintf("dedup delete failed: %v", truncateError(err))})
		s.finish(ctx, state, job.TotalRows)
		return
	} else if removed > 0 {
		log.Printf("[import] job %s replaced %d records from prior import of %s", job.ID, removed, job.SourceName)
	}

	total := len(doc.Rows)
	batches := (total + s.batchSize - 1) / s.batchSize

	processed := 0
	for batch := 0; batch < batches; batch++ {
		if ctx.Err() != nil {
			state.timedOut = true
			break
		}

		start := batch * s.batchSize
		end := start + s.batchSize
		if end > total {
			end = total
		}

		pending := make([]pendingRecord, 0, end-start)
		for idx := start; idx < end; idx++ {
			rowNumber := idx + 1
			record, rowErr := s.buildRecord(state, doc.Rows[idx])
			if rowErr != nil {
				rowErr.Row = rowNumber
				s.addError(ctx, state, *rowErr)
				continue
			}
			pending = append(pending, pendingRecord{row: rowNumber, record: record})
		}

		s.writeBatch(ctx, state, pending, batch+1, batches)

		processed = end
		progressPct := processed * 100 / total
		if progressPct >= 100 {
			progressPct = 99
		}
		s.updateStep(ctx, state, progressPct, fmt.Sprintf("batch %d/%d", batch+1, batches))

		if batch+1 < batches && s.batchPause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.batchPause):
			}
		}
	}

	if ctx.Err() != nil {
		state.timedOut = true
	}

	if !state.timedOut {
		if count, err := s.records.CountBySource(ctx, job.Target, job.SourceName); err == nil && count != int64(state.written) {
			log.Printf("[import] job %s destination holds %d records for %s, expected %d", job.ID, count, job.SourceName, state.written)
		}
	}

	s.finish(ctx, state, total)
}

// writeBatch attempts one bulk write, then retries row by row on
// failure so a single bad row never blocks the rest of the batch.
func (s *Service) writeBatch(ctx context.Context, state *runState, pending []pendingRecord, batchNo, batches int) {
	if len(pending) == 0 {
		return
	}

	records := make([]domain.Record, len(pending))
	for i, p := range pending {
		records[i] = p.record
	}

	err := s.records.BulkInsert(ctx, records)
	if err == nil {
		state.written += len(pending)
		return
	}
	log.Printf("[import] job %s batch %d/%d bulk write failed, retrying row by row: %v", state.job.ID, batchNo, batches, err)

	for _, p := range pending {
		if err := s.records.InsertOne(ctx, p.record); err != nil {
			s.addError(ctx, state, domain.RowError{Row: p.row, Message: truncateError(err)})
			continue
		}
		state.written++
	}
}

// buildRecord coerces the direct bindings and attaches computed and
// derived fields. A nil value for a required field fails the row.
func (s *Service) buildRecord(state *runState, row []any) (domain.Record, *domain.RowError) {
	fields := make(map[string]any, len(state.resolved.Direct)+len(state.resolved.Computed))

	var anchorDate *time.Time
	for header, key := range state.resolved.Direct {
		spec, _ := s.catalog.ByKey(key)

		var raw any
		if idx, ok := state.headers[header]; ok && idx < len(row) {
			raw = row[idx]
		}

		value := coerce.Value(raw, spec.Type)
		if value == nil && spec.Required {
			return domain.Record{}, &domain.RowError{Message: fmt.Sprintf("required field %s has no usable value", key)}
		}
		fields[key] = value

		if key == state.anchor && value != nil {
			if t, ok := value.(time.Time); ok {
				anchorDate = &t
			}
		}
	}

	for header, sentinel := range state.resolved.Computed {
		switch sentinel {
		case domain.MappingTargetFromNow:
			fields[header] = s.now().UTC()
		case domain.MappingTargetFromFile:
			if period, ok := derive.FilenamePeriod(state.job.SourceName, anchorDate, s.now()); ok {
				fields[header] = fmt.Sprintf("%04d-%02d", period.Year, period.Month)
			} else {
				fields[header] = nil
			}
		case domain.MappingTargetDerived:
			for key, value := range s.calendar.Fields(anchorDate) {
				fields[key] = value
			}
		}
	}

	return domain.Record{
		Target:     state.job.Target,
		SourceName: state.job.SourceName,
		SessionID:  state.session,
		Fields:     fields,
	}, nil
}

// anchorField picks the first date or datetime direct binding in
// catalog order as the derived-field anchor.
func (s *Service) anchorField(resolved domain.ResolvedMapping) string {
	bound := make(map[string]bool, len(resolved.Direct))
	for _, key := range resolved.Direct {
		bound[key] = true
	}
	for _, field := range s.catalog {
		if !bound[field.Key] {
			continue
		}
		if field.Type == domain.FieldTypeDate || field.Type == domain.FieldTypeDateTime {
			return field.Key
		}
	}
	return ""
}

func (s *Service) addError(ctx context.Context, state *runState, rowErr domain.RowError) {
	state.errorCount++
	if len(state.errors) < s.maxErrors {
		state.errors = append(state.errors, rowErr)
	}
	if s.logs == nil {
		return
	}
	entry := domain.ImportLogEntry{
		JobID:      state.job.ID,
		SourceName: state.job.SourceName,
		Message:    rowErr.Message,
	}
	if rowErr.Row > 0 {
		row := rowErr.Row
		entry.RowNumber = &row
	}
	if err := s.logs.Record(ctx, entry); err != nil {
		log.Printf("[import] job %s failed to record row error: %v", state.job.ID, err)
	}
}

func (s *Service) updateStep(ctx context.Context, state *runState, progressPct int, step string) {
	if err := s.store.Update(ctx, state.job.ID, progressPct, step, false, nil); err != nil {
		log.Printf("[import] job %s progress update failed: %v", state.job.ID, err)
	}
}

func (s *Service) finish(ctx context.Context, state *runState, total int) {
	step := "completed"
	if state.timedOut {
		step = "timed out"
		s.addError(ctx, state, domain.RowError{
			Row:     0,
			Message: fmt.Sprintf("import timed out after %s", s.jobTimeout),
		})
	}

	result := &domain.ImportResult{
		Success:     state.errorCount == 0 && !state.timedOut,
		TotalRows:   total,
		WrittenRows: state.written,
		Errors:      state.errors,
		ErrorCount:  state.errorCount,
		SessionID:   state.session,
		Elapsed:     s.now().Sub(state.started),
	}
	if result.Errors == nil {
		result.Errors = []domain.RowError{}
	}

	// The final update must land even when the job context is done.
	if err := s.store.Update(context.Background(), state.job.ID, 100, step, true, result); err != nil {
		log.Printf("[import] job %s final update failed: %v", state.job.ID, err)
		s.releaseJob(state.job.ID)
	}
	log.Printf("[import] job %s %s (written=%d/%d errors=%d elapsed=%s)",
		state.job.ID, step, state.written, total, state.errorCount, result.Elapsed)
}

func headerIndex(headers []string) map[string]int {
	index := make(map[string]int, len(headers))
	for i, header := range headers {
		if _, seen := index[header]; seen {
			continue
		}
		index[header] = i
	}
	return index
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	const maxLen = 512
	msg := err.Error()
	if len(msg) > maxLen {
		return msg[:maxLen]
	}
	return msg
}
