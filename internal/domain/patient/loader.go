package patient

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/strokecare/strokecare/internal/platform/apperr"
)

// datasetColumns is the header of the stroke prediction dataset.
var datasetColumns = []string{
	"id", "gender", "age", "hypertension", "heart_disease", "ever_married",
	"work_type", "Residence_type", "avg_glucose_level", "bmi", "smoking_status", "stroke",
}

const loadBatchSize = 500

// LoadResult counts the outcome of one import.
type LoadResult struct {
	Inserted int
	Skipped  int
}

// Loader bulk-imports patients from CSV. Rows that cannot be coerced are
// skipped and counted. Nothing is deduplicated against existing records.
type Loader struct {
	patients  PatientRepository
	batchSize int
	logger    zerolog.Logger
	now       func() time.Time
}

func NewLoader(patients PatientRepository, logger zerolog.Logger) *Loader {
	return &Loader{patients: patients, batchSize: loadBatchSize, logger: logger, now: time.Now}
}

// Load reads the dataset from r. Columns are matched by header name. A store
// failure stops the import; Inserted then counts the rows already stored.
func (l *Loader) Load(ctx context.Context, r io.Reader) (LoadResult, error) {
	var res LoadResult

	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		return res, apperr.Invalid("dataset", fmt.Sprintf("cannot read header: %v", err))
	}
	cols, err := columnIndex(header)
	if err != nil {
		return res, err
	}
	cr.FieldsPerRecord = len(header)

	created := l.now().UTC().Truncate(time.Millisecond)
	batch := make([]*Patient, 0, l.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := l.patients.InsertMany(ctx, batch); err != nil {
			return err
		}
		res.Inserted += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			res.Skipped++
			l.logger.Debug().Int("line", perr.Line).Err(perr.Err).Msg("dataset row skipped")
			continue
		}
		if err != nil {
			return res, apperr.Store("read dataset", err)
		}

		p, err := parseRow(record, cols)
		if err != nil {
			res.Skipped++
			line, _ := cr.FieldPos(0)
			l.logger.Debug().Int("line", line).Err(err).Msg("dataset row skipped")
			continue
		}
		p.CreatedAt = created
		batch = append(batch, p)

		if len(batch) >= l.batchSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}

	if err := flush(); err != nil {
		return res, err
	}
	return res, nil
}

func columnIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		cols[name] = i
	}
	var missing []string
	for _, want := range datasetColumns {
		if _, ok := cols[want]; !ok {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return nil, apperr.Invalid("dataset", "missing columns: "+strings.Join(missing, ", "))
	}
	return cols, nil
}

// parseRow coerces one record. bmi "N/A" or empty is unknown.
func parseRow(record []string, cols map[string]int) (*Patient, error) {
	get := func(name string) string {
		return strings.TrimSpace(record[cols[name]])
	}

	var p Patient
	var err error
	if p.ID, err = strconv.ParseInt(get("id"), 10, 64); err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	if p.Age, err = strconv.ParseFloat(get("age"), 64); err != nil {
		return nil, fmt.Errorf("age: %w", err)
	}
	if p.AvgGlucoseLevel, err = strconv.ParseFloat(get("avg_glucose_level"), 64); err != nil {
		return nil, fmt.Errorf("avg_glucose_level: %w", err)
	}
	if raw := get("bmi"); raw != "" && raw != "N/A" {
		bmi, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("bmi: %w", err)
		}
		p.BMI = &bmi
	}
	if p.Hypertension, err = parseRowFlag(get("hypertension")); err != nil {
		return nil, fmt.Errorf("hypertension: %w", err)
	}
	if p.HeartDisease, err = parseRowFlag(get("heart_disease")); err != nil {
		return nil, fmt.Errorf("heart_disease: %w", err)
	}
	if p.Stroke, err = parseRowFlag(get("stroke")); err != nil {
		return nil, fmt.Errorf("stroke: %w", err)
	}

	p.Gender = get("gender")
	p.EverMarried = get("ever_married")
	p.WorkType = get("work_type")
	p.ResidenceType = get("Residence_type")
	p.SmokingStatus = get("smoking_status")
	return &p, nil
}

var errNotFlag = errors.New("not 0 or 1")

func parseRowFlag(raw string) (int, error) {
	switch raw {
	case "0":
		return 0, nil
	case "1":
		return 1, nil
	}
	return 0, errNotFlag
}
