package patient

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/strokecare/strokecare/internal/platform/apperr"
	"github.com/strokecare/strokecare/internal/platform/validation"
)

// Patient is one stroke-risk record. Flags are 0 or 1. BMI is nil when
// unknown.
type Patient struct {
	ID              int64      `bson:"id" json:"id"`
	Gender          string     `bson:"gender" json:"gender"`
	Age             float64    `bson:"age" json:"age"`
	Hypertension    int        `bson:"hypertension" json:"hypertension"`
	HeartDisease    int        `bson:"heart_disease" json:"heart_disease"`
	EverMarried     string     `bson:"ever_married" json:"ever_married"`
	WorkType        string     `bson:"work_type" json:"work_type"`
	ResidenceType   string     `bson:"Residence_type" json:"Residence_type"`
	AvgGlucoseLevel float64    `bson:"avg_glucose_level" json:"avg_glucose_level"`
	BMI             *float64   `bson:"bmi" json:"bmi"`
	SmokingStatus   string     `bson:"smoking_status" json:"smoking_status"`
	Stroke          int        `bson:"stroke" json:"stroke"`
	CreatedAt       time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt       *time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// Option is one choice of a select field.
type Option struct {
	Value string
	Label string
}

var (
	GenderOptions    = []Option{{"", "Select Gender"}, {"Male", "Male"}, {"Female", "Female"}, {"Other", "Other"}}
	FlagOptions      = []Option{{"0", "No"}, {"1", "Yes"}}
	StrokeOptions    = []Option{{"0", "No Stroke"}, {"1", "Had Stroke"}}
	MarriedOptions   = []Option{{"", "Select"}, {"No", "No"}, {"Yes", "Yes"}}
	ResidenceOptions = []Option{{"", "Select"}, {"Rural", "Rural"}, {"Urban", "Urban"}}

	WorkTypeOptions = []Option{
		{"", "Select Work Type"},
		{"children", "Children"},
		{"Govt_job", "Government Job"},
		{"Never_worked", "Never Worked"},
		{"Private", "Private"},
		{"Self-employed", "Self-employed"},
	}

	SmokingOptions = []Option{
		{"", "Select Status"},
		{"formerly smoked", "Formerly Smoked"},
		{"never smoked", "Never Smoked"},
		{"smokes", "Smokes"},
		{"Unknown", "Unknown"},
	}
)

// Form is the patient form as submitted: every value is still text.
type Form struct {
	Gender          string `form:"gender"`
	Age             string `form:"age"`
	Hypertension    string `form:"hypertension"`
	HeartDisease    string `form:"heart_disease"`
	EverMarried     string `form:"ever_married"`
	WorkType        string `form:"work_type"`
	ResidenceType   string `form:"Residence_type"`
	AvgGlucoseLevel string `form:"avg_glucose_level"`
	BMI             string `form:"bmi"`
	SmokingStatus   string `form:"smoking_status"`
	Stroke          string `form:"stroke"`
}

// fields is a Form after number parsing, ready for the validation rules.
type fields struct {
	Gender          string   `json:"gender" validate:"required,oneof=Male Female Other"`
	Age             *float64 `json:"age" validate:"required,gte=0,lte=120"`
	Hypertension    *int     `json:"hypertension" validate:"required,oneof=0 1"`
	HeartDisease    *int     `json:"heart_disease" validate:"required,oneof=0 1"`
	EverMarried     string   `json:"ever_married" validate:"required,oneof=Yes No"`
	WorkType        string   `json:"work_type" validate:"required,oneof=children Govt_job Never_worked Private Self-employed"`
	ResidenceType   string   `json:"Residence_type" validate:"required,oneof=Rural Urban"`
	AvgGlucoseLevel *float64 `json:"avg_glucose_level" validate:"required,gte=0,lte=500"`
	BMI             *float64 `json:"bmi" validate:"omitempty,gte=0,lte=100"`
	SmokingStatus   string   `json:"smoking_status" validate:"required,oneof='formerly smoked' 'never smoked' smokes Unknown"`
	Stroke          *int     `json:"stroke" validate:"required,oneof=0 1"`
}

var fieldMessages = validation.Messages{
	"gender":                     "Gender is required",
	"age.required":               "Age is required",
	"age":                        "Age must be between 0 and 120",
	"hypertension":               "Hypertension status is required",
	"heart_disease":              "Heart disease status is required",
	"ever_married":               "Marital status is required",
	"work_type":                  "Work type is required",
	"Residence_type":             "Residence type is required",
	"avg_glucose_level.required": "Glucose level is required",
	"avg_glucose_level":          "Glucose level must be between 0 and 500",
	"bmi":                        "BMI must be between 0 and 100",
	"smoking_status":             "Smoking status is required",
	"stroke":                     "Stroke status is required",
}

var numberMessages = map[string]string{
	"age":               "Age must be a valid number",
	"avg_glucose_level": "Glucose level must be a valid number",
	"bmi":               "BMI must be a valid number",
}

// validate checks every field and returns the patient it describes, without
// ID or timestamps. All failing fields are reported together.
func (f Form) validate(v *validation.Validator) (*Patient, error) {
	errs := apperr.NewValidationError()

	parsed := fields{
		Gender:        strings.TrimSpace(f.Gender),
		EverMarried:   strings.TrimSpace(f.EverMarried),
		WorkType:      strings.TrimSpace(f.WorkType),
		ResidenceType: strings.TrimSpace(f.ResidenceType),
		SmokingStatus: strings.TrimSpace(f.SmokingStatus),
	}
	parsed.Age = parseNumber(errs, "age", f.Age)
	parsed.AvgGlucoseLevel = parseNumber(errs, "avg_glucose_level", f.AvgGlucoseLevel)
	parsed.BMI = parseNumber(errs, "bmi", f.BMI)
	parsed.Hypertension = parseFlag(f.Hypertension)
	parsed.HeartDisease = parseFlag(f.HeartDisease)
	parsed.Stroke = parseFlag(f.Stroke)

	if err := v.Struct(parsed, fieldMessages); err != nil {
		verr, ok := apperr.AsValidation(err)
		if !ok {
			return nil, err
		}
		for field, msg := range verr.Fields {
			errs.Add(field, msg)
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	return &Patient{
		Gender:          parsed.Gender,
		Age:             *parsed.Age,
		Hypertension:    *parsed.Hypertension,
		HeartDisease:    *parsed.HeartDisease,
		EverMarried:     parsed.EverMarried,
		WorkType:        parsed.WorkType,
		ResidenceType:   parsed.ResidenceType,
		AvgGlucoseLevel: *parsed.AvgGlucoseLevel,
		BMI:             parsed.BMI,
		SmokingStatus:   parsed.SmokingStatus,
		Stroke:          *parsed.Stroke,
	}, nil
}

// parseNumber returns nil for an empty value. A value that is not a number
// is reported under field.
func parseNumber(errs *apperr.ValidationError, field, raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		errs.Add(field, numberMessages[field])
		return nil
	}
	return &n
}

func parseFlag(raw string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	return &n
}

// FormFromPatient fills a form with the stored values, for editing.
func FormFromPatient(p *Patient) Form {
	f := Form{
		Gender:          p.Gender,
		Age:             formatNumber(p.Age),
		Hypertension:    strconv.Itoa(p.Hypertension),
		HeartDisease:    strconv.Itoa(p.HeartDisease),
		EverMarried:     p.EverMarried,
		WorkType:        p.WorkType,
		ResidenceType:   p.ResidenceType,
		AvgGlucoseLevel: formatNumber(p.AvgGlucoseLevel),
		SmokingStatus:   p.SmokingStatus,
		Stroke:          strconv.Itoa(p.Stroke),
	}
	if p.BMI != nil {
		f.BMI = formatNumber(*p.BMI)
	}
	return f
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Stats summarizes stroke outcomes across all patients.
type Stats struct {
	Total            int64   `json:"total"`
	StrokeCount      int64   `json:"stroke_count"`
	NoStrokeCount    int64   `json:"no_stroke_count"`
	StrokePercentage float64 `json:"stroke_percentage"`
}

// NewStats derives the negative count and the percentage, rounded to two
// decimals. No patients is 0%.
func NewStats(total, strokes int64) Stats {
	s := Stats{Total: total, StrokeCount: strokes, NoStrokeCount: total - strokes}
	if total > 0 {
		s.StrokePercentage = math.Round(float64(strokes)/float64(total)*100*100) / 100
	}
	return s
}

// SearchField is a patient attribute that can be searched on.
type SearchField string

const (
	SearchByID            SearchField = "id"
	SearchByGender        SearchField = "gender"
	SearchByWorkType      SearchField = "work_type"
	SearchBySmokingStatus SearchField = "smoking_status"
)

// SearchFields lists the searchable fields with their labels, in form order.
var SearchFields = []Option{
	{string(SearchByID), "Patient ID"},
	{string(SearchByGender), "Gender"},
	{string(SearchByWorkType), "Work Type"},
	{string(SearchBySmokingStatus), "Smoking Status"},
}

// SearchLimit caps the number of search results.
const SearchLimit = 50

// Query is a parsed search. ID is set only for SearchByID.
type Query struct {
	Field SearchField
	Term  string
	ID    int64
}

// ParseQuery checks the field and term of a search.
func ParseQuery(field, term string) (Query, error) {
	q := Query{Field: SearchField(strings.TrimSpace(field)), Term: strings.TrimSpace(term)}
	errs := apperr.NewValidationError()

	switch q.Field {
	case SearchByID, SearchByGender, SearchByWorkType, SearchBySmokingStatus:
	default:
		errs.Add("search_field", "Please choose a valid search field.")
	}
	if q.Term == "" {
		errs.Add("search_term", "Please enter a search term")
	} else if q.Field == SearchByID {
		id, err := strconv.ParseInt(q.Term, 10, 64)
		if err != nil {
			errs.Add("search_term", "Patient ID must be a whole number.")
		}
		q.ID = id
	}

	return q, errs.Err()
}

// Matches reports whether p satisfies q: id is an exact match, gender a
// case-insensitive exact match, work type and smoking status
// case-insensitive prefix matches.
func (q Query) Matches(p *Patient) bool {
	switch q.Field {
	case SearchByID:
		return p.ID == q.ID
	case SearchByGender:
		return strings.EqualFold(p.Gender, q.Term)
	case SearchByWorkType:
		return hasPrefixFold(p.WorkType, q.Term)
	case SearchBySmokingStatus:
		return hasPrefixFold(p.SmokingStatus, q.Term)
	}
	return false
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
