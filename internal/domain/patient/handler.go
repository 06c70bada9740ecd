package patient

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/strokecare/strokecare/internal/platform/apperr"
	"github.com/strokecare/strokecare/internal/platform/web"
	"github.com/strokecare/strokecare/pkg/pagination"
)

type Handler struct {
	svc         *Service
	datasetPath string
	logger      zerolog.Logger
}

func NewHandler(svc *Service, datasetPath string, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, datasetPath: datasetPath, logger: logger}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/dashboard", h.Dashboard)
	e.POST("/load_dataset", h.LoadDataset)

	e.GET("/patients", h.List)
	e.GET("/patients/new", h.NewForm)
	e.POST("/patients/new", h.Create)
	e.GET("/patients/:id", h.Detail)
	e.GET("/patients/:id/edit", h.EditForm)
	e.POST("/patients/:id/edit", h.Update)
	e.POST("/patients/:id/delete", h.Delete)

	e.GET("/search", h.SearchForm)
	e.POST("/search", h.Search)
}

// -- View data --

type dashboardPage struct {
	Stats       Stats
	StatsError  bool
	DatasetPath string
}

type listPage struct {
	Page *pagination.Page[*Patient]
}

type detailPage struct {
	Patient *Patient
}

type formField struct {
	Name     string
	Label    string
	Value    string
	Error    string
	Required bool
	Options  []Option
}

type formPage struct {
	Editing bool
	ID      int64
	Action  string
	Fields  []formField
}

type searchPage struct {
	Field   string
	Term    string
	Fields  []Option
	Errors  map[string]string
	Results []*Patient
	Limit   int
}

func newFormPage(f Form, errs map[string]string) formPage {
	field := func(name, label, value string, required bool, options []Option) formField {
		return formField{Name: name, Label: label, Value: value, Error: errs[name], Required: required, Options: options}
	}
	return formPage{
		Action: "/patients/new",
		Fields: []formField{
			field("gender", "Gender", f.Gender, true, GenderOptions),
			field("age", "Age", f.Age, true, nil),
			field("hypertension", "Hypertension", f.Hypertension, true, FlagOptions),
			field("heart_disease", "Heart Disease", f.HeartDisease, true, FlagOptions),
			field("ever_married", "Ever Married", f.EverMarried, true, MarriedOptions),
			field("work_type", "Work Type", f.WorkType, true, WorkTypeOptions),
			field("Residence_type", "Residence Type", f.ResidenceType, true, ResidenceOptions),
			field("avg_glucose_level", "Average Glucose Level", f.AvgGlucoseLevel, true, nil),
			field("bmi", "BMI (Body Mass Index)", f.BMI, false, nil),
			field("smoking_status", "Smoking Status", f.SmokingStatus, true, SmokingOptions),
			field("stroke", "Stroke", f.Stroke, true, StrokeOptions),
		},
	}
}

func editFormPage(id int64, f Form, errs map[string]string) formPage {
	page := newFormPage(f, errs)
	page.Editing = true
	page.ID = id
	page.Action = fmt.Sprintf("/patients/%d/edit", id)
	return page
}

// patientID parses the :id path parameter. Anything but an integer is a
// missing page.
func patientID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusNotFound, "Patient not found.")
	}
	return id, nil
}

// -- Handlers --

func (h *Handler) Dashboard(c echo.Context) error {
	page := dashboardPage{DatasetPath: h.datasetPath}
	stats, err := h.svc.Stats(c.Request().Context())
	switch {
	case apperr.IsAuth(err):
		return web.RedirectToLogin(c)
	case err != nil:
		h.logger.Error().Err(err).Msg("dashboard statistics failed")
		web.AddFlash(c, web.FlashDanger, "Error loading dashboard data.")
		page.StatsError = true
	default:
		page.Stats = stats
	}
	return c.Render(http.StatusOK, "dashboard", web.Page{Title: "Dashboard", Data: page})
}

func (h *Handler) LoadDataset(c echo.Context) error {
	res, err := h.svc.LoadDataset(c.Request().Context(), h.datasetPath)
	switch {
	case apperr.IsAuth(err):
		return web.RedirectToLogin(c)
	case err != nil:
		h.logger.Error().Err(err).Str("path", h.datasetPath).Int("inserted", res.Inserted).Msg("dataset load failed")
		web.AddFlash(c, web.FlashDanger, "Error loading dataset.")
	default:
		web.AddFlash(c, web.FlashSuccess, fmt.Sprintf("Successfully loaded %d patient records!", res.Inserted))
		if res.Skipped > 0 {
			web.AddFlash(c, web.FlashWarning, fmt.Sprintf("Skipped %d malformed rows.", res.Skipped))
		}
	}
	return c.Redirect(http.StatusFound, "/dashboard")
}

func (h *Handler) List(c echo.Context) error {
	params := pagination.New(pagination.FromContext(c).Page, pagination.DefaultPageSize)
	page, err := h.svc.List(c.Request().Context(), params)
	if err != nil {
		if apperr.IsAuth(err) {
			return web.RedirectToLogin(c)
		}
		h.logger.Error().Err(err).Msg("patient list failed")
		web.AddFlash(c, web.FlashDanger, "Error loading patient data.")
		page = pagination.NewPage[*Patient](nil, 0, pagination.New(1, pagination.DefaultPageSize))
	}
	return c.Render(http.StatusOK, "patients", web.Page{Title: "Patients", Data: listPage{Page: page}})
}

func (h *Handler) Detail(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return web.Fail(c, err)
	}
	return c.Render(http.StatusOK, "patient_detail", web.Page{Title: fmt.Sprintf("Patient %d", id), Data: detailPage{Patient: p}})
}

func (h *Handler) NewForm(c echo.Context) error {
	if err := h.svc.Guard(c.Request().Context()); err != nil {
		return web.Fail(c, err)
	}
	return c.Render(http.StatusOK, "patient_form", web.Page{Title: "Add Patient", Data: newFormPage(Form{}, nil)})
}

func (h *Handler) Create(c echo.Context) error {
	var form Form
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}

	_, err := h.svc.Create(c.Request().Context(), form)
	if err == nil {
		web.AddFlash(c, web.FlashSuccess, "Patient added successfully!")
		return c.Redirect(http.StatusFound, "/patients")
	}
	if verr, ok := apperr.AsValidation(err); ok {
		return c.Render(http.StatusUnprocessableEntity, "patient_form", web.Page{Title: "Add Patient", Data: newFormPage(form, verr.Fields)})
	}
	if apperr.IsAuth(err) {
		return web.RedirectToLogin(c)
	}

	h.logger.Error().Err(err).Msg("patient create failed")
	web.AddFlash(c, web.FlashDanger, "Error adding patient. Please try again.")
	return c.Render(http.StatusInternalServerError, "patient_form", web.Page{Title: "Add Patient", Data: newFormPage(form, nil)})
}

func (h *Handler) EditForm(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return web.Fail(c, err)
	}
	page := editFormPage(id, FormFromPatient(p), nil)
	return c.Render(http.StatusOK, "patient_form", web.Page{Title: "Edit Patient", Data: page})
}

func (h *Handler) Update(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}
	var form Form
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}

	_, err = h.svc.Update(c.Request().Context(), id, form)
	if err == nil {
		web.AddFlash(c, web.FlashSuccess, "Patient updated successfully!")
		return c.Redirect(http.StatusFound, fmt.Sprintf("/patients/%d", id))
	}
	if verr, ok := apperr.AsValidation(err); ok {
		return c.Render(http.StatusUnprocessableEntity, "patient_form", web.Page{Title: "Edit Patient", Data: editFormPage(id, form, verr.Fields)})
	}
	if apperr.IsAuth(err) || errors.Is(err, apperr.ErrNotFound) {
		return web.Fail(c, err)
	}

	h.logger.Error().Err(err).Int64("patient_id", id).Msg("patient update failed")
	web.AddFlash(c, web.FlashDanger, "Error updating patient. Please try again.")
	return c.Render(http.StatusInternalServerError, "patient_form", web.Page{Title: "Edit Patient", Data: editFormPage(id, form, nil)})
}

// Delete reports a patient that is already gone as a notice.
func (h *Handler) Delete(c echo.Context) error {
	id, err := patientID(c)
	if err != nil {
		return err
	}

	err = h.svc.Delete(c.Request().Context(), id)
	switch {
	case err == nil:
		web.AddFlash(c, web.FlashSuccess, "Patient deleted successfully!")
	case apperr.IsAuth(err):
		return web.RedirectToLogin(c)
	case errors.Is(err, apperr.ErrNotFound):
		web.AddFlash(c, web.FlashWarning, "Patient not found.")
	default:
		h.logger.Error().Err(err).Int64("patient_id", id).Msg("patient delete failed")
		web.AddFlash(c, web.FlashDanger, "Error deleting patient.")
	}
	return c.Redirect(http.StatusFound, "/patients")
}

func newSearchPage(field, term string) searchPage {
	if field == "" {
		field = string(SearchByGender)
	}
	return searchPage{Field: field, Term: term, Fields: SearchFields, Limit: SearchLimit}
}

func (h *Handler) SearchForm(c echo.Context) error {
	if err := h.svc.Guard(c.Request().Context()); err != nil {
		return web.Fail(c, err)
	}
	return c.Render(http.StatusOK, "search", web.Page{Title: "Search", Data: newSearchPage("", "")})
}

func (h *Handler) Search(c echo.Context) error {
	field, term := c.FormValue("search_field"), c.FormValue("search_term")
	page := newSearchPage(field, term)

	results, err := h.svc.Search(c.Request().Context(), field, term)
	if err != nil {
		if apperr.IsAuth(err) {
			return web.RedirectToLogin(c)
		}
		if verr, ok := apperr.AsValidation(err); ok {
			page.Errors = verr.Fields
			return c.Render(http.StatusUnprocessableEntity, "search", web.Page{Title: "Search", Data: page})
		}
		h.logger.Error().Err(err).Msg("patient search failed")
		web.AddFlash(c, web.FlashDanger, "Error performing search.")
		return c.Render(http.StatusOK, "search", web.Page{Title: "Search", Data: page})
	}

	page.Results = results
	if len(results) == 0 {
		web.AddFlash(c, web.FlashInfo, "No patients found matching your search.")
	}
	return c.Render(http.StatusOK, "search", web.Page{Title: "Search", Data: page})
}
