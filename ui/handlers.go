package ui

import (
	"net/http"
	"strconv"
	"strings"

	"blockrand/app"
	"blockrand/domain/allocation"
	"blockrand/internal/errors"
	"blockrand/internal/randomization"
	"blockrand/ui/templates/fragments"
)

// formValues echoes the submitted form back after a failed submit
type formValues struct {
	SubjectID string
	Name      string
	Age       string
	Gender    string
}

type covariateField struct {
	Name   string
	Levels []string
}

type logRow struct {
	Index  int
	Record allocation.AssignmentRecord
}

type pageData struct {
	Title        string
	Form         formValues
	Genders      []allocation.Gender
	Covariates   []covariateField
	BlockSize    int
	BiasEnabled  bool
	PriorityMode randomization.PriorityMode
	Report       app.BalanceReport
	Assignments  []logRow
	Result       *app.EnrollmentResult
	Warning      string
	Error        string
}

func (a *App) newPageData() pageData {
	engine := a.enrollment.Engine()
	cfg := engine.Config()

	data := pageData{
		Title:        a.config.Title,
		Form:         formValues{Gender: string(allocation.Male)},
		Genders:      allocation.Genders(),
		BlockSize:    cfg.BlockSize,
		BiasEnabled:  cfg.BiasEnabled,
		PriorityMode: cfg.PriorityMode,
		Report:       a.balance.Report(),
		Assignments:  a.logRows(),
	}
	for _, d := range engine.Stratifier().Dimensions() {
		if cov, ok := d.(*randomization.CovariateDimension); ok {
			data.Covariates = append(data.Covariates, covariateField{Name: cov.Name(), Levels: cov.Levels()})
		}
	}
	return data
}

// logRows lists the newest assignments first
func (a *App) logRows() []logRow {
	records := a.enrollment.History()
	rows := make([]logRow, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		if a.config.LogLimit > 0 && len(rows) == a.config.LogLimit {
			break
		}
		rows = append(rows, logRow{Index: i + 1, Record: records[i]})
	}
	return rows
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	a.renderTemplate(w, http.StatusOK, fragments.Index, a.newPageData())
}

func (a *App) handleAssign(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		data := a.newPageData()
		data.Error = "Could not read the form."
		a.renderTemplate(w, http.StatusBadRequest, fragments.Index, data)
		return
	}

	form := formValues{
		SubjectID: strings.TrimSpace(r.PostFormValue("subject_id")),
		Name:      strings.TrimSpace(r.PostFormValue("name")),
		Age:       strings.TrimSpace(r.PostFormValue("age")),
		Gender:    r.PostFormValue("gender"),
	}

	age, err := strconv.Atoi(form.Age)
	if err != nil {
		data := a.newPageData()
		data.Form = form
		data.Error = "Please enter a valid age."
		a.renderTemplate(w, http.StatusBadRequest, fragments.Index, data)
		return
	}

	req := app.EnrollRequest{
		SubjectID: form.SubjectID,
		Name:      form.Name,
		Gender:    form.Gender,
		Age:       age,
	}
	for key, values := range r.PostForm {
		if name, ok := strings.CutPrefix(key, "cov_"); ok && len(values) > 0 {
			if req.Covariates == nil {
				req.Covariates = make(map[string]string)
			}
			req.Covariates[name] = values[0]
		}
	}

	result, err := a.enrollment.Enroll(r.Context(), req)
	switch {
	case err == nil:
		data := a.newPageData()
		data.Result = result
		a.renderTemplate(w, http.StatusOK, fragments.Index, data)
	case result != nil:
		data := a.newPageData()
		data.Result = result
		data.Warning = "The assignment was made but could not be saved: " + err.Error()
		a.renderTemplate(w, http.StatusOK, fragments.Index, data)
	default:
		data := a.newPageData()
		data.Form = form
		data.Error = err.Error()
		status := http.StatusInternalServerError
		if errors.GetCode(err) == errors.CodeInvalidInput {
			status = http.StatusBadRequest
		}
		a.renderTemplate(w, status, fragments.Index, data)
	}
}

func (a *App) handleFragmentBalance(w http.ResponseWriter, r *http.Request) {
	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	a.renderTemplate(w, http.StatusOK, fragments.Balance, a.balance.Report())
}

func (a *App) handleFragmentLog(w http.ResponseWriter, r *http.Request) {
	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	a.renderTemplate(w, http.StatusOK, fragments.Log, pageData{Assignments: a.logRows()})
}
