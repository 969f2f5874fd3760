package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/examroutine/apps/api/echo"
	"github.com/trezcool/examroutine/core/exam"
	"github.com/trezcool/examroutine/testutil"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type httpErr struct {
	Error string `json:"error"`
}

type env struct {
	app    echoapi.Server
	svc    exam.Service
	tokens map[string]string
}

func setup(t *testing.T) env {
	t.Helper()
	conf := testutil.NewConfig()
	svc, _ := testutil.NewService(t, nopLogger{}, nil)
	_, translator := testutil.NewValidator()
	app := echoapi.NewServer(&echoapi.Options{
		Conf:           conf,
		Logger:         nopLogger{},
		Translator:     translator,
		ExamSvc:        svc,
		DisableReqLogs: true,
	})
	t.Cleanup(func() { _ = app.Close() })

	tokens := make(map[string]string)
	for name, actor := range map[string]exam.Actor{
		"admin":    testutil.Admin,
		"teacher":  testutil.Teacher,
		"teacher2": testutil.Teacher2,
		"outsider": {ID: "a-9", Username: "other", SchoolID: "s2", IsAdmin: true},
		"student":  {ID: "u-1", Username: "student", SchoolID: "s1"},
	} {
		token, err := echoapi.GenerateToken(echoapi.NewClaims(actor, conf), conf)
		require.NoError(t, err)
		tokens[name] = token
	}
	return env{app: app, svc: svc, tokens: tokens}
}

func (e env) do(t *testing.T, method, path, as string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != "" {
		req.Header.Set("Authorization", "Bearer "+e.tokens[as])
	}
	rec := httptest.NewRecorder()
	e.app.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestExamAPI_auth(t *testing.T) {
	e := setup(t)
	ex := testutil.CreateExam(t, e.svc, testutil.NewExam("Mid Term"))

	tests := []struct {
		name     string
		method   string
		path     string
		as       string
		body     interface{}
		wantCode int
	}{
		{"missing token", http.MethodGet, "/v1/exams", "", nil, http.StatusUnauthorized},
		{"teacher cannot create", http.MethodPost, "/v1/exams", "teacher", testutil.NewExam("Finals"), http.StatusForbidden},
		{"teacher cannot advance", http.MethodPost, "/v1/exams/" + ex.ID + "/advance", "teacher", nil, http.StatusForbidden},
		{"student cannot save routines", http.MethodPut, "/v1/exams/" + ex.ID + "/routines", "student", nil, http.StatusForbidden},
		{"other school sees nothing", http.MethodGet, "/v1/exams/" + ex.ID, "outsider", nil, http.StatusNotFound},
		{"unknown exam", http.MethodGet, "/v1/exams/nope", "admin", nil, http.StatusNotFound},
		{"student can print", http.MethodGet, "/v1/exams/" + ex.ID + "/print", "student", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, tt.method, tt.path, tt.as, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}

	rec := e.do(t, http.MethodGet, "/v1/exams", "", nil)
	var herr httpErr
	decode(t, rec, &herr)
	assert.Equal(t, "missing or malformed jwt", herr.Error)
}

func TestExamAPI_createAndQuery(t *testing.T) {
	e := setup(t)

	rec := e.do(t, http.MethodPost, "/v1/exams", "admin", testutil.NewExam("Mid Term"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created exam.Exam
	decode(t, rec, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "s1", created.SchoolID)
	assert.Equal(t, exam.StatusDraft, created.Status)
	assert.Equal(t, "Final Exam", created.AssessmentCategoryName)
	assert.Equal(t, "2024-03-02", created.EndDate)

	invalid := testutil.NewExam("")
	rec = e.do(t, http.MethodPost, "/v1/exams", "admin", invalid)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var fields map[string]string
	decode(t, rec, &fields)
	assert.Equal(t, map[string]string{"name": "exam name is required"}, fields)

	testutil.CreateExam(t, e.svc, testutil.NewExam("Unit Test 1"))

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"Mid Term", "Unit Test 1"}},
		{"?search=unit", []string{"Unit Test 1"}},
		{"?status=SCHEDULED", []string{}},
		{"?ordering=-name", []string{"Unit Test 1", "Mid Term"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := e.do(t, http.MethodGet, "/v1/exams"+tt.query, "teacher", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			var exams []exam.Exam
			decode(t, rec, &exams)
			names := make([]string, 0, len(exams))
			for _, ex := range exams {
				names = append(names, ex.Name)
			}
			assert.ElementsMatch(t, tt.want, names)
			if tt.query == "?ordering=-name" {
				assert.Equal(t, tt.want, names)
			}
		})
	}

	rec = e.do(t, http.MethodGet, "/v1/exams", "outsider", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestExamAPI_lifecycle(t *testing.T) {
	e := setup(t)
	ex := testutil.CreateExam(t, e.svc, testutil.NewExam("Mid Term"))
	base := "/v1/exams/" + ex.ID

	var got exam.Exam
	for _, want := range []exam.Status{exam.StatusScheduled, exam.StatusOngoing} {
		rec := e.do(t, http.MethodPost, base+"/advance", "admin", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &got)
		assert.Equal(t, want, got.Status)
	}

	rec := e.do(t, http.MethodPost, base+"/cancel", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &got)
	assert.Equal(t, exam.StatusCancelled, got.Status)

	rec = e.do(t, http.MethodPost, base+"/advance", "admin", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "terminal status")

	rec = e.do(t, http.MethodPost, base+"/publish", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &got)
	assert.True(t, got.IsPublished)

	rec = e.do(t, http.MethodPost, base+"/duplicate", "admin", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var dup exam.Exam
	decode(t, rec, &dup)
	assert.Equal(t, "Mid Term (Copy)", dup.Name)
	assert.Equal(t, exam.StatusDraft, dup.Status)
	assert.False(t, dup.IsPublished)

	rec = e.do(t, http.MethodDelete, base, "admin", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(t, http.MethodGet, base, "admin", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExamAPI_update(t *testing.T) {
	e := setup(t)
	ex := testutil.CreateExam(t, e.svc, testutil.NewExam("Mid Term"))

	ex.Name = "Mid Term Exam"
	ex.EndDate = ""
	ex.Subjects = append(ex.Subjects, testutil.Entry("sci", "", "2024-03-05"))
	rec := e.do(t, http.MethodPut, "/v1/exams/"+ex.ID, "admin", ex)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got exam.Exam
	decode(t, rec, &got)
	assert.Equal(t, "Mid Term Exam", got.Name)
	assert.Equal(t, "Science", got.Subjects[2].SubjectName, "names resolved from the catalog")
	assert.Equal(t, "2024-03-05", got.EndDate)
}

func TestExamAPI_routines(t *testing.T) {
	e := setup(t)
	ex := testutil.CreateExam(t, e.svc, testutil.NewExam("Mid Term"))
	base := "/v1/exams/" + ex.ID

	body := echoapi.RoutinesRequest{ClassRoutines: exam.ClassRoutines{
		{ClassID: "c1", Routine: []exam.RoutineEntry{testutil.Entry("sci", "Science", "2024-03-04")}},
	}}
	rec := e.do(t, http.MethodPut, base+"/routines", "teacher", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got exam.Exam
	decode(t, rec, &got)
	cr, ok := got.ClassRoutines.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "Grade 1", cr.ClassName)

	rec = e.do(t, http.MethodPut, base+"/routines", "teacher2", body)
	assert.Equal(t, http.StatusForbidden, rec.Code, "c1 is not assigned to teacher2")

	copyReq := echoapi.CopyRoutineRequest{
		CopyRequest: exam.CopyRequest{SourceClassID: "c1", TargetClassIDs: []string{"c2"}},
		Month:       "2024-03",
	}
	rec = e.do(t, http.MethodPost, base+"/routines/copy", "teacher", copyReq)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summary exam.CopySummary
	decode(t, rec, &summary)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, exam.Tally{Created: 1}, summary.PerClass["c2"])

	copyReq.Month = "2024-13"
	rec = e.do(t, http.MethodPost, base+"/routines/copy", "teacher", copyReq)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	copyReq.Month = ""
	copyReq.TargetClassIDs = []string{"c3"}
	rec = e.do(t, http.MethodPost, base+"/routines/copy", "teacher", copyReq)
	assert.Equal(t, http.StatusForbidden, rec.Code, "c3 is not assigned to teacher")

	rec = e.do(t, http.MethodGet, base+"/print?class_id=c2", "teacher", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var proj exam.Projection
	decode(t, rec, &proj)
	require.Len(t, proj.Routines, 1)
	assert.True(t, proj.Routines[0].FromClassRoutine)
	assert.Equal(t, "Grade 2", proj.Routines[0].ClassName)

	rec = e.do(t, http.MethodGet, base+"/print?class_id=c9", "teacher", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExamAPI_breakdowns(t *testing.T) {
	e := setup(t)
	ex := testutil.NewExam("Mid Term")
	ex.Subjects[0].TheoryMarks = testutil.IntPtr(70)
	ex.Subjects[0].PracticalMarks = testutil.IntPtr(20)
	ex = testutil.CreateExam(t, e.svc, ex)

	rec := e.do(t, http.MethodGet, "/v1/exams/"+ex.ID+"/breakdowns", "teacher", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var advisories []exam.Advisory
	decode(t, rec, &advisories)
	require.Len(t, advisories, 1)
	assert.Equal(t, "math", advisories[0].SubjectID)
}

func TestExamAPI_deleteMany(t *testing.T) {
	e := setup(t)
	ex1 := testutil.CreateExam(t, e.svc, testutil.NewExam("Mid Term"))
	ex2 := testutil.CreateExam(t, e.svc, testutil.NewExam("Finals"))

	rec := e.do(t, http.MethodDelete, "/v1/exams", "admin", echoapi.DeleteManyRequest{IDs: []string{ex1.ID, "missing"}})
	require.Equal(t, http.StatusMultiStatus, rec.Code, rec.Body.String())
	var resp struct {
		Attempted int               `json:"attempted"`
		Failed    map[string]string `json:"failed"`
		Result    struct {
			Deleted int `json:"deleted"`
		} `json:"result"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, 2, resp.Attempted)
	assert.Equal(t, map[string]string{"missing": exam.ErrNotFound.Error()}, resp.Failed)
	assert.Equal(t, 1, resp.Result.Deleted)

	rec = e.do(t, http.MethodDelete, "/v1/exams", "outsider", echoapi.DeleteManyRequest{IDs: []string{ex2.ID}})
	require.Equal(t, http.StatusMultiStatus, rec.Code)
	_, err := e.svc.Get(context.Background(), ex2.ID)
	assert.NoError(t, err, "exams of other schools are never deleted")

	rec = e.do(t, http.MethodDelete, "/v1/exams", "admin", echoapi.DeleteManyRequest{IDs: []string{ex2.ID}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted": 1}`, rec.Body.String())
}

func TestServer_home(t *testing.T) {
	e := setup(t)
	rec := e.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"api": true}`, rec.Body.String())
}
