package integration_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

type medicineBody struct {
	ID          string     `json:"id"`
	LastTakenAt *time.Time `json:"lastTakenAt"`
	NextDoseAt  *time.Time `json:"nextDoseAt"`
	History     []struct {
		ID      string    `json:"id"`
		TakenAt time.Time `json:"takenAt"`
		OnTime  bool      `json:"onTime"`
	} `json:"history"`
}

type errBody struct {
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func TestDoseScheduleFlow(t *testing.T) {
	a := newApp(t)
	ana := a.signUp(t, "Ana", "ana@example.com", "Str0ng!pass")
	bob := a.signUp(t, "Bob", "bob@example.com", "An0ther!pass")

	t0 := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	w := a.do(t, http.MethodPost, "/medicines", ana, map[string]any{
		"name": "Amoxicillin", "type": "PILL", "intervalHours": 8,
		"continuousUse": false, "lastTakenAt": t0, "totalPills": 21, "pillsPerDose": 1,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	med := decode[medicineBody](t, w)
	require.NotNil(t, med.NextDoseAt)
	require.True(t, med.NextDoseAt.Equal(t0.Add(8*time.Hour)))

	// two on-time doses follow the schedule regardless of the clock
	for i := 1; i <= 2; i++ {
		w = a.do(t, http.MethodPost, "/medicines/"+med.ID+"/history", ana, map[string]any{"onTime": true})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	// a manual dose at or before the cursor is rejected
	w = a.do(t, http.MethodPost, "/medicines/"+med.ID+"/history", ana, map[string]any{
		"onTime": false, "takenAt": t0.Add(16 * time.Hour),
	})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "non_monotonic_dose", decode[errBody](t, w).Error.Code)

	w = a.do(t, http.MethodPost, "/medicines/"+med.ID+"/history", ana, map[string]any{"onTime": false})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "missing_taken_at", decode[errBody](t, w).Error.Code)

	w = a.do(t, http.MethodGet, "/medicines/"+med.ID, ana, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[medicineBody](t, w)
	require.True(t, got.LastTakenAt.Equal(t0.Add(16*time.Hour)))
	require.True(t, got.NextDoseAt.Equal(t0.Add(24*time.Hour)))
	require.Len(t, got.History, 2)
	require.True(t, got.History[0].TakenAt.After(got.History[1].TakenAt), "history is newest first")

	// someone else's medicine and history look missing
	w = a.do(t, http.MethodGet, "/medicines/"+med.ID, bob, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	w = a.do(t, http.MethodPost, "/medicines/"+med.ID+"/history", bob, map[string]any{"onTime": true})
	require.Equal(t, http.StatusNotFound, w.Code)
	w = a.do(t, http.MethodGet, "/medicines/history/"+got.History[0].ID, bob, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	// deleting the newest entry keeps the cursor where it was
	w = a.do(t, http.MethodDelete, "/medicines/history/"+got.History[0].ID, ana, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = a.do(t, http.MethodGet, "/medicines/"+med.ID, ana, nil)
	got = decode[medicineBody](t, w)
	require.True(t, got.LastTakenAt.Equal(t0.Add(16*time.Hour)))
	require.Len(t, got.History, 1)

	// profile edits cannot move the cursor
	w = a.do(t, http.MethodPut, "/medicines/"+med.ID, ana, map[string]any{"name": "Amoxil", "lastTakenAt": t0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got = decode[medicineBody](t, w)
	require.True(t, got.LastTakenAt.Equal(t0.Add(16*time.Hour)))

	w = a.do(t, http.MethodDelete, "/medicines/"+med.ID, ana, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	_, meds, history, _, _ := a.store.Counts()
	require.Zero(t, meds)
	require.Zero(t, history)
}

func TestPasswordRecoveryFlow(t *testing.T) {
	a := newApp(t)
	a.signUp(t, "Ana", "ana@example.com", "Str0ng!pass")

	w := a.do(t, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "nobody@example.com"})
	require.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "ANA@example.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	code := a.mail.lastCode(t)

	reset := map[string]string{
		"email": "ana@example.com", "code": code,
		"newPassword": "N3w!passwd", "confirmPassword": "N3w!passwd",
	}
	w = a.do(t, http.MethodPost, "/auth/reset-password", "", reset)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// single use
	w = a.do(t, http.MethodPost, "/auth/reset-password", "", reset)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "invalid_code", decode[errBody](t, w).Error.Code)

	w = a.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "Str0ng!pass"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	a.login(t, "ana@example.com", "N3w!passwd")
}

func TestAccountFlow(t *testing.T) {
	a := newApp(t)
	ana := a.signUp(t, "Ana", "ana@example.com", "Str0ng!pass")
	a.signUp(t, "Bob", "bob@example.com", "An0ther!pass")

	w := a.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Ana Again", "email": "Ana@Example.com", "password": "Str0ng!pass", "birthDate": "1990-05-17",
	})
	require.Equal(t, http.StatusConflict, w.Code)

	w = a.do(t, http.MethodGet, "/users", ana, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(t, http.MethodGet, "/users/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(t, http.MethodPost, "/users/update-email", ana, map[string]string{"newEmail": "bob@example.com", "password": "Str0ng!pass"})
	require.Equal(t, http.StatusConflict, w.Code)

	w = a.do(t, http.MethodPost, "/users/update-password", ana, map[string]string{
		"currentPassword": "wrong", "newPassword": "N3w!passwd", "confirmPassword": "N3w!passwd",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "wrong_password", decode[errBody](t, w).Error.Code)

	w = a.do(t, http.MethodPut, "/users/update-profile", ana, map[string]string{"name": "Ana Maria"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "Ana Maria", decode[struct {
		Name string `json:"name"`
	}](t, w).Name)

	// deleting the account removes everything it owns
	w = a.do(t, http.MethodPost, "/medicines", ana, map[string]any{
		"name": "Vitamin D", "type": "LIQUID", "intervalHours": 24, "continuousUse": true, "totalMl": 30, "mlPerDose": 0.5,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = a.doMultipart(t, http.MethodPost, "/exams", ana, map[string]string{"name": "MRI", "date": "2026-01-10"}, map[string][]byte{"mri.png": pngBytes})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(t, http.MethodDelete, "/users/me", ana, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	users, meds, history, exams, photos := a.store.Counts()
	require.Equal(t, 1, users)
	require.Zero(t, meds+history+exams+photos)

	w = a.do(t, http.MethodGet, "/users/me", ana, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestExamFlow(t *testing.T) {
	a := newApp(t)
	ana := a.signUp(t, "Ana", "ana@example.com", "Str0ng!pass")
	bob := a.signUp(t, "Bob", "bob@example.com", "An0ther!pass")

	w := a.doMultipart(t, http.MethodPost, "/exams", ana,
		map[string]string{"name": "Chest X-ray", "date": "2026-02-03", "result": "no findings"},
		map[string][]byte{"front.png": pngBytes, "side.png": pngBytes})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	type examBody struct {
		ID     string  `json:"id"`
		Result *string `json:"result"`
		Photos []struct {
			ID       string `json:"id"`
			FileName string `json:"fileName"`
			MimeType string `json:"mimeType"`
		} `json:"photos"`
	}
	created := decode[examBody](t, w)
	require.NotNil(t, created.Result)
	require.Equal(t, "no findings", *created.Result)
	require.Len(t, created.Photos, 2)
	require.Equal(t, "image/png", created.Photos[0].MimeType)

	w = a.do(t, http.MethodGet, "/exams/photos/"+created.Photos[0].ID, ana, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "image/png", w.Header().Get("Content-Type"))
	require.Equal(t, pngBytes, w.Body.Bytes())

	w = a.do(t, http.MethodGet, "/exams/photos/"+created.Photos[0].ID, bob, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	w = a.do(t, http.MethodGet, "/exams/"+created.ID, bob, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	// JSON is refused on the multipart routes
	w = a.do(t, http.MethodPost, "/exams", ana, map[string]string{"name": "x"})
	require.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	w = a.doMultipart(t, http.MethodPut, "/exams/"+created.ID, ana,
		map[string]string{"removePhotos[]": created.Photos[0].ID, "result": ""}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[examBody](t, w)
	require.Nil(t, updated.Result)
	require.Len(t, updated.Photos, 1)

	w = a.do(t, http.MethodDelete, "/exams/"+created.ID, ana, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	_, _, _, exams, photos := a.store.Counts()
	require.Zero(t, exams)
	require.Zero(t, photos)
}

func TestOpsEndpoints(t *testing.T) {
	a := newApp(t)

	w := a.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = a.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodGet, "/docs/openapi.yaml", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "openapi: 3.0.3")
	w = a.do(t, http.MethodGet, "/docs", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Security-Policy"), "unpkg.com")
}
