package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/autoescuela/campus/internal/config"
	"github.com/autoescuela/campus/internal/model"
)

func TestCORSPreflight(t *testing.T) {
	policy, err := config.NewOriginPolicy([]string{"https://*.autoescuela.com.py", "https://panel.example.com"}, false)
	if err != nil {
		t.Fatalf("NewOriginPolicy: %v", err)
	}
	h := corsHandler(policy)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"https://campus.autoescuela.com.py", true},
		{"https://panel.example.com", true},
		{"https://evil.example.com", false},
		{"http://campus.autoescuela.com.py", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/exams", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get("Access-Control-Allow-Origin")
			if tt.allowed && got != tt.origin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.origin)
			}
			if !tt.allowed && got != "" {
				t.Errorf("Allow-Origin = %q, want none", got)
			}
		})
	}
}

func TestWriteReportCSV(t *testing.T) {
	signals, final := uuid.New(), uuid.New()
	last := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	report := model.CohortReport{
		CohortLabel: "Curso Tipo B Nro 200",
		Exams:       []model.ReportExam{{ID: signals, Title: "Señales"}, {ID: final, Title: "Final"}},
		Students: []model.StudentReport{
			{
				FullName: "Ana Benítez", Email: "ana@example.com", Cedula: "1234567",
				Results:          []model.ExamResult{{ExamID: final, Score: 87.5}},
				TotalTimeSeconds: 3720,
				LastActiveAt:     &last,
			},
			{FullName: "Beto; Gómez", Email: "beto@example.com"},
		},
	}

	var buf bytes.Buffer
	if err := writeReportCSV(&buf, report); err != nil {
		t.Fatalf("writeReportCSV: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "\ufeff") {
		t.Error("missing UTF-8 BOM")
	}
	lines := strings.Split(strings.TrimRight(strings.TrimPrefix(out, "\ufeff"), "\n"), "\n")
	want := []string{
		"nombre;email;cedula;tiempo_total_min;ultima_actividad;Señales;Final",
		"Ana Benítez;ana@example.com;1234567;62;2026-03-02 14:30;;87.5",
		`"Beto; Gómez";beto@example.com;;0;;;`,
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), out)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestSha256Sum(t *testing.T) {
	got := sha256sum([]byte("abc"))
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("sha256sum = %s, want %s", got, want)
	}
}
