package main

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/autoescuela/campus/internal/exam"
	"github.com/autoescuela/campus/internal/model"
	"github.com/autoescuela/campus/internal/store"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import questions from JSON files into an exam or a subject bank",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	f := cmd.Flags()
	f.String("exam-id", "", "Target exam (fixed exams only; bank exams redirect to their subject)")
	f.String("subject-id", "", "Target subject question bank")
	cmd.MarkFlagsMutuallyExclusive("exam-id", "subject-id")
	cmd.MarkFlagsOneRequired("exam-id", "subject-id")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a cohort report as JSON or CSV",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("cohort-id", "", "Cohort to report on (required)")
	f.String("format", "json", "Output format (json, csv)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	_ = cmd.MarkFlagRequired("cohort-id")
	return cmd
}

func optionalID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func runImport(cmd *cobra.Command, args []string) error {
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	examID, err := optionalID(v.GetString("exam-id"))
	if err != nil {
		return fmt.Errorf("exam-id: %w", err)
	}
	subjectID, err := optionalID(v.GetString("subject-id"))
	if err != nil {
		return fmt.Errorf("subject-id: %w", err)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	svc := exam.NewService(db)

	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(ctx, path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}
		if storedHash == hash {
			slog.Info("questions file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("questions file changed since last import, skipping to avoid duplicating questions",
				"path", path)
			continue
		}

		var records []model.QuestionInput
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		n, err := svc.ImportQuestions(ctx, examID, subjectID, records)
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		if err := db.SetImportedFileHash(ctx, path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported questions", "path", path, "count", n)
	}
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func runExport(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)

	cohortID, err := uuid.Parse(v.GetString("cohort-id"))
	if err != nil {
		return fmt.Errorf("cohort-id: %w", err)
	}
	format := strings.ToLower(v.GetString("format"))
	if format != "json" && format != "csv" {
		return fmt.Errorf("unknown format %q (json, csv)", format)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	report, err := exam.NewService(db).CohortReport(cmd.Context(), cohortID)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if format == "csv" {
		err = writeReportCSV(w, report)
	} else {
		err = writeReportJSON(w, report)
	}
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	slog.Info("exported cohort report", "cohort", report.CohortLabel, "students", len(report.Students))
	return nil
}

func writeReportJSON(w io.Writer, report model.CohortReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// utf8BOM lets spreadsheet tools detect the encoding of accented names.
const utf8BOM = "\ufeff"

// writeReportCSV writes one row per student with a score column per exam.
// Exams a student never finished are left blank.
func writeReportCSV(w io.Writer, report model.CohortReport) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	header := []string{"nombre", "email", "cedula", "tiempo_total_min", "ultima_actividad"}
	for _, e := range report.Exams {
		header = append(header, e.Title)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, s := range report.Students {
		scores := make(map[uuid.UUID]float64, len(s.Results))
		for _, r := range s.Results {
			scores[r.ExamID] = r.Score
		}
		lastActive := ""
		if s.LastActiveAt != nil {
			lastActive = s.LastActiveAt.Format("2006-01-02 15:04")
		}
		row := []string{
			s.FullName,
			s.Email,
			s.Cedula,
			strconv.FormatInt(s.TotalTimeSeconds/60, 10),
			lastActive,
		}
		for _, e := range report.Exams {
			cell := ""
			if score, ok := scores[e.ID]; ok {
				cell = strconv.FormatFloat(score, 'f', 1, 64)
			}
			row = append(row, cell)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
