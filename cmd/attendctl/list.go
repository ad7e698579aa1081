package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/your-org/rollcall/internal/attendance"
	"github.com/your-org/rollcall/internal/models"
	"github.com/your-org/rollcall/pkg/dto"
)

var subjectsCmd = &cobra.Command{
	Use:   "subjects",
	Short: "List enrolled subjects",
	RunE:  runSubjects,
}

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "List attendance events for one day",
	Long: `List the check-ins of one calendar day in the order they were recorded.

Example:
  attendctl attendance --day 2026-03-02`,
	RunE: runAttendance,
}

func init() {
	rootCmd.AddCommand(subjectsCmd)
	rootCmd.AddCommand(attendanceCmd)

	attendanceCmd.Flags().String("day", "", "Day as YYYY-MM-DD (default: today in the attendance time zone)")
}

func runSubjects(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	subjects, err := db.ListSubjects(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list subjects: %w", err)
	}
	return printSubjects(cmd.OutOrStdout(), subjects)
}

func runAttendance(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Attendance.Location()
	if err != nil {
		return err
	}
	day, err := parseDay(mustGetString(cmd, "day"), time.Now(), loc)
	if err != nil {
		return err
	}

	db, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	events, err := db.ListEvents(cmd.Context(), day)
	if err != nil {
		return fmt.Errorf("failed to list attendance: %w", err)
	}
	return printEvents(cmd.OutOrStdout(), day, events, loc)
}

// parseDay resolves the --day flag; empty means today in loc.
func parseDay(s string, now time.Time, loc *time.Location) (time.Time, error) {
	if s == "" {
		return attendance.CalendarDay(now, loc), nil
	}
	d, err := time.ParseInLocation(dto.DayLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --day %q: want YYYY-MM-DD", s)
	}
	return d, nil
}

func printSubjects(out io.Writer, subjects []models.Subject) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SUBJECT\tNAME\tREFERENCES")
	for _, s := range subjects {
		fmt.Fprintf(w, "%s\t%s\t%d\n", s.SubjectID, s.DisplayName, s.ReferenceCount)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d subjects\n", len(subjects))
	return nil
}

func printEvents(out io.Writer, day time.Time, events []models.AttendanceEvent, loc *time.Location) error {
	fmt.Fprintf(out, "Attendance for %s\n\n", day.Format(dto.DayLayout))
	if len(events) == 0 {
		fmt.Fprintln(out, "No check-ins.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSUBJECT\tNAME\tCONFIDENCE\tSESSION")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\n",
			ev.Timestamp.In(loc).Format("15:04:05"), ev.SubjectID, ev.SubjectName, ev.Confidence, ev.SessionID)
	}
	return w.Flush()
}
