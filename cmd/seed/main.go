package main

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/tawtheeq/tawtheeq-backend/config"
	"github.com/tawtheeq/tawtheeq-backend/internal/app/model"
	"github.com/tawtheeq/tawtheeq-backend/internal/db"
	"github.com/xuri/excelize/v2"
)

// Imports historical verification submissions from a legacy xlsx export.
// Expected columns (first row is the header):
//
//	A first_name, B last_name, C gender, D id_number, E date_of_birth,
//	F license_expiry, G vehicle_sequence_number, H contact_phone,
//	I status, J id_front_key, K license_front_key,
//	L vehicle_registration_key, M selfie_key
func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run cmd/seed/main.go <xlsx_file_path>")
	}
	filePath := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	fmt.Printf("Reading XLSX file: %s\n", filePath)
	submissions, skipped, err := readSubmissionsFromXLSX(filePath)
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}

	fmt.Printf("Rows to import: %d (skipped: %d)\n", len(submissions), skipped)
	if len(submissions) == 0 {
		fmt.Println("Nothing to import.")
		return
	}

	fmt.Print("Do you want to proceed with the import? (yes/no): ")
	var confirm string
	fmt.Scanln(&confirm)
	if confirm != "yes" && confirm != "y" {
		fmt.Println("Import cancelled.")
		return
	}

	batchSize := 500
	imported := 0
	for start := 0; start < len(submissions); start += batchSize {
		end := start + batchSize
		if end > len(submissions) {
			end = len(submissions)
		}
		batch := submissions[start:end]
		if err := db.GetDB().Create(&batch).Error; err != nil {
			log.Fatalf("Failed to import batch starting at row %d: %v", start, err)
		}
		imported += len(batch)
		fmt.Printf("Imported %d/%d\n", imported, len(submissions))
	}

	fmt.Println("Import completed successfully.")
}

var idNumberPattern = regexp.MustCompile(`^\d{10}$`)

var importableStatuses = map[string]model.SubmissionStatus{
	"pending":      model.StatusPending,
	"under_review": model.StatusUnderReview,
	"verified":     model.StatusVerified,
	"approved":     model.StatusApproved,
	"rejected":     model.StatusRejected,
}

func readSubmissionsFromXLSX(filePath string) ([]model.Submission, int, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, 0, err
	}
	if len(rows) < 2 {
		return nil, 0, fmt.Errorf("sheet %q has no data rows", sheet)
	}

	var submissions []model.Submission
	skipped := 0
	for i, row := range rows[1:] {
		submission, err := parseRow(row)
		if err != nil {
			fmt.Printf("Skipping row %d: %v\n", i+2, err)
			skipped++
			continue
		}
		submissions = append(submissions, *submission)
	}
	return submissions, skipped, nil
}

func parseRow(row []string) (*model.Submission, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	idNumber := cell(3)
	if !idNumberPattern.MatchString(idNumber) {
		return nil, fmt.Errorf("invalid id_number %q", idNumber)
	}

	dateOfBirth, err := parseDate(cell(4))
	if err != nil {
		return nil, fmt.Errorf("invalid date_of_birth: %w", err)
	}
	licenseExpiry, err := parseDate(cell(5))
	if err != nil {
		return nil, fmt.Errorf("invalid license_expiry: %w", err)
	}

	status, ok := importableStatuses[cell(8)]
	if !ok {
		return nil, fmt.Errorf("unknown status %q", cell(8))
	}

	submission := &model.Submission{
		FirstName:               cell(0),
		LastName:                cell(1),
		Gender:                  cell(2),
		IDNumber:                idNumber,
		DateOfBirth:             dateOfBirth,
		LicenseExpiry:           licenseExpiry,
		VehicleSequenceNumber:   cell(6),
		ContactPhone:            cell(7),
		Status:                  status,
		IDFrontPath:             cell(9),
		LicenseFrontPath:        cell(10),
		VehicleRegistrationPath: cell(11),
		SelfiePath:              cell(12),
	}
	if submission.FirstName == "" || submission.LastName == "" {
		return nil, fmt.Errorf("missing name")
	}
	if submission.IDFrontPath == "" || submission.LicenseFrontPath == "" ||
		submission.VehicleRegistrationPath == "" || submission.SelfiePath == "" {
		return nil, fmt.Errorf("missing document keys")
	}
	return submission, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "01-02-06", "1/2/06", "2006/01/02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}
