package dto

import "github.com/yigit/campuspass/internal/app/models"

// ImportRowError describes a spreadsheet row that was not imported
type ImportRowError struct {
	Sheet     string `json:"sheet"`
	Row       int    `json:"row"`
	Matricule string `json:"matricule,omitempty"`
	Error     string `json:"error"`
}

// ImportResult summarizes a student import
type ImportResult struct {
	TotalRows int              `json:"totalRows"`
	Inserted  int              `json:"inserted"`
	Failed    int              `json:"failed"`
	Skipped   []string         `json:"skippedSheets,omitempty"`
	Students  []models.Student `json:"students"`
	Errors    []ImportRowError `json:"errors"`
}
