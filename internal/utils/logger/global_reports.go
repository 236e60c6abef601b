package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

type StringListReport struct {
	Title string
	Items []string
}

var (
	GlobalStringListReport StringListReport
	reportMu               sync.Mutex
)

func init() {
	GlobalStringListReport = StringListReport{
		Title: "FetchedFiles",
		Items: []string{},
	}
}

// RecordFetched appends a fetched URL to the global report.
func RecordFetched(item string) {
	reportMu.Lock()
	defer reportMu.Unlock()
	GlobalStringListReport.Items = append(GlobalStringListReport.Items, item)
}

// FetchedItems returns a copy of the items recorded so far.
func FetchedItems() []string {
	reportMu.Lock()
	defer reportMu.Unlock()
	return append([]string(nil), GlobalStringListReport.Items...)
}

// WriteListFetchedToFile writes the GlobalStringListReport to a text file in
// reportDir as a list and clears it. The title is appended to the filename,
// e.g., fetchurl-FetchedFiles.txt. It returns the path written.
func WriteListFetchedToFile(reportDir string) (string, error) {
	reportMu.Lock()
	defer reportMu.Unlock()

	if err := os.MkdirAll(reportDir, 0755); err != nil {
		return "", fmt.Errorf("creating base path: %w", err)
	}

	// Sanitize the title for use in a filename
	title := GlobalStringListReport.Title
	if title == "" {
		title = "untitled"
	}
	safeTitle := ""
	for _, r := range title {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			safeTitle += string(r)
		} else {
			safeTitle += "_"
		}
	}

	reportFullPath := filepath.Join(reportDir, fmt.Sprintf("fetchurl-%s.txt", safeTitle))

	f, err := os.OpenFile(reportFullPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	for _, item := range GlobalStringListReport.Items {
		if _, err := fmt.Fprintln(f, item); err != nil {
			return "", fmt.Errorf("writing to file: %w", err)
		}
	}

	GlobalStringListReport.Items = []string{}
	if _, err := fmt.Fprintln(f); err != nil {
		return "", fmt.Errorf("writing new line to file: %w", err)
	}

	return reportFullPath, nil
}
