package documents

import "loan-intake/internal/models"

// ComputeProgress returns the percentage of applicable required documents
// that have at least one file, rounded half up. With no applicable required
// documents previous is returned unchanged.
func ComputeProgress(docs []models.Document, flags models.Flags, previous int) int {
	total, completed := 0, 0
	for _, d := range Applicable(docs, flags) {
		if !d.Required {
			continue
		}
		total++
		if len(d.UploadedFiles) > 0 {
			completed++
		}
	}
	if total == 0 {
		return previous
	}
	return (200*completed + total) / (2 * total)
}
