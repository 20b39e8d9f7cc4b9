package documents

import (
	"loan-intake/internal/common/errors"
	"loan-intake/internal/models"
)

// Merge attaches files to their catalog entries and derives each status.
func Merge(catalog []models.DocumentDefinition, files []models.UploadedFile) []models.Document {
	byDoc := make(map[string][]models.UploadedFile, len(catalog))
	for _, f := range files {
		byDoc[f.DocumentID] = append(byDoc[f.DocumentID], f)
	}
	docs := make([]models.Document, len(catalog))
	for i, def := range catalog {
		attached := byDoc[def.ID]
		docs[i] = models.Document{
			DocumentDefinition: def,
			UploadedFiles:      attached,
			Status:             models.DeriveStatus(attached),
		}
	}
	return docs
}

// Flatten returns the files of docs in document order.
func Flatten(docs []models.Document) []models.UploadedFile {
	var out []models.UploadedFile
	for _, d := range docs {
		out = append(out, d.UploadedFiles...)
	}
	return out
}

func indexOf(docs []models.Document, documentID string) int {
	for i, d := range docs {
		if d.ID == documentID {
			return i
		}
	}
	return -1
}

// AddFile attaches file to documentID. Single-slot documents drop their
// existing files, which are returned so their blobs can be deleted.
func AddFile(docs []models.Document, documentID string, file models.UploadedFile) ([]models.Document, []models.UploadedFile, error) {
	i := indexOf(docs, documentID)
	if i < 0 {
		return docs, nil, errors.NewDocumentNotFoundError(documentID)
	}
	out := append([]models.Document(nil), docs...)
	doc := out[i]
	file.DocumentID = documentID

	var replaced []models.UploadedFile
	if doc.MultipleAllowed {
		doc.UploadedFiles = append(append([]models.UploadedFile(nil), doc.UploadedFiles...), file)
	} else {
		replaced = doc.UploadedFiles
		doc.UploadedFiles = []models.UploadedFile{file}
	}
	doc.Status = models.DeriveStatus(doc.UploadedFiles)
	out[i] = doc
	return out, replaced, nil
}

// RemoveFile detaches fileID from documentID and returns the removed file.
func RemoveFile(docs []models.Document, documentID, fileID string) ([]models.Document, models.UploadedFile, error) {
	i := indexOf(docs, documentID)
	if i < 0 {
		return docs, models.UploadedFile{}, errors.NewDocumentNotFoundError(documentID)
	}
	out := append([]models.Document(nil), docs...)
	doc := out[i]

	var removed models.UploadedFile
	found := false
	kept := make([]models.UploadedFile, 0, len(doc.UploadedFiles))
	for _, f := range doc.UploadedFiles {
		if f.ID == fileID && !found {
			removed, found = f, true
			continue
		}
		kept = append(kept, f)
	}
	if !found {
		return docs, models.UploadedFile{}, errors.NewFileNotFoundError(fileID)
	}
	if len(kept) == 0 {
		kept = nil
	}
	doc.UploadedFiles = kept
	doc.Status = models.DeriveStatus(kept)
	out[i] = doc
	return out, removed, nil
}
