package documents

import (
	"math/rand"
	"testing"

	"loan-intake/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioCatalog() []models.DocumentDefinition {
	partner := &models.ConditionalDisplay{Field: "hasPartner", Value: true}
	return []models.DocumentDefinition{
		{ID: "id", Required: true, Category: models.CategoryIdentity},
		{ID: "payslip", Required: true, Category: models.CategoryIncome},
		{ID: "bank", Required: true, Category: models.CategoryFinancial, MultipleAllowed: true},
		{ID: "contract", Required: true, Category: models.CategoryProperty},
		{ID: "extra", Category: models.CategoryOther, MultipleAllowed: true},
		{ID: "partner-id", Required: true, Category: models.CategoryPartner, ConditionalDisplay: partner},
		{ID: "partner-payslip", Required: true, Category: models.CategoryPartner, ConditionalDisplay: partner},
	}
}

func file(id string) models.UploadedFile {
	return models.UploadedFile{ID: id, Name: id + ".pdf", Size: 10, VerificationStatus: models.VerificationPending}
}

func mustAdd(t *testing.T, docs []models.Document, docID, fileID string) []models.Document {
	t.Helper()
	out, _, err := AddFile(docs, docID, file(fileID))
	require.NoError(t, err)
	return out
}

func TestComputeProgress_Scenario(t *testing.T) {
	docs := Merge(scenarioCatalog(), nil)
	single := models.Flags{}

	assert.Equal(t, 0, ComputeProgress(docs, single, 0))

	docs = mustAdd(t, docs, "id", "f1")
	assert.Equal(t, 25, ComputeProgress(docs, single, 0))

	docs = mustAdd(t, docs, "payslip", "f2")
	docs = mustAdd(t, docs, "bank", "f3")
	docs = mustAdd(t, docs, "contract", "f4")
	assert.Equal(t, 100, ComputeProgress(docs, single, 25))

	assert.Equal(t, 67, ComputeProgress(docs, models.Flags{HasPartner: true}, 100))
}

func TestComputeProgress_OptionalUploadsDoNotCount(t *testing.T) {
	docs := mustAdd(t, Merge(scenarioCatalog(), nil), "extra", "f1")
	assert.Equal(t, 0, ComputeProgress(docs, models.Flags{}, 0))
}

func TestComputeProgress_NoRequiredKeepsPrevious(t *testing.T) {
	docs := Merge([]models.DocumentDefinition{
		{ID: "extra", Category: models.CategoryOther},
		{ID: "partner-id", Required: true, Category: models.CategoryPartner,
			ConditionalDisplay: &models.ConditionalDisplay{Field: "hasPartner", Value: true}},
	}, nil)

	assert.Equal(t, 42, ComputeProgress(docs, models.Flags{}, 42))
	assert.Equal(t, 0, ComputeProgress(nil, models.Flags{}, 0))
	assert.Equal(t, 17, ComputeProgress(nil, models.Flags{}, 17))
}

func TestComputeProgress_RoundsHalfUp(t *testing.T) {
	defs := make([]models.DocumentDefinition, 8)
	for i := range defs {
		defs[i] = models.DocumentDefinition{ID: string(rune('a' + i)), Required: true, Category: models.CategoryIdentity}
	}
	docs := mustAdd(t, Merge(defs, nil), "a", "f1")
	// 1/8 = 12.5
	assert.Equal(t, 13, ComputeProgress(docs, models.Flags{}, 0))

	defs = defs[:3]
	docs = mustAdd(t, Merge(defs, nil), "a", "f1")
	// 1/3 = 33.3
	assert.Equal(t, 33, ComputeProgress(docs, models.Flags{}, 0))
	docs = mustAdd(t, docs, "b", "f2")
	// 2/3 = 66.7
	assert.Equal(t, 67, ComputeProgress(docs, models.Flags{}, 0))
}

func TestComputeProgress_OrderInvariantAndIdempotent(t *testing.T) {
	docs := Merge(scenarioCatalog(), nil)
	docs = mustAdd(t, docs, "id", "f1")
	docs = mustAdd(t, docs, "partner-id", "f2")
	docs = mustAdd(t, docs, "extra", "f3")

	rng := rand.New(rand.NewSource(7))
	for _, flags := range []models.Flags{{}, {HasPartner: true}, {IsBusinessOwner: true}, {HasPartner: true, IsBusinessOwner: true}} {
		want := ComputeProgress(docs, flags, 5)
		assert.Equal(t, want, ComputeProgress(docs, flags, 5))

		for i := 0; i < 10; i++ {
			shuffled := append([]models.Document(nil), docs...)
			rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
			assert.Equal(t, want, ComputeProgress(shuffled, flags, 5))
		}
	}
}

func TestComputeProgress_PartnerToggleRestores(t *testing.T) {
	docs := Merge(scenarioCatalog(), nil)
	docs = mustAdd(t, docs, "id", "f1")
	docs = mustAdd(t, docs, "partner-id", "f2")

	on := models.Flags{HasPartner: true}
	before := ComputeProgress(docs, on, 0)
	beforeSet := Applicable(docs, on)

	off := ComputeProgress(docs, models.Flags{}, before)
	assert.Equal(t, 25, off)

	after := ComputeProgress(docs, on, off)
	assert.Equal(t, before, after)
	assert.Equal(t, beforeSet, Applicable(docs, on))
}
