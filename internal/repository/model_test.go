package repository

import "testing"

func TestApplyDefaults(t *testing.T) {
	doc := createTestDataDocument()
	doc.Courses[0].Currency = ""
	doc.Progress[0].CompletedChallenges = nil
	doc.ApplyDefaults()

	if doc.Courses[0].Currency != "AOA" {
		t.Errorf("expected currency AOA, got %q", doc.Courses[0].Currency)
	}
	if doc.Progress[0].CompletedChallenges == nil {
		t.Error("expected completed challenges to be initialised")
	}
	if doc.Challenges[0].Options == nil {
		t.Error("expected options to be initialised")
	}
	if doc.Achievements == nil || doc.Transactions == nil {
		t.Error("expected empty slices")
	}
}

func TestAreDataDocumentsEqual(t *testing.T) {
	a := createTestDataDocument()
	b := createTestDataDocument()
	b.Metadata.LastUpdate = 99999

	if !AreDataDocumentsEqual(&a, &b) {
		t.Error("expected documents differing only in metadata to be equal")
	}

	b.Courses[0].Title = "English A2"
	if AreDataDocumentsEqual(&a, &b) {
		t.Error("expected documents with different courses to differ")
	}

	if !AreDataDocumentsEqual(nil, nil) {
		t.Error("expected nil documents to be equal")
	}
	if AreDataDocumentsEqual(&a, nil) {
		t.Error("expected nil and non-nil to differ")
	}
}
