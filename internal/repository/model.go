package repository

import (
	"encoding/json"
	"reflect"

	"github.com/proenglish/go_proenglish/internal/model"
)

// Metadata holds versioning info for optimistic locking.
type Metadata struct {
	LastUpdate int64 `json:"lastUpdate"` // Unix timestamp in milliseconds
}

// DataDocument is the persisted state of the in-memory backend.
type DataDocument struct {
	Metadata     Metadata                `json:"metadata"`
	Users        []model.UserProfile     `json:"users" validate:"dive"`
	Courses      []model.Course          `json:"courses" validate:"dive"`
	Lessons      []model.Lesson          `json:"lessons" validate:"dive"`
	Challenges   []model.Challenge       `json:"challenges" validate:"dive"`
	Progress     []model.StudentProgress `json:"progress"`
	Achievements []model.Achievement     `json:"achievements" validate:"dive"`
	Transactions []model.Transaction     `json:"transactions" validate:"dive"`
}

// ApplyDefaults sets fallback values after decode.
func (d *DataDocument) ApplyDefaults() {
	if d.Users == nil {
		d.Users = []model.UserProfile{}
	}
	if d.Courses == nil {
		d.Courses = []model.Course{}
	}
	if d.Lessons == nil {
		d.Lessons = []model.Lesson{}
	}
	if d.Challenges == nil {
		d.Challenges = []model.Challenge{}
	}
	if d.Progress == nil {
		d.Progress = []model.StudentProgress{}
	}
	if d.Achievements == nil {
		d.Achievements = []model.Achievement{}
	}
	if d.Transactions == nil {
		d.Transactions = []model.Transaction{}
	}
	for i := range d.Courses {
		if d.Courses[i].Currency == "" {
			d.Courses[i].Currency = "AOA"
		}
	}
	for i := range d.Challenges {
		if d.Challenges[i].Options == nil {
			d.Challenges[i].Options = []model.ChallengeOption{}
		}
	}
	for i := range d.Progress {
		if d.Progress[i].CompletedChallenges == nil {
			d.Progress[i].CompletedChallenges = []string{}
		}
	}
}

// AreDataDocumentsEqual compares two DataDocuments ignoring Metadata.
func AreDataDocumentsEqual(a, b *DataDocument) bool {
	if a == nil || b == nil {
		return a == b
	}

	aBytes, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bBytes, err := json.Marshal(b)
	if err != nil {
		return false
	}

	var aMap, bMap map[string]interface{}
	if err := json.Unmarshal(aBytes, &aMap); err != nil {
		return false
	}
	if err := json.Unmarshal(bBytes, &bMap); err != nil {
		return false
	}

	delete(aMap, "metadata")
	delete(bMap, "metadata")

	return reflect.DeepEqual(aMap, bMap)
}
