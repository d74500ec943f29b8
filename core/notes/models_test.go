package notes

import "testing"

func strPtr(s string) *string { return &s }

func TestUpdateNoteApply(t *testing.T) {
	note := Note{
		ID:      "n1",
		Name:    "Algebra worksheet",
		Subject: "Math",
		Type:    TypeHomework,
		URL:     "https://files.test/algebra.pdf",
	}

	typ := TypeStudyNotes
	un := UpdateNote{Name: strPtr("Algebra answers"), Type: &typ}
	got := un.Apply(note)

	if got.Name != "Algebra answers" {
		t.Errorf("Name = %q", got.Name)
	}
	if got.Type != TypeStudyNotes {
		t.Errorf("Type = %v", got.Type)
	}
	// untouched fields survive
	if got.Subject != "Math" || got.URL != note.URL || got.ID != "n1" {
		t.Errorf("got = %+v", got)
	}
}

func TestUpdateNoteIsEmpty(t *testing.T) {
	if !(UpdateNote{}).IsEmpty() {
		t.Error("IsEmpty() = false for zero value")
	}
	if (UpdateNote{Description: strPtr("")}).IsEmpty() {
		t.Error("IsEmpty() = true with a set field")
	}
}
