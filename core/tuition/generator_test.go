package tuition

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/darasa/core/user"
)

func profile(userID, parentID string, min, max int, subjects ...user.SubjectDecl) user.StudentProfile {
	return user.StudentProfile{
		UserID:          userID,
		ParentID:        parentID,
		CostPerHour:     decimal.RequireFromString("20"),
		MinDurationMins: min,
		MaxDurationMins: max,
		Subjects:        subjects,
	}
}

func TestDeterministicID(t *testing.T) {
	id1 := DeterministicID("Math", 1, "t1", []string{"s1", "s2"})
	id2 := DeterministicID("Math", 1, "t1", []string{"s2", "s1"})
	if id1 != id2 {
		t.Errorf("student order changed ID: %v != %v", id1, id2)
	}

	if id := DeterministicID("Math", 2, "t1", []string{"s1", "s2"}); id == id1 {
		t.Error("lesson index did not change ID")
	}
	if id := DeterministicID("Physics", 1, "t1", []string{"s1", "s2"}); id == id1 {
		t.Error("subject did not change ID")
	}
	if id := DeterministicID("Math", 1, "t2", []string{"s1", "s2"}); id == id1 {
		t.Error("teacher did not change ID")
	}
}

func TestGenerate(t *testing.T) {
	now := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("one tuition per weekly lesson", func(t *testing.T) {
		profiles := []user.StudentProfile{
			profile("s1", "p1", 45, 60, user.SubjectDecl{Name: "Math", TeacherID: "t1", LessonsPerWeek: 3}),
		}
		tuts := Generate(profiles, now)
		if len(tuts) != 3 {
			t.Fatalf("len(tuts) = %v; want 3", len(tuts))
		}
		indexes := make(map[int]bool)
		for _, tut := range tuts {
			indexes[tut.LessonIndex] = true
			if tut.Subject != "Math" || tut.TeacherID != "t1" {
				t.Errorf("tuition = %+v", tut)
			}
		}
		for i := 1; i <= 3; i++ {
			if !indexes[i] {
				t.Errorf("missing lesson index %d", i)
			}
		}
	})

	t.Run("shared lessons collapse into one group", func(t *testing.T) {
		profiles := []user.StudentProfile{
			profile("s1", "p1", 45, 90, user.SubjectDecl{Name: "Math", TeacherID: "t1", LessonsPerWeek: 1, SharedWith: []string{"s2"}}),
			profile("s2", "p2", 60, 120, user.SubjectDecl{Name: "Math", TeacherID: "t1", LessonsPerWeek: 1, SharedWith: []string{"s1"}}),
		}
		tuts := Generate(profiles, now)
		if len(tuts) != 1 {
			t.Fatalf("len(tuts) = %v; want 1", len(tuts))
		}
		tut := tuts[0]
		if got, want := len(tut.StudentIDs), 2; got != want {
			t.Fatalf("len(StudentIDs) = %v; want %v", got, want)
		}
		// longest duration both allow: max(min)=60, min(max)=90
		if tut.DurationMins != 90 {
			t.Errorf("DurationMins = %v; want 90", tut.DurationMins)
		}
		if len(tut.Charges) != 2 {
			t.Errorf("len(Charges) = %v; want 2", len(tut.Charges))
		}
	})

	t.Run("sharing is not inferred for undeclared subjects", func(t *testing.T) {
		profiles := []user.StudentProfile{
			profile("s1", "p1", 45, 60, user.SubjectDecl{Name: "Math", TeacherID: "t1", LessonsPerWeek: 1, SharedWith: []string{"s2"}}),
			profile("s2", "p2", 45, 60, user.SubjectDecl{Name: "Physics", TeacherID: "t1", LessonsPerWeek: 1}),
		}
		tuts := Generate(profiles, now)
		if len(tuts) != 2 {
			t.Fatalf("len(tuts) = %v; want 2", len(tuts))
		}
		for _, tut := range tuts {
			if len(tut.StudentIDs) != 1 {
				t.Errorf("tuition %s has group %v; want solo", tut.Subject, tut.StudentIDs)
			}
		}
	})

	t.Run("shared member without a profile is dropped", func(t *testing.T) {
		profiles := []user.StudentProfile{
			profile("s1", "p1", 45, 60, user.SubjectDecl{Name: "Math", TeacherID: "t1", LessonsPerWeek: 1, SharedWith: []string{"ghost"}}),
		}
		tuts := Generate(profiles, now)
		if len(tuts) != 1 {
			t.Fatalf("len(tuts) = %v; want 1", len(tuts))
		}
		if got := tuts[0].StudentIDs; len(got) != 1 || got[0] != "s1" {
			t.Errorf("StudentIDs = %v; want [s1]", got)
		}
	})

	t.Run("incompatible durations fall back to the longest minimum", func(t *testing.T) {
		profiles := []user.StudentProfile{
			profile("s1", "p1", 90, 120, user.SubjectDecl{Name: "Math", TeacherID: "t1", LessonsPerWeek: 1, SharedWith: []string{"s2"}}),
			profile("s2", "p2", 30, 45, user.SubjectDecl{Name: "Math", TeacherID: "t1", LessonsPerWeek: 1, SharedWith: []string{"s1"}}),
		}
		tuts := Generate(profiles, now)
		if len(tuts) != 1 {
			t.Fatalf("len(tuts) = %v; want 1", len(tuts))
		}
		// min(max)=45 < max(min)=90
		if tuts[0].DurationMins != 90 {
			t.Errorf("DurationMins = %v; want 90", tuts[0].DurationMins)
		}
	})

	t.Run("regeneration is stable", func(t *testing.T) {
		profiles := []user.StudentProfile{
			profile("s1", "p1", 45, 60,
				user.SubjectDecl{Name: "Math", TeacherID: "t1", LessonsPerWeek: 2},
				user.SubjectDecl{Name: "Physics", TeacherID: "t2", LessonsPerWeek: 1},
			),
			profile("s2", "p2", 45, 60, user.SubjectDecl{Name: "Math", TeacherID: "t1", LessonsPerWeek: 2, SharedWith: []string{"s1"}}),
		}
		first := Generate(profiles, now)
		second := Generate(profiles, now.Add(24*time.Hour))
		if len(first) != len(second) {
			t.Fatalf("len mismatch: %v != %v", len(first), len(second))
		}
		for i := range first {
			if first[i].ID != second[i].ID {
				t.Errorf("ID changed across regenerations: %v != %v", first[i].ID, second[i].ID)
			}
		}
	})
}
