package tuition

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core/user"
)

// DeterministicID derives a stable tuition ID from its identity tuple.
// The same (subject, lesson index, teacher, student set) always maps to the
// same UUID, regardless of generation order.
func DeterministicID(subject string, lessonIndex int, teacherID string, studentIDs []string) string {
	ids := append([]string(nil), studentIDs...)
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s:%s", subject, lessonIndex, teacherID, strings.Join(ids, ","))))
	id, _ := uuid.FromBytes(sum[:16]) // 16 bytes always fit
	return id.String()
}

// Generate builds the full tuition set from student profiles.
//
// Each subject declaration yields one tuition per weekly lesson. Students
// listed in each other's shared_with collapse into a single group tuition;
// the group is deduplicated on (student set, subject, lesson index) so it is
// generated once no matter which member's profile is visited first. Members
// without a profile of their own are dropped from the group.
func Generate(profiles []user.StudentProfile, now time.Time) []Tuition {
	byStudent := make(map[string]user.StudentProfile, len(profiles))
	for _, p := range profiles {
		byStudent[p.UserID] = p
	}

	seen := make(map[string]bool)
	var out []Tuition

	for _, p := range profiles {
		for _, decl := range p.Subjects {
			members := groupMembers(p, decl, byStudent)
			for lesson := 1; lesson <= decl.LessonsPerWeek; lesson++ {
				id := DeterministicID(decl.Name, lesson, decl.TeacherID, members)
				if seen[id] {
					continue
				}
				seen[id] = true
				out = append(out, buildTuition(id, decl.TeacherID, decl.Name, lesson, members, byStudent, now))
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func groupMembers(p user.StudentProfile, decl user.SubjectDecl, byStudent map[string]user.StudentProfile) []string {
	members := []string{p.UserID}
	for _, sid := range decl.SharedWith {
		other, ok := byStudent[sid]
		if !ok {
			continue
		}
		if declaresSubject(other, decl.Name, decl.TeacherID) {
			members = append(members, sid)
		}
	}
	sort.Strings(members)
	return members
}

func declaresSubject(p user.StudentProfile, subject, teacherID string) bool {
	for _, d := range p.Subjects {
		if d.Name == subject && d.TeacherID == teacherID {
			return true
		}
	}
	return false
}

func buildTuition(id, teacherID, subject string, lesson int, members []string, byStudent map[string]user.StudentProfile, now time.Time) Tuition {
	charges := make([]TemplateCharge, 0, len(members))
	var lo, hi int
	for _, sid := range members {
		p := byStudent[sid]
		charges = append(charges, TemplateCharge{
			StudentID:   sid,
			ParentID:    p.ParentID,
			CostPerHour: p.CostPerHour,
		})
		if p.MinDurationMins > lo {
			lo = p.MinDurationMins
		}
		if hi == 0 || p.MaxDurationMins < hi {
			hi = p.MaxDurationMins
		}
	}
	// longest duration every member allows; members' minimums win on conflict
	duration := hi
	if duration < lo {
		duration = lo
	}

	return Tuition{
		ID:           id,
		TeacherID:    teacherID,
		Subject:      subject,
		LessonIndex:  lesson,
		StudentIDs:   members,
		Charges:      charges,
		DurationMins: duration,
		CreatedAt:    now.UTC(),
	}
}
