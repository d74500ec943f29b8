package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/tuition"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound    = errors.New("ledger record not found")
	ErrForbidden   = errors.New("permission denied")
	ErrAlreadyVoid = errors.New("record is already void")
	// ErrIntegrity is returned when a void-and-recreate correction could not
	// be completed; the transaction is rolled back and no changes are applied.
	ErrIntegrity = errors.New("ledger correction failed, no changes applied")
)

type (
	// TuitionSource resolves tuition templates when SCHEDULED logs snapshot
	// their charges.
	TuitionSource interface {
		Get(ctx context.Context, id string) (tuition.Tuition, error)
	}

	// SummaryFilter optionally narrows a summary to one counterparty or student.
	SummaryFilter struct {
		TeacherID string `query:"teacher_id"`
		ParentID  string `query:"parent_id"`
		StudentID string `query:"student_id"`
	}

	Service struct {
		repo     Repository
		users    user.Service
		tuitions TuitionSource
		logger   core.Logger
		conf     *core.Config
	}
)

func NewService(repo Repository, usrSvc user.Service, tuitions TuitionSource, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		repo:     repo,
		users:    usrSvc,
		tuitions: tuitions,
		logger:   logger,
		conf:     conf,
	}
}

// ---------------------------------------------------------------------------
// Tuition logs

func (svc *Service) CreateTuitionLog(ctx context.Context, actor user.User, nl NewTuitionLog) (TuitionLog, error) {
	if !actor.IsTeacher() {
		return TuitionLog{}, ErrForbidden
	}

	log := TuitionLog{
		ID:          uuid.New().String(),
		TeacherID:   actor.ID,
		Subject:     nl.Subject,
		LessonIndex: nl.LessonIndex,
		StartTime:   nl.StartTime.UTC(),
		EndTime:     nl.EndTime.UTC(),
		Status:      LogStatusActive,
		CreateType:  nl.CreateType,
		CreatedAt:   time.Now().UTC(),
	}

	switch nl.CreateType {
	case CreateTypeScheduled:
		tut, err := svc.tuitions.Get(ctx, nl.TuitionID)
		if err != nil {
			return TuitionLog{}, errors.Wrap(err, "resolving tuition template")
		}
		if tut.TeacherID != actor.ID {
			return TuitionLog{}, ErrForbidden
		}
		log.TuitionID = tut.ID
		log.Subject = tut.Subject
		log.LessonIndex = tut.LessonIndex
		log.Charges = snapshotCharges(tut, log.Duration())
	case CreateTypeCustom:
		if err := svc.checkSubject(nl.Subject); err != nil {
			return TuitionLog{}, err
		}
		log.Charges = make([]LogCharge, 0, len(nl.Charges))
		for _, c := range nl.Charges {
			log.Charges = append(log.Charges, LogCharge{StudentID: c.StudentID, ParentID: c.ParentID, Cost: c.Cost})
		}
	}

	return svc.repo.CreateTuitionLog(ctx, log)
}

// snapshotCharges fixes the template's hourly rates into absolute amounts
// for the log's duration. Later template edits never touch past logs.
func snapshotCharges(tut tuition.Tuition, duration time.Duration) []LogCharge {
	hours := decimal.NewFromFloat(duration.Hours())
	charges := make([]LogCharge, 0, len(tut.Charges))
	for _, tc := range tut.Charges {
		charges = append(charges, LogCharge{
			StudentID: tc.StudentID,
			ParentID:  tc.ParentID,
			Cost:      tc.CostPerHour.Mul(hours).Round(2),
		})
	}
	return charges
}

func (svc *Service) GetTuitionLog(ctx context.Context, actor user.User, id string) (TuitionLog, error) {
	log, err := svc.repo.GetTuitionLog(ctx, id)
	if err != nil {
		return TuitionLog{}, err
	}
	if err := svc.authorizeLogAccess(ctx, actor, log); err != nil {
		return TuitionLog{}, err
	}
	return log, nil
}

// TeacherLog returns one log shaped for teachers and admins, with paid
// statuses reconciled over the owning teacher's full ACTIVE ledger.
func (svc *Service) TeacherLog(ctx context.Context, actor user.User, id string) (TeacherLogView, error) {
	log, err := svc.GetTuitionLog(ctx, actor, id)
	if err != nil {
		return TeacherLogView{}, err
	}

	logs, err := svc.repo.FilterTuitionLogs(ctx, LogFilter{TeacherID: log.TeacherID, Status: LogStatusActive})
	if err != nil {
		return TeacherLogView{}, errors.Wrap(err, "querying tuition logs")
	}
	paidByParent, err := svc.paymentTotalsByParent(ctx, log.TeacherID)
	if err != nil {
		return TeacherLogView{}, err
	}
	statuses, chargeStatuses := TeacherLedger(logs, paidByParent)

	names, err := svc.logNames(ctx, []TuitionLog{log})
	if err != nil {
		return TeacherLogView{}, err
	}
	var anchor time.Time
	if len(logs) > 0 {
		anchor = logs[0].StartTime
	}
	return NewTeacherLogView(log, statuses[log.ID], chargeStatuses[log.ID], names, anchor), nil
}

// ParentLog returns one log shaped for the viewing parent: their own cost
// share only, never the other parents' breakdown.
func (svc *Service) ParentLog(ctx context.Context, actor user.User, id string) (ParentLogView, error) {
	log, err := svc.GetTuitionLog(ctx, actor, id)
	if err != nil {
		return ParentLogView{}, err
	}

	logs, err := svc.repo.FilterTuitionLogs(ctx, LogFilter{ParentID: actor.ID, Status: LogStatusActive})
	if err != nil {
		return ParentLogView{}, errors.Wrap(err, "querying tuition logs")
	}
	ledger, err := svc.parentLedgerByTeacher(ctx, actor.ID, logs)
	if err != nil {
		return ParentLogView{}, err
	}
	names, err := svc.logNames(ctx, []TuitionLog{log})
	if err != nil {
		return ParentLogView{}, err
	}
	var anchor time.Time
	if len(logs) > 0 {
		anchor = logs[0].StartTime
	}
	return NewParentLogView(log, actor.ID, ledger[log.ID], names, anchor), nil
}

// StudentLog returns one log as plain lesson history. No money.
func (svc *Service) StudentLog(ctx context.Context, actor user.User, id string) (StudentLogView, error) {
	log, err := svc.GetTuitionLog(ctx, actor, id)
	if err != nil {
		return StudentLogView{}, err
	}
	names, err := svc.logNames(ctx, []TuitionLog{log})
	if err != nil {
		return StudentLogView{}, err
	}
	return NewStudentLogView(log, names), nil
}

func (svc *Service) VoidTuitionLog(ctx context.Context, actor user.User, id string) error {
	log, err := svc.repo.GetTuitionLog(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && log.TeacherID != actor.ID {
		return ErrForbidden
	}
	if log.Status != LogStatusActive {
		return ErrAlreadyVoid
	}
	return svc.repo.VoidTuitionLog(ctx, id)
}

// CorrectTuitionLog voids the record and inserts its replacement in a single
// transaction. The replacement carries a back-reference to the voided record.
func (svc *Service) CorrectTuitionLog(ctx context.Context, actor user.User, id string, nl NewTuitionLog) (TuitionLog, error) {
	old, err := svc.repo.GetTuitionLog(ctx, id)
	if err != nil {
		return TuitionLog{}, err
	}
	if !actor.IsAdmin() && old.TeacherID != actor.ID {
		return TuitionLog{}, ErrForbidden
	}
	if old.Status != LogStatusActive {
		return TuitionLog{}, ErrAlreadyVoid
	}

	repl := TuitionLog{
		ID:              uuid.New().String(),
		TeacherID:       old.TeacherID,
		Subject:         nl.Subject,
		LessonIndex:     nl.LessonIndex,
		StartTime:       nl.StartTime.UTC(),
		EndTime:         nl.EndTime.UTC(),
		Status:          LogStatusActive,
		CreateType:      nl.CreateType,
		CorrectedFromID: old.ID,
		CreatedAt:       time.Now().UTC(),
	}
	switch nl.CreateType {
	case CreateTypeScheduled:
		tut, err := svc.tuitions.Get(ctx, nl.TuitionID)
		if err != nil {
			return TuitionLog{}, errors.Wrap(err, "resolving tuition template")
		}
		if tut.TeacherID != old.TeacherID {
			return TuitionLog{}, ErrForbidden
		}
		repl.TuitionID = tut.ID
		repl.Subject = tut.Subject
		repl.LessonIndex = tut.LessonIndex
		repl.Charges = snapshotCharges(tut, repl.Duration())
	case CreateTypeCustom:
		if err := svc.checkSubject(nl.Subject); err != nil {
			return TuitionLog{}, err
		}
		repl.Charges = make([]LogCharge, 0, len(nl.Charges))
		for _, c := range nl.Charges {
			repl.Charges = append(repl.Charges, LogCharge{StudentID: c.StudentID, ParentID: c.ParentID, Cost: c.Cost})
		}
	}

	created, err := svc.repo.CorrectTuitionLog(ctx, old.ID, repl)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("correcting tuition log %s: %v", old.ID, err), err, actor)
		return TuitionLog{}, ErrIntegrity
	}
	return created, nil
}

// TeacherLogs returns a teacher's logs with per-charge paid statuses.
// Reconciliation always runs over the teacher's full ACTIVE ledger; the
// filter only narrows what is returned.
func (svc *Service) TeacherLogs(ctx context.Context, actor user.User, filter LogFilter) ([]TeacherLogView, error) {
	teacherID, err := svc.resolveTeacherID(actor, filter.TeacherID)
	if err != nil {
		return nil, err
	}

	logs, err := svc.repo.FilterTuitionLogs(ctx, LogFilter{TeacherID: teacherID, Status: LogStatusActive})
	if err != nil {
		return nil, errors.Wrap(err, "querying tuition logs")
	}
	paidByParent, err := svc.paymentTotalsByParent(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	statuses, chargeStatuses := TeacherLedger(logs, paidByParent)

	names, err := svc.logNames(ctx, logs)
	if err != nil {
		return nil, err
	}

	var anchor time.Time
	if len(logs) > 0 {
		anchor = logs[0].StartTime
	}

	views := make([]TeacherLogView, 0, len(logs))
	for _, log := range logs {
		if !matchLogFilter(log, filter) {
			continue
		}
		views = append(views, NewTeacherLogView(log, statuses[log.ID], chargeStatuses[log.ID], names, anchor))
	}
	return views, nil
}

// ParentLogs returns the logs charging a parent, reconciled per teacher.
func (svc *Service) ParentLogs(ctx context.Context, actor user.User, filter LogFilter) ([]ParentLogView, error) {
	parentID, err := svc.resolveParentID(ctx, actor, filter.ParentID)
	if err != nil {
		return nil, err
	}

	logs, err := svc.repo.FilterTuitionLogs(ctx, LogFilter{ParentID: parentID, Status: LogStatusActive})
	if err != nil {
		return nil, errors.Wrap(err, "querying tuition logs")
	}

	ledger, err := svc.parentLedgerByTeacher(ctx, parentID, logs)
	if err != nil {
		return nil, err
	}

	names, err := svc.logNames(ctx, logs)
	if err != nil {
		return nil, err
	}

	var anchor time.Time
	if len(logs) > 0 {
		anchor = logs[0].StartTime
	}

	views := make([]ParentLogView, 0, len(logs))
	for _, log := range logs {
		if !matchLogFilter(log, filter) {
			continue
		}
		views = append(views, NewParentLogView(log, parentID, ledger[log.ID], names, anchor))
	}
	return views, nil
}

// StudentLogs returns a student's lesson history. No money.
func (svc *Service) StudentLogs(ctx context.Context, actor user.User, filter LogFilter) ([]StudentLogView, error) {
	studentID, err := svc.resolveStudentID(ctx, actor, filter.StudentID)
	if err != nil {
		return nil, err
	}

	filter.StudentID = studentID
	filter.Status = LogStatusActive
	logs, err := svc.repo.FilterTuitionLogs(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying tuition logs")
	}

	names, err := svc.logNames(ctx, logs)
	if err != nil {
		return nil, err
	}

	views := make([]StudentLogView, 0, len(logs))
	for _, log := range logs {
		views = append(views, NewStudentLogView(log, names))
	}
	return views, nil
}

// ---------------------------------------------------------------------------
// Payment logs

func (svc *Service) CreatePaymentLog(ctx context.Context, actor user.User, np NewPaymentLog) (PaymentLog, error) {
	if !actor.IsTeacher() {
		return PaymentLog{}, ErrForbidden
	}
	log := PaymentLog{
		ID:          uuid.New().String(),
		ParentID:    np.ParentID,
		TeacherID:   actor.ID,
		AmountPaid:  np.AmountPaid,
		PaymentDate: np.PaymentDate.UTC(),
		Status:      LogStatusActive,
		Notes:       np.Notes,
		CreatedAt:   time.Now().UTC(),
	}
	return svc.repo.CreatePaymentLog(ctx, log)
}

func (svc *Service) VoidPaymentLog(ctx context.Context, actor user.User, id string) error {
	log, err := svc.repo.GetPaymentLog(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && log.TeacherID != actor.ID {
		return ErrForbidden
	}
	if log.Status != LogStatusActive {
		return ErrAlreadyVoid
	}
	return svc.repo.VoidPaymentLog(ctx, id)
}

func (svc *Service) CorrectPaymentLog(ctx context.Context, actor user.User, id string, np NewPaymentLog) (PaymentLog, error) {
	old, err := svc.repo.GetPaymentLog(ctx, id)
	if err != nil {
		return PaymentLog{}, err
	}
	if !actor.IsAdmin() && old.TeacherID != actor.ID {
		return PaymentLog{}, ErrForbidden
	}
	if old.Status != LogStatusActive {
		return PaymentLog{}, ErrAlreadyVoid
	}

	repl := PaymentLog{
		ID:              uuid.New().String(),
		ParentID:        np.ParentID,
		TeacherID:       old.TeacherID,
		AmountPaid:      np.AmountPaid,
		PaymentDate:     np.PaymentDate.UTC(),
		Status:          LogStatusActive,
		Notes:           np.Notes,
		CorrectedFromID: old.ID,
		CreatedAt:       time.Now().UTC(),
	}
	created, err := svc.repo.CorrectPaymentLog(ctx, old.ID, repl)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("correcting payment log %s: %v", old.ID, err), err, actor)
		return PaymentLog{}, ErrIntegrity
	}
	return created, nil
}

// Payments lists payments visible to the actor as role-shaped views.
func (svc *Service) Payments(ctx context.Context, actor user.User, filter PaymentFilter) ([]PaymentView, error) {
	var counterpartyOf func(PaymentLog) string
	switch {
	case actor.IsTeacher():
		filter.TeacherID = actor.ID
		counterpartyOf = func(p PaymentLog) string { return p.ParentID }
	case actor.IsParent():
		filter.ParentID = actor.ID
		counterpartyOf = func(p PaymentLog) string { return p.TeacherID }
	case actor.IsAdmin():
		if filter.TeacherID == "" && filter.ParentID == "" {
			return nil, core.NewValidationError(errors.New("one of teacher_id or parent_id is required"))
		}
		counterpartyOf = func(p PaymentLog) string { return p.ParentID }
	default:
		return nil, ErrForbidden
	}

	filter.Status = LogStatusActive
	logs, err := svc.repo.FilterPaymentLogs(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying payment logs")
	}

	ids := make([]string, 0, 2*len(logs))
	for _, p := range logs {
		ids = append(ids, p.ParentID, p.TeacherID)
	}
	names, err := svc.users.Names(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "resolving names")
	}

	currencies := make(map[string]string)
	for _, p := range logs {
		if _, ok := currencies[p.ParentID]; ok {
			continue
		}
		currency, err := svc.parentCurrency(ctx, p.ParentID)
		if err != nil {
			return nil, errors.Wrap(err, "resolving parent currency")
		}
		currencies[p.ParentID] = currency
	}

	views := make([]PaymentView, 0, len(logs))
	for _, p := range logs {
		views = append(views, NewPaymentView(p, names[counterpartyOf(p)], currencies[p.ParentID]))
	}
	return views, nil
}

// ---------------------------------------------------------------------------
// Summaries

// ParentSummary aggregates a parent's position. Either owes or holds credit
// per teacher, never both; with no debt the unpaid count is always zero.
func (svc *Service) ParentSummary(ctx context.Context, actor user.User, filter SummaryFilter) (ParentSummaryView, error) {
	parentID, err := svc.resolveParentID(ctx, actor, filter.ParentID)
	if err != nil {
		return ParentSummaryView{}, err
	}

	logs, err := svc.repo.FilterTuitionLogs(ctx, LogFilter{ParentID: parentID, StudentID: filter.StudentID, TeacherID: filter.TeacherID, Status: LogStatusActive})
	if err != nil {
		return ParentSummaryView{}, errors.Wrap(err, "querying tuition logs")
	}
	logs = trimCharges(logs, parentID, filter.StudentID)

	payments, err := svc.repo.FilterPaymentLogs(ctx, PaymentFilter{ParentID: parentID, TeacherID: filter.TeacherID, Status: LogStatusActive})
	if err != nil {
		return ParentSummaryView{}, errors.Wrap(err, "querying payment logs")
	}

	chargedByTeacher := make(map[string]decimal.Decimal)
	logsByTeacher := make(map[string][]TuitionLog)
	for _, log := range logs {
		chargedByTeacher[log.TeacherID] = chargedByTeacher[log.TeacherID].Add(log.ParentCost(parentID))
		logsByTeacher[log.TeacherID] = append(logsByTeacher[log.TeacherID], log)
	}
	paidByTeacher := paymentTotalsBy(payments, func(p PaymentLog) string { return p.TeacherID })

	due, credit := SummarizeBalances(chargedByTeacher, paidByTeacher)

	var unpaid int
	for teacherID, teacherLogs := range logsByTeacher {
		unpaid += UnpaidCount(ParentLedger(teacherLogs, parentID, paidByTeacher[teacherID]))
	}

	return NewParentSummaryView(ParentSummary{
		TotalDue:      due,
		CreditBalance: credit,
		UnpaidCount:   unpaid,
	}), nil
}

// TeacherSummary aggregates a teacher's position. The lessons-this-month
// window is anchored to the teacher's configured timezone, not server time.
func (svc *Service) TeacherSummary(ctx context.Context, actor user.User, filter SummaryFilter) (TeacherSummaryView, error) {
	teacherID, err := svc.resolveTeacherID(actor, filter.TeacherID)
	if err != nil {
		return TeacherSummaryView{}, err
	}
	teacher, err := svc.users.GetByID(ctx, teacherID)
	if err != nil {
		return TeacherSummaryView{}, errors.Wrap(err, "finding teacher")
	}

	logs, err := svc.repo.FilterTuitionLogs(ctx, LogFilter{TeacherID: teacherID, ParentID: filter.ParentID, StudentID: filter.StudentID, Status: LogStatusActive})
	if err != nil {
		return TeacherSummaryView{}, errors.Wrap(err, "querying tuition logs")
	}
	logs = trimCharges(logs, filter.ParentID, filter.StudentID)

	payments, err := svc.repo.FilterPaymentLogs(ctx, PaymentFilter{TeacherID: teacherID, ParentID: filter.ParentID, Status: LogStatusActive})
	if err != nil {
		return TeacherSummaryView{}, errors.Wrap(err, "querying payment logs")
	}

	chargedByParent := chargeTotalsBy(logs, func(c LogCharge) string { return c.ParentID })
	paidByParent := paymentTotalsBy(payments, func(p PaymentLog) string { return p.ParentID })

	// owed/held is the parents' due/credit seen from the other side
	owed, held := SummarizeBalances(chargedByParent, paidByParent)

	statuses, _ := TeacherLedger(logs, paidByParent)

	from, to := MonthWindow(time.Now(), teacher.Location())

	return NewTeacherSummaryView(TeacherSummary{
		TotalOwed:        owed,
		TotalCreditHeld:  held,
		LessonsThisMonth: CountLessonsBetween(logs, from, to),
		UnpaidLessons:    UnpaidCount(statuses),
	}), nil
}

// ---------------------------------------------------------------------------
// helpers

func (svc *Service) resolveTeacherID(actor user.User, requested string) (string, error) {
	switch {
	case actor.IsTeacher():
		if requested == "" || requested == actor.ID {
			return actor.ID, nil
		}
		return "", ErrForbidden
	case actor.IsAdmin():
		if requested == "" {
			return "", core.NewValidationError(errors.New("teacher_id is required"))
		}
		return requested, nil
	}
	return "", ErrForbidden
}

func (svc *Service) resolveParentID(ctx context.Context, actor user.User, requested string) (string, error) {
	switch {
	case actor.IsParent():
		if requested == "" || requested == actor.ID {
			return actor.ID, nil
		}
		return "", ErrForbidden
	case actor.IsAdmin():
		if requested == "" {
			return "", core.NewValidationError(errors.New("parent_id is required"))
		}
		return requested, nil
	}
	return "", ErrForbidden
}

func (svc *Service) resolveStudentID(ctx context.Context, actor user.User, requested string) (string, error) {
	switch {
	case actor.IsStudent():
		if requested == "" || requested == actor.ID {
			return actor.ID, nil
		}
		return "", ErrForbidden
	case actor.IsParent():
		if requested == "" {
			return "", core.NewValidationError(errors.New("student_id is required"))
		}
		children, err := svc.users.ChildrenOf(ctx, actor.ID)
		if err != nil {
			return "", errors.Wrap(err, "finding children")
		}
		for _, child := range children {
			if child.UserID == requested {
				return requested, nil
			}
		}
		return "", ErrForbidden
	case actor.IsAdmin():
		if requested == "" {
			return "", core.NewValidationError(errors.New("student_id is required"))
		}
		return requested, nil
	}
	return "", ErrForbidden
}

func (svc *Service) authorizeLogAccess(ctx context.Context, actor user.User, log TuitionLog) error {
	switch {
	case actor.IsAdmin():
		return nil
	case actor.IsTeacher():
		if log.TeacherID == actor.ID {
			return nil
		}
	case actor.IsParent():
		if hasParent(log, actor.ID) {
			return nil
		}
	case actor.IsStudent():
		for _, c := range log.Charges {
			if c.StudentID == actor.ID {
				return nil
			}
		}
	}
	return ErrNotFound
}

func (svc *Service) paymentTotalsByParent(ctx context.Context, teacherID string) (map[string]decimal.Decimal, error) {
	payments, err := svc.repo.FilterPaymentLogs(ctx, PaymentFilter{TeacherID: teacherID, Status: LogStatusActive})
	if err != nil {
		return nil, errors.Wrap(err, "querying payment logs")
	}
	return paymentTotalsBy(payments, func(p PaymentLog) string { return p.ParentID }), nil
}

// parentLedgerByTeacher reconciles the parent's logs teacher by teacher and
// merges the per-log statuses.
func (svc *Service) parentLedgerByTeacher(ctx context.Context, parentID string, logs []TuitionLog) (map[string]PaidStatus, error) {
	logsByTeacher := make(map[string][]TuitionLog)
	for _, log := range logs {
		logsByTeacher[log.TeacherID] = append(logsByTeacher[log.TeacherID], log)
	}

	payments, err := svc.repo.FilterPaymentLogs(ctx, PaymentFilter{ParentID: parentID, Status: LogStatusActive})
	if err != nil {
		return nil, errors.Wrap(err, "querying payment logs")
	}
	paidByTeacher := paymentTotalsBy(payments, func(p PaymentLog) string { return p.TeacherID })

	ledger := make(map[string]PaidStatus, len(logs))
	for teacherID, teacherLogs := range logsByTeacher {
		for id, status := range ParentLedger(teacherLogs, parentID, paidByTeacher[teacherID]) {
			ledger[id] = status
		}
	}
	return ledger, nil
}

func (svc *Service) logNames(ctx context.Context, logs []TuitionLog) (map[string]string, error) {
	seen := make(map[string]bool)
	ids := make([]string, 0, 4*len(logs))
	for _, log := range logs {
		if !seen[log.TeacherID] {
			seen[log.TeacherID] = true
			ids = append(ids, log.TeacherID)
		}
		for _, c := range log.Charges {
			if !seen[c.StudentID] {
				seen[c.StudentID] = true
				ids = append(ids, c.StudentID)
			}
		}
	}
	names, err := svc.users.Names(ctx, ids...)
	return names, errors.Wrap(err, "resolving names")
}

// checkSubject rejects subjects outside the configured closed set. SCHEDULED
// logs inherit their subject from the template and skip this.
func (svc *Service) checkSubject(subject string) error {
	if !svc.conf.IsKnownSubject(subject) {
		return core.NewValidationError(nil, core.FieldError{Field: "subject", Error: "unknown subject"})
	}
	return nil
}

func (svc *Service) parentCurrency(ctx context.Context, parentID string) (string, error) {
	parent, err := svc.users.GetByID(ctx, parentID)
	if err != nil {
		return "", err
	}
	return parent.Currency, nil
}

// trimCharges scopes each log's charge list to the given parent and/or
// student for scoped summaries. Empty arguments keep all charges.
func trimCharges(logs []TuitionLog, parentID, studentID string) []TuitionLog {
	if parentID == "" && studentID == "" {
		return logs
	}
	out := make([]TuitionLog, 0, len(logs))
	for _, log := range logs {
		trimmed := log
		trimmed.Charges = make([]LogCharge, 0, len(log.Charges))
		for _, c := range log.Charges {
			if parentID != "" && c.ParentID != parentID {
				continue
			}
			if studentID != "" && c.StudentID != studentID {
				continue
			}
			trimmed.Charges = append(trimmed.Charges, c)
		}
		if len(trimmed.Charges) > 0 {
			out = append(out, trimmed)
		}
	}
	return out
}

func matchLogFilter(log TuitionLog, filter LogFilter) bool {
	if filter.ParentID != "" && !hasParent(log, filter.ParentID) {
		return false
	}
	if filter.StudentID != "" {
		var found bool
		for _, c := range log.Charges {
			if c.StudentID == filter.StudentID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !filter.From.IsZero() && log.StartTime.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && !log.StartTime.Before(filter.To) {
		return false
	}
	return true
}
