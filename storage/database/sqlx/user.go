package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

const userColumns = "id, name, username, email, is_active, roles, password_hash, timezone, currency, created_at, updated_at, last_login"

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func scanUser(row interface{ Scan(...interface{}) error }) (user.User, error) {
	var (
		usr       user.User
		roles     pq.StringArray
		hash      []byte
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&usr.ID, &usr.Name, &usr.Username, &usr.Email, &usr.IsActive, &roles,
		&hash, &usr.Timezone, &usr.Currency, &usr.CreatedAt, &usr.UpdatedAt, &lastLogin,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	usr.Roles = roles
	usr.PasswordHash = hash
	if lastLogin.Valid {
		usr.LastLogin = lastLogin.Time
	}
	return usr, nil
}

func (repo *userRepository) queryUsers(ctx context.Context, query string, args ...interface{}) ([]user.User, error) {
	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		usr, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, usr)
	}
	return users, rows.Err()
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	excludedIDs := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		excludedIDs = append(excludedIDs, usr.ID)
	}

	var uname, mail string
	query := `SELECT username, email FROM users WHERE (username = $1 OR email = $2) AND NOT (id = ANY($3)) LIMIT 1`
	err := repo.db.QueryRowContext(ctx, query, username, email, pq.Array(excludedIDs)).Scan(&uname, &mail)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	if uname == username {
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	query := `
INSERT INTO users (id, name, username, email, is_active, roles, password_hash, timezone, currency, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := repo.db.ExecContext(ctx, query,
		usr.ID, usr.Name, usr.Username, usr.Email, usr.IsActive, pq.Array(usr.Roles),
		usr.PasswordHash, usr.Timezone, usr.Currency, usr.CreatedAt, usr.UpdatedAt,
	)
	return usr, err
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	return scanUser(repo.db.QueryRowContext(ctx, query, id))
}

func (repo *userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE username = $1`, userColumns)
	return scanUser(repo.db.QueryRowContext(ctx, query, username))
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)
	return scanUser(repo.db.QueryRowContext(ctx, query, email))
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE username = $1 OR email = $1`, userColumns)
	return scanUser(repo.db.QueryRowContext(ctx, query, username))
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter, orderings ...core.DBOrdering) ([]user.User, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		conds = append(conds, fmt.Sprintf("(name ILIKE %s OR username ILIKE %s OR email ILIKE %s)", p, p, p))
	}
	if len(filter.Roles) > 0 {
		// prefix match so "teacher:" catches the whole role family
		var roleConds []string
		for _, role := range filter.Roles {
			roleConds = append(roleConds, fmt.Sprintf("EXISTS (SELECT 1 FROM unnest(roles) r WHERE r LIKE %s)", arg(role+"%")))
		}
		conds = append(conds, "("+strings.Join(roleConds, " OR ")+")")
	}
	if filter.IsActive != nil {
		conds = append(conds, "is_active = "+arg(*filter.IsActive))
	}
	if !filter.CreatedFrom.IsZero() {
		conds = append(conds, "created_at >= "+arg(filter.CreatedFrom))
	}
	if !filter.CreatedTo.IsZero() {
		conds = append(conds, "created_at <= "+arg(filter.CreatedTo))
	}

	query := fmt.Sprintf(`SELECT %s FROM users`, userColumns)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += orderBy(orderings, "created_at ASC")

	return repo.queryUsers(ctx, query, args...)
}

func (repo *userRepository) GetUserNames(ctx context.Context, ids ...string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	query, args, err := sqlx.In(`SELECT id, name FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	rows, err := repo.db.QueryContext(ctx, repo.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	sets := []string{"name = $2", "username = $3", "email = $4", "updated_at = $5"}
	args := []interface{}{usr.ID, usr.Name, usr.Username, usr.Email, usr.UpdatedAt}
	set := func(expr string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", expr, len(args)))
	}

	if usr.Roles != nil {
		set("roles", pq.Array(usr.Roles))
	}
	if usr.PasswordHash != nil {
		set("password_hash", usr.PasswordHash)
	}
	if isActive != nil {
		set("is_active", *isActive)
	}
	if usr.Timezone != "" {
		set("timezone", usr.Timezone)
	}
	if usr.Currency != "" {
		set("currency", usr.Currency)
	}
	if !usr.LastLogin.IsZero() {
		set("last_login", usr.LastLogin)
	}

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $1 RETURNING %s`, strings.Join(sets, ", "), userColumns)
	return scanUser(repo.db.QueryRowContext(ctx, query, args...))
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	query := `
INSERT INTO users (id, name, username, email, is_active, roles, password_hash, timezone, currency, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	username = EXCLUDED.username,
	email = EXCLUDED.email,
	is_active = EXCLUDED.is_active,
	roles = EXCLUDED.roles,
	password_hash = EXCLUDED.password_hash,
	timezone = EXCLUDED.timezone,
	currency = EXCLUDED.currency,
	updated_at = EXCLUDED.updated_at`
	_, err := repo.db.ExecContext(ctx, query,
		usr.ID, usr.Name, usr.Username, usr.Email, usr.IsActive, pq.Array(usr.Roles),
		usr.PasswordHash, usr.Timezone, usr.Currency, usr.CreatedAt, usr.UpdatedAt,
	)
	return usr, err
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return err
	}
	_, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...)
	return err
}

func (repo *userRepository) UpsertStudentProfile(ctx context.Context, profile user.StudentProfile) (user.StudentProfile, error) {
	subjects, err := json.Marshal(profile.Subjects)
	if err != nil {
		return user.StudentProfile{}, errors.Wrap(err, "encoding subjects")
	}

	query := `
INSERT INTO student_profiles (user_id, parent_id, grade, cost_per_hour, min_duration_mins, max_duration_mins, subjects)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id) DO UPDATE SET
	parent_id = EXCLUDED.parent_id,
	grade = EXCLUDED.grade,
	cost_per_hour = EXCLUDED.cost_per_hour,
	min_duration_mins = EXCLUDED.min_duration_mins,
	max_duration_mins = EXCLUDED.max_duration_mins,
	subjects = EXCLUDED.subjects`
	_, err = repo.db.ExecContext(ctx, query,
		profile.UserID, profile.ParentID, profile.Grade, profile.CostPerHour,
		profile.MinDurationMins, profile.MaxDurationMins, subjects,
	)
	return profile, err
}

func scanProfile(row interface{ Scan(...interface{}) error }) (user.StudentProfile, error) {
	var (
		p        user.StudentProfile
		cost     string
		subjects []byte
	)
	err := row.Scan(&p.UserID, &p.ParentID, &p.Grade, &cost, &p.MinDurationMins, &p.MaxDurationMins, &subjects)
	if err != nil {
		if err == sql.ErrNoRows {
			return user.StudentProfile{}, user.ErrNotFound
		}
		return user.StudentProfile{}, err
	}
	if p.CostPerHour, err = decimal.NewFromString(cost); err != nil {
		return user.StudentProfile{}, errors.Wrap(err, "decoding cost_per_hour")
	}
	if err = json.Unmarshal(subjects, &p.Subjects); err != nil {
		return user.StudentProfile{}, errors.Wrap(err, "decoding subjects")
	}
	return p, nil
}

const profileColumns = "user_id, parent_id, grade, cost_per_hour, min_duration_mins, max_duration_mins, subjects"

func (repo *userRepository) GetStudentProfile(ctx context.Context, userID string) (user.StudentProfile, error) {
	query := fmt.Sprintf(`SELECT %s FROM student_profiles WHERE user_id = $1`, profileColumns)
	return scanProfile(repo.db.QueryRowContext(ctx, query, userID))
}

func (repo *userRepository) QueryStudentProfiles(ctx context.Context) ([]user.StudentProfile, error) {
	query := fmt.Sprintf(`SELECT %s FROM student_profiles ORDER BY user_id`, profileColumns)
	return repo.queryProfiles(ctx, query)
}

func (repo *userRepository) QueryStudentProfilesByParent(ctx context.Context, parentID string) ([]user.StudentProfile, error) {
	query := fmt.Sprintf(`SELECT %s FROM student_profiles WHERE parent_id = $1 ORDER BY user_id`, profileColumns)
	return repo.queryProfiles(ctx, query, parentID)
}

func (repo *userRepository) queryProfiles(ctx context.Context, query string, args ...interface{}) ([]user.StudentProfile, error) {
	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []user.StudentProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func orderBy(orderings []core.DBOrdering, fallback string) string {
	if len(orderings) == 0 {
		return " ORDER BY " + fallback
	}
	parts := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		parts = append(parts, ord.String())
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
