// repository/postgres.go
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/untibullet/teamup-coach/internal/models"
)

// Postgres реализация Store поверх пула подключений pgx
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// MigratePostgres применяет миграции через stdlib-обертку над пулом
func MigratePostgres(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	return Migrate(db, "postgres")
}

func (r *Postgres) Close() error {
	r.pool.Close()
	return nil
}

// GetCurrentUser возвращает пользователя текущей сессии
func (r *Postgres) GetCurrentUser(ctx context.Context) (*models.User, error) {
	query := `
        SELECT u.id, u.email, u.nickname, u.main_position, u.current_team_id
        FROM session s
        JOIN users u ON u.id = s.user_id
        WHERE s.id = 1
    `
	var user models.User
	err := r.pool.QueryRow(ctx, query).Scan(
		&user.ID, &user.Email, &user.Nickname, &user.MainPosition, &user.CurrentTeamID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return &user, nil
}

// SetCurrentUser сохраняет пользователя и делает его текущим
func (r *Postgres) SetCurrentUser(ctx context.Context, user models.User) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := upsertUserPg(ctx, tx, user); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
        INSERT INTO session (id, user_id) VALUES (1, $1)
        ON CONFLICT (id) DO UPDATE SET user_id = excluded.user_id
    `, user.ID)
	if err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func upsertUserPg(ctx context.Context, tx pgx.Tx, user models.User) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO users (id, email, nickname, main_position, current_team_id)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO UPDATE
        SET email = excluded.email, nickname = excluded.nickname,
            main_position = excluded.main_position, current_team_id = excluded.current_team_id
    `, user.ID, user.Email, user.Nickname, user.MainPosition, user.CurrentTeamID)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// SaveTeam создает или обновляет команду
func (r *Postgres) SaveTeam(ctx context.Context, team models.Team) error {
	_, err := r.pool.Exec(ctx, teamUpsertPg, teamArgs(team)...)
	if err != nil {
		return fmt.Errorf("failed to upsert team: %w", err)
	}
	return nil
}

const teamUpsertPg = `
    INSERT INTO teams (id, name, short_name, region, level, member_count, max_members,
                       is_official, total_games, ai_reports, active_days, team_dna, captain_id)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    ON CONFLICT (id) DO UPDATE
    SET name = excluded.name, short_name = excluded.short_name, region = excluded.region,
        level = excluded.level, member_count = excluded.member_count, max_members = excluded.max_members,
        is_official = excluded.is_official, total_games = excluded.total_games,
        ai_reports = excluded.ai_reports, active_days = excluded.active_days,
        team_dna = excluded.team_dna, captain_id = excluded.captain_id
`

func teamArgs(t models.Team) []any {
	return []any{
		t.ID, t.Name, t.ShortName, t.Region, t.Level, t.MemberCount, t.MaxMembers,
		t.IsOfficial, t.TotalGames, t.AIReports, t.ActiveDays, string(t.TeamDNA), t.CaptainID,
	}
}

const teamColumns = `id, name, short_name, region, level, member_count, max_members,
    is_official, total_games, ai_reports, active_days, team_dna, captain_id`

// GetTeam получает команду по ID
func (r *Postgres) GetTeam(ctx context.Context, teamID string) (*models.Team, error) {
	var t models.Team
	err := r.pool.QueryRow(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1`, teamID).Scan(
		&t.ID, &t.Name, &t.ShortName, &t.Region, &t.Level, &t.MemberCount, &t.MaxMembers,
		&t.IsOfficial, &t.TotalGames, &t.AIReports, &t.ActiveDays, &t.TeamDNA, &t.CaptainID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return &t, nil
}

// AddGameRecord добавляет запись об игре и обновляет счетчики команды
func (r *Postgres) AddGameRecord(ctx context.Context, rec models.GameRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertGameRecordPg(ctx, tx, rec); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
        UPDATE teams
        SET total_games = total_games + 1,
            ai_reports = ai_reports + CASE WHEN $2::text <> '' THEN 1 ELSE 0 END
        WHERE id = $1
    `, rec.TeamID, rec.AIComment)
	if err != nil {
		return fmt.Errorf("failed to update team counters: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertGameRecordPg(ctx context.Context, tx pgx.Tx, rec models.GameRecord) error {
	feedbacks := rec.PositionFeedbacks
	if feedbacks == nil {
		feedbacks = []models.PositionFeedback{}
	}

	_, err := tx.Exec(ctx, `
        INSERT INTO game_records (id, team_id, team_name, opponent, game_date, result,
                                  feedback_tag, position_feedbacks, ai_comment, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `, rec.ID, rec.TeamID, rec.TeamName, rec.Opponent, rec.GameDate, string(rec.Result),
		string(rec.FeedbackTag), feedbacks, rec.AIComment, createdAtOrNow(rec.CreatedAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert game record: %w", err)
	}
	return nil
}

// GetTeamGameRecords возвращает игры команды в порядке добавления
func (r *Postgres) GetTeamGameRecords(ctx context.Context, teamID string) ([]models.GameRecord, error) {
	return r.queryGameRecords(ctx, `WHERE team_id = $1 ORDER BY seq`, teamID)
}

func (r *Postgres) queryGameRecords(ctx context.Context, where string, args ...any) ([]models.GameRecord, error) {
	query := `
        SELECT id, team_id, team_name, opponent, game_date, result,
               feedback_tag, position_feedbacks, ai_comment, created_at
        FROM game_records ` + where
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get game records: %w", err)
	}
	defer rows.Close()

	var records []models.GameRecord
	for rows.Next() {
		var rec models.GameRecord
		if err := rows.Scan(
			&rec.ID, &rec.TeamID, &rec.TeamName, &rec.Opponent, &rec.GameDate, &rec.Result,
			&rec.FeedbackTag, &rec.PositionFeedbacks, &rec.AIComment, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan game record: %w", err)
		}
		if len(rec.PositionFeedbacks) == 0 {
			rec.PositionFeedbacks = nil
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate game records: %w", err)
	}
	return records, nil
}

// CreateMatchRequest сохраняет новый запрос на матч
func (r *Postgres) CreateMatchRequest(ctx context.Context, req models.MatchRequest) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertMatchRequestPg(ctx, tx, req); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertMatchRequestPg(ctx context.Context, tx pgx.Tx, req models.MatchRequest) error {
	status := req.Status
	if status == "" {
		status = models.StatusPending
	}
	_, err := tx.Exec(ctx, `
        INSERT INTO match_requests (id, from_team_id, from_team_name, from_team_level, from_team_region,
                                    to_team_id, to_team_name, to_team_level, to_team_region,
                                    message, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `, req.ID, req.FromTeam.ID, req.FromTeam.Name, req.FromTeam.Level, req.FromTeam.Region,
		req.ToTeam.ID, req.ToTeam.Name, req.ToTeam.Level, req.ToTeam.Region,
		req.Message, string(status), createdAtOrNow(req.CreatedAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert match request: %w", err)
	}
	return nil
}

const matchRequestColumns = `id, from_team_id, from_team_name, from_team_level, from_team_region,
    to_team_id, to_team_name, to_team_level, to_team_region, message, status, created_at`

// GetMatchRequest получает запрос на матч по ID
func (r *Postgres) GetMatchRequest(ctx context.Context, requestID string) (*models.MatchRequest, error) {
	reqs, err := r.queryMatchRequests(ctx, `WHERE id = $1`, requestID)
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, ErrNotFound
	}
	return &reqs[0], nil
}

// ListMatchRequests возвращает запросы, адресованные команде, от новых к старым
func (r *Postgres) ListMatchRequests(ctx context.Context, toTeamID string, status models.MatchRequestStatus) ([]models.MatchRequest, error) {
	return r.queryMatchRequests(ctx,
		`WHERE to_team_id = $1 AND status = $2 ORDER BY created_at DESC, seq DESC`,
		toTeamID, string(status))
}

func (r *Postgres) queryMatchRequests(ctx context.Context, where string, args ...any) ([]models.MatchRequest, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+matchRequestColumns+` FROM match_requests `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get match requests: %w", err)
	}
	defer rows.Close()

	var reqs []models.MatchRequest
	for rows.Next() {
		var req models.MatchRequest
		if err := rows.Scan(
			&req.ID, &req.FromTeam.ID, &req.FromTeam.Name, &req.FromTeam.Level, &req.FromTeam.Region,
			&req.ToTeam.ID, &req.ToTeam.Name, &req.ToTeam.Level, &req.ToTeam.Region,
			&req.Message, &req.Status, &req.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan match request: %w", err)
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate match requests: %w", err)
	}
	return reqs, nil
}

// UpdateMatchRequestStatus переводит запрос из pending в конечный статус.
// Неизвестный ID и уже закрытый запрос не меняют состояние и не считаются ошибкой.
func (r *Postgres) UpdateMatchRequestStatus(ctx context.Context, requestID string, status models.MatchRequestStatus) error {
	if err := checkTerminalStatus(status); err != nil {
		return err
	}
	query := `UPDATE match_requests SET status = $1 WHERE id = $2 AND status = $3`
	if _, err := r.pool.Exec(ctx, query, string(status), requestID, string(models.StatusPending)); err != nil {
		return fmt.Errorf("failed to update match request status: %w", err)
	}
	return nil
}

// AddMatchedTeam сохраняет связь с командой-соперником
func (r *Postgres) AddMatchedTeam(ctx context.Context, m models.MatchedTeam) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertMatchedTeamPg(ctx, tx, m); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertMatchedTeamPg(ctx context.Context, tx pgx.Tx, m models.MatchedTeam) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO matched_teams (id, team_id, opponent_id, opponent_name, opponent_level, opponent_region, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, m.ID, m.TeamID, m.OpponentTeam.ID, m.OpponentTeam.Name, m.OpponentTeam.Level, m.OpponentTeam.Region,
		createdAtOrNow(m.CreatedAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert matched team: %w", err)
	}
	return nil
}

// ListMatchedTeams возвращает соперников команды от новых к старым
func (r *Postgres) ListMatchedTeams(ctx context.Context, teamID string) ([]models.MatchedTeam, error) {
	return r.queryMatchedTeams(ctx, `WHERE team_id = $1 ORDER BY created_at DESC, seq DESC`, teamID)
}

// DeleteMatchedTeam удаляет связь, только если она принадлежит команде teamID
func (r *Postgres) DeleteMatchedTeam(ctx context.Context, teamID, matchedID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM matched_teams WHERE id = $1 AND team_id = $2`, matchedID, teamID)
	if err != nil {
		return false, fmt.Errorf("failed to delete matched team: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Postgres) queryMatchedTeams(ctx context.Context, where string, args ...any) ([]models.MatchedTeam, error) {
	query := `
        SELECT id, team_id, opponent_id, opponent_name, opponent_level, opponent_region, created_at
        FROM matched_teams ` + where
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get matched teams: %w", err)
	}
	defer rows.Close()

	var matched []models.MatchedTeam
	for rows.Next() {
		var m models.MatchedTeam
		if err := rows.Scan(
			&m.ID, &m.TeamID, &m.OpponentTeam.ID, &m.OpponentTeam.Name,
			&m.OpponentTeam.Level, &m.OpponentTeam.Region, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan matched team: %w", err)
		}
		matched = append(matched, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate matched teams: %w", err)
	}
	return matched, nil
}

// GetAppData собирает полный снимок состояния
func (r *Postgres) GetAppData(ctx context.Context) (*models.AppData, error) {
	data := &models.AppData{}

	var userID string
	err := r.pool.QueryRow(ctx, `SELECT user_id FROM session WHERE id = 1`).Scan(&userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	data.CurrentUserID = userID

	rows, err := r.pool.Query(ctx, `SELECT id, email, nickname, main_position, current_team_id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Nickname, &u.MainPosition, &u.CurrentTeamID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		data.Users = append(data.Users, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	rows, err = r.pool.Query(ctx, `SELECT `+teamColumns+` FROM teams ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get teams: %w", err)
	}
	for rows.Next() {
		var t models.Team
		if err := rows.Scan(
			&t.ID, &t.Name, &t.ShortName, &t.Region, &t.Level, &t.MemberCount, &t.MaxMembers,
			&t.IsOfficial, &t.TotalGames, &t.AIReports, &t.ActiveDays, &t.TeamDNA, &t.CaptainID,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		data.Teams = append(data.Teams, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate teams: %w", err)
	}

	if data.GameRecords, err = r.queryGameRecords(ctx, `ORDER BY seq`); err != nil {
		return nil, err
	}
	if data.MatchRequests, err = r.queryMatchRequests(ctx, `ORDER BY seq`); err != nil {
		return nil, err
	}
	if data.MatchedTeams, err = r.queryMatchedTeams(ctx, `ORDER BY seq`); err != nil {
		return nil, err
	}

	return data, nil
}

// SetAppData целиком заменяет сохраненное состояние в одной транзакции
func (r *Postgres) SetAppData(ctx context.Context, data models.AppData) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"session", "matched_teams", "game_records", "match_requests", "teams", "users"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, u := range data.Users {
		if err := upsertUserPg(ctx, tx, u); err != nil {
			return err
		}
	}
	for _, t := range data.Teams {
		if _, err := tx.Exec(ctx, teamUpsertPg, teamArgs(t)...); err != nil {
			return fmt.Errorf("failed to insert team: %w", err)
		}
	}
	for _, rec := range data.GameRecords {
		if err := insertGameRecordPg(ctx, tx, rec); err != nil {
			return err
		}
	}
	for _, req := range data.MatchRequests {
		if err := insertMatchRequestPg(ctx, tx, req); err != nil {
			return err
		}
	}
	for _, m := range data.MatchedTeams {
		if err := insertMatchedTeamPg(ctx, tx, m); err != nil {
			return err
		}
	}

	if data.CurrentUserID != "" {
		_, err = tx.Exec(ctx, `INSERT INTO session (id, user_id) VALUES (1, $1)`, data.CurrentUserID)
		if err != nil {
			return fmt.Errorf("failed to set session: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func createdAtOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
