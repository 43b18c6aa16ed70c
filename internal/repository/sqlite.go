// repository/sqlite.go
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/untibullet/teamup-coach/internal/models"
	_ "modernc.org/sqlite"
)

// SQLite реализация Store во встроенном файле, состояние одного клиента
type SQLite struct {
	db *sql.DB
}

// OpenSQLite открывает файл базы (":memory:" для временной) и применяет миграции
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// Одно соединение: in-memory база живет ровно в нем, а запись в SQLite все равно последовательна
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if err := Migrate(db, "sqlite3"); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (r *SQLite) Close() error {
	return r.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetCurrentUser возвращает пользователя текущей сессии
func (r *SQLite) GetCurrentUser(ctx context.Context) (*models.User, error) {
	query := `
        SELECT u.id, u.email, u.nickname, u.main_position, u.current_team_id
        FROM session s
        JOIN users u ON u.id = s.user_id
        WHERE s.id = 1
    `
	var user models.User
	err := r.db.QueryRowContext(ctx, query).Scan(
		&user.ID, &user.Email, &user.Nickname, &user.MainPosition, &user.CurrentTeamID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return &user, nil
}

// SetCurrentUser сохраняет пользователя и делает его текущим
func (r *SQLite) SetCurrentUser(ctx context.Context, user models.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertUserLite(ctx, tx, user); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO session (id, user_id) VALUES (1, ?)
        ON CONFLICT (id) DO UPDATE SET user_id = excluded.user_id
    `, user.ID)
	if err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func upsertUserLite(ctx context.Context, tx *sql.Tx, user models.User) error {
	_, err := tx.ExecContext(ctx, `
        INSERT INTO users (id, email, nickname, main_position, current_team_id)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT (id) DO UPDATE
        SET email = excluded.email, nickname = excluded.nickname,
            main_position = excluded.main_position, current_team_id = excluded.current_team_id
    `, user.ID, user.Email, user.Nickname, user.MainPosition, user.CurrentTeamID)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

const teamUpsertLite = `
    INSERT INTO teams (id, name, short_name, region, level, member_count, max_members,
                       is_official, total_games, ai_reports, active_days, team_dna, captain_id)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT (id) DO UPDATE
    SET name = excluded.name, short_name = excluded.short_name, region = excluded.region,
        level = excluded.level, member_count = excluded.member_count, max_members = excluded.max_members,
        is_official = excluded.is_official, total_games = excluded.total_games,
        ai_reports = excluded.ai_reports, active_days = excluded.active_days,
        team_dna = excluded.team_dna, captain_id = excluded.captain_id
`

// SaveTeam создает или обновляет команду
func (r *SQLite) SaveTeam(ctx context.Context, team models.Team) error {
	if _, err := r.db.ExecContext(ctx, teamUpsertLite, teamArgs(team)...); err != nil {
		return fmt.Errorf("failed to upsert team: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTeamLite(row rowScanner) (models.Team, error) {
	var t models.Team
	var dna string
	err := row.Scan(
		&t.ID, &t.Name, &t.ShortName, &t.Region, &t.Level, &t.MemberCount, &t.MaxMembers,
		&t.IsOfficial, &t.TotalGames, &t.AIReports, &t.ActiveDays, &dna, &t.CaptainID,
	)
	t.TeamDNA = models.TeamDNA(dna)
	return t, err
}

// GetTeam получает команду по ID
func (r *SQLite) GetTeam(ctx context.Context, teamID string) (*models.Team, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = ?`, teamID)
	t, err := scanTeamLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return &t, nil
}

// AddGameRecord добавляет запись об игре и обновляет счетчики команды
func (r *SQLite) AddGameRecord(ctx context.Context, rec models.GameRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertGameRecordLite(ctx, tx, rec); err != nil {
		return err
	}

	reports := 0
	if rec.AIComment != "" {
		reports = 1
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE teams SET total_games = total_games + 1, ai_reports = ai_reports + ? WHERE id = ?`,
		reports, rec.TeamID)
	if err != nil {
		return fmt.Errorf("failed to update team counters: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertGameRecordLite(ctx context.Context, tx *sql.Tx, rec models.GameRecord) error {
	feedbacks := rec.PositionFeedbacks
	if feedbacks == nil {
		feedbacks = []models.PositionFeedback{}
	}
	encoded, err := json.Marshal(feedbacks)
	if err != nil {
		return fmt.Errorf("failed to encode position feedbacks: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO game_records (id, team_id, team_name, opponent, game_date, result,
                                  feedback_tag, position_feedbacks, ai_comment, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, rec.ID, rec.TeamID, rec.TeamName, rec.Opponent, rec.GameDate, string(rec.Result),
		string(rec.FeedbackTag), string(encoded), rec.AIComment, unixNano(createdAtOrNow(rec.CreatedAt)))
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert game record: %w", err)
	}
	return nil
}

// GetTeamGameRecords возвращает игры команды в порядке добавления
func (r *SQLite) GetTeamGameRecords(ctx context.Context, teamID string) ([]models.GameRecord, error) {
	return r.queryGameRecords(ctx, `WHERE team_id = ? ORDER BY seq`, teamID)
}

func (r *SQLite) queryGameRecords(ctx context.Context, where string, args ...any) ([]models.GameRecord, error) {
	query := `
        SELECT id, team_id, team_name, opponent, game_date, result,
               feedback_tag, position_feedbacks, ai_comment, created_at
        FROM game_records ` + where
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get game records: %w", err)
	}
	defer rows.Close()

	var records []models.GameRecord
	for rows.Next() {
		var (
			rec                       models.GameRecord
			result, tag, feedbacksRaw string
			createdAt                 int64
		)
		if err := rows.Scan(
			&rec.ID, &rec.TeamID, &rec.TeamName, &rec.Opponent, &rec.GameDate, &result,
			&tag, &feedbacksRaw, &rec.AIComment, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan game record: %w", err)
		}
		rec.Result = models.GameResult(result)
		rec.FeedbackTag = models.FeedbackTag(tag)
		rec.CreatedAt = fromUnixNano(createdAt)
		if err := json.Unmarshal([]byte(feedbacksRaw), &rec.PositionFeedbacks); err != nil {
			return nil, fmt.Errorf("failed to decode position feedbacks: %w", err)
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
func (r *SQLite) CreateMatchRequest(ctx context.Context, req models.MatchRequest) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertMatchRequestLite(ctx, tx, req); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertMatchRequestLite(ctx context.Context, tx *sql.Tx, req models.MatchRequest) error {
	status := req.Status
	if status == "" {
		status = models.StatusPending
	}
	_, err := tx.ExecContext(ctx, `
        INSERT INTO match_requests (id, from_team_id, from_team_name, from_team_level, from_team_region,
                                    to_team_id, to_team_name, to_team_level, to_team_region,
                                    message, status, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, req.ID, req.FromTeam.ID, req.FromTeam.Name, req.FromTeam.Level, req.FromTeam.Region,
		req.ToTeam.ID, req.ToTeam.Name, req.ToTeam.Level, req.ToTeam.Region,
		req.Message, string(status), unixNano(createdAtOrNow(req.CreatedAt)))
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert match request: %w", err)
	}
	return nil
}

// GetMatchRequest получает запрос на матч по ID
func (r *SQLite) GetMatchRequest(ctx context.Context, requestID string) (*models.MatchRequest, error) {
	reqs, err := r.queryMatchRequests(ctx, `WHERE id = ?`, requestID)
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, ErrNotFound
	}
	return &reqs[0], nil
}

// ListMatchRequests возвращает запросы, адресованные команде, от новых к старым
func (r *SQLite) ListMatchRequests(ctx context.Context, toTeamID string, status models.MatchRequestStatus) ([]models.MatchRequest, error) {
	return r.queryMatchRequests(ctx,
		`WHERE to_team_id = ? AND status = ? ORDER BY created_at DESC, seq DESC`,
		toTeamID, string(status))
}

func (r *SQLite) queryMatchRequests(ctx context.Context, where string, args ...any) ([]models.MatchRequest, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+matchRequestColumns+` FROM match_requests `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get match requests: %w", err)
	}
	defer rows.Close()

	var reqs []models.MatchRequest
	for rows.Next() {
		var (
			req       models.MatchRequest
			status    string
			createdAt int64
		)
		if err := rows.Scan(
			&req.ID, &req.FromTeam.ID, &req.FromTeam.Name, &req.FromTeam.Level, &req.FromTeam.Region,
			&req.ToTeam.ID, &req.ToTeam.Name, &req.ToTeam.Level, &req.ToTeam.Region,
			&req.Message, &status, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan match request: %w", err)
		}
		req.Status = models.MatchRequestStatus(status)
		req.CreatedAt = fromUnixNano(createdAt)
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate match requests: %w", err)
	}
	return reqs, nil
}

// UpdateMatchRequestStatus переводит запрос из pending в конечный статус.
// Неизвестный ID и уже закрытый запрос не меняют состояние и не считаются ошибкой.
func (r *SQLite) UpdateMatchRequestStatus(ctx context.Context, requestID string, status models.MatchRequestStatus) error {
	if err := checkTerminalStatus(status); err != nil {
		return err
	}
	query := `UPDATE match_requests SET status = ? WHERE id = ? AND status = ?`
	if _, err := r.db.ExecContext(ctx, query, string(status), requestID, string(models.StatusPending)); err != nil {
		return fmt.Errorf("failed to update match request status: %w", err)
	}
	return nil
}

// AddMatchedTeam сохраняет связь с командой-соперником
func (r *SQLite) AddMatchedTeam(ctx context.Context, m models.MatchedTeam) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertMatchedTeamLite(ctx, tx, m); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertMatchedTeamLite(ctx context.Context, tx *sql.Tx, m models.MatchedTeam) error {
	_, err := tx.ExecContext(ctx, `
        INSERT INTO matched_teams (id, team_id, opponent_id, opponent_name, opponent_level, opponent_region, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `, m.ID, m.TeamID, m.OpponentTeam.ID, m.OpponentTeam.Name, m.OpponentTeam.Level, m.OpponentTeam.Region,
		unixNano(createdAtOrNow(m.CreatedAt)))
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert matched team: %w", err)
	}
	return nil
}

// ListMatchedTeams возвращает соперников команды от новых к старым
func (r *SQLite) ListMatchedTeams(ctx context.Context, teamID string) ([]models.MatchedTeam, error) {
	return r.queryMatchedTeams(ctx, `WHERE team_id = ? ORDER BY created_at DESC, seq DESC`, teamID)
}

// DeleteMatchedTeam удаляет связь, только если она принадлежит команде teamID
func (r *SQLite) DeleteMatchedTeam(ctx context.Context, teamID, matchedID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM matched_teams WHERE id = ? AND team_id = ?`, matchedID, teamID)
	if err != nil {
		return false, fmt.Errorf("failed to delete matched team: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete matched team: %w", err)
	}
	return n > 0, nil
}

func (r *SQLite) queryMatchedTeams(ctx context.Context, where string, args ...any) ([]models.MatchedTeam, error) {
	query := `
        SELECT id, team_id, opponent_id, opponent_name, opponent_level, opponent_region, created_at
        FROM matched_teams ` + where
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get matched teams: %w", err)
	}
	defer rows.Close()

	var matched []models.MatchedTeam
	for rows.Next() {
		var (
			m         models.MatchedTeam
			createdAt int64
		)
		if err := rows.Scan(
			&m.ID, &m.TeamID, &m.OpponentTeam.ID, &m.OpponentTeam.Name,
			&m.OpponentTeam.Level, &m.OpponentTeam.Region, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan matched team: %w", err)
		}
		m.CreatedAt = fromUnixNano(createdAt)
		matched = append(matched, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate matched teams: %w", err)
	}
	return matched, nil
}

// GetAppData собирает полный снимок состояния
func (r *SQLite) GetAppData(ctx context.Context) (*models.AppData, error) {
	data := &models.AppData{}

	var userID string
	err := r.db.QueryRowContext(ctx, `SELECT user_id FROM session WHERE id = 1`).Scan(&userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	data.CurrentUserID = userID

	rows, err := r.db.QueryContext(ctx, `SELECT id, email, nickname, main_position, current_team_id FROM users ORDER BY id`)
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

	rows, err = r.db.QueryContext(ctx, `SELECT `+teamColumns+` FROM teams ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get teams: %w", err)
	}
	for rows.Next() {
		t, err := scanTeamLite(rows)
		if err != nil {
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
func (r *SQLite) SetAppData(ctx context.Context, data models.AppData) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"session", "matched_teams", "game_records", "match_requests", "teams", "users"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, u := range data.Users {
		if err := upsertUserLite(ctx, tx, u); err != nil {
			return err
		}
	}
	for _, t := range data.Teams {
		if _, err := tx.ExecContext(ctx, teamUpsertLite, teamArgs(t)...); err != nil {
			return fmt.Errorf("failed to insert team: %w", err)
		}
	}
	for _, rec := range data.GameRecords {
		if err := insertGameRecordLite(ctx, tx, rec); err != nil {
			return err
		}
	}
	for _, req := range data.MatchRequests {
		if err := insertMatchRequestLite(ctx, tx, req); err != nil {
			return err
		}
	}
	for _, m := range data.MatchedTeams {
		if err := insertMatchedTeamLite(ctx, tx, m); err != nil {
			return err
		}
	}

	if data.CurrentUserID != "" {
		_, err = tx.ExecContext(ctx, `INSERT INTO session (id, user_id) VALUES (1, ?)`, data.CurrentUserID)
		if err != nil {
			return fmt.Errorf("failed to set session: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
