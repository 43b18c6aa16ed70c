// models/models.go
package models

import "time"

// GameResult итог сыгранной игры
type GameResult string

const (
	ResultWin  GameResult = "WIN"
	ResultLose GameResult = "LOSE"
	ResultDraw GameResult = "DRAW"
)

// Valid сообщает, относится ли результат к известным значениям
func (r GameResult) Valid() bool {
	switch r {
	case ResultWin, ResultLose, ResultDraw:
		return true
	}
	return false
}

// FeedbackTag направление, на котором фокусируется разбор игры
type FeedbackTag string

const (
	TagDefense  FeedbackTag = "DEFENSE"
	TagOffense  FeedbackTag = "OFFENSE"
	TagMental   FeedbackTag = "MENTAL"
	TagTeamwork FeedbackTag = "TEAMWORK"
	TagStamina  FeedbackTag = "STAMINA"
)

// FeedbackTags перечисляет теги в порядке отображения
var FeedbackTags = []FeedbackTag{TagDefense, TagOffense, TagMental, TagTeamwork, TagStamina}

// Valid сообщает, относится ли тег к известным значениям
func (t FeedbackTag) Valid() bool {
	for _, known := range FeedbackTags {
		if t == known {
			return true
		}
	}
	return false
}

// TeamDNA стиль команды, от которого зависят шаблоны комментариев
type TeamDNA string

const (
	DNABulls    TeamDNA = "BULLS"
	DNAWarriors TeamDNA = "WARRIORS"
	DNASpurs    TeamDNA = "SPURS"
)

// MatchRequestStatus состояние запроса на матч
type MatchRequestStatus string

const (
	StatusPending  MatchRequestStatus = "pending"
	StatusAccepted MatchRequestStatus = "accepted"
	StatusRejected MatchRequestStatus = "rejected"
)

// Terminal сообщает, что статус больше не может меняться
func (s MatchRequestStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// User представляет текущего пользователя клиента
type User struct {
	ID            string `json:"id" db:"id"`
	Email         string `json:"email" db:"email"`
	Nickname      string `json:"nickname" db:"nickname"`
	MainPosition  string `json:"mainPosition,omitempty" db:"main_position"`
	CurrentTeamID string `json:"currentTeamId,omitempty" db:"current_team_id"`
}

// Team представляет баскетбольную команду
type Team struct {
	ID          string  `json:"id" db:"id" validate:"required"`
	Name        string  `json:"name" db:"name" validate:"required,max=100"`
	ShortName   string  `json:"shortName" db:"short_name"`
	Region      string  `json:"region" db:"region"`
	Level       string  `json:"level" db:"level" validate:"omitempty,oneof=A+ A A- B+ B B- C+ C C- D"`
	MemberCount int     `json:"memberCount" db:"member_count" validate:"gte=0"`
	MaxMembers  int     `json:"maxMembers" db:"max_members" validate:"gte=0"`
	IsOfficial  bool    `json:"isOfficial" db:"is_official"`
	TotalGames  int     `json:"totalGames" db:"total_games"`
	AIReports   int     `json:"aiReports" db:"ai_reports"`
	ActiveDays  int     `json:"activeDays" db:"active_days"`
	TeamDNA     TeamDNA `json:"teamDna,omitempty" db:"team_dna" validate:"omitempty,oneof=BULLS WARRIORS SPURS"`
	CaptainID   string  `json:"captainId,omitempty" db:"captain_id"`
}

// Ref возвращает краткую ссылку на команду
func (t Team) Ref() TeamRef {
	return TeamRef{ID: t.ID, Name: t.Name, Level: t.Level, Region: t.Region}
}

// TeamRef ссылка на команду без владения ею
type TeamRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Level  string `json:"level,omitempty"`
	Region string `json:"region,omitempty"`
}

// MatchRequest предложение сыграть матч от одной команды другой
type MatchRequest struct {
	ID        string             `json:"id" db:"id"`
	FromTeam  TeamRef            `json:"fromTeam" db:"-"`
	ToTeam    TeamRef            `json:"toTeam" db:"-"`
	Message   string             `json:"message" db:"message"`
	Status    MatchRequestStatus `json:"status" db:"status"`
	CreatedAt time.Time          `json:"createdAt" db:"created_at"`
}

// PositionFeedback ответы об игре команды, собранные с одной позиции
type PositionFeedback struct {
	PositionNumber int      `json:"positionNumber"`
	Tags           []string `json:"tags"`
}

// GameRecord запись о сыгранной игре вместе с комментарием тренера
type GameRecord struct {
	ID                string             `json:"id" db:"id"`
	TeamID            string             `json:"teamId" db:"team_id"`
	TeamName          string             `json:"teamName" db:"team_name"`
	Opponent          string             `json:"opponent" db:"opponent"`
	GameDate          string             `json:"gameDate" db:"game_date"`
	Result            GameResult         `json:"result" db:"result"`
	FeedbackTag       FeedbackTag        `json:"feedbackTag,omitempty" db:"feedback_tag"`
	PositionFeedbacks []PositionFeedback `json:"positionFeedbacks,omitempty" db:"position_feedbacks"`
	AIComment         string             `json:"aiComment" db:"ai_comment"`
	CreatedAt         time.Time          `json:"createdAt" db:"created_at"`
}

// MatchedTeam связь с командой-соперником после принятого запроса
type MatchedTeam struct {
	ID           string    `json:"id" db:"id"`
	TeamID       string    `json:"teamId" db:"team_id"`
	OpponentTeam TeamRef   `json:"opponentTeam" db:"-"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// TeamStats агрегированная статистика команды
type TeamStats struct {
	TotalGames int `json:"totalGames"`
	Wins       int `json:"wins"`
	Losses     int `json:"losses"`
	Draws      int `json:"draws"`
	WinRate    int `json:"winRate"`
}

// AppData полный снимок хранимого состояния клиента
type AppData struct {
	CurrentUserID string         `json:"currentUserId,omitempty"`
	Users         []User         `json:"users"`
	Teams         []Team         `json:"teams"`
	GameRecords   []GameRecord   `json:"gameRecords"`
	MatchRequests []MatchRequest `json:"matchRequests"`
	MatchedTeams  []MatchedTeam  `json:"matchedTeams"`
}
