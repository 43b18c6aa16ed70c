package coaching

import (
	"errors"
	"fmt"
	"sort"

	"github.com/untibullet/teamup-coach/internal/models"
)

// ErrInvalidAnswers набор ответов по позиции неполон или содержит неизвестные варианты
var ErrInvalidAnswers = errors.New("invalid position answers")

// PositionQuestionID ключ вопроса, специфичного для позиции
const PositionQuestionID = "position_question"

const (
	scorePoor = iota
	scoreAverage
	scoreGood
)

// Option вариант ответа; Code уходит в теги отзыва по позиции
type Option struct {
	Code  string `json:"code"`
	Label string `json:"label"`
	score int
}

// Question вопрос анкеты и направление, которое он оценивает
type Question struct {
	ID      string             `json:"id"`
	Text    string             `json:"text"`
	Options []Option           `json:"options"`
	Focus   models.FeedbackTag `json:"focus"`
}

// Position описание игровой позиции 1..5
type Position struct {
	Number    int    `json:"number"`
	ShortName string `json:"shortName"`
	Name      string `json:"name"`
}

var positions = map[int]Position{
	1: {Number: 1, ShortName: "PG", Name: "Point Guard"},
	2: {Number: 2, ShortName: "SG", Name: "Shooting Guard"},
	3: {Number: 3, ShortName: "SF", Name: "Small Forward"},
	4: {Number: 4, ShortName: "PF", Name: "Power Forward"},
	5: {Number: 5, ShortName: "C", Name: "Center"},
}

func options(prefix string, labels ...string) []Option {
	suffixes := [3]string{"GOOD", "AVERAGE", "POOR"}
	scores := [3]int{scoreGood, scoreAverage, scorePoor}
	opts := make([]Option, len(labels))
	for i, label := range labels {
		opts[i] = Option{Code: prefix + "_" + suffixes[i], Label: label, score: scores[i]}
	}
	return opts
}

var commonQuestions = []Question{
	{
		ID:      "q1",
		Text:    "How was the team's ball movement today?",
		Options: options("BALL_MOVEMENT", "Good", "Average", "Poor"),
		Focus:   models.TagOffense,
	},
	{
		ID:      "q2",
		Text:    "How did the team's defensive rotation work overall?",
		Options: options("DEFENSIVE_ROTATION", "Well in sync", "Broke down at times", "Rarely in sync"),
		Focus:   models.TagDefense,
	},
	{
		ID:      "q3",
		Text:    "How was on-court communication (calls, instructions, asking for help)?",
		Options: options("COMMUNICATION", "Active", "Average", "Lacking"),
		Focus:   models.TagTeamwork,
	},
}

var positionQuestions = map[int]Question{
	1: {
		ID:      PositionQuestionID,
		Text:    "How was the team's passing tempo?",
		Options: options("PASS_TEMPO", "Good", "A bit slow", "Very slow"),
		Focus:   models.TagOffense,
	},
	2: {
		ID:      PositionQuestionID,
		Text:    "How well did the team create open looks (screens, cuts)?",
		Options: options("OPEN_LOOKS", "Created well", "Average", "Almost none"),
		Focus:   models.TagOffense,
	},
	3: {
		ID:      PositionQuestionID,
		Text:    "How fast was the transition and how well did the team support it?",
		Options: options("TRANSITION", "Fast", "Average", "Slow"),
		Focus:   models.TagStamina,
	},
	4: {
		ID:      PositionQuestionID,
		Text:    "How committed was the team to boxing out for rebounds?",
		Options: options("BOX_OUT", "Committed", "Average", "Lacking"),
		Focus:   models.TagDefense,
	},
	5: {
		ID:      PositionQuestionID,
		Text:    "How stable was the team's help defense inside?",
		Options: options("INSIDE_HELP", "Stable", "Average", "Unstable"),
		Focus:   models.TagDefense,
	},
}

type optionRef struct {
	focus models.FeedbackTag
	score int
}

// optionIndex код варианта -> направление и оценка
var optionIndex = func() map[string]optionRef {
	idx := make(map[string]optionRef)
	add := func(q Question) {
		for _, o := range q.Options {
			idx[o.Code] = optionRef{focus: q.Focus, score: o.score}
		}
	}
	for _, q := range commonQuestions {
		add(q)
	}
	for _, q := range positionQuestions {
		add(q)
	}
	return idx
}()

// LookupPosition возвращает описание позиции
func LookupPosition(number int) (Position, error) {
	p, ok := positions[number]
	if !ok {
		return Position{}, fmt.Errorf("%w: unknown position %d", ErrInvalidAnswers, number)
	}
	return p, nil
}

// Questions возвращает три общих вопроса и вопрос позиции
func Questions(position int) ([]Question, error) {
	pq, ok := positionQuestions[position]
	if !ok {
		return nil, fmt.Errorf("%w: unknown position %d", ErrInvalidAnswers, position)
	}
	qs := make([]Question, 0, len(commonQuestions)+1)
	qs = append(qs, commonQuestions...)
	return append(qs, pq), nil
}

// Collect проверяет, что на все четыре вопроса позиции дан допустимый ответ,
// и возвращает ответы по ID вопроса
func Collect(position int, answers map[string]string) (map[string]string, error) {
	qs, err := Questions(position)
	if err != nil {
		return nil, err
	}

	collected := make(map[string]string, len(qs))
	for _, q := range qs {
		answer, ok := answers[q.ID]
		if !ok || answer == "" {
			return nil, fmt.Errorf("%w: question %s is not answered", ErrInvalidAnswers, q.ID)
		}
		if !hasOption(q, answer) {
			return nil, fmt.Errorf("%w: %q is not an option of question %s", ErrInvalidAnswers, answer, q.ID)
		}
		collected[q.ID] = answer
	}
	return collected, nil
}

func hasOption(q Question, code string) bool {
	for _, o := range q.Options {
		if o.Code == code {
			return true
		}
	}
	return false
}

// Draft накапливает ответы по позициям до отправки отзыва об игре
type Draft struct {
	answers map[int]map[string]string
}

func NewDraft() *Draft {
	return &Draft{answers: make(map[int]map[string]string)}
}

// Add принимает набор ответов позиции; повторная отправка заменяет прежний
func (d *Draft) Add(position int, answers map[string]string) error {
	collected, err := Collect(position, answers)
	if err != nil {
		return err
	}
	d.answers[position] = collected
	return nil
}

func (d *Draft) Len() int {
	return len(d.answers)
}

// PositionFeedbacks переводит ответы в список отзывов, отсортированный по номеру позиции
func (d *Draft) PositionFeedbacks() []models.PositionFeedback {
	numbers := make([]int, 0, len(d.answers))
	for n := range d.answers {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	feedbacks := make([]models.PositionFeedback, 0, len(numbers))
	for _, n := range numbers {
		qs, _ := Questions(n)
		tags := make([]string, 0, len(qs))
		for _, q := range qs {
			tags = append(tags, d.answers[n][q.ID])
		}
		feedbacks = append(feedbacks, models.PositionFeedback{PositionNumber: n, Tags: tags})
	}
	return feedbacks
}

// FocusTag выводит тег разбора из отзывов по позициям: после победы самое сильное
// направление, иначе самое слабое. Ничья по средней оценке решается порядком models.FeedbackTags.
func FocusTag(result models.GameResult, feedbacks []models.PositionFeedback) models.FeedbackTag {
	sum := make(map[models.FeedbackTag]int)
	count := make(map[models.FeedbackTag]int)
	for _, fb := range feedbacks {
		for _, code := range fb.Tags {
			ref, ok := optionIndex[code]
			if !ok {
				continue
			}
			sum[ref.focus] += ref.score
			count[ref.focus]++
		}
	}

	best := models.TagTeamwork
	found := false
	var bestAvg float64
	for _, tag := range models.FeedbackTags {
		if count[tag] == 0 {
			continue
		}
		avg := float64(sum[tag]) / float64(count[tag])
		better := avg < bestAvg
		if result == models.ResultWin {
			better = avg > bestAvg
		}
		if !found || better {
			best, bestAvg, found = tag, avg, true
		}
	}
	return best
}
