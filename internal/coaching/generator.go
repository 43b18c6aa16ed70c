package coaching

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/untibullet/teamup-coach/internal/models"
)

// Generator подбирает шаблонный комментарий тренера по стилю команды, результату и тегу
type Generator struct {
	mu         sync.Mutex
	rnd        *rand.Rand
	defaultDNA models.TeamDNA
}

// NewGenerator создает генератор. При rnd == nil используется источник, засеянный временем.
func NewGenerator(rnd *rand.Rand, defaultDNA models.TeamDNA) *Generator {
	if rnd == nil {
		seed := uint64(time.Now().UnixNano())
		rnd = rand.New(rand.NewPCG(seed, seed>>1))
	}
	if _, ok := templates[defaultDNA]; !ok {
		defaultDNA = models.DNABulls
	}
	return &Generator{rnd: rnd, defaultDNA: defaultDNA}
}

// Candidates возвращает набор шаблонов для тройки стиль/результат/тег, nil если ячейки нет.
// Пустой или неизвестный стиль заменяется стилем по умолчанию.
func (g *Generator) Candidates(result models.GameResult, tag models.FeedbackTag, dna models.TeamDNA) []string {
	if _, ok := templates[dna]; !ok {
		dna = g.defaultDNA
	}
	return templates[dna][result][tag]
}

// Generate выбирает случайный шаблон из ячейки или общий ответ, если ячейки нет
func (g *Generator) Generate(result models.GameResult, tag models.FeedbackTag, dna models.TeamDNA) string {
	candidates := g.Candidates(result, tag, dna)
	if len(candidates) == 0 {
		return Fallback(result)
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	g.mu.Lock()
	i := g.rnd.IntN(len(candidates))
	g.mu.Unlock()

	return candidates[i]
}

// Fallback общий комментарий, зависящий только от того, была ли победа
func Fallback(result models.GameResult) string {
	if result == models.ResultWin {
		return fallbackWin
	}
	return fallbackOther
}
