package coaching

import "github.com/untibullet/teamup-coach/internal/models"

type templateTable map[models.TeamDNA]map[models.GameResult]map[models.FeedbackTag][]string

const (
	fallbackWin   = "Great game! Keep this momentum going."
	fallbackOther = "A tough game, but you will do better next time!"
)

var templates = templateTable{
	models.DNABulls: {
		models.ResultWin: {
			models.TagDefense: {
				"Great win! True Bulls DNA: your defense suffocated the opponent, especially in the last five minutes. Next game, attack the glass even harder. As Jordan said, \"Defense wins championships!\"",
				"Outstanding defense! You played with the spirit of Chicago and shut down their key player. Pippen would call that defense as teamwork. Next time turn those stops into fast breaks!",
			},
			models.TagOffense: {
				"Your attack carried the win! But the Bulls start on defense. Next game, build your offense on a defensive foundation. Jordan was a defender before he was a scoring champion.",
			},
			models.TagMental: {
				"You stayed focused even when the game wobbled. Playing calmly in a tied game was the key to this win. That is Phil Jackson's \"stay in the moment\" in action.",
			},
			models.TagTeamwork: {
				"Teamwork won this one, like Jordan and Pippen in sync. The Bulls also need grit: next game, pressure the opponent with a more aggressive defense!",
			},
			models.TagStamina: {
				"You kept your legs until the final whistle! The Bulls are a fourth-quarter team. Try draining the opponent with hard defense from the tip next time.",
			},
		},
		models.ResultLose: {
			models.TagDefense: {
				"A painful loss, but don't give up. The Bulls get stronger through adversity. The defense looked good; next time fight for every rebound like Rodman.",
			},
			models.TagOffense: {
				"A painful loss, but the shot selection is fixable. Look for closer, higher-percentage shots and create space together like Pippen did.",
			},
			models.TagMental: {
				"A hard game, but you held on. Jordan lost plenty too. Turn today's frustration into defensive drills: the Bulls rebuild confidence on defense!",
			},
			models.TagTeamwork: {
				"The teamwork was there, the result was not. The Bulls fight together: talk louder on defense and keep lifting each other up. Grit comes from communication!",
			},
			models.TagStamina: {
				"Conditioning was the bottleneck. Work on base fitness and practise spending energy wisely. Committing to defense saves legs for offense!",
			},
		},
	},
	models.DNAWarriors: {
		models.ResultWin: {
			models.TagOffense: {
				"Fantastic offense, pure Warriors DNA! Quick passing and confident threes like Curry. Next time share the joy with even more assists!",
				"Explosive attack! You lived \"Strength in Numbers\": everyone had a chance to score. Klay would tell you to just keep shooting!",
			},
			models.TagDefense: {
				"The defense was solid, but the Warriors overwhelm opponents with offense. Push the tempo so they never get set. Rebound and run like Draymond!",
			},
			models.TagMental: {
				"Calm and composed! Did you feel Kerr's joy of basketball? Enjoying the game while staying focused is a Warriors strength. Take bolder threes next time!",
			},
			models.TagTeamwork: {
				"Perfect team play, \"Strength in Numbers\" in full. Every player shone. Next game, stretch the lead with more three-point attempts!",
			},
			models.TagStamina: {
				"You kept the pace high to the end. Run and gun, done right! Efficient threes let you get more out of less energy.",
			},
		},
		models.ResultLose: {
			models.TagOffense: {
				"The shots just didn't fall today. Even Curry has slumps; keep shooting. You miss every shot you don't take. Don't lose the fun!",
			},
			models.TagDefense: {
				"The defense had gaps, but the Warriors answer with offense. Speed up so the opponent has no time to set their defense. Tempo opens the game!",
			},
			models.TagMental: {
				"A tough one, and that's fine. The Warriors play joyful basketball. Drop the pressure next game and smile like Curry: the shots follow.",
			},
			models.TagTeamwork: {
				"The passing was good, the result wasn't. Motion offense means constant movement: use the whole floor and take the open three!",
			},
			models.TagStamina: {
				"Conditioning limited you. The Warriors tempo needs fitness, but efficiency matters too: better three-point accuracy saves energy.",
			},
		},
	},
	models.DNASpurs: {
		models.ResultWin: {
			models.TagTeamwork: {
				"A win built on teamwork, true Spurs DNA! The beautiful game where everyone touches the ball. Pop would be pleased. Sharpen the passing next time!",
				"Fantastic team play, in sync like Duncan, Parker and Ginobili. Pounding the rock on the fundamentals brought the win!",
			},
			models.TagDefense: {
				"Solid system defense! But the Spurs live on passing. After a defensive rebound, move the ball quickly next game.",
			},
			models.TagOffense: {
				"Good offense, but the Spurs come first as a team. Keep the ball moving so no one holds it too long. Ball movement creates good shots!",
			},
			models.TagMental: {
				"Calm and patient play, pounding the rock. If one pass doesn't work, make a second and a third: the chance came. Pop's lesson learned!",
			},
			models.TagStamina: {
				"Steady to the end! The Spurs value fundamentals, and managing energy is one of them. Distribute your effort more efficiently next time.",
			},
		},
		models.ResultLose: {
			models.TagTeamwork: {
				"The teamwork was good, the result wasn't. The Spurs trust process over results. If you created good passing plays today, that counts. Stay with the basics!",
			},
			models.TagDefense: {
				"The defense fell short. Spurs system defense means five as one: call rotations louder and hold your spot quietly like Duncan.",
			},
			models.TagOffense: {
				"The offense struggled, and that's okay. Keep pounding the rock and it will crack. Drill the fundamentals and precise passing!",
			},
			models.TagMental: {
				"A hard game, but you held on. The Spurs are a team of patience: don't chase the win. Trust the process!",
			},
			models.TagStamina: {
				"Conditioning was the issue. The Spurs value efficiency: save energy with precise passes and good positioning. Pick the sure play, like Duncan's bank shot!",
			},
		},
	},
}
