package generator

import (
	"strconv"
	"strings"

	"MatchPoster/internal/model"
)

// Template 提示词模板
type Template struct {
	ID   string
	Text string // 占位符：{{HOME}} {{AWAY}} {{COUNT}} {{COMPETITION}} {{VENUE}} {{DATE}} {{TIME}}
}

const (
	TemplateStadiumNight   = "stadium-night"
	TemplatePlayersCover   = "players-cover"
	TemplateAbstractColors = "abstract-colors"
	TemplatePrestigeGold   = "prestige-gold"
	TemplateStadiumCrowd   = "stadium-crowd" // 未知风格兜底
	TemplateProgramDay     = "program-matchday"
)

var templates = map[model.RenderStyle]Template{
	model.StyleStadium: {ID: TemplateStadiumNight, Text: `Generate a vertical (9:16) photorealistic image of a majestic soccer stadium at night.
CRITICAL: The pitch must be COMPLETELY EMPTY. NO PLAYERS, NO REFEREES, NO PEOPLE on the green grass.
Visuals:
- Wide angle shot from pitch level looking up at the stands.
- Pristine green grass illuminated by bright, dramatic stadium floodlights.
- The stands are dark but filled with the atmosphere of a crowd (blurred background).
- Cinematic lighting, lens flare, high contrast, professional sports photography.
Negative prompt: players, people on field, athletes, american football, text, watermark, day, match in progress.`},

	model.StylePlayers: {ID: TemplatePlayersCover, Text: `Génère un fond ultra-réaliste pour une affiche de football, avec les deux top players RECONNAISSABLES de l'équipe {{HOME}} et de l'équipe {{AWAY}} pour la saison en cours.

Composition obligatoire :
– Les joueurs sont cadrés très haut : têtes, épaules et torses dans le tiers supérieur de l'image.
– Leurs corps ne descendent JAMAIS dans la zone inférieure où les logos seront ajoutés.
– Action dynamique : course, duel, dribble, tir.

Positionnement :
– Joueur star de l'équipe {{HOME}} à gauche.
– Joueur star de l'équipe {{AWAY}} à droite.

Contrainte stricte : EXACTEMENT un seul ballon visible.
Arrière-plan : stade moderne légèrement flou, lumières fortes, ambiance match-night premium.
Style : ultra réaliste, aucun texte, aucun logo, format vertical haute résolution.
Negative prompt: text, typography, watermark, american football, rugby, helmet, distorted faces, bad anatomy, cartoon, multiple balls, full body shot, small figures, players in lower half.`},

	model.StyleAbstract: {ID: TemplateAbstractColors, Text: `Crée un fond abstrait pour une affiche de football, inspiré des visuels sportifs modernes.
Utilise uniquement un mélange artistique des deux couleurs principales des équipes du match ({{HOME}} vs {{AWAY}}).
Style dynamique et énergique, formes abstraites, textures fluides, dégradés vifs, effets lumineux modernes.
Aucun joueur ni élément figuratif. Aspect premium, sans texte ni logos.
Format vertical (9:16) pour une affiche.
Negative prompt: players, people, ball, stadium, grass, text, typography, letters, words, watermark.`},

	model.StylePrestige: {ID: TemplatePrestigeGold, Text: `Génère un fond extrêmement élégant et premium pour une affiche de football prestige.
Palette uniquement noire et or, rendu luxueux, sobre, moderne et haut de gamme.
Reflets dorés subtils, lignes minimalistes, textures métalliques fines.
Le fond évoque l'importance d'un match VIP ou d'une finale, sans montrer de joueurs.
Format vertical (9:16) haute résolution.
Negative prompt: players, people, ball, stadium, grass, green, colors, text, typography, watermark.`},

	model.StyleProgram: {ID: TemplateProgramDay, Text: `Create a dramatic, cinematic football match day program poster background.
Grand stadium atmosphere with dramatic lighting, spotlights cutting through atmospheric haze.
Include subtle elements suggesting multiple matches, such as several pitch sections or a collage of stadium scenes.
Style: ultra-premium sports broadcast quality, dark and moody with selective lighting highlights.
Color scheme: deep blacks and rich shadows with golden/warm highlight accents.
This will be used as a background for a {{COUNT}}-match program listing.
NO text, NO logos, NO specific players.
Aspect ratio: 9:16 portrait orientation for mobile.`},
}

var fallbackTemplate = Template{ID: TemplateStadiumCrowd, Text: `Create a dramatic, cinematic football stadium background for a match poster.
The stadium is packed with fans, with spotlights, flares and atmospheric smoke.
Epic, movie-poster quality with deep shadows and highlights.
Style: ultra-realistic, cinematic, 4K quality, dramatic lighting.
Teams: {{HOME}} vs {{AWAY}}, with subtle team color hints in the lighting.{{CONTEXT}}
NO text, NO logos, NO players.
Aspect ratio: 9:16 portrait orientation for mobile poster.`}

// TemplateFor 按风格选择模板，未知风格返回兜底模板
func TemplateFor(style model.RenderStyle) Template {
	if t, ok := templates[style]; ok {
		return t
	}
	return fallbackTemplate
}

// Render 插值队名、场次与比赛信息。
// 单场模板未写 {{CONTEXT}} 时，比赛信息追加在末尾
func (t Template) Render(req Request) string {
	extra := ""
	if req.MatchCount == 0 {
		if c := matchContext(req); c != "" {
			extra = "\nMatch context: " + c + "."
		}
	}
	text := t.Text
	if extra != "" && !strings.Contains(text, "{{CONTEXT}}") {
		text += "{{CONTEXT}}"
	}
	return strings.NewReplacer(
		"{{HOME}}", req.TeamA,
		"{{AWAY}}", req.TeamB,
		"{{COUNT}}", strconv.Itoa(req.MatchCount),
		"{{COMPETITION}}", req.Competition,
		"{{VENUE}}", req.Venue,
		"{{DATE}}", req.Date,
		"{{TIME}}", req.Time,
		"{{CONTEXT}}", extra,
	).Replace(text)
}

// matchContext 如 "Ligue 1, at Parc des Princes, on 2025-12-06 21:00"
func matchContext(req Request) string {
	var parts []string
	if c := strings.TrimSpace(req.Competition); c != "" {
		parts = append(parts, c)
	}
	if v := strings.TrimSpace(req.Venue); v != "" {
		parts = append(parts, "at "+v)
	}
	if when := strings.TrimSpace(req.Date + " " + req.Time); when != "" {
		parts = append(parts, "on "+when)
	}
	return strings.Join(parts, ", ")
}
