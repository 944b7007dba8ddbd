package compose

import (
	"fmt"
	"strings"
	"time"

	"MatchPoster/internal/model"
)

var frenchWeekdays = [...]string{"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"}

var frenchMonths = [...]string{"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre"}

// FrenchLongDate 如 SAMEDI 6 DÉCEMBRE。只取日历日期，不做时区换算
func FrenchLongDate(d time.Time) string {
	s := fmt.Sprintf("%s %d %s", frenchWeekdays[d.Weekday()], d.Day(), frenchMonths[d.Month()-1])
	return strings.ToUpper(s)
}

// ProgramDate 节目单表头日期 DD/MM/YYYY
func ProgramDate(d time.Time) string {
	return d.Format("02/01/2006")
}

var fileNameReplacer = strings.NewReplacer(
	"/", "-", "\\", "-", ":", "-", "*", "", "?", "", "\"", "", "<", "", ">", "", "|", "-",
)

// FileName 导出文件名：<brand> - <主队> vs <客队>.jpg，节目单为 <brand> - Programme DD-MM-YYYY.jpg
func FileName(brand string, fixtures []model.Fixture) string {
	if len(fixtures) == 0 {
		return sanitize(brand) + ".jpg"
	}
	if len(fixtures) > 1 {
		label := fixtures[0].Date
		if d, err := fixtures[0].CalendarDate(); err == nil {
			label = d.Format("02-01-2006")
		}
		return fmt.Sprintf("%s - Programme %s.jpg", sanitize(brand), label)
	}
	f := fixtures[0]
	return fmt.Sprintf("%s - %s vs %s.jpg", sanitize(brand), sanitize(f.HomeTeam.Name), sanitize(f.AwayTeam.Name))
}

func sanitize(s string) string {
	return strings.TrimSpace(fileNameReplacer.Replace(s))
}
