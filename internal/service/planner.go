package service

import (
	"MatchPoster/internal/model"
)

// Group 一张海报对应的赛事集合
type Group struct {
	Mode     model.PosterMode
	Fixtures []model.Fixture
}

// Planner 决定一批赛事生成几张海报。节目单场次上下限来自配置
type Planner struct {
	lo int
	hi int
}

// NewPlanner 创建分组器
func NewPlanner(programMin, programMax int) Planner {
	return Planner{lo: programMin, hi: programMax}
}

// Plan 单场模式一场一张；节目单模式按日期分组（保持输入顺序），
// 场次数在 [min, max] 内的组合成一张节目单，其余退回单场
func (p Planner) Plan(fixtures []model.Fixture, mode model.PosterMode) []Group {
	if mode != model.ModeProgram {
		return singles(fixtures)
	}

	var order []string
	byDate := make(map[string][]model.Fixture)
	for _, f := range fixtures {
		if _, ok := byDate[f.Date]; !ok {
			order = append(order, f.Date)
		}
		byDate[f.Date] = append(byDate[f.Date], f)
	}

	var groups []Group
	for _, date := range order {
		fs := byDate[date]
		if len(fs) >= p.lo && len(fs) <= p.hi {
			groups = append(groups, Group{Mode: model.ModeProgram, Fixtures: fs})
			continue
		}
		groups = append(groups, singles(fs)...)
	}
	return groups
}

func singles(fixtures []model.Fixture) []Group {
	out := make([]Group, 0, len(fixtures))
	for _, f := range fixtures {
		out = append(out, Group{Mode: model.ModeClassic, Fixtures: []model.Fixture{f}})
	}
	return out
}
