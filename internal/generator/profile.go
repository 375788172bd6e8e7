package generator

import "wisefido-emergency/internal/models"

// Profile 病情模板：基线体征 + 危急概率
type Profile struct {
	Name           string
	BaseHR         int
	BaseSpO2       int
	BaseTemp       float64
	CriticalChance float64
}

var profiles = map[string]Profile{
	models.ProfileCardiac:     {Name: models.ProfileCardiac, BaseHR: 95, BaseSpO2: 94, BaseTemp: 37.0, CriticalChance: 0.08},
	models.ProfileTrauma:      {Name: models.ProfileTrauma, BaseHR: 105, BaseSpO2: 96, BaseTemp: 37.2, CriticalChance: 0.10},
	models.ProfileRespiratory: {Name: models.ProfileRespiratory, BaseHR: 100, BaseSpO2: 93, BaseTemp: 37.6, CriticalChance: 0.12},
	models.ProfileStroke:      {Name: models.ProfileStroke, BaseHR: 85, BaseSpO2: 96, BaseTemp: 37.0, CriticalChance: 0.06},
}

// ProfileFor 查找病情模板，未知名称默认 Cardiac
func ProfileFor(name string) Profile {
	if p, ok := profiles[name]; ok {
		return p
	}
	return profiles[models.ProfileCardiac]
}

// KnownProfile 是否为已知模板
func KnownProfile(name string) bool {
	_, ok := profiles[name]
	return ok
}
