// Package registry 患者登记表（YAML 文件或内置演示数据）
package registry

import (
	"fmt"
	"os"
	"strings"

	"wisefido-emergency/internal/generator"
	"wisefido-emergency/internal/models"

	"gopkg.in/yaml.v3"
)

// File 登记文件格式
//
//	patients:
//	  - id: P001
//	    name: John Doe
//	    condition_profile: Cardiac
//	    location: ICU-1
type File struct {
	Patients []models.Patient `yaml:"patients"`
}

// Demo 内置演示患者（每种病情模板一名）
func Demo() []models.Patient {
	return []models.Patient{
		{ID: "P001", Name: "John Doe", ConditionProfile: models.ProfileCardiac, Location: "ICU-1"},
		{ID: "P002", Name: "Jane Smith", ConditionProfile: models.ProfileTrauma, Location: "ER-3"},
		{ID: "P003", Name: "Robert Chen", ConditionProfile: models.ProfileRespiratory, Location: "ICU-4"},
		{ID: "P004", Name: "Maria Garcia", ConditionProfile: models.ProfileStroke, Location: "Neuro-2"},
	}
}

// Load 读取登记文件；path 为空时返回演示患者
func Load(path string) ([]models.Patient, error) {
	if path == "" {
		return Demo(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read patients file: %w", err)
	}
	return Parse(data)
}

// Parse 解析并校验登记内容
func Parse(data []byte) ([]models.Patient, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse patients file: %w", err)
	}
	if len(f.Patients) == 0 {
		return nil, fmt.Errorf("patients file contains no patients")
	}

	seen := make(map[string]struct{}, len(f.Patients))
	for i := range f.Patients {
		p := &f.Patients[i]
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			return nil, fmt.Errorf("patient #%d: id is required", i+1)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("patient %s: duplicate id", p.ID)
		}
		seen[p.ID] = struct{}{}

		// 空模板由生成器按 Cardiac 处理；拼写错误的模板直接拒绝
		if p.ConditionProfile != "" && !generator.KnownProfile(p.ConditionProfile) {
			return nil, fmt.Errorf("patient %s: unknown condition_profile %q", p.ID, p.ConditionProfile)
		}
	}
	return f.Patients, nil
}
