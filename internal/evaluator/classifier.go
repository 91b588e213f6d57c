package evaluator

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"smart-industry/internal/domain"
)

// Classifier 预训练分类器
// 输入固定为 7 维特征（顺序见 domain.FeatureOrder），输出 Low/Moderate/High/Critical
type Classifier interface {
	Predict(features []float64) (string, error)
}

var validLabels = map[string]bool{
	domain.RiskLow:      true,
	domain.RiskModerate: true,
	domain.RiskHigh:     true,
	domain.RiskCritical: true,
}

func checkFeatures(features []float64) error {
	if len(features) != len(domain.FeatureOrder) {
		return fmt.Errorf("expected %d features, got %d", len(domain.FeatureOrder), len(features))
	}
	for i, f := range features {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("feature %s is not finite", domain.FeatureOrder[i])
		}
	}
	return nil
}

// RuleClassifier 训练标签所用的分级规则（未配置模型文件时使用）
type RuleClassifier struct{}

// Predict 按 pm2_5 / co / voc 分级
func (RuleClassifier) Predict(features []float64) (string, error) {
	if err := checkFeatures(features); err != nil {
		return "", err
	}
	voc, co, pm25 := features[2], features[3], features[5]

	switch {
	case pm25 > 50 || co > 8 || voc > 3:
		return domain.RiskCritical, nil
	case pm25 > 35 || co > 6 || voc > 2:
		return domain.RiskHigh, nil
	case pm25 > 25 || co > 4 || voc > 1:
		return domain.RiskModerate, nil
	default:
		return domain.RiskLow, nil
	}
}

// TreeNode 决策树节点；Feature < 0 表示叶子节点
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Class     int     `json:"class"`
}

// TreeModel 导出的模型文件格式
// 多棵树时按多数投票，票数相同取类别下标较小者
type TreeModel struct {
	Labels []string     `json:"labels"` // 类别下标 -> 标签（与训练时的 label encoder 一致）
	Trees  [][]TreeNode `json:"trees"`
}

// TreeClassifier 决策树（森林）分类器，启动时加载一次，之后只读
type TreeClassifier struct {
	model TreeModel
}

// LoadTreeClassifier 从 JSON 文件加载模型
func LoadTreeClassifier(path string) (*TreeClassifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	return ParseTreeClassifier(data)
}

// ParseTreeClassifier 解析并校验模型
func ParseTreeClassifier(data []byte) (*TreeClassifier, error) {
	var m TreeModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	if len(m.Labels) == 0 {
		return nil, fmt.Errorf("model has no labels")
	}
	for _, l := range m.Labels {
		if !validLabels[l] {
			return nil, fmt.Errorf("unknown label %q in model", l)
		}
	}
	if len(m.Trees) == 0 {
		return nil, fmt.Errorf("model has no trees")
	}
	for ti, tree := range m.Trees {
		if len(tree) == 0 {
			return nil, fmt.Errorf("tree %d is empty", ti)
		}
		for ni, n := range tree {
			if n.Feature < 0 {
				if n.Class < 0 || n.Class >= len(m.Labels) {
					return nil, fmt.Errorf("tree %d node %d: class %d out of range", ti, ni, n.Class)
				}
				continue
			}
			if n.Feature >= len(domain.FeatureOrder) {
				return nil, fmt.Errorf("tree %d node %d: feature %d out of range", ti, ni, n.Feature)
			}
			// 子节点只能指向后面的节点，保证遍历有终点
			if n.Left <= ni || n.Left >= len(tree) || n.Right <= ni || n.Right >= len(tree) {
				return nil, fmt.Errorf("tree %d node %d: invalid children", ti, ni)
			}
		}
	}
	return &TreeClassifier{model: m}, nil
}

// Predict 多数投票
func (c *TreeClassifier) Predict(features []float64) (string, error) {
	if err := checkFeatures(features); err != nil {
		return "", err
	}

	votes := make([]int, len(c.model.Labels))
	for _, tree := range c.model.Trees {
		votes[walk(tree, features)]++
	}

	best := 0
	for i := range votes {
		if votes[i] > votes[best] {
			best = i
		}
	}
	return c.model.Labels[best], nil
}

func walk(tree []TreeNode, features []float64) int {
	i := 0
	for tree[i].Feature >= 0 {
		n := tree[i]
		if features[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return tree[i].Class
}
