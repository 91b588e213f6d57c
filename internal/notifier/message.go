package notifier

import (
	"fmt"
	"strings"

	"smart-industry/internal/domain"
)

const timestampLayout = "2006-01-02 15:04:05"

// Subject 邮件主题（也作为短信内容）
func Subject(v *domain.RiskVerdict) string {
	return fmt.Sprintf("⚠️ Safety Alert for %s", v.WorkerID)
}

// Body 邮件正文
func Body(v *domain.RiskVerdict, profile *domain.WorkerProfile) string {
	issues := "No issues detected"
	if len(v.Flags) > 0 {
		issues = strings.Join(v.FlagStrings(), ", ")
	}

	ts := v.EvaluatedAt
	if v.Sample != nil && !v.Sample.Timestamp.IsZero() {
		ts = v.Sample.Timestamp
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", profile.Name)
	b.WriteString("🚨 Safety Alert Detected 🚨\n\n")
	fmt.Fprintf(&b, "Risk Level: %s\n", v.Final)
	fmt.Fprintf(&b, "Model Prediction: %s\n", v.ModelLabel)
	fmt.Fprintf(&b, "Fuzzy Risk: %s\n", v.FuzzyLabel)
	fmt.Fprintf(&b, "Detected Issues: %s\n", issues)
	fmt.Fprintf(&b, "Timestamp: %s\n\n", ts.Format(timestampLayout))
	b.WriteString("Please follow the personalized safety measures immediately:\n")
	fmt.Fprintf(&b, "- %s\n\n", v.Measures)
	b.WriteString("Stay Safe.\n\n")
	b.WriteString("Regards,\nIndustry Safety System\n")
	return b.String()
}
